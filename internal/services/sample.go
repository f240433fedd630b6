package services

import "finmetrics/internal/core"

// SampleRunName names the demo run created by LoadSample.
const SampleRunName = "Sample Company - H2 2024"

// SamplePeriods returns six months of demo data, July to December 2024.
func SamplePeriods() []core.Period {
	rows := []struct {
		date                           string
		revenue, cogs, opex, net, cash float64
		employees, customers           int
	}{
		{"2024-07", 1850000, 1110000, 410000, 247500, 3100000, 45, 1800},
		{"2024-08", 1920000, 1152000, 415000, 264750, 3200000, 47, 1920},
		{"2024-09", 2050000, 1230000, 420000, 300000, 3300000, 48, 2050},
		{"2024-10", 2180000, 1308000, 418000, 340500, 3500000, 49, 2100},
		{"2024-11", 2320000, 1392000, 422000, 379500, 3800000, 50, 2180},
		{"2024-12", 2450000, 1470000, 425000, 416250, 4200000, 51, 2195},
	}
	out := make([]core.Period, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.Period{
			Date:      r.date,
			Revenue:   r.revenue,
			COGS:      r.cogs,
			OpEx:      r.opex,
			NetIncome: core.Some(r.net),
			Cash:      core.Some(r.cash),
			Employees: core.Some(r.employees),
			Customers: core.Some(r.customers),
		})
	}
	return out
}
