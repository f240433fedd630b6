package metrics

import (
	"finmetrics/internal/core"
)

const (
	// DefaultHorizon is the number of months callers project when the user
	// does not choose one.
	DefaultHorizon = 6
	// DefaultGrowthRate is the monthly growth percentage used when no
	// month-over-month history is available.
	DefaultGrowthRate = 5.0

	growthWindow = 6

	GrowthSourceHistory = "history"
	GrowthSourceDefault = "default"
)

// fallbackAnchor is used when the latest period key does not parse.
var fallbackAnchor = core.PeriodKey{Year: 2024, Month: 12}

type scenario struct {
	name        string
	growth      func(base float64) float64
	marginDelta float64
	opexDelta   float64
	description string
}

var scenarios = []scenario{
	{
		name:        core.ScenarioBase,
		growth:      func(g float64) float64 { return g },
		description: "Continue current trajectory",
	},
	{
		name:        core.ScenarioUpside,
		growth:      func(g float64) float64 { return g * 1.5 },
		marginDelta: 0.5,
		opexDelta:   -0.5,
		description: "Accelerated growth with efficiency gains",
	},
	{
		name:        core.ScenarioDownside,
		growth:      func(g float64) float64 { return g * 0.5 },
		marginDelta: -0.5,
		opexDelta:   0.5,
		description: "Slower growth with margin pressure",
	},
	{
		name:        core.ScenarioStress,
		growth:      func(float64) float64 { return -5.0 },
		marginDelta: -2.0,
		opexDelta:   2.0,
		description: "Revenue contraction with cost pressure",
	},
}

// ScenarioNames returns the scenario identifiers in presentation order.
func ScenarioNames() []string {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.name
	}
	return names
}

// Forecast projects revenue and margins forward under four fixed scenarios.
// Fewer than two indicator sets yield an empty map. A non-positive horizon
// keeps every scenario and its assumptions but projects no periods.
func Forecast(indicators []core.IndicatorSet, horizon int) map[string]core.ScenarioForecast {
	out := make(map[string]core.ScenarioForecast, len(scenarios))
	if len(indicators) < 2 {
		return out
	}
	latest := indicators[len(indicators)-1]
	base, source := baselineGrowth(indicators)

	anchor, err := core.ParsePeriodKey(latest.Period)
	if err != nil {
		anchor = fallbackAnchor
	}

	for _, s := range scenarios {
		rate := s.growth(base)
		out[s.name] = core.ScenarioForecast{
			Scenario: s.name,
			Periods:  project(latest, anchor, horizon, rate, s.marginDelta, s.opexDelta),
			Assumptions: core.ForecastAssumptions{
				BaseRevenue:       latest.Revenue,
				RevenueGrowthRate: rate,
				MarginTrajectory:  s.marginDelta,
				OpExTrajectory:    s.opexDelta,
				Description:       s.description,
				GrowthSource:      source,
			},
		}
	}
	return out
}

// OrderedScenarios flattens a forecast map into presentation order, skipping
// scenarios that are not present.
func OrderedScenarios(forecasts map[string]core.ScenarioForecast) []core.ScenarioForecast {
	out := make([]core.ScenarioForecast, 0, len(forecasts))
	for _, s := range scenarios {
		if f, ok := forecasts[s.name]; ok {
			out = append(out, f)
		}
	}
	return out
}

// baselineGrowth averages the present MoM values among the last growthWindow
// indicator sets. A present 0% counts as history.
func baselineGrowth(indicators []core.IndicatorSet) (float64, string) {
	start := len(indicators) - growthWindow
	if start < 0 {
		start = 0
	}

	var sum float64
	var n int
	for _, set := range indicators[start:] {
		if g, ok := set.MoMGrowth.Get(); ok {
			sum += g
			n++
		}
	}
	if n == 0 {
		return DefaultGrowthRate, GrowthSourceDefault
	}
	return sum / float64(n), GrowthSourceHistory
}

// project compounds revenue monthly and moves the gross margin and opex ratio
// linearly so the full delta is reached at the last month.
func project(latest core.IndicatorSet, anchor core.PeriodKey, horizon int, rate, marginDelta, opexDelta float64) []core.ProjectedPeriod {
	periods := make([]core.ProjectedPeriod, 0, max(horizon, 0))
	revenue := latest.Revenue
	key := anchor

	for i := 1; i <= horizon; i++ {
		key = key.Next()
		revenue *= 1 + rate/100

		step := float64(i) / float64(horizon)
		grossMargin := latest.GrossMargin + marginDelta*step
		opexRatio := latest.OpExRatio + opexDelta*step

		operatingIncome := revenue*grossMargin/100 - revenue*opexRatio/100

		var operatingMargin float64
		if revenue > 0 {
			operatingMargin = core.Round(operatingIncome/revenue*100, 1)
		}

		periods = append(periods, core.ProjectedPeriod{
			Period:          key.String(),
			Revenue:         core.Round(revenue, 0),
			GrossMargin:     core.Round(grossMargin, 1),
			OpExRatio:       core.Round(opexRatio, 1),
			OperatingIncome: core.Round(operatingIncome, 0),
			OperatingMargin: operatingMargin,
		})
	}
	return periods
}
