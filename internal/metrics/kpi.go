// Package metrics derives KPIs, variances and scenario forecasts from monthly
// financial periods. Every function here is pure and safe for concurrent use.
package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"finmetrics/internal/core"
)

// NetIncomeFallbackFactor approximates net income as EBITDA x 0.75 when a
// period carries no explicit net income. It is an illustrative effective tax
// proxy, not a GAAP computation.
const NetIncomeFallbackFactor = 0.75

// ComputeIndicators returns one IndicatorSet per period, ordered by period key.
// The input slice is not modified. Errors are a period missing a required
// field, a non-finite amount, or a derived figure that overflows; sparse
// optional data always yields absent values instead.
func ComputeIndicators(periods []core.Period) ([]core.IndicatorSet, error) {
	for i, p := range periods {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("period %d (%q): %w", i, p.Date, err)
		}
	}

	sorted := make([]core.Period, len(periods))
	copy(sorted, periods)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	byDate := make(map[string]core.Period, len(sorted))
	for _, p := range sorted {
		byDate[p.Date] = p
	}

	out := make([]core.IndicatorSet, 0, len(sorted))
	for i, p := range sorted {
		set := profitability(p)

		if i > 0 {
			set.MoMGrowth = growth(p.Revenue, sorted[i-1].Revenue)
		}
		if key, ok := priorYearKey(p.Date); ok {
			if prior, found := byDate[key]; found {
				set.YoYGrowth = growth(p.Revenue, prior.Revenue)
			}
		}

		efficiency(p, &set)
		liquidity(p, &set)
		if err := set.Validate(); err != nil {
			return nil, err
		}
		out = append(out, set)
	}
	return out, nil
}

func profitability(p core.Period) core.IndicatorSet {
	grossProfit := p.Revenue - p.COGS
	operatingIncome := grossProfit - p.OpEx
	ebitda := p.EBITDA.OrElse(operatingIncome)
	netIncome := p.NetIncome.OrElse(ebitda * NetIncomeFallbackFactor)

	return core.IndicatorSet{
		Period:          p.Date,
		Revenue:         p.Revenue,
		GrossProfit:     grossProfit,
		GrossMargin:     marginOf(grossProfit, p.Revenue),
		OperatingIncome: operatingIncome,
		OperatingMargin: marginOf(operatingIncome, p.Revenue),
		EBITDA:          ebitda,
		EBITDAMargin:    marginOf(ebitda, p.Revenue),
		NetIncome:       netIncome,
		NetMargin:       marginOf(netIncome, p.Revenue),
		OpExRatio:       marginOf(p.OpEx, p.Revenue),
	}
}

func efficiency(p core.Period, set *core.IndicatorSet) {
	if n, ok := p.Employees.Get(); ok && n > 0 {
		set.RevenuePerEmployee = core.Some(core.Round(p.Revenue/float64(n), 2))
	}
	if n, ok := p.Customers.Get(); ok && n > 0 {
		set.ARPU = core.Some(core.Round(p.Revenue/float64(n), 2))
	}
}

func liquidity(p core.Period, set *core.IndicatorSet) {
	liabilities, hasLiabilities := p.CurrentLiabilities.Get()
	hasLiabilities = hasLiabilities && liabilities > 0

	if assets, ok := p.CurrentAssets.Get(); ok && hasLiabilities {
		set.CurrentRatio = core.Some(core.Round(assets/liabilities, 2))
	}

	cash, hasCash := p.Cash.Get()
	if hasCash && hasLiabilities {
		receivable := p.AccountsReceivable.OrElse(0)
		set.QuickRatio = core.Some(core.Round((cash+receivable)/liabilities, 2))
	}
	if burn, ok := p.MonthlyBurn.Get(); hasCash && ok && burn > 0 {
		set.CashRunwayMonths = core.Some(core.Round(cash/burn, 1))
	}
	if debt, ok := p.Debt.Get(); ok {
		if equity, ok := p.Equity.Get(); ok && equity > 0 {
			set.DebtToEquity = core.Some(core.Round(debt/equity, 2))
		}
	}
}

// marginOf is amount as a percentage of revenue; 0 when revenue is not positive.
func marginOf(amount, revenue float64) float64 {
	if revenue > 0 {
		return core.Round(amount/revenue*100, 2)
	}
	return 0
}

func growth(current, prior float64) core.Optional[float64] {
	if prior > 0 {
		return core.Some(core.Round((current-prior)/prior*100, 2))
	}
	return core.None[float64]()
}

// priorYearKey maps "2024-03" to "2023-03". The month part is kept verbatim.
func priorYearKey(date string) (string, bool) {
	parts := strings.Split(date, "-")
	if len(parts) != 2 {
		return "", false
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d-%s", year-1, parts[1]), true
}
