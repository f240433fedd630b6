package metrics

import (
	"math"

	"finmetrics/internal/core"
)

// Direction states which sign of change is good for a metric.
type Direction int

const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

// zeroPriorSentinel is reported as the percentage change when the prior value
// is zero and the current one is not. It is a marker, not a real percentage.
const zeroPriorSentinel = 100.0

type trackedMetric struct {
	Name      string
	Value     func(core.IndicatorSet) float64
	Direction Direction
	family    driverFamily
}

// trackedMetrics is the ordered list of metrics compared between two periods.
var trackedMetrics = []trackedMetric{
	{"Revenue", func(s core.IndicatorSet) float64 { return s.Revenue }, HigherIsBetter, familyRevenue},
	{"Gross Profit", func(s core.IndicatorSet) float64 { return s.GrossProfit }, HigherIsBetter, familyGross},
	{"Gross Margin (%)", func(s core.IndicatorSet) float64 { return s.GrossMargin }, HigherIsBetter, familyGross},
	{"Operating Income", func(s core.IndicatorSet) float64 { return s.OperatingIncome }, HigherIsBetter, familyOperatingIncome},
	{"Operating Margin (%)", func(s core.IndicatorSet) float64 { return s.OperatingMargin }, HigherIsBetter, familyOperatingMargin},
	{"EBITDA", func(s core.IndicatorSet) float64 { return s.EBITDA }, HigherIsBetter, familyEBITDA},
	{"Net Income", func(s core.IndicatorSet) float64 { return s.NetIncome }, HigherIsBetter, familyNet},
	{"Net Margin (%)", func(s core.IndicatorSet) float64 { return s.NetMargin }, HigherIsBetter, familyNet},
	{"OpEx Ratio (%)", func(s core.IndicatorSet) float64 { return s.OpExRatio }, LowerIsBetter, familyOpExRatio},
}

// TrackedMetricNames lists the compared metrics in report order.
func TrackedMetricNames() []string {
	names := make([]string, len(trackedMetrics))
	for i, m := range trackedMetrics {
		names[i] = m.Name
	}
	return names
}

// AnalyzeVariance compares current against prior over every tracked metric.
func AnalyzeVariance(current, prior core.IndicatorSet) []core.VarianceRecord {
	out := make([]core.VarianceRecord, 0, len(trackedMetrics))
	for _, m := range trackedMetrics {
		cur, prev := m.Value(current), m.Value(prior)
		amount := core.Round(cur-prev, 2)
		pct := percentChange(cur, prev)
		status := classify(amount, m.Direction)

		out = append(out, core.VarianceRecord{
			Metric:          m.Name,
			CurrentValue:    cur,
			PriorValue:      prev,
			VarianceAmount:  amount,
			VariancePercent: pct,
			Status:          status,
			Driver:          explain(m.family, m.Name, amount, pct, status),
		})
	}
	return out
}

func percentChange(current, prior float64) float64 {
	if prior == 0 {
		if current == 0 {
			return 0
		}
		return zeroPriorSentinel
	}
	return core.Round((current-prior)/math.Abs(prior)*100, 2)
}

// classify treats a zero delta as favorable in either direction.
func classify(amount float64, d Direction) core.VarianceStatus {
	switch {
	case d == HigherIsBetter && amount >= 0:
		return core.Favorable
	case d == LowerIsBetter && amount <= 0:
		return core.Favorable
	default:
		return core.Unfavorable
	}
}
