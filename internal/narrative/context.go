// Package narrative turns a computed analysis run into a prompt for a
// language model and parses its reply into a core.Narrative.
package narrative

import (
	"fmt"
	"strconv"
	"strings"

	"finmetrics/internal/core"
)

// maxContextVariances bounds how many variance records are quoted.
const maxContextVariances = 6

// BuildContext renders the figures a narrative may reference: the latest
// indicator set, the leading variances and the first base-case projection.
// Sections without data are omitted.
func BuildContext(run core.AnalysisRun) string {
	var b strings.Builder

	if latest, ok := run.Latest(); ok {
		fmt.Fprintf(&b, "LATEST PERIOD (%s):\n", latest.Period)
		fmt.Fprintf(&b, "- Revenue: %s\n", wholeCurrency(latest.Revenue))
		if mom, ok := latest.MoMGrowth.Get(); ok {
			fmt.Fprintf(&b, "- MoM Growth: %s%%\n", number(mom))
		} else {
			b.WriteString("- MoM Growth: N/A\n")
		}
		fmt.Fprintf(&b, "- Gross Margin: %s%%\n", number(latest.GrossMargin))
		fmt.Fprintf(&b, "- Operating Margin: %s%%\n", number(latest.OperatingMargin))
		fmt.Fprintf(&b, "- Net Margin: %s%%\n", number(latest.NetMargin))
		fmt.Fprintf(&b, "- OpEx Ratio: %s%%\n", number(latest.OpExRatio))
		if cr, ok := latest.CurrentRatio.Get(); ok {
			fmt.Fprintf(&b, "- Current Ratio: %sx\n", number(cr))
		}
		if runway, ok := latest.CashRunwayMonths.Get(); ok {
			fmt.Fprintf(&b, "- Cash Runway: %s months\n", number(runway))
		}
		b.WriteString("\n")
	}

	if len(run.Variances) > 0 {
		b.WriteString("KEY VARIANCES (vs Prior Period):\n")
		for i, v := range run.Variances {
			if i == maxContextVariances {
				break
			}
			fmt.Fprintf(&b, "- %s: %s (%s)\n", v.Metric, core.Percent(v.VariancePercent).SignedString(), v.Status)
		}
		b.WriteString("\n")
	}

	if base, ok := run.Forecasts[core.ScenarioBase]; ok && len(base.Periods) > 0 {
		next := base.Periods[0]
		fmt.Fprintf(&b, "BASE CASE FORECAST (%s):\n", next.Period)
		fmt.Fprintf(&b, "- Projected Revenue: %s\n", wholeCurrency(next.Revenue))
		fmt.Fprintf(&b, "- Projected Operating Margin: %s%%\n", number(next.OperatingMargin))
	}

	return strings.TrimRight(b.String(), "\n")
}

// wholeCurrency formats an amount without minor units, e.g. "$2,450,000".
func wholeCurrency(v float64) string {
	return strings.TrimSuffix(core.FormatCurrency(core.Round(v, 0), core.DefaultCurrency), ".00")
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
