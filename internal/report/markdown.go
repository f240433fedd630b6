// Package report renders an analysis run as markdown, HTML or styled
// terminal output.
package report

import (
	"fmt"
	"strings"

	"finmetrics/internal/core"
	"finmetrics/internal/metrics"
)

// Markdown renders the run as a markdown document with GitHub tables.
func Markdown(run core.AnalysisRun) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", escape(run.Name))
	if !run.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Analysis created %s covering %d periods.\n\n", run.CreatedAt.UTC().Format("2006-01-02 15:04 MST"), len(run.Periods))
	}

	writeHighlights(&b, run)
	writeTrend(&b, run.KPIs)
	writeVariances(&b, run.Variances)
	writeForecasts(&b, run.Forecasts)
	writeNarrative(&b, run.Narratives)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeHighlights(b *strings.Builder, run core.AnalysisRun) {
	latest, ok := run.Latest()
	if !ok {
		return
	}
	fmt.Fprintf(b, "## Key Metrics (%s)\n\n", latest.Period)
	b.WriteString("| Metric | Value |\n|---|---:|\n")
	row := func(name, value string) { fmt.Fprintf(b, "| %s | %s |\n", name, value) }

	row("Revenue", money(latest.Revenue))
	row("MoM Growth", optPercent(latest.MoMGrowth))
	row("YoY Growth", optPercent(latest.YoYGrowth))
	row("Gross Margin", core.Percent(latest.GrossMargin).String())
	row("Operating Margin", core.Percent(latest.OperatingMargin).String())
	row("Net Margin", core.Percent(latest.NetMargin).String())
	row("OpEx Ratio", core.Percent(latest.OpExRatio).String())
	if v, ok := latest.CurrentRatio.Get(); ok {
		row("Current Ratio", fmt.Sprintf("%.2fx", v))
	}
	if v, ok := latest.QuickRatio.Get(); ok {
		row("Quick Ratio", fmt.Sprintf("%.2fx", v))
	}
	if v, ok := latest.CashRunwayMonths.Get(); ok {
		row("Cash Runway", fmt.Sprintf("%.1f months", v))
	}
	if v, ok := latest.DebtToEquity.Get(); ok {
		row("Debt to Equity", fmt.Sprintf("%.2fx", v))
	}
	b.WriteString("\n")
}

func writeTrend(b *strings.Builder, sets []core.IndicatorSet) {
	if len(sets) == 0 {
		return
	}
	b.WriteString("## KPI Trend\n\n")
	b.WriteString("| Period | Revenue | MoM | Gross Margin | Operating Margin | Net Margin |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, k := range sets {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s |\n",
			k.Period, money(k.Revenue), optPercent(k.MoMGrowth),
			core.Percent(k.GrossMargin), core.Percent(k.OperatingMargin), core.Percent(k.NetMargin))
	}
	b.WriteString("\n")
}

func writeVariances(b *strings.Builder, records []core.VarianceRecord) {
	if len(records) == 0 {
		return
	}
	b.WriteString("## Variance Analysis\n\n")
	b.WriteString("| Metric | Current | Prior | Change | Status |\n|---|---:|---:|---:|---|\n")
	for _, v := range records {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			escape(v.Metric), number(v.CurrentValue), number(v.PriorValue),
			core.Percent(v.VariancePercent).SignedString(), v.Status)
	}
	b.WriteString("\n")
	for _, v := range records {
		if v.Driver != "" {
			fmt.Fprintf(b, "- **%s**: %s\n", escape(v.Metric), escape(v.Driver))
		}
	}
	b.WriteString("\n")
}

func writeForecasts(b *strings.Builder, forecasts map[string]core.ScenarioForecast) {
	ordered := metrics.OrderedScenarios(forecasts)
	if len(ordered) == 0 {
		return
	}
	b.WriteString("## Forecast Scenarios\n\n")
	b.WriteString("| Scenario | Growth | Final Period | Revenue | Operating Margin | Assumption |\n")
	b.WriteString("|---|---:|---|---:|---:|---|\n")
	for _, f := range ordered {
		if len(f.Periods) == 0 {
			continue
		}
		last := f.Periods[len(f.Periods)-1]
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s |\n",
			f.Scenario, core.Percent(f.Assumptions.RevenueGrowthRate).SignedString(), last.Period,
			money(last.Revenue), core.Percent(last.OperatingMargin), escape(f.Assumptions.Description))
	}
	b.WriteString("\n")
}

func writeNarrative(b *strings.Builder, narratives []core.Narrative) {
	if len(narratives) == 0 {
		return
	}
	n := narratives[len(narratives)-1]
	b.WriteString("## Executive Narrative\n\n")
	b.WriteString(n.Summary + "\n\n")
	list := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(b, "### %s\n\n", title)
		for _, it := range items {
			fmt.Fprintf(b, "- %s\n", it)
		}
		b.WriteString("\n")
	}
	list("Key Insights", n.KeyInsights)
	list("Risks", n.Risks)
	list("Recommendations", n.Recommendations)
	list("Variance Drivers", n.VarianceDrivers)
}

func money(v float64) string {
	return core.FormatCurrency(v, core.DefaultCurrency)
}

func optPercent(o core.Optional[float64]) string {
	if v, ok := o.Get(); ok {
		return core.Percent(v).SignedString()
	}
	return "N/A"
}

func number(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// escape keeps table cells intact.
func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
