package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"finmetrics/internal/core"
	"finmetrics/internal/metrics"
)

func reportRun(t *testing.T) core.AnalysisRun {
	t.Helper()
	periods := []core.Period{
		{Date: "2024-11", Revenue: 2320000, COGS: 1392000, OpEx: 422000, Cash: core.Some(3800000.0)},
		{Date: "2024-12", Revenue: 2450000, COGS: 1470000, OpEx: 425000, Cash: core.Some(4200000.0)},
	}
	kpis, err := metrics.ComputeIndicators(periods)
	if err != nil {
		t.Fatal(err)
	}
	return core.AnalysisRun{
		ID:        "r1",
		Name:      "Acme | H2",
		CreatedAt: time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC),
		Periods:   periods,
		KPIs:      kpis,
		Variances: metrics.AnalyzeVariance(kpis[1], kpis[0]),
		Forecasts: metrics.Forecast(kpis, 3),
		Narratives: []core.Narrative{{
			Summary:     "Revenue kept <b>growing</b>.",
			KeyInsights: []string{"Margins held"},
			Risks:       []string{"Concentration"},
		}},
	}
}

func TestMarkdown(t *testing.T) {
	got := Markdown(reportRun(t))

	for _, want := range []string{
		`# Acme \| H2`,
		"covering 2 periods",
		"## Key Metrics (2024-12)",
		"| Revenue | $2,450,000.00 |",
		"| MoM Growth | +5.6% |",
		"| YoY Growth | N/A |",
		"| Gross Margin | 40.00% |",
		"## Variance Analysis",
		"| Revenue | 2450000.00 | 2320000.00 | +5.6% | Favorable |",
		"## Forecast Scenarios",
		"| base |",
		"| stress | -5.0% | 2025-03 |",
		"### Risks",
		"- Concentration",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("markdown missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "| base |") > strings.Index(got, "| upside |") {
		t.Error("scenarios out of order")
	}
}

func TestMarkdown_EmptyRun(t *testing.T) {
	got := Markdown(core.AnalysisRun{Name: "Empty"})
	if got != "# Empty\n" {
		t.Errorf("Markdown() = %q", got)
	}
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	if err := HTML(&buf, reportRun(t), now); err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{"<title>Acme | H2</title>", "<table>", "<h2>Variance Analysis</h2>", "Generated Sat, 01 Feb 2025 08:00:00 UTC"} {
		if !strings.Contains(out, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if strings.Contains(out, "<b>growing</b>") {
		t.Error("raw HTML from narrative must not be rendered")
	}
}

func TestTerminal(t *testing.T) {
	out, err := Terminal("# Title\n\nSome **bold** text.\n", "notty", 80)
	if err != nil {
		t.Fatalf("Terminal() error = %v", err)
	}
	if !strings.Contains(out, "Title") || !strings.Contains(out, "bold") {
		t.Errorf("Terminal() = %q", out)
	}
}
