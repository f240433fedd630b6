package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"finmetrics/internal/core"
	applog "finmetrics/internal/log"
	"finmetrics/internal/metrics"
)

// Sheets limits tab titles to 100 characters.
const maxTitleLength = 100

// Exporter writes a run's indicators, variances and forecasts to three tabs.
type Exporter struct {
	writer        tabWriter
	spreadsheetID string
	prefix        string
}

func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newExporter(&sheetsAPI{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg.SpreadsheetID, cfg.SheetPrefix), nil
}

func newExporter(w tabWriter, spreadsheetID, prefix string) *Exporter {
	return &Exporter{writer: w, spreadsheetID: spreadsheetID, prefix: prefix}
}

// TabTitles returns the KPI, variance and forecast tab names for a run.
func (e *Exporter) TabTitles(run core.AnalysisRun) (kpis, variances, forecasts string) {
	base := strings.TrimSpace(strings.TrimSpace(e.prefix) + " " + run.Name)
	return tabTitle(base, "KPIs"), tabTitle(base, "Variances"), tabTitle(base, "Forecasts")
}

func tabTitle(base, suffix string) string {
	suffix = " - " + suffix
	limit := maxTitleLength - utf8.RuneCountInString(suffix)
	if runes := []rune(base); len(runes) > limit {
		base = string(runes[:limit])
	}
	return base + suffix
}

// Export creates missing tabs and rewrites all three concurrently. The
// returned reference names the spreadsheet and the KPI tab.
func (e *Exporter) Export(ctx context.Context, run core.AnalysisRun) (string, error) {
	kpiTab, varTab, fcTab := e.TabTitles(run)
	tabs := map[string][][]any{
		kpiTab: kpiRows(run.KPIs),
		varTab: varianceRows(run.Variances),
		fcTab:  forecastRows(run.Forecasts),
	}

	if err := e.writer.EnsureTabs(ctx, []string{kpiTab, varTab, fcTab}); err != nil {
		return "", err
	}

	g, gctx := errgroup.WithContext(ctx)
	for title, rows := range tabs {
		g.Go(func() error {
			return e.writer.WriteTab(gctx, title, rows)
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("export run %s: %w", run.ID, err)
	}

	ref := fmt.Sprintf("%s/%s", e.spreadsheetID, kpiTab)
	slog.DebugContext(ctx, "Google Sheets tabs written",
		applog.FieldComponent, applog.ComponentExport,
		applog.FieldRunID, run.ID,
		"tabs", len(tabs))
	return ref, nil
}

func optional(o core.Optional[float64]) any {
	if v, ok := o.Get(); ok {
		return v
	}
	return ""
}

func kpiRows(sets []core.IndicatorSet) [][]any {
	rows := [][]any{{
		"Period", "Revenue", "MoM Growth (%)", "YoY Growth (%)", "Gross Profit", "Gross Margin (%)",
		"Operating Income", "Operating Margin (%)", "EBITDA", "EBITDA Margin (%)", "Net Income", "Net Margin (%)",
		"OpEx Ratio (%)", "Revenue per Employee", "ARPU", "Current Ratio", "Quick Ratio", "Cash Runway (months)", "Debt to Equity",
	}}
	for _, k := range sets {
		rows = append(rows, []any{
			k.Period, k.Revenue, optional(k.MoMGrowth), optional(k.YoYGrowth), k.GrossProfit, k.GrossMargin,
			k.OperatingIncome, k.OperatingMargin, k.EBITDA, k.EBITDAMargin, k.NetIncome, k.NetMargin,
			k.OpExRatio, optional(k.RevenuePerEmployee), optional(k.ARPU), optional(k.CurrentRatio),
			optional(k.QuickRatio), optional(k.CashRunwayMonths), optional(k.DebtToEquity),
		})
	}
	return rows
}

func varianceRows(records []core.VarianceRecord) [][]any {
	rows := [][]any{{"Metric", "Current", "Prior", "Variance", "Variance (%)", "Status", "Driver"}}
	for _, v := range records {
		rows = append(rows, []any{
			v.Metric, v.CurrentValue, v.PriorValue, v.VarianceAmount, v.VariancePercent, string(v.Status), v.Driver,
		})
	}
	return rows
}

func forecastRows(forecasts map[string]core.ScenarioForecast) [][]any {
	rows := [][]any{{"Scenario", "Period", "Revenue", "Gross Margin (%)", "OpEx Ratio (%)", "Operating Income", "Operating Margin (%)"}}
	for _, f := range metrics.OrderedScenarios(forecasts) {
		for _, p := range f.Periods {
			rows = append(rows, []any{
				f.Scenario, p.Period, p.Revenue, p.GrossMargin, p.OpExRatio, p.OperatingIncome, p.OperatingMargin,
			})
		}
	}
	return rows
}
