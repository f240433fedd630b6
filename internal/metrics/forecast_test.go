package metrics

import (
	"testing"

	"finmetrics/internal/core"
)

func flatHistory() []core.IndicatorSet {
	return []core.IndicatorSet{
		{Period: "2024-11", Revenue: 1000000, GrossMargin: 40, OpExRatio: 20},
		{Period: "2024-12", Revenue: 1000000, GrossMargin: 40, OpExRatio: 20},
	}
}

func TestForecastDefaultGrowth(t *testing.T) {
	out := Forecast(flatHistory(), 6)
	if len(out) != 4 {
		t.Fatalf("expected 4 scenarios, got %d", len(out))
	}

	base := out[core.ScenarioBase]
	if base.Assumptions.RevenueGrowthRate != DefaultGrowthRate || base.Assumptions.GrowthSource != GrowthSourceDefault {
		t.Fatalf("base assumptions: %+v", base.Assumptions)
	}
	if len(base.Periods) != 6 {
		t.Fatalf("expected 6 periods, got %d", len(base.Periods))
	}
	if base.Periods[0].Period != "2025-01" || base.Periods[5].Period != "2025-06" {
		t.Fatalf("period keys: %s .. %s", base.Periods[0].Period, base.Periods[5].Period)
	}
	if base.Periods[0].Revenue != 1050000 {
		t.Fatalf("step 1 revenue = %v", base.Periods[0].Revenue)
	}
	if base.Periods[5].Revenue != 1340096 {
		t.Fatalf("step 6 revenue = %v, want 1340096", base.Periods[5].Revenue)
	}
	last := base.Periods[5]
	if last.GrossMargin != 40 || last.OpExRatio != 20 || last.OperatingMargin != 20 {
		t.Fatalf("base margins should hold steady: %+v", last)
	}
	if last.OperatingIncome != 268019 {
		t.Fatalf("step 6 operating income = %v", last.OperatingIncome)
	}
}

func TestForecastScenarioParameters(t *testing.T) {
	history := []core.IndicatorSet{
		{Period: "2024-10", Revenue: 900},
		{Period: "2024-11", Revenue: 1000, MoMGrowth: core.Some(4.0)},
		{Period: "2024-12", Revenue: 1000, GrossMargin: 40, OpExRatio: 20, MoMGrowth: core.Some(0.0)},
	}
	out := Forecast(history, 4)

	cases := []struct {
		scenario    string
		growth      float64
		grossMargin float64
		opexRatio   float64
		marginDelta float64
		opexDelta   float64
	}{
		{core.ScenarioBase, 2, 40, 20, 0, 0},
		{core.ScenarioUpside, 3, 40.5, 19.5, 0.5, -0.5},
		{core.ScenarioDownside, 1, 39.5, 20.5, -0.5, 0.5},
		{core.ScenarioStress, -5, 38, 22, -2, 2},
	}
	for _, tc := range cases {
		f, ok := out[tc.scenario]
		if !ok {
			t.Fatalf("missing scenario %s", tc.scenario)
		}
		a := f.Assumptions
		if a.RevenueGrowthRate != tc.growth || a.MarginTrajectory != tc.marginDelta || a.OpExTrajectory != tc.opexDelta {
			t.Errorf("%s assumptions: %+v", tc.scenario, a)
		}
		if a.GrowthSource != GrowthSourceHistory || a.BaseRevenue != 1000 || a.Description == "" {
			t.Errorf("%s assumptions: %+v", tc.scenario, a)
		}
		end := f.Periods[len(f.Periods)-1]
		if end.GrossMargin != tc.grossMargin || end.OpExRatio != tc.opexRatio {
			t.Errorf("%s final margins: %+v", tc.scenario, end)
		}
	}

	stress := out[core.ScenarioStress].Periods
	for i := 1; i < len(stress); i++ {
		if stress[i].Revenue >= stress[i-1].Revenue {
			t.Fatalf("stress revenue must decline: %+v", stress)
		}
	}
}

func TestForecastInsufficientHistory(t *testing.T) {
	if out := Forecast(nil, 6); len(out) != 0 {
		t.Fatalf("expected empty map, got %d", len(out))
	}
	if out := Forecast(flatHistory()[:1], 6); len(out) != 0 {
		t.Fatalf("expected empty map, got %d", len(out))
	}
}

func TestForecastHorizon(t *testing.T) {
	for horizon, want := range map[int]int{0: 0, -3: 0, 1: 1, 12: 12} {
		out := Forecast(flatHistory(), horizon)
		if len(out) != len(scenarios) {
			t.Fatalf("horizon %d produced %d scenarios", horizon, len(out))
		}
		base := out[core.ScenarioBase]
		if got := len(base.Periods); got != want {
			t.Errorf("horizon %d produced %d periods, want %d", horizon, got, want)
		}
		if base.Periods == nil {
			t.Errorf("horizon %d: periods must encode as [], not null", horizon)
		}
		if base.Assumptions.BaseRevenue != flatHistory()[1].Revenue {
			t.Errorf("horizon %d: assumptions = %+v", horizon, base.Assumptions)
		}
	}
}

func TestForecastUnparseableAnchor(t *testing.T) {
	history := flatHistory()
	history[1].Period = "Dec 2024"
	out := Forecast(history, 2)
	if got := out[core.ScenarioBase].Periods[0].Period; got != "2025-01" {
		t.Fatalf("fallback anchor produced %s", got)
	}
}

func TestForecastGrowthWindow(t *testing.T) {
	history := []core.IndicatorSet{{Period: "2024-01", MoMGrowth: core.Some(1000.0)}}
	for i := 0; i < 6; i++ {
		history = append(history, core.IndicatorSet{Period: "2024-0" + string(rune('2'+i)), Revenue: 100, MoMGrowth: core.Some(2.0)})
	}
	out := Forecast(history, 1)
	if got := out[core.ScenarioBase].Assumptions.RevenueGrowthRate; got != 2 {
		t.Fatalf("growth should only average the last 6 points, got %v", got)
	}
}

func TestForecastFromComputedIndicators(t *testing.T) {
	sets, err := ComputeIndicators(samplePeriods())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := Forecast(sets, DefaultHorizon)
	base := out[core.ScenarioBase]
	if base.Assumptions.GrowthSource != GrowthSourceHistory {
		t.Fatalf("sample data has history: %+v", base.Assumptions)
	}
	if base.Periods[0].Period != "2025-01" {
		t.Fatalf("first projected period = %s", base.Periods[0].Period)
	}
	if base.Periods[0].Revenue <= sets[5].Revenue {
		t.Fatalf("base case should grow from %v, got %v", sets[5].Revenue, base.Periods[0].Revenue)
	}

	ordered := OrderedScenarios(out)
	names := ScenarioNames()
	if len(ordered) != len(names) {
		t.Fatalf("ordered scenarios: %d", len(ordered))
	}
	for i, f := range ordered {
		if f.Scenario != names[i] {
			t.Fatalf("position %d = %s, want %s", i, f.Scenario, names[i])
		}
	}
}
