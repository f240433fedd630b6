package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	Favorable   VarianceStatus = "Favorable"
	Unfavorable VarianceStatus = "Unfavorable"
)

const (
	ScenarioBase     = "base"
	ScenarioUpside   = "upside"
	ScenarioDownside = "downside"
	ScenarioStress   = "stress"
)

type (
	VarianceStatus string

	// Period is one month of raw financial line items keyed by "YYYY-MM".
	Period struct {
		Date    string  `json:"date"`
		Revenue float64 `json:"revenue"`
		COGS    float64 `json:"cogs"`
		OpEx    float64 `json:"opex"`

		EBITDA    Optional[float64] `json:"ebitda"`
		NetIncome Optional[float64] `json:"net_income"`

		Cash               Optional[float64] `json:"cash"`
		CurrentAssets      Optional[float64] `json:"current_assets"`
		CurrentLiabilities Optional[float64] `json:"current_liabilities"`
		Debt               Optional[float64] `json:"debt"`
		Equity             Optional[float64] `json:"equity"`

		Customers          Optional[int]     `json:"customers"`
		Employees          Optional[int]     `json:"employees"`
		AccountsReceivable Optional[float64] `json:"ar"`
		MonthlyBurn        Optional[float64] `json:"monthly_burn"`
	}

	// IndicatorSet holds the KPIs derived from a single Period.
	IndicatorSet struct {
		Period string `json:"period"`

		Revenue   float64           `json:"revenue"`
		MoMGrowth Optional[float64] `json:"mom_growth"`
		YoYGrowth Optional[float64] `json:"yoy_growth"`

		GrossProfit     float64 `json:"gross_profit"`
		GrossMargin     float64 `json:"gross_margin"`
		OperatingIncome float64 `json:"operating_income"`
		OperatingMargin float64 `json:"operating_margin"`
		EBITDA          float64 `json:"ebitda"`
		EBITDAMargin    float64 `json:"ebitda_margin"`
		NetIncome       float64 `json:"net_income"`
		NetMargin       float64 `json:"net_margin"`

		OpExRatio          float64           `json:"opex_ratio"`
		RevenuePerEmployee Optional[float64] `json:"revenue_per_employee"`
		ARPU               Optional[float64] `json:"arpu"`

		CurrentRatio     Optional[float64] `json:"current_ratio"`
		QuickRatio       Optional[float64] `json:"quick_ratio"`
		CashRunwayMonths Optional[float64] `json:"cash_runway_months"`
		DebtToEquity     Optional[float64] `json:"debt_to_equity"`
	}

	VarianceRecord struct {
		Metric          string         `json:"metric"`
		CurrentValue    float64        `json:"current_value"`
		PriorValue      float64        `json:"prior_value"`
		VarianceAmount  float64        `json:"variance_amount"`
		VariancePercent float64        `json:"variance_percent"`
		Status          VarianceStatus `json:"status"`
		Driver          string         `json:"driver_explanation"`
	}

	ProjectedPeriod struct {
		Period          string  `json:"period"`
		Revenue         float64 `json:"revenue"`
		GrossMargin     float64 `json:"gross_margin"`
		OpExRatio       float64 `json:"opex_ratio"`
		OperatingIncome float64 `json:"operating_income"`
		OperatingMargin float64 `json:"operating_margin"`
	}

	// ForecastAssumptions records the parameters a scenario was projected with.
	// GrowthSource is "history" when the growth rate came from observed
	// month-over-month values and "default" when the fallback rate was used.
	ForecastAssumptions struct {
		BaseRevenue       float64 `json:"base_revenue"`
		RevenueGrowthRate float64 `json:"revenue_growth_rate"`
		MarginTrajectory  float64 `json:"margin_trajectory"`
		OpExTrajectory    float64 `json:"opex_trajectory"`
		Description       string  `json:"description"`
		GrowthSource      string  `json:"growth_source"`
	}

	ScenarioForecast struct {
		Scenario    string              `json:"scenario"`
		Periods     []ProjectedPeriod   `json:"periods"`
		Assumptions ForecastAssumptions `json:"assumptions"`
	}

	// AnalysisRun is everything computed from one upload, plus the
	// narratives generated for it afterwards.
	AnalysisRun struct {
		ID         string                      `json:"id"`
		Name       string                      `json:"name"`
		CreatedAt  time.Time                   `json:"created_at"`
		Periods    []Period                    `json:"periods"`
		KPIs       []IndicatorSet              `json:"kpis"`
		Variances  []VarianceRecord            `json:"variances"`
		Forecasts  map[string]ScenarioForecast `json:"forecasts"`
		Narratives []Narrative                 `json:"narratives"`
	}

	Narrative struct {
		ID              string    `json:"narrative_id"`
		Focus           Focus     `json:"focus"`
		Summary         string    `json:"summary"`
		KeyInsights     []string  `json:"key_insights"`
		Risks           []string  `json:"risks"`
		Recommendations []string  `json:"recommendations"`
		VarianceDrivers []string  `json:"variance_drivers"`
		GeneratedAt     time.Time `json:"generated_at"`
	}

	NarrativeRequest struct {
		Focus          Focus  `json:"focus"`
		CustomQuestion string `json:"custom_question,omitempty"`
	}
)

var (
	ErrMissingDate  = errors.New("missing period date")
	ErrNonNumeric   = errors.New("non-numeric value")
	ErrEmptyPeriods = errors.New("no periods supplied")
	ErrRunNotFound  = errors.New("analysis run not found")
	ErrEmptyName    = errors.New("empty run name")
	ErrOutOfRange   = errors.New("value out of range")
)

type (
	namedFloat struct {
		name  string
		value float64
	}
	namedOptional struct {
		name  string
		value Optional[float64]
	}
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// checkFinite returns err wrapped with the name of the first NaN or
// infinite value. Absent optionals are skipped.
func checkFinite(required []namedFloat, optional []namedOptional, err error) error {
	for _, f := range required {
		if !finite(f.value) {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	for _, f := range optional {
		if v, ok := f.value.Get(); ok && !finite(v) {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

// Validate checks that the date is set and every present amount is finite.
// Negative amounts are never rejected.
func (p Period) Validate() error {
	if strings.TrimSpace(p.Date) == "" {
		return ErrMissingDate
	}
	return checkFinite(
		[]namedFloat{{"revenue", p.Revenue}, {"cogs", p.COGS}, {"opex", p.OpEx}},
		[]namedOptional{
			{"ebitda", p.EBITDA},
			{"net_income", p.NetIncome},
			{"cash", p.Cash},
			{"current_assets", p.CurrentAssets},
			{"current_liabilities", p.CurrentLiabilities},
			{"debt", p.Debt},
			{"equity", p.Equity},
			{"ar", p.AccountsReceivable},
			{"monthly_burn", p.MonthlyBurn},
		},
		ErrNonNumeric)
}

// Validate reports a derived figure that overflowed, e.g. a gross profit
// computed from two amounts near the float64 limit.
func (s IndicatorSet) Validate() error {
	err := checkFinite(
		[]namedFloat{
			{"revenue", s.Revenue},
			{"gross_profit", s.GrossProfit},
			{"gross_margin", s.GrossMargin},
			{"operating_income", s.OperatingIncome},
			{"operating_margin", s.OperatingMargin},
			{"ebitda", s.EBITDA},
			{"ebitda_margin", s.EBITDAMargin},
			{"net_income", s.NetIncome},
			{"net_margin", s.NetMargin},
			{"opex_ratio", s.OpExRatio},
		},
		[]namedOptional{
			{"mom_growth", s.MoMGrowth},
			{"yoy_growth", s.YoYGrowth},
			{"revenue_per_employee", s.RevenuePerEmployee},
			{"arpu", s.ARPU},
			{"current_ratio", s.CurrentRatio},
			{"quick_ratio", s.QuickRatio},
			{"cash_runway_months", s.CashRunwayMonths},
			{"debt_to_equity", s.DebtToEquity},
		},
		ErrOutOfRange)
	if err != nil {
		return fmt.Errorf("period %s: %w", s.Period, err)
	}
	return nil
}

func (r VarianceRecord) Validate() error {
	err := checkFinite([]namedFloat{
		{"current_value", r.CurrentValue},
		{"prior_value", r.PriorValue},
		{"variance_amount", r.VarianceAmount},
		{"variance_percent", r.VariancePercent},
	}, nil, ErrOutOfRange)
	if err != nil {
		return fmt.Errorf("variance %s: %w", r.Metric, err)
	}
	return nil
}

func (f ScenarioForecast) Validate() error {
	a := f.Assumptions
	if err := checkFinite([]namedFloat{
		{"base_revenue", a.BaseRevenue},
		{"revenue_growth_rate", a.RevenueGrowthRate},
		{"margin_trajectory", a.MarginTrajectory},
		{"opex_trajectory", a.OpExTrajectory},
	}, nil, ErrOutOfRange); err != nil {
		return fmt.Errorf("scenario %s: %w", f.Scenario, err)
	}
	for _, p := range f.Periods {
		if err := checkFinite([]namedFloat{
			{"revenue", p.Revenue},
			{"gross_margin", p.GrossMargin},
			{"opex_ratio", p.OpExRatio},
			{"operating_income", p.OperatingIncome},
			{"operating_margin", p.OperatingMargin},
		}, nil, ErrOutOfRange); err != nil {
			return fmt.Errorf("scenario %s period %s: %w", f.Scenario, p.Period, err)
		}
	}
	return nil
}

// Latest returns the last indicator set of the run, if any.
func (r AnalysisRun) Latest() (IndicatorSet, bool) {
	if len(r.KPIs) == 0 {
		return IndicatorSet{}, false
	}
	return r.KPIs[len(r.KPIs)-1], true
}

func (r AnalysisRun) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if len(r.Periods) == 0 {
		return ErrEmptyPeriods
	}
	for i, p := range r.Periods {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("period %d: %w", i, err)
		}
	}
	return nil
}
