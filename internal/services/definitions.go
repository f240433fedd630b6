package services

// KPIDefinition documents how an indicator is computed and read.
type KPIDefinition struct {
	Key            string `json:"-"`
	Name           string `json:"name"`
	Formula        string `json:"formula"`
	Interpretation string `json:"interpretation"`
	Target         string `json:"target"`
}

var kpiDefinitions = []KPIDefinition{
	{
		Key:            "revenue_growth",
		Name:           "Revenue Growth",
		Formula:        "(Current Revenue - Prior Revenue) / Prior Revenue × 100",
		Interpretation: "Positive growth indicates business expansion. Compare to industry benchmarks.",
		Target:         "Generally 10-20% YoY for growth companies",
	},
	{
		Key:            "gross_margin",
		Name:           "Gross Margin",
		Formula:        "(Revenue - COGS) / Revenue × 100",
		Interpretation: "Measures production efficiency and pricing power.",
		Target:         "Varies by industry; 40%+ is healthy for software",
	},
	{
		Key:            "operating_margin",
		Name:           "Operating Margin",
		Formula:        "(Revenue - COGS - OpEx) / Revenue × 100",
		Interpretation: "Core business profitability before interest and taxes.",
		Target:         "15-25% for healthy businesses",
	},
	{
		Key:            "net_margin",
		Name:           "Net Profit Margin",
		Formula:        "Net Income / Revenue × 100",
		Interpretation: "Bottom-line profitability after all expenses.",
		Target:         "10%+ indicates strong profitability",
	},
	{
		Key:            "opex_ratio",
		Name:           "Operating Expense Ratio",
		Formula:        "Operating Expenses / Revenue × 100",
		Interpretation: "Lower is better. Indicates operational efficiency.",
		Target:         "<25% shows good expense control",
	},
	{
		Key:            "current_ratio",
		Name:           "Current Ratio",
		Formula:        "Current Assets / Current Liabilities",
		Interpretation: "Measures short-term liquidity. >1 means you can cover short-term obligations.",
		Target:         "1.5-2.0x is healthy",
	},
	{
		Key:            "quick_ratio",
		Name:           "Quick Ratio (Acid Test)",
		Formula:        "(Cash + Accounts Receivable) / Current Liabilities",
		Interpretation: "More conservative liquidity measure excluding inventory.",
		Target:         ">1.0x indicates good liquidity",
	},
	{
		Key:            "cash_runway",
		Name:           "Cash Runway",
		Formula:        "Cash Balance / Monthly Burn Rate",
		Interpretation: "Months of operation possible with current cash.",
		Target:         "18+ months provides strategic flexibility",
	},
	{
		Key:            "debt_to_equity",
		Name:           "Debt-to-Equity Ratio",
		Formula:        "Total Debt / Shareholder Equity",
		Interpretation: "Measures financial leverage. Lower indicates less risk.",
		Target:         "<0.5x is conservative; <1.0x is acceptable",
	},
}

// KPIDefinitions returns the definitions in display order.
func KPIDefinitions() []KPIDefinition {
	out := make([]KPIDefinition, len(kpiDefinitions))
	copy(out, kpiDefinitions)
	return out
}

// KPIDefinitionsByKey returns the definitions keyed the way the API serves
// them.
func KPIDefinitionsByKey() map[string]KPIDefinition {
	out := make(map[string]KPIDefinition, len(kpiDefinitions))
	for _, d := range kpiDefinitions {
		out[d.Key] = d
	}
	return out
}
