package narrative

import (
	"strings"

	"finmetrics/internal/core"
)

// Persona is the system instruction given to the model.
const Persona = "You are a seasoned FP&A Director preparing insights for executive leadership. You provide clear, concise, data-driven analysis."

var focusInstructions = map[core.Focus]string{
	core.FocusExecutiveSummary: "Provide a concise executive summary for leadership. What are the key takeaways? What should the CFO highlight in the next board meeting?",
	core.FocusVariance:         "Analyze the variances in detail. What drove the changes? Which variances require immediate attention?",
	core.FocusForecast:         "Explain the forecast scenarios. What are the key assumptions? What conditions would trigger upside vs downside cases?",
	core.FocusRecommendations:  "Provide specific, actionable recommendations. What should finance leadership prioritize in the next 30/60/90 days?",
}

// Instruction returns the task text for focus, falling back to the
// executive summary, with the custom question appended when given.
func Instruction(focus core.Focus, customQuestion string) string {
	text, ok := focusInstructions[focus]
	if !ok {
		text = focusInstructions[core.FocusExecutiveSummary]
	}
	if q := strings.TrimSpace(customQuestion); q != "" {
		text += "\n\nAdditionally, answer this specific question: " + q
	}
	return text
}

const rules = `RULES:
- Only reference the data provided below
- Never invent or assume numbers not in the data
- If data is missing, explicitly state "data not available"
- Be concise and decision-oriented
- Use executive language (no technical jargon)`

const responseFormat = `Respond in JSON format with these exact keys:
- summary: 2-4 sentence executive summary
- key_insights: array of 3-5 bullet points
- risks: array of 2-3 key risks
- recommendations: array of 3-4 actionable recommendations
- variance_drivers: array of top 3 variance explanations (if analyzing variance)`

// BuildPrompt assembles the user prompt from the run context and request.
func BuildPrompt(run core.AnalysisRun, req core.NarrativeRequest) string {
	parts := []string{Persona, rules}
	if data := BuildContext(run); data != "" {
		parts = append(parts, data)
	}
	parts = append(parts,
		"TASK: "+Instruction(req.Focus, req.CustomQuestion),
		responseFormat,
	)
	return strings.Join(parts, "\n\n")
}
