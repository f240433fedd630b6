package narrative

import (
	"encoding/json"
	"strings"

	"finmetrics/internal/core"
)

type reply struct {
	Summary         *string  `json:"summary"`
	KeyInsights     []string `json:"key_insights"`
	Risks           []string `json:"risks"`
	Recommendations []string `json:"recommendations"`
	VarianceDrivers []string `json:"variance_drivers"`
}

// stripFences removes a surrounding ```json or ``` markdown fence.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// Parse converts a model reply into narrative fields. Replies that are not
// a JSON object yield a narrative whose summary is the raw text.
func Parse(raw string) core.Narrative {
	text := stripFences(raw)

	var r reply
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return core.Narrative{
			Summary:         text,
			KeyInsights:     []string{"See summary for details"},
			Risks:           []string{"Unable to parse structured risks"},
			Recommendations: []string{"Review full narrative for recommendations"},
		}
	}

	n := core.Narrative{
		Summary:         text,
		KeyInsights:     orEmpty(r.KeyInsights),
		Risks:           orEmpty(r.Risks),
		Recommendations: orEmpty(r.Recommendations),
		VarianceDrivers: r.VarianceDrivers,
	}
	if r.Summary != nil {
		n.Summary = *r.Summary
	}
	return n
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
