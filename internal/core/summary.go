package core

import (
	"strings"
	"time"
)

// RunSummary is the listing view of an AnalysisRun without its payloads.
type RunSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	PeriodCount    int       `json:"period_count"`
	NarrativeCount int       `json:"narrative_count"`
}

func (r AnalysisRun) Summary() RunSummary {
	return RunSummary{
		ID:             r.ID,
		Name:           r.Name,
		CreatedAt:      r.CreatedAt,
		PeriodCount:    len(r.Periods),
		NarrativeCount: len(r.Narratives),
	}
}

// Focus selects which angle a narrative takes.
type Focus string

const (
	FocusExecutiveSummary Focus = "executive_summary"
	FocusVariance         Focus = "variance"
	FocusForecast         Focus = "forecast"
	FocusRecommendations  Focus = "recommendations"
)

// ParseFocus maps free text to a known Focus, defaulting to the executive summary.
func ParseFocus(s string) Focus {
	switch f := Focus(strings.ToLower(strings.TrimSpace(s))); f {
	case FocusExecutiveSummary, FocusVariance, FocusForecast, FocusRecommendations:
		return f
	default:
		return FocusExecutiveSummary
	}
}
