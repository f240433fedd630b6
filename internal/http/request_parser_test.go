package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finmetrics/internal/core"
)

func TestParseNarrativeRequest(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantFocus core.Focus
		wantQ     string
		wantErr   bool
	}{
		{"empty body", "", core.FocusExecutiveSummary, "", false},
		{"whitespace body", "  \n", core.FocusExecutiveSummary, "", false},
		{"known focus", `{"focus":"variance"}`, core.FocusVariance, "", false},
		{"unknown focus falls back", `{"focus":"poetry"}`, core.FocusExecutiveSummary, "", false},
		{"question sanitized", `{"focus":"forecast","custom_question":"  why?\u0007 "}`, core.FocusForecast, "why?", false},
		{"invalid json", `{"focus":`, "", "", true},
		{"oversized", `{"custom_question":"` + strings.Repeat("a", maxNarrativeBodyBytes) + `"}`, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/runs/x/narrative", strings.NewReader(tt.body))
			got, err := ParseNarrativeRequest(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Focus != tt.wantFocus || got.CustomQuestion != tt.wantQ {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestSanitizeRunName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Q4 Close  ", "Q4 Close"},
		{"Q4\x00\x1b Close", "Q4 Close"},
		{"", ""},
		{strings.Repeat("é", 250), strings.Repeat("é", maxRunNameLength)},
	}
	for _, tt := range tests {
		if got := sanitizeRunName(tt.in); got != tt.want {
			t.Errorf("sanitizeRunName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseUpload_NotMultipart(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("date,revenue\n"))
	r.Header.Set("Content-Type", "text/csv")
	_, err := ParseUpload(httptest.NewRecorder(), r, 0)
	status, detail := classifyError(err)
	if status != http.StatusBadRequest || detail != "Invalid multipart form" {
		t.Fatalf("got %d %q", status, detail)
	}
}
