package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentRun, Output: &buf})

	logger.Info("hello", "k", "v")
	logger.WithComponent(ComponentCache).Debug("miss")

	out := buf.String()
	if !strings.Contains(out, "component=run") || !strings.Contains(out, "k=v") {
		t.Errorf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "component=cache") {
		t.Errorf("component override missing: %s", out)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info logged below warn level: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext returned nil without logger")
	}

	logger := New(DefaultConfig())
	ctx := NewContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("FromContext did not return stored logger")
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Output: &buf}))
	ctx := context.Background()

	req := httptest.NewRequest("GET", "/api/runs?limit=5", nil)
	sl.LogHTTPEnd(ctx, req, 503, 12, "10.0.0.1")
	sl.LogRunCreated(ctx, "run-1", "Q4", 6, "2024-12")
	sl.LogNarrativeGenerated(ctx, "run-1", "n-1", "variance")
	sl.LogRunExported(ctx, "run-2", "Q1", 3, "sheet-1/KPIs")
	sl.LogReportRendered(ctx, "run-2", "html", 2048)
	sl.LogError(ctx, "boom", errors.New("disk full"), ComponentStorage, OpCreate, nil)

	out := buf.String()
	for _, want := range []string{
		"level=ERROR", "status_code=503", "client_ip=10.0.0.1",
		"run_id=run-1", "period_count=6", "latest_period=2024-12",
		"narrative_id=n-1", "focus=variance",
		"export_ref=sheet-1/KPIs", "operation=export", "component=export",
		"component=report", "operation=render", "bytes=2048",
		`error="disk full"`, "component=storage",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
