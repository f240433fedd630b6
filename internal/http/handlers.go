package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	applog "finmetrics/internal/log"
	"finmetrics/internal/report"
	"finmetrics/internal/services"
)

const (
	apiMessage = "Financial Forecasting & KPI Dashboard API"
	apiVersion = "1.0.0"

	readyTimeout = 5 * time.Second
)

var targetUsers = []string{"CFO", "VP Finance", "FP&A Manager", "Business Unit Leaders"}

type infoResponse struct {
	Message     string   `json:"message"`
	Version     string   `json:"version"`
	TargetUsers []string `json:"target_users"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type uploadResponse struct {
	RunID              string `json:"run_id"`
	Name               string `json:"name"`
	PeriodsLoaded      int    `json:"periods_loaded"`
	KPIsCalculated     int    `json:"kpis_calculated"`
	VariancesAnalyzed  int    `json:"variances_analyzed"`
	ForecastsGenerated int    `json:"forecasts_generated"`
}

type sampleResponse struct {
	RunID   string `json:"run_id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(infoResponse{
		Message:     apiMessage,
		Version:     apiVersion,
		TargetUsers: targetUsers,
	}).Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(healthResponse{Status: "healthy", Timestamp: s.now().UTC()}).Write(w)
}

func handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports not ready while the run store cannot be reached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.runs.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics exposes request and security counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	writeMetric(w, "http_requests_total", "counter", "Total number of HTTP requests", s.tracer.TotalRequests())
	writeMetric(w, "rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", s.limiter.Hits())
	writeMetric(w, "active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", int64(s.limiter.ActiveClients()))
	writeMetric(w, "suspicious_requests_total", "counter", "Suspicious requests detected", s.detector.SuspiciousRequests())
	writeMetric(w, "uptime_seconds", "gauge", "Server uptime in seconds", int64(s.now().Sub(s.started).Seconds()))
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, kind, name, value)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	upload, err := ParseUpload(w, r, s.maxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	run, err := s.runs.CreateRun(r.Context(), upload.Name, upload.Periods)
	if err != nil {
		writeError(w, r, err)
		return
	}

	NewJSONResponse().JSON(uploadResponse{
		RunID:              run.ID,
		Name:               run.Name,
		PeriodsLoaded:      len(run.Periods),
		KPIsCalculated:     len(run.KPIs),
		VariancesAnalyzed:  len(run.Variances),
		ForecastsGenerated: len(run.Forecasts),
	}).Write(w)
}

func (s *Server) handleSampleData(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.LoadSample(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(sampleResponse{
		RunID:   run.ID,
		Name:    run.Name,
		Message: "Sample data loaded successfully",
	}).Write(w)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.ListRuns(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(runs).Write(w)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(run).Write(w)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.runs.DeleteRun(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(map[string]bool{"deleted": true}).Write(w)
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := s.runs.KPIs(r.Context(), r.PathValue("id"), r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(kpis).Write(w)
}

func (s *Server) handleVariances(w http.ResponseWriter, r *http.Request) {
	variances, err := s.runs.Variances(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(variances).Write(w)
}

// handleForecasts returns the named scenario alone when it exists, and the
// full scenario map otherwise.
func (s *Server) handleForecasts(w http.ResponseWriter, r *http.Request) {
	scenario := r.URL.Query().Get("scenario")
	forecasts, err := s.runs.Forecasts(r.Context(), r.PathValue("id"), scenario)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if f, ok := forecasts[scenario]; ok && scenario != "" {
		NewJSONResponse().JSON(f).Write(w)
		return
	}
	NewJSONResponse().JSON(forecasts).Write(w)
}

func (s *Server) handleGenerateNarrative(w http.ResponseWriter, r *http.Request) {
	req, err := ParseNarrativeRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.runs.GenerateNarrative(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(n).Write(w)
}

func (s *Server) handleNarratives(w http.ResponseWriter, r *http.Request) {
	narratives, err := s.runs.Narratives(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(narratives).Write(w)
}

// handleReport renders the run as a standalone HTML page.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.HTML(&buf, run, s.now()); err != nil {
		writeError(w, r, fmt.Errorf("render report %s: %w", run.ID, err))
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogReportRendered(r.Context(), run.ID, "html", buf.Len())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleKPIDefinitions(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Header("Cache-Control", "public, max-age=3600").
		JSON(services.KPIDefinitionsByKey()).
		Write(w)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError(detailNotFound).Write(w)
}
