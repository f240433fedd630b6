package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ContextKey string

const LoggerContextKey ContextKey = "logger"

// NewContext stores logger for FromContext.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext returns the request logger, or one wrapping slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// StructuredLogger emits the recurring log events of the service with a
// consistent field layout.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP)

	sl.logger.WithComponent(ComponentHTTP).DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs 4xx responses at warn and 5xx at error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)

	sl.logger.WithComponent(ComponentHTTP).log(ctx, level, "HTTP request completed", fields.ToSlice())
}

func (sl *StructuredLogger) LogRunCreated(ctx context.Context, id, name string, periods int, latest string) {
	fields := NewFields().
		WithRun(id, name, periods).
		WithOperation(OpCreate)
	fields[FieldLatest] = latest

	sl.logger.WithComponent(ComponentRun).InfoContext(ctx, "Analysis run created", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogNarrativeGenerated(ctx context.Context, runID, narrativeID, focus string) {
	fields := NewFields().WithOperation(OpGenerate)
	fields[FieldRunID] = runID
	fields[FieldNarrativeID] = narrativeID
	fields[FieldFocus] = focus

	sl.logger.WithComponent(ComponentNarrative).InfoContext(ctx, "Narrative generated", fields.ToSlice()...)
}

// LogRunExported records where an external copy of a run was written.
func (sl *StructuredLogger) LogRunExported(ctx context.Context, id, name string, periods int, ref string) {
	fields := NewFields().
		WithRun(id, name, periods).
		WithOperation(OpExport)
	fields[FieldExportRef] = ref

	sl.logger.WithComponent(ComponentExport).InfoContext(ctx, "Run exported", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogReportRendered(ctx context.Context, runID, format string, size int) {
	fields := NewFields().WithOperation(OpRender)
	fields[FieldRunID] = runID
	fields[FieldFormat] = format
	fields[FieldBytes] = size

	sl.logger.WithComponent(ComponentReport).DebugContext(ctx, "Report rendered", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation)

	sl.logger.WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}
