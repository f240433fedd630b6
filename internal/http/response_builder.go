// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and maps service errors onto status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finmetrics/internal/adapters"
	"finmetrics/internal/core"
	applog "finmetrics/internal/log"
	"finmetrics/internal/narrative"
)

const (
	detailRunNotFound  = "Analysis run not found"
	detailInternal     = "Internal server error"
	detailRateLimited  = "Rate limit exceeded. Please try again later."
	detailNotFound     = "Not Found"
	detailUnavailable  = "Narrative generation is not configured"
	detailBadBody      = "Invalid request body"
	detailFileTooLarge = "File too large"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response. Encoding failures after the header has
// been written can only be logged.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"` + detailInternal + `"}`))
		return
	}
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}

type errorBody struct {
	Detail string `json:"detail"`
}

// ErrorResponse creates a {"detail": ...} error response.
func ErrorResponse(statusCode int, detail string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).JSON(errorBody{Detail: detail})
}

func BadRequestError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, detail)
}

func NotFoundError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, detail)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, detailInternal)
}

// badRequest marks an error whose message is safe to show to the caller.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func newBadRequest(msg string) error { return &badRequest{msg: msg} }

// writeError maps err onto a status code and detail message. Internal
// errors are logged and replaced by a generic detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classifyError(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(), "Request failed", err,
			applog.ComponentHTTP, r.Method+" "+r.URL.Path,
			applog.NewFields().WithErrorType(applog.ErrorTypeInternal))
	}
	ErrorResponse(status, detail).Write(w)
}

func classifyError(err error) (int, string) {
	var (
		bad    *badRequest
		col    *adapters.ColumnError
		val    *adapters.ValueError
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.msg
	case errors.As(err, &col):
		return http.StatusBadRequest, col.Error()
	case errors.As(err, &val):
		return http.StatusBadRequest, val.Error()
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, detailFileTooLarge
	case errors.Is(err, adapters.ErrNoData), errors.Is(err, core.ErrEmptyPeriods):
		return http.StatusBadRequest, adapters.ErrNoData.Error()
	case errors.Is(err, core.ErrMissingDate):
		return http.StatusBadRequest, "Missing required column: date"
	case errors.Is(err, core.ErrNonNumeric):
		return http.StatusBadRequest, "Invalid numeric value"
	case errors.Is(err, core.ErrOutOfRange):
		return http.StatusBadRequest, "Numeric value out of range"
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound, detailRunNotFound
	case errors.Is(err, narrative.ErrGeneratorUnavailable):
		return http.StatusServiceUnavailable, detailUnavailable
	default:
		return http.StatusInternalServerError, detailInternal
	}
}
