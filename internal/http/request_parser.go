// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of request payloads: the
// multipart CSV upload and the JSON narrative request.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"finmetrics/internal/adapters"
	"finmetrics/internal/core"
)

const (
	// DefaultMaxUploadBytes bounds the whole multipart request.
	DefaultMaxUploadBytes = 10 << 20
	maxNarrativeBodyBytes = 64 << 10
	maxRunNameLength      = 200
	multipartMemory       = 2 << 20
)

// UploadRequest is a parsed CSV upload.
type UploadRequest struct {
	Name     string
	Filename string
	Periods  []core.Period
}

// ParseUpload reads the "file" part and the optional "run_name" field of a
// multipart upload.
func ParseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (UploadRequest, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return UploadRequest{}, err
		}
		if strings.Contains(err.Error(), "request body too large") {
			return UploadRequest{}, &http.MaxBytesError{Limit: maxBytes}
		}
		return UploadRequest{}, newBadRequest("Invalid multipart form")
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		return UploadRequest{}, newBadRequest("Missing file")
	}
	defer file.Close()

	if !isCSVFilename(header) {
		return UploadRequest{}, newBadRequest("File must be a CSV")
	}

	periods, err := adapters.ParsePeriodsCSV(file)
	if err != nil {
		return UploadRequest{}, err
	}

	return UploadRequest{
		Name:     sanitizeRunName(r.FormValue("run_name")),
		Filename: header.Filename,
		Periods:  periods,
	}, nil
}

func isCSVFilename(h *multipart.FileHeader) bool {
	return h != nil && strings.HasSuffix(path.Base(h.Filename), ".csv")
}

// ParseNarrativeRequest decodes an optional JSON body. An empty body asks
// for the default focus.
func ParseNarrativeRequest(r *http.Request) (core.NarrativeRequest, error) {
	var req core.NarrativeRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNarrativeBodyBytes+1))
	if err != nil {
		return req, newBadRequest(detailBadBody)
	}
	if len(body) > maxNarrativeBodyBytes {
		return req, newBadRequest("Request body too large")
	}
	if strings.TrimSpace(string(body)) == "" {
		req.Focus = core.FocusExecutiveSummary
		return req, nil
	}

	var raw struct {
		Focus          string `json:"focus"`
		CustomQuestion string `json:"custom_question"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return req, newBadRequest(detailBadBody)
	}
	req.Focus = core.ParseFocus(raw.Focus)
	req.CustomQuestion = sanitizeInput(raw.CustomQuestion)
	return req, nil
}

// sanitizeRunName drops control characters and bounds the length. Blank
// names are left for the service to default.
func sanitizeRunName(s string) string {
	s = sanitizeInput(s)
	if r := []rune(s); len(r) > maxRunNameLength {
		s = strings.TrimSpace(string(r[:maxRunNameLength]))
	}
	return s
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}
