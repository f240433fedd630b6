package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	applog "finmetrics/internal/log"
	"finmetrics/internal/middleware/ratelimit"
	"finmetrics/internal/middleware/security"
	"finmetrics/internal/middleware/trace"
	"finmetrics/internal/services"
)

// Options configures NewServer. Zero values pick the defaults.
type Options struct {
	Addr           string
	CORSOrigins    []string
	MaxUploadBytes int64
	RateLimit      ratelimit.Config
	Logger         *applog.Logger
}

// Server serves the analysis API.
type Server struct {
	http.Server

	runs           *services.RunService
	logger         *applog.Logger
	detector       *security.Detector
	limiter        *ratelimit.Limiter
	tracer         *trace.Middleware
	maxUploadBytes int64
	now            func() time.Time
	started        time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Timeouts are left to the caller.
func NewServer(runs *services.RunService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	rl := opts.RateLimit
	if rl.RequestsPerMinute == 0 {
		rl = ratelimit.DefaultConfig()
	}

	s := &Server{
		runs:           runs,
		logger:         logger.WithComponent(applog.ComponentHTTP),
		detector:       security.NewDetector(),
		limiter:        ratelimit.NewLimiter(rl),
		maxUploadBytes: opts.MaxUploadBytes,
		now:            time.Now,
	}
	s.started = s.now()
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr: opts.Addr,
		Handler: chain(mux,
			s.tracer.Middleware,
			s.recoverer,
			s.detector.Middleware,
			headers.Middleware,
			newCORS(opts.CORSOrigins).Middleware,
			s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
				ErrorResponse(http.StatusTooManyRequests, detailRateLimited).Write(w)
			}),
		),
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleLive)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/{$}", s.handleInfo)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/sample-data", s.handleSampleData)
	mux.HandleFunc("GET /api/kpi-definitions", s.handleKPIDefinitions)

	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.handleDeleteRun)
	mux.HandleFunc("GET /api/runs/{id}/kpis", s.handleKPIs)
	mux.HandleFunc("GET /api/runs/{id}/variances", s.handleVariances)
	mux.HandleFunc("GET /api/runs/{id}/forecasts", s.handleForecasts)
	mux.HandleFunc("POST /api/runs/{id}/narrative", s.handleGenerateNarrative)
	mux.HandleFunc("GET /api/runs/{id}/narratives", s.handleNarratives)
	mux.HandleFunc("GET /api/runs/{id}/report", s.handleReport)

	mux.HandleFunc("/", handleNotFound)
}

// chain applies middleware so that the first one listed runs outermost.
func chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// recoverer turns a handler panic into a 500 response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				applog.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panic",
					"panic", rec,
					applog.FieldPath, r.URL.Path,
					"stack", string(debug.Stack()))
				InternalServerError().Write(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
// Calls after the first return nil.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
