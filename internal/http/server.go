// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/insights"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the operations the API exposes.
type Services struct {
	Months    *services.MonthService
	Recurring *services.RecurringService
	Users     *services.UserService
	Insights  *insights.Service
	Store     Pinger
}

// Options tune the middleware chain.
type Options struct {
	RateLimitPerMinute int
	AllowedOrigins     []string
	Logger             *log.Logger
}

// Server is an http.Server with the API routes and middleware attached.
type Server struct {
	http.Server

	svc     Services
	logger  *log.Logger
	httpLog *log.StructuredLogger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	rlCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}
	headersCfg := security.DefaultHeadersConfig()
	if len(opts.AllowedOrigins) > 0 {
		headersCfg.AllowedOrigins = opts.AllowedOrigins
	}

	s := &Server{
		svc:      svc,
		logger:   logger,
		httpLog:  log.NewStructuredLogger(logger),
		limiter:  ratelimit.NewLimiter(rlCfg),
		detector: security.NewDetector(logger),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr: addr,
		Handler: chain(mux,
			s.tracer.Middleware,
			log.RequestIDMiddleware(logger, trace.RequestIDFromRequest),
			s.detector.Middleware,
			security.NewHeadersMiddleware(headersCfg).Middleware,
			s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited),
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// chain wraps h so that the first middleware sees the request first.
func chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/data", s.handleListMonths)
	mux.HandleFunc("POST /api/data/month", s.handleCreateMonth)
	mux.HandleFunc("GET /api/data/month/{monthId}", s.handleGetMonth)
	mux.HandleFunc("DELETE /api/data/month/{monthId}", s.handleDeleteMonth)

	mux.HandleFunc("POST /api/data/{side}/entry", s.handleAddEntry)
	mux.HandleFunc("PUT /api/data/{side}/entry/{entryId}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /api/data/{side}/entry/{entryId}", s.handleDeleteEntry)
	mux.HandleFunc("DELETE /api/data/{side}/{categoryId}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/recurring", s.handleListTemplates)
	mux.HandleFunc("POST /api/recurring", s.handleCreateTemplate)
	mux.HandleFunc("PUT /api/recurring/{id}", s.handleUpdateTemplate)
	mux.HandleFunc("DELETE /api/recurring/{id}", s.handleDeleteTemplate)

	mux.HandleFunc("POST /api/users", s.handleCreateUser)
	mux.HandleFunc("GET /api/users/{id}", s.handleGetUser)

	mux.HandleFunc("GET /api/insights/month/{monthId}", s.handleMonthInsights)
	mux.HandleFunc("GET /api/insights/overview", s.handleOverview)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "", "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
