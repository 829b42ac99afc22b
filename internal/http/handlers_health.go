package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const pingTimeout = 2 * time.Second

func (s *Server) ping(ctx context.Context) error {
	if s.svc.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.svc.Store.Ping(ctx)
}

// handleHealth reports store connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, database, code := "ok", "connected", http.StatusOK
	if err := s.ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Health check failed", "error", err)
		status, database, code = "degraded", "unreachable", http.StatusServiceUnavailable
	}
	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"database":  database,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}).Write(w)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReadiness checks dependencies before traffic is routed here.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if err := s.ping(r.Context()); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	rateMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_seconds", "gauge", "Average response time", traceMetrics.AverageResponseTime.Seconds())
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateMetrics.TotalHits)
	metric("rate_limit_clients", "gauge", "Clients tracked by the rate limiter", rateMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests matching a probe pattern", securityMetrics.SuspiciousRequests)
	metric("invalid_forwarded_ip_total", "counter", "Unparseable forwarded client addresses", securityMetrics.InvalidIPAttempts)
	if s.svc.Insights != nil {
		hits, misses := s.svc.Insights.Stats()
		metric("insights_cache_hits_total", "counter", "Insights served from cache", hits)
		metric("insights_cache_misses_total", "counter", "Insights computed", misses)
	}
	metric("uptime_seconds", "gauge", "Seconds since start", int64(time.Since(s.started).Seconds()))
}
