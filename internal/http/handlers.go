package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.opts.Ready == nil {
		checks["storage"] = "not_configured"
	} else if err := s.opts.Ready(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	checks["cache"] = map[string]any{
		"summary_entries": s.summaryLRU.Size(),
		"status":          "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	traceMetrics := s.tracer.GetMetrics()

	summaryRequests := atomic.LoadInt64(&s.metrics.summaryRequests)
	summaryLoads := atomic.LoadInt64(&s.metrics.summaryLoads)

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_requests_failed_total", "Requests answered with a 5xx status", traceMetrics.FailedRequests)
	gauge("http_response_time_avg_microseconds", "Average response time", traceMetrics.AverageResponseTime)
	counter("transactions_created_total", "Transactions stored by create and import", atomic.LoadInt64(&s.metrics.transactionsCreated))
	counter("transactions_deleted_total", "Transactions removed", atomic.LoadInt64(&s.metrics.transactionsDeleted))
	counter("imports_total", "Completed file imports", atomic.LoadInt64(&s.metrics.imports))
	counter("exports_total", "Completed file exports", atomic.LoadInt64(&s.metrics.exports))
	counter("summary_requests_total", "Month summary requests", summaryRequests)
	counter("summary_cache_misses_total", "Month summaries loaded from storage", summaryLoads)
	gauge("summary_cache_entries", "Current cached month summaries", int64(s.summaryLRU.Size()))
	cacheStats := s.summaryLRU.Stats()
	counter("summary_cache_hits_total", "Month summaries served from cache", cacheStats.Hits)
	counter("summary_cache_evictions_total", "Month summaries evicted for space", cacheStats.Evictions)
	counter("summary_cache_expired_total", "Month summaries dropped after their TTL", cacheStats.Expired)
	counter("rate_limit_hits_total", "Total rate limit hits", rateLimitMetrics.TotalHits)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	counter("suspicious_requests_total", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	counter("invalid_ip_attempts_total", "Requests with an unparseable client address", securityMetrics.InvalidIPAttempts)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.metrics.started).Seconds())
}
