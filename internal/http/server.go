// Package http exposes the saldo JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"saldo/internal/cache"
	"saldo/internal/core"
	applog "saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

// Options configures the server. Zero values fall back to defaults.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64
	// MaxUploadBytes bounds import uploads.
	MaxUploadBytes   int64
	TrustedProxies   []string
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration
	Logger           *applog.Logger
	// Ready reports whether backing services are reachable.
	Ready func(context.Context) error
}

func (o Options) withDefaults() Options {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 10 << 20
	}
	if o.SummaryCacheSize <= 0 {
		o.SummaryCacheSize = 100
	}
	if o.SummaryCacheTTL <= 0 {
		o.SummaryCacheTTL = 5 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = applog.New(applog.DefaultConfig())
	}
	return o
}

type appMetrics struct {
	started             time.Time
	transactionsCreated int64
	transactionsDeleted int64
	imports             int64
	exports             int64
	summaryRequests     int64
	summaryLoads        int64
}

type Server struct {
	http.Server
	opts         Options
	logger       *applog.Logger
	transactions *services.TransactionService
	catalog      *services.CatalogService

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	// Month summaries keyed by "YYYY-MM".
	summaryLRU   *cache.LRUCache[core.MonthOverview]
	summaries    *cache.Loading[core.MonthOverview]
	cacheManager *cache.Manager

	metrics      appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, transactions *services.TransactionService, catalog *services.CatalogService) *Server {
	opts = opts.withDefaults()
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		opts:         opts,
		logger:       logger,
		transactions: transactions,
		catalog:      catalog,
		detector:     security.NewDetector(),
		cacheManager: cache.NewManager(),
		metrics:      appMetrics{started: time.Now()},
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimitPerMinute,
		Methods:           ratelimit.MutatingMethods,
	})
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)
	s.summaryLRU = cache.NewLRUCache[core.MonthOverview](opts.SummaryCacheSize, opts.SummaryCacheTTL)
	s.summaries = cache.NewLoading[core.MonthOverview](s.summaryLRU)
	s.cacheManager.Register(s.summaryLRU)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /transaction", s.handleListTransactions)
	mux.HandleFunc("POST /transaction", s.handleCreateTransaction)
	mux.HandleFunc("GET /transaction/summary", s.handleMonthSummary)
	mux.HandleFunc("GET /transaction/export", s.handleExport)
	mux.HandleFunc("POST /transaction/import/preview", s.handleImportPreview)
	mux.HandleFunc("POST /transaction/import", s.handleImport)
	mux.HandleFunc("GET /transaction/edit-many", s.handleEditSummary)
	mux.HandleFunc("PATCH /transaction/edit-many", s.handleEditMany)
	mux.HandleFunc("GET /transaction/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /transaction/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /transaction/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /transaction/{id}/confirm", s.handleConfirmTransaction)

	mux.HandleFunc("GET /accounts", s.handleListAccounts)
	mux.HandleFunc("POST /accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("PUT /accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /accounts/{id}", s.handleDeleteAccount)

	mux.HandleFunc("GET /categories", s.handleListCategories)
	mux.HandleFunc("POST /categories", s.handleCreateCategory)
	mux.HandleFunc("GET /categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PUT /categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /categories/{id}", s.handleDeleteCategory)
	mux.HandleFunc("POST /categories/{id}/sub-categories", s.handleAddSubCategory)
	mux.HandleFunc("DELETE /categories/{id}/sub-categories/{subId}", s.handleDeleteSubCategory)

	mux.HandleFunc("GET /custom-fields", s.handleListCustomFields)
	mux.HandleFunc("POST /custom-fields", s.handleCreateCustomField)
	mux.HandleFunc("GET /custom-fields/{id}", s.handleGetCustomField)
	mux.HandleFunc("PUT /custom-fields/{id}", s.handleUpdateCustomField)
	mux.HandleFunc("DELETE /custom-fields/{id}", s.handleDeleteCustomField)
}

// middleware wraps next with tracing, request-scoped logging, security
// headers, scanner detection and rate limiting, outermost first.
func (s *Server) middleware(next http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		NewJSONResponse().
			Status(http.StatusTooManyRequests).
			Data(ErrorBody{Message: "rate limit exceeded, please try again later"}).
			Write(w)
	}

	h := s.limiter.Middleware(s.detector.ExtractClientIP, onLimit)(next)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.RequestIDMiddleware(trace.RequestID)(h)
	h = applog.Middleware(s.logger)(h)
	return s.tracer.Middleware(h)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func monthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// monthSummary serves year/month from cache, loading it once on a miss.
func (s *Server) monthSummary(ctx context.Context, year, month int) (core.MonthOverview, error) {
	atomic.AddInt64(&s.metrics.summaryRequests, 1)
	return s.summaries.Get(ctx, monthKey(year, month), func(ctx context.Context) (core.MonthOverview, error) {
		atomic.AddInt64(&s.metrics.summaryLoads, 1)
		return s.transactions.MonthSummary(ctx, year, month)
	})
}

// invalidateMonths drops the cached summaries of the months txs fall in.
func (s *Server) invalidateMonths(txs ...core.Transaction) {
	keys := make([]string, 0, len(txs))
	seen := map[string]bool{}
	for _, tx := range txs {
		k := monthKey(tx.DueDate.Year(), int(tx.DueDate.Month()))
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	s.summaries.Invalidate(keys...)
}
