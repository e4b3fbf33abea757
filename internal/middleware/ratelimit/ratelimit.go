// Package ratelimit throttles state-changing requests per client IP with a
// token bucket refilled continuously at RequestsPerMinute.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// MutatingMethods are the methods that change state.
var MutatingMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	// Burst is the bucket size. Zero means RequestsPerMinute.
	Burst int
	// Buckets idle longer than IdleTTL are dropped by the sweeper.
	IdleTTL       time.Duration
	SweepInterval time.Duration
	// Methods limits which request methods are counted. Empty means all.
	Methods []string
}

func (c Config) withDefaults() Config {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 60
	}
	if c.Burst <= 0 {
		c.Burst = c.RequestsPerMinute
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 10 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	return c
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// Limiter keeps one bucket per client.
type Limiter struct {
	cfg Config
	// interval is the time it takes to earn one token.
	interval time.Duration
	methods  map[string]bool
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	rejected int64
	done     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter and starts sweeping idle buckets.
func NewLimiter(cfg Config) *Limiter {
	cfg = cfg.withDefaults()
	rl := &Limiter{
		cfg:      cfg,
		interval: time.Minute / time.Duration(cfg.RequestsPerMinute),
		now:      time.Now,
		buckets:  make(map[string]*bucket),
		done:     make(chan struct{}),
	}
	if len(cfg.Methods) > 0 {
		rl.methods = make(map[string]bool, len(cfg.Methods))
		for _, m := range cfg.Methods {
			rl.methods[m] = true
		}
	}
	go rl.sweepLoop()
	return rl
}

// refill tops b up for the time elapsed since it was last seen. Callers hold rl.mu.
func (rl *Limiter) refill(b *bucket, now time.Time) {
	if elapsed := now.Sub(b.seen); elapsed > 0 {
		b.tokens = math.Min(float64(rl.cfg.Burst), b.tokens+float64(elapsed)/float64(rl.interval))
	}
	b.seen = now
}

// Allow takes one token from key's bucket.
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.cfg.Burst), seen: now}
		rl.buckets[key] = b
	}
	rl.refill(b, now)
	if b.tokens < 1 {
		atomic.AddInt64(&rl.rejected, 1)
		return false
	}
	b.tokens--
	return true
}

// RetryAfter reports how long key must wait before its next token.
func (rl *Limiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		return 0
	}
	rl.refill(b, rl.now())
	if b.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - b.tokens) * float64(rl.interval))
}

func (rl *Limiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.done:
			return
		}
	}
}

// sweep drops idle buckets and returns how many went.
func (rl *Limiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.cfg.IdleTTL)
	n := 0
	for key, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

// ActiveClients returns the number of tracked buckets.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics reports rejected requests and tracked clients.
func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   atomic.LoadInt64(&rl.rejected),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware rejects requests over the limit with 429 and Retry-After.
// Methods not listed in Config.Methods are never counted.
func (rl *Limiter) Middleware(clientKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.methods != nil && !rl.methods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}
			key := clientKey(r)
			if rl.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}
			wait := int(math.Ceil(rl.RetryAfter(key).Seconds()))
			if wait < 1 {
				wait = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(wait))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		})
	}
}
