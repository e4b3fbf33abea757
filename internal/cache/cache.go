// Package cache holds in-process caches for computed read models.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Purge()
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Loading fronts a Cache with a loader. Concurrent misses for one key run
// the loader once and share its result. A load that started before an
// invalidation of its key is returned to its callers but never cached.
type Loading[T any] struct {
	cache Cache[T]
	group singleflight.Group

	mu    sync.Mutex
	epoch uint64
	gens  map[string]uint64
}

func NewLoading[T any](c Cache[T]) *Loading[T] {
	return &Loading[T]{cache: c, gens: make(map[string]uint64)}
}

// generation identifies the current incarnation of key. Callers hold l.mu.
func (l *Loading[T]) generation(key string) string {
	return fmt.Sprintf("%d.%d/%s", l.epoch, l.gens[key], key)
}

// store caches v unless key was invalidated since gen was taken.
func (l *Loading[T]) store(key, gen string, v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen == l.generation(key) {
		l.cache.Set(key, v)
	}
}

// Get returns the cached value for key or calls load to produce it. Errors
// are not cached.
func (l *Loading[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	l.mu.Lock()
	gen := l.generation(key)
	l.mu.Unlock()
	v, err, _ := l.group.Do(gen, func() (any, error) {
		if v, ok := l.cache.Get(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		l.store(key, gen, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops the given keys. Loads already running for them are not
// cached and later callers start a fresh one.
func (l *Loading[T]) Invalidate(keys ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		l.gens[k]++
		l.cache.Delete(k)
	}
}

// InvalidateAll drops every key.
func (l *Loading[T]) InvalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	clear(l.gens)
	l.cache.Purge()
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
	stopOnce    sync.Once
}

// NewManager creates a new cache manager
func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

// CleanOnce removes expired entries from every registered cache.
func (m *Manager) CleanOnce() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanOnce(); n > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.cleanupDone
		}
	})
}
