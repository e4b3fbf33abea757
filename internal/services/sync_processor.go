package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"saldo/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending transactions (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of transactions to process per poll cycle (default: 10).
	// The first sweep after start reads five batches at once.
	BatchSize int

	// MaxRetries is the number of failed sweeps before a transaction is marked with a sync error (default: 3)
	MaxRetries int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

// TransactionSyncer mirrors one stored transaction version.
type TransactionSyncer interface {
	SyncTransaction(ctx context.Context, id, version int64) error
}

// SyncProcessor sweeps transactions still pending in SQLite. It recovers
// from lost AMQP messages and worker downtime.
type SyncProcessor struct {
	storage *storage.SQLiteRepository
	syncer  TransactionSyncer
	config  SyncProcessorConfig

	attempts map[int64]int

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(storage *storage.SQLiteRepository, syncer TransactionSyncer, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		storage:  storage,
		syncer:   syncer,
		config:   config,
		attempts: make(map[int64]int),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Startup check with a larger batch
	p.ProcessBatch(ctx, p.config.BatchSize*5)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx, p.config.BatchSize)
		}
	}
}

// ProcessBatch syncs up to limit pending transactions and returns how many
// succeeded.
func (p *SyncProcessor) ProcessBatch(ctx context.Context, limit int) int {
	pending, err := p.storage.GetPendingSync(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to get pending transactions", "error", err)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	synced := 0
	for _, item := range pending {
		if ctx.Err() != nil {
			return synced
		}
		if err := p.syncer.SyncTransaction(ctx, item.ID, item.Version); err != nil {
			p.handleFailure(ctx, item, err)
			continue
		}
		delete(p.attempts, item.ID)
		synced++
	}

	slog.InfoContext(ctx, "Pending sync sweep completed",
		"total", len(pending),
		"synced", synced,
		"errors", len(pending)-synced)
	return synced
}

// handleFailure counts a failed attempt and gives up after MaxRetries.
func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.PendingSync, syncErr error) {
	p.attempts[item.ID]++
	attempt := p.attempts[item.ID]
	slog.WarnContext(ctx, "Sync processing failed",
		"id", item.ID,
		"version", item.Version,
		"attempt", attempt,
		"error", syncErr)

	if attempt < p.config.MaxRetries {
		return
	}
	delete(p.attempts, item.ID)
	if err := p.storage.MarkSyncError(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync error", "id", item.ID, "error", err)
	}
	slog.ErrorContext(ctx, "Sync failed permanently after max retries",
		"id", item.ID,
		"attempts", attempt)
}
