// Package worker runs the background jobs: outbox relay and table maintenance.
package worker

import (
	"context"
	"time"

	"stockledger/pkg/logger"
)

// Relay drains the transactional outbox.
type Relay interface {
	ProcessBatch(ctx context.Context) (int, error)
	MoveToDLQ(ctx context.Context) (int64, error)
	PurgePublished(ctx context.Context, retention time.Duration) (int64, error)
}

// KeyCleaner removes expired idempotency keys.
type KeyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Config tunes the loops.
type Config struct {
	PollInterval    time.Duration
	CleanupInterval time.Duration
	// BatchSize lets a full batch trigger the next one without waiting for the ticker
	BatchSize int
	Retention time.Duration
}

// Worker polls the outbox and periodically cleans up.
type Worker struct {
	relay Relay
	keys  KeyCleaner
	cfg   Config
	log   *logger.Logger
}

// New creates a worker. keys may be nil when idempotency is disabled.
func New(relay Relay, keys KeyCleaner, cfg Config, log *logger.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	return &Worker{relay: relay, keys: keys, cfg: cfg, log: log.WithComponent("worker")}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	w.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopping")
			return
		case <-ticker.C:
			w.Drain(ctx)
		case <-cleanupTicker.C:
			w.Cleanup(ctx)
		}
	}
}

// Drain processes batches until one comes back short or fails.
// Returns the number of published messages.
func (w *Worker) Drain(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return total
		}
		total += n
		if n == 0 || w.cfg.BatchSize <= 0 || n < w.cfg.BatchSize {
			break
		}
	}
	if total > 0 {
		w.log.Debugw("outbox drained", "published", total)
	}
	return total
}

// Cleanup moves exhausted messages to the DLQ, purges old published ones
// and drops expired idempotency keys. Each step runs even if an earlier one fails.
func (w *Worker) Cleanup(ctx context.Context) {
	if n, err := w.relay.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("move to DLQ failed", "error", err)
	} else if n > 0 {
		w.log.Warnw("outbox messages moved to DLQ", "count", n)
	}

	if n, err := w.relay.PurgePublished(ctx, w.cfg.Retention); err != nil {
		w.log.Errorw("purge published failed", "error", err)
	} else if n > 0 {
		w.log.Infow("purged published outbox messages", "count", n)
	}

	if w.keys == nil {
		return
	}
	if n, err := w.keys.CleanupExpired(ctx); err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}
