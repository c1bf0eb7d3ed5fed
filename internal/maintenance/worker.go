// Package maintenance runs periodic housekeeping against the store.
package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// Pruner deletes processed-message records older than a cutoff age.
type Pruner interface {
	PruneProcessedMessages(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Worker sweeps expired delivery dedupe records on a fixed interval.
type Worker struct {
	pruner    Pruner
	interval  time.Duration
	retention time.Duration
}

// NewWorker creates a worker that keeps processed messages for retention.
func NewWorker(pruner Pruner, interval, retention time.Duration) *Worker {
	return &Worker{pruner: pruner, interval: interval, retention: retention}
}

// Run sweeps once at start and then every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	slog.Info("Maintenance worker started", "interval", w.interval, "retention", w.retention)

	w.Sweep(ctx)
	for {
		select {
		case <-ticker.C:
			w.Sweep(ctx)
		case <-ctx.Done():
			slog.Info("Maintenance worker shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Sweep prunes expired records once. Failures are logged and retried on
// the next tick.
func (w *Worker) Sweep(ctx context.Context) {
	deleted, err := w.pruner.PruneProcessedMessages(ctx, w.retention)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Maintenance worker failed to prune processed messages", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Maintenance worker pruned processed messages", "count", deleted)
	}
}
