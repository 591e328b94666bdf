package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionWorkerInterval = 5 * time.Minute

// StartRetentionWorker runs a background goroutine that periodically deletes
// exchanges older than retention. It stops when ctx is canceled.
func StartRetentionWorker(ctx context.Context, repo Repository, retention time.Duration) {
	ticker := time.NewTicker(retentionWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", retentionWorkerInterval, "retention", retention)

		pruneExchanges(ctx, repo, retention)
		for {
			select {
			case <-ticker.C:
				pruneExchanges(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func pruneExchanges(ctx context.Context, repo Repository, retention time.Duration) {
	deleted, err := repo.DeleteExchangesBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Retention worker failed to prune exchanges", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker pruned exchanges", "count", deleted)
	}
}
