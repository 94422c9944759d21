// Package retention expires archived chat sessions.
package retention

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is how often the worker sweeps.
const DefaultInterval = 5 * time.Minute

// Cleaner deletes sessions not updated within ttl.
type Cleaner interface {
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)
}

// CleanupCallback is called after a sweep that removed sessions.
type CleanupCallback func(deleted int64)

// StartWorker runs a background goroutine that periodically removes archived
// sessions older than ttl. It stops when ctx is canceled.
func StartWorker(ctx context.Context, repo Cleaner, ttl, interval time.Duration, onCleanup CleanupCallback) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, repo, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep performs one cleanup pass and returns the number of sessions removed.
func Sweep(ctx context.Context, repo Cleaner, ttl time.Duration, onCleanup CleanupCallback) int64 {
	deleted, err := repo.CleanupExpiredSessions(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention worker: context canceled during cleanup", "error", err)
			return 0
		}
		slog.Error("Retention worker failed to cleanup expired sessions", "error", err)
		return 0
	}
	if deleted == 0 {
		return 0
	}

	slog.Info("Retention worker cleaned up expired sessions", "count", deleted)
	if onCleanup != nil {
		onCleanup(deleted)
	}
	return deleted
}
