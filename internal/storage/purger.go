package storage

import (
	"context"
	"log/slog"
	"time"
)

// RunPurger calls store.PurgeExpired every interval until ctx is done. The
// SQL stores have no TTL of their own and rely on it to stay small.
func RunPurger(ctx context.Context, store Store, window, interval time.Duration) {
	if interval <= 0 || window <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.PurgeExpired(ctx, now, window)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.WarnContext(ctx, "Failed to purge expired windows", "error", err)
				continue
			}
			if removed > 0 {
				slog.DebugContext(ctx, "Purged expired windows", "removed", removed)
			}
		}
	}
}
