package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunJanitor purges results older than ttl every interval until ctx is done.
// A non-positive ttl disables expiry and returns immediately.
func RunJanitor(ctx context.Context, store ResultStore, ttl, interval time.Duration, logger *zap.Logger) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = ttl / 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeOlderThan(ctx, time.Now().Add(-ttl))
			if err != nil {
				logger.Warn("purge expired results", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("purged expired results", zap.Int64("count", n))
			}
		}
	}
}
