package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type purger interface {
	Purge() int
}

// CacheJanitor reclaims memory held by expired cache entries.
// Reads already refuse expired entries, so correctness never depends on it.
type CacheJanitor struct {
	log      *slog.Logger
	cache    purger
	interval time.Duration
}

func NewCacheJanitor(log *slog.Logger, cache purger, interval time.Duration) *CacheJanitor {
	return &CacheJanitor{log: log, cache: cache, interval: interval}
}

func (w *CacheJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if purged := w.cache.Purge(); purged > 0 {
				w.log.Debug(fmt.Sprintf("%d expired cache entries purged", purged))
			}
		}
	}
}
