package workers

import (
	"chat-hub/observability"
	"context"
	"log/slog"
	"time"
)

type sampler interface {
	Refresh() observability.Stats
}

// HealthReporter samples the hub on an interval and logs the result.
type HealthReporter struct {
	log      *slog.Logger
	monitor  sampler
	interval time.Duration
}

func NewHealthReporter(log *slog.Logger, monitor sampler, interval time.Duration) *HealthReporter {
	return &HealthReporter{log: log, monitor: monitor, interval: interval}
}

func (w *HealthReporter) Run(ctx context.Context) error {
	startTime := time.Now()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report(startTime)
			w.log.Debug("Context done, stopping health reporter")
			return nil
		case <-ticker.C:
			w.report(startTime)
		}
	}
}

func (w *HealthReporter) report(startTime time.Time) {
	stats := w.monitor.Refresh()
	w.log.Info("Hub health",
		"uptime", time.Since(startTime).Round(time.Second).String(),
		"connections", stats.Connections,
		"online_users", stats.OnlineUsers,
		"cache_entries", stats.CacheEntries,
		"status_queue", stats.StatusQueueLength,
		"status_capacity", stats.StatusQueueCapacity,
		"broadcast_failures", stats.BroadcastFailures,
		"alloc_mb", stats.AllocMemMb,
		"rss_bytes", stats.RSSBytes,
		"cpu_percent", stats.CPUPercent,
	)
	if stats.StatusQueueCapacity > 0 && stats.StatusQueueLength*10 >= stats.StatusQueueCapacity*9 {
		w.log.Warn("Status queue almost full, presence write-backs may be dropped",
			"length", stats.StatusQueueLength, "capacity", stats.StatusQueueCapacity)
	}
}
