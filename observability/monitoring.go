// Package observability samples the health of a running hub.
package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is one sample of the hub health.
type Stats struct {
	Connections         int       `json:"connections"`
	OnlineUsers         int       `json:"online_users"`
	CacheEntries        int       `json:"cache_entries"`
	StatusQueueLength   int       `json:"status_queue_length"`
	StatusQueueCapacity int       `json:"status_queue_capacity"`
	BroadcastFailures   uint64    `json:"broadcast_failures"`
	AllocMemMb          uint64    `json:"alloc_mem_mb"`
	NumGC               uint32    `json:"num_gc"`
	RSSBytes            uint64    `json:"rss_bytes"`
	CPUPercent          float64   `json:"cpu_percent"`
	SampledAt           time.Time `json:"sampled_at"`
}

// Gauges are read on every sample. A nil gauge reads as zero.
type Gauges struct {
	Connections       func() int
	OnlineUsers       func() int
	CacheEntries      func() int
	StatusQueue       func() (length, capacity int)
	BroadcastFailures func() uint64
}

// Monitor keeps the latest sample. It is safe for concurrent use.
type Monitor struct {
	log    *slog.Logger
	gauges Gauges
	self   *process.Process

	mu     sync.RWMutex
	latest Stats
}

func NewMonitor(log *slog.Logger, gauges Gauges) *Monitor {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process metrics unavailable", "error", err)
		self = nil
	}
	return &Monitor{log: log, gauges: gauges, self: self}
}

// Refresh takes a new sample and keeps it as the latest.
func (m *Monitor) Refresh() Stats {
	stats := Stats{SampledAt: time.Now().UTC()}
	if m.gauges.Connections != nil {
		stats.Connections = m.gauges.Connections()
	}
	if m.gauges.OnlineUsers != nil {
		stats.OnlineUsers = m.gauges.OnlineUsers()
	}
	if m.gauges.CacheEntries != nil {
		stats.CacheEntries = m.gauges.CacheEntries()
	}
	if m.gauges.StatusQueue != nil {
		stats.StatusQueueLength, stats.StatusQueueCapacity = m.gauges.StatusQueue()
	}
	if m.gauges.BroadcastFailures != nil {
		stats.BroadcastFailures = m.gauges.BroadcastFailures()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.AllocMemMb = mem.Alloc / 1024 / 1024
	stats.NumGC = mem.NumGC

	if m.self != nil {
		if info, err := m.self.MemoryInfo(); err == nil {
			stats.RSSBytes = info.RSS
		} else {
			m.log.Debug("Failed to read process memory", "error", err)
		}
		if cpu, err := m.self.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		} else {
			m.log.Debug("Failed to read process cpu", "error", err)
		}
	}

	m.mu.Lock()
	m.latest = stats
	m.mu.Unlock()
	return stats
}

func (m *Monitor) Latest() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Map flattens the latest sample for the inspection page header.
func (m *Monitor) Map() map[string]any {
	s := m.Latest()
	return map[string]any{
		"Connections":  s.Connections,
		"Online":       s.OnlineUsers,
		"CacheEntries": s.CacheEntries,
		"StatusQueue":  s.StatusQueueLength,
		"Failures":     s.BroadcastFailures,
		"AllocMb":      s.AllocMemMb,
		"RSS":          s.RSSBytes,
		"Sampled":      s.SampledAt.Format(time.RFC822),
	}
}
