package observability

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonitor_Refresh_Reads_Gauges(t *testing.T) {
	req := require.New(t)
	monitor := NewMonitor(slog.Default(), Gauges{
		Connections:       func() int { return 3 },
		OnlineUsers:       func() int { return 2 },
		StatusQueue:       func() (int, int) { return 5, 1024 },
		BroadcastFailures: func() uint64 { return 7 },
	})

	// Given nothing sampled yet
	req.Zero(monitor.Latest().Connections)

	// When a sample is taken
	stats := monitor.Refresh()

	// Then gauges are read and missing ones are zero
	req.Equal(3, stats.Connections)
	req.Equal(2, stats.OnlineUsers)
	req.Zero(stats.CacheEntries)
	req.Equal(5, stats.StatusQueueLength)
	req.Equal(1024, stats.StatusQueueCapacity)
	req.Equal(uint64(7), stats.BroadcastFailures)
	req.False(stats.SampledAt.IsZero())
	req.Equal(stats, monitor.Latest())
	req.Equal(3, monitor.Map()["Connections"])
}
