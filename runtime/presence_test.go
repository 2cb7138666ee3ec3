package runtime

import (
	"chat-hub/domain"
	"fmt"
	"math/rand/v2"
	goruntime "runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresence_First_And_Last_Connection(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()

	// When alice connects twice and disconnects twice
	req.Equal(domain.BecameOnline, presence.OnConnect(1, "c1"))
	req.Equal(domain.AlreadyOnline, presence.OnConnect(1, "c2"))
	req.True(presence.IsOnline(1))
	req.ElementsMatch([]domain.ConnectionID{"c1", "c2"}, presence.Connections(1))

	req.Equal(domain.StillOnline, presence.OnDisconnect(1, "c1"))
	req.True(presence.IsOnline(1))
	req.Equal(domain.BecameOffline, presence.OnDisconnect(1, "c2"))

	// Then alice is gone and her key removed
	req.False(presence.IsOnline(1))
	req.Empty(presence.Connections(1))
	req.Zero(presence.OnlineCount())
}

func TestPresence_Disconnect_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	presence.OnConnect(1, "c1")

	// When a connection never seen disconnects, for a known and an unknown user
	req.Equal(domain.StillOnline, presence.OnDisconnect(1, "other"))
	req.Equal(domain.StillOnline, presence.OnDisconnect(2, "c9"))

	// Then alice is untouched and nobody went offline
	req.True(presence.IsOnline(1))
	req.Equal(1, presence.OnlineCount())
}

func TestPresence_Concurrent_Transitions_Happen_Once(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	const connections = 200

	var online, offline atomic.Int32
	var wg sync.WaitGroup

	// When many connections of the same user come and go concurrently
	for i := 0; i < connections; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := domain.ConnectionID(fmt.Sprintf("c%d", i))
			if presence.OnConnect(7, connID) == domain.BecameOnline {
				online.Add(1)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < connections; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := domain.ConnectionID(fmt.Sprintf("c%d", i))
			if presence.OnDisconnect(7, connID) == domain.BecameOffline {
				offline.Add(1)
			}
		}(i)
	}
	wg.Wait()

	// Then exactly one online and one offline transition were observed
	req.Equal(int32(1), online.Load())
	req.Equal(int32(1), offline.Load())
	req.False(presence.IsOnline(7))
}

func TestPresence_Interleaved_Transitions_Match_Zero_Crossings(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	const connections, rounds = 16, 200

	var online, offline, live int
	var violations []string
	apply := func(connID domain.ConnectionID, connect bool) {
		presence.Serialize(7, func() {
			if connect {
				wasEmpty := live == 0
				live++
				if transition := presence.OnConnect(7, connID); (transition == domain.BecameOnline) != wasEmpty {
					violations = append(violations, fmt.Sprintf("%s connect at %d live: %s", connID, live-1, transition))
				} else if wasEmpty {
					online++
				}
				return
			}
			live--
			if transition := presence.OnDisconnect(7, connID); (transition == domain.BecameOffline) != (live == 0) {
				violations = append(violations, fmt.Sprintf("%s disconnect at %d live: %s", connID, live, transition))
			} else if live == 0 {
				offline++
			}
		})
	}

	// When connects and disconnects of the same user overlap in random order
	var wg sync.WaitGroup
	for i := 0; i < connections; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := domain.ConnectionID(fmt.Sprintf("c%d", i))
			for r := 0; r < rounds; r++ {
				apply(connID, true)
				for n := rand.IntN(3); n > 0; n-- {
					goruntime.Gosched()
				}
				apply(connID, false)
			}
			if i == 0 {
				apply(connID, true)
			}
		}(i)
	}
	wg.Wait()

	// Then every transition matched a 0 to n or n to 0 crossing
	req.Empty(violations)
	req.Positive(online)
	req.Equal(online-1, offline)
	req.True(presence.IsOnline(7))
	req.Equal([]domain.ConnectionID{"c0"}, presence.Connections(7))
}

func TestPresence_Interleaved_Connects_And_Disconnects_Balance(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	const connections, rounds = 16, 200

	var online, offline atomic.Int32
	var wg sync.WaitGroup

	// When unsynchronized callers connect and disconnect the same user at random
	for i := 0; i < connections; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := domain.ConnectionID(fmt.Sprintf("c%d", i))
			for r := 0; r < rounds; r++ {
				if presence.OnConnect(3, connID) == domain.BecameOnline {
					online.Add(1)
				}
				if rand.IntN(2) == 0 {
					goruntime.Gosched()
				}
				if presence.OnDisconnect(3, connID) == domain.BecameOffline {
					offline.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	// Then each online transition was closed by exactly one offline transition
	req.Positive(online.Load())
	req.Equal(online.Load(), offline.Load())
	req.False(presence.IsOnline(3))
	req.Zero(presence.OnlineCount())
}
