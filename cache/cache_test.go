package cache

import (
	"chat-hub/domain"
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache() (*Cache, *clock) {
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(4)
	c.now = clk.Now
	return c, clk
}

func TestCache_Entry_Expires(t *testing.T) {
	req := require.New(t)
	c, clk := newTestCache()

	// Given a user cached for ten minutes
	c.Set(UserKey(1), "alice", 10*time.Minute)

	// Then it is served until its ttl passed
	clk.Advance(10 * time.Minute)
	v, ok := c.Get(UserKey(1))
	req.True(ok)
	req.Equal("alice", v)

	clk.Advance(time.Nanosecond)
	_, ok = c.Get(UserKey(1))
	req.False(ok)

	// And the janitor reclaims it
	req.Equal(1, c.Purge())
	req.Zero(c.Len())
}

func TestCache_Zero_TTL_Is_Not_Stored(t *testing.T) {
	req := require.New(t)
	c, _ := newTestCache()

	c.Set("k", 1, 0)

	_, ok := c.Get("k")
	req.False(ok)
}

func TestCache_InvalidatePrefix_Respects_Separator(t *testing.T) {
	req := require.New(t)
	c, _ := newTestCache()
	c.Set(ChatMessagesKey(1, 1, 50), "a", time.Minute)
	c.Set(ChatMessagesKey(1, 2, 50), "b", time.Minute)
	c.Set(ChatMessagesKey(10, 1, 50), "c", time.Minute)

	// When chat 1's pages are dropped
	removed := c.InvalidatePrefix(ChatMessagesPrefix(1))

	// Then chat 10 is untouched
	req.Equal(2, removed)
	_, ok := c.Get(ChatMessagesKey(10, 1, 50))
	req.True(ok)
}

func TestReadThrough_Loads_Once_Then_Serves_Cache(t *testing.T) {
	req := require.New(t)
	c, _ := newTestCache()
	ctx := context.Background()
	var loads atomic.Int32
	loader := func(context.Context) ([]domain.Chat, error) {
		loads.Add(1)
		return []domain.Chat{{ID: 1}}, nil
	}

	first, err := ReadThrough(ctx, c, UserChatsKey(1), time.Minute, loader)
	req.NoError(err)
	second, err := ReadThrough(ctx, c, UserChatsKey(1), time.Minute, loader)
	req.NoError(err)

	req.Equal(first, second)
	req.Equal(int32(1), loads.Load())
}

func TestReadThrough_Error_Is_Not_Cached(t *testing.T) {
	req := require.New(t)
	c, _ := newTestCache()
	ctx := context.Background()
	boom := stderrors.New("boom")

	_, err := ReadThrough(ctx, c, UserKey(1), time.Minute, func(context.Context) (domain.User, error) {
		return domain.User{}, boom
	})
	req.ErrorIs(err, boom)
	req.Zero(c.Len())
}

func TestReadThrough_Invalidation_During_Load_Is_Not_Overwritten(t *testing.T) {
	req := require.New(t)
	c, _ := newTestCache()
	ctx := context.Background()
	key := UserChatsKey(1)

	loading := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	// Given a slow load that read the store before a write happened
	go func() {
		defer close(done)
		_, _ = ReadThrough(ctx, c, key, time.Minute, func(context.Context) (string, error) {
			close(loading)
			<-release
			return "stale", nil
		})
	}()
	<-loading

	// When the writer invalidates while the load is still in flight
	c.Invalidate(key)
	close(release)
	<-done

	// Then the stale value never lands in the cache
	_, ok := c.Get(key)
	req.False(ok)

	// And the next read loads fresh data
	v, err := ReadThrough(ctx, c, key, time.Minute, func(context.Context) (string, error) { return "fresh", nil })
	req.NoError(err)
	req.Equal("fresh", v)
}

func TestReadThrough_Concurrent_Misses_Share_A_Load(t *testing.T) {
	req := require.New(t)
	c, _ := newTestCache()
	var loads atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := ReadThrough(context.Background(), c, ChatKey(3), time.Minute, func(context.Context) (int, error) {
				loads.Add(1)
				<-release
				return 3, nil
			})
			req.NoError(err)
			req.Equal(3, v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	req.Equal(int32(1), loads.Load())
	_, ok := c.Get(ChatKey(3))
	req.True(ok)
}

func TestReadThrough_Cancelled_Caller_Does_Not_Fail_Other_Waiters(t *testing.T) {
	req := require.New(t)
	c, _ := newTestCache()
	key := ChatKey(4)
	loading := make(chan struct{})
	release := make(chan struct{})
	var loaderCtxErr atomic.Value

	loader := func(ctx context.Context) (string, error) {
		close(loading)
		<-release
		if ctx.Err() != nil {
			loaderCtxErr.Store(ctx.Err())
		}
		return "chat", nil
	}

	// Given a first caller that started the load
	firstCtx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := ReadThrough(firstCtx, c, key, time.Minute, loader)
		first <- err
	}()
	<-loading

	// And a second caller waiting on the same load
	second := make(chan string, 1)
	go func() {
		v, err := ReadThrough(context.Background(), c, key, time.Minute, loader)
		req.NoError(err)
		second <- v
	}()
	time.Sleep(20 * time.Millisecond)

	// When the first caller goes away before the load completes
	cancel()
	req.ErrorIs(<-first, context.Canceled)
	close(release)

	// Then the second caller still gets the value, from a load that was never cancelled
	req.Equal("chat", <-second)
	req.Nil(loaderCtxErr.Load())
	_, ok := c.Get(key)
	req.True(ok)
}

func TestReadThrough_Shared_Load_Is_Bounded(t *testing.T) {
	req := require.New(t)
	c, _ := newTestCache()
	c.WithLoadTimeout(20 * time.Millisecond)

	_, err := ReadThrough(context.Background(), c, ChatKey(5), time.Minute, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	req.ErrorIs(err, context.DeadlineExceeded)
	_, ok := c.Get(ChatKey(5))
	req.False(ok)
}
