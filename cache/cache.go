// Package cache is the read-through cache in front of the Persistence Store.
//
// An entry is never served once insertedAt+ttl has passed. Writers remove the
// keys they could have made stale; everything else expires passively.
package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultShards      = 32
	DefaultLoadTimeout = 5 * time.Second
)

type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.insertedAt.Add(e.ttl))
}

// shard owns a slice of the key space. Its generation moves forward on every
// invalidation touching the shard, which lets a load that started earlier
// detect that its result may already be stale.
type shard struct {
	mu         sync.RWMutex
	entries    map[string]entry
	generation uint64
}

type Cache struct {
	shards      []*shard
	loads       singleflight.Group
	loadTimeout time.Duration
	now         func() time.Time
}

func New(shardCount int) *Cache {
	if shardCount <= 0 {
		shardCount = DefaultShards
	}
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]entry)}
	}
	return &Cache{shards: shards, loadTimeout: DefaultLoadTimeout, now: time.Now}
}

// WithLoadTimeout bounds every shared load. Non-positive values are ignored.
func (c *Cache) WithLoadTimeout(d time.Duration) *Cache {
	if d > 0 {
		c.loadTimeout = d
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	return c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
}

// Get returns the value only while it is within its ttl.
func (c *Cache) Get(key string) (any, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, insertedAt: c.now(), ttl: ttl}
}

// Invalidate removes keys and fences any load of them still in flight.
func (c *Cache) Invalidate(keys ...string) {
	for _, key := range keys {
		s := c.shardFor(key)
		s.mu.Lock()
		delete(s.entries, key)
		s.generation++
		s.mu.Unlock()
	}
}

// InvalidatePrefix removes every key starting with prefix and returns how many were dropped.
func (c *Cache) InvalidatePrefix(prefix string) int {
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for key := range s.entries {
			if strings.HasPrefix(key, prefix) {
				delete(s.entries, key)
				removed++
			}
		}
		s.generation++
		s.mu.Unlock()
	}
	return removed
}

// Purge drops expired entries. Expiry is enforced on read, this only reclaims memory.
func (c *Cache) Purge() int {
	now := c.now()
	purged := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			if e.expired(now) {
				delete(s.entries, key)
				purged++
			}
		}
		s.mu.Unlock()
	}
	return purged
}

func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

func (c *Cache) generation(key string) uint64 {
	s := c.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// storeIfCurrent keeps the loaded value only if nothing invalidated the shard
// since the load began.
func (c *Cache) storeIfCurrent(key string, value any, ttl time.Duration, generation uint64) bool {
	if ttl <= 0 {
		return false
	}
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.entries[key] = entry{value: value, insertedAt: c.now(), ttl: ttl}
	return true
}

// ReadThrough serves key from the cache, or calls loader on a miss and caches
// its result for ttl. Loader errors are returned and nothing is cached.
//
// Concurrent misses of the same key share one load. Callers arriving after
// an invalidation never join a load that started before it. The shared load
// runs detached from any single caller: a caller whose ctx is done gets
// ctx.Err() while the others keep waiting for the result.
func ReadThrough[V any](ctx context.Context, c *Cache, key string, ttl time.Duration, loader func(ctx context.Context) (V, error)) (V, error) {
	var zero V
	if cached, ok := c.Get(key); ok {
		if v, ok := cached.(V); ok {
			return v, nil
		}
	}

	generation := c.generation(key)
	flightKey := key + "@" + strconv.FormatUint(generation, 10)
	results := c.loads.DoChan(flightKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		v, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}
		c.storeIfCurrent(key, v, ttl, generation)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(V)
		if !ok {
			return loader(ctx)
		}
		return v, nil
	}
}
