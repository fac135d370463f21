package middleware

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/agent-mux/agent-mux/mux"
)

// cacheEntry pairs a stored result with its timing bookkeeping.
type cacheEntry struct {
	value          *mux.Result
	insertedAt     time.Time
	lastAccessedAt time.Time
}

// CachingMiddleware short-circuits repeated messages with the stored
// result. Entries are keyed by a stable fingerprint over sender,
// category, subject, and content; recency ordering comes from an LRU
// bounded at maxEntries, and expiry is measured against the injected
// clock. A single key's computation may run twice under race; the last
// completed write wins.
type CachingMiddleware struct {
	mu    sync.Mutex
	lru   *simplelru.LRU[uint64, *cacheEntry]
	ttl   time.Duration
	clock mux.Clock
}

// NewCaching creates a caching middleware holding at most maxEntries
// results for at most ttl each.
func NewCaching(ttl time.Duration, maxEntries int, clock mux.Clock) *CachingMiddleware {
	if clock == nil {
		clock = mux.SystemClock()
	}
	lru, err := simplelru.NewLRU[uint64, *cacheEntry](maxEntries, nil)
	if err != nil {
		panic(err) // only fails for maxEntries < 1
	}
	return &CachingMiddleware{lru: lru, ttl: ttl, clock: clock}
}

// Middleware returns the pipeline function.
func (c *CachingMiddleware) Middleware() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		key := fingerprint(msg)
		now := c.clock.Now()

		c.mu.Lock()
		if entry, ok := c.lru.Get(key); ok {
			if now.Sub(entry.insertedAt) < c.ttl {
				entry.lastAccessedAt = now
				cached := entry.value
				c.mu.Unlock()
				return cached, nil
			}
			c.lru.Remove(key)
		}
		c.mu.Unlock()

		res, err := next(ctx, msg)
		if err != nil {
			return res, err
		}

		c.mu.Lock()
		c.lru.Add(key, &cacheEntry{value: res, insertedAt: now, lastAccessedAt: now})
		c.mu.Unlock()
		return res, nil
	}
}

// Len returns the number of cached entries.
func (c *CachingMiddleware) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear drops every cached entry.
func (c *CachingMiddleware) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// CleanupExpired removes all entries whose age has reached the ttl in a
// single pass. Safe on an empty cache.
func (c *CachingMiddleware) CleanupExpired() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok {
			if now.Sub(entry.insertedAt) >= c.ttl {
				c.lru.Remove(key)
				removed++
			}
		}
	}
	return removed
}

// fingerprint hashes the identifying message fields with length-prefixed
// writes, so ("ab","c") and ("a","bc") never collide.
func fingerprint(msg *mux.Message) uint64 {
	h := fnv.New64a()
	var lenBuf [8]byte
	for _, field := range []string{msg.SenderID, msg.Category, msg.Subject, msg.Content} {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(field)))
		h.Write(lenBuf[:])
		h.Write([]byte(field))
	}
	return h.Sum64()
}
