package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmgilman/go/errors"
	"golang.org/x/sync/singleflight"

	"github.com/leonardcser/folio-mcp/internal/logger"
)

// DefaultTTL applies when GetOrFetch is called with ttl <= 0 and no
// WithDefaultTTL option was given.
const DefaultTTL = 30 * time.Minute

// AllowStaleOnError is the default stale-over-nothing policy: when a refresh
// fails and an expired entry exists, the expired value is served instead of
// the error.
const AllowStaleOnError = true

type entry struct {
	value    any
	storedAt time.Time
}

// Cache is a process-scoped in-memory TTL cache that deduplicates concurrent
// fetches per key. It is safe for concurrent use by multiple goroutines.
//
// Entries are replaced wholesale on refresh and never mutated in place.
// Nothing is persisted; a new process starts with an empty cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	// gens counts invalidations per key. A flight only stores its result
	// when the key's generation is unchanged since the flight started.
	gens map[string]uint64
	// flying counts running fetches per key.
	flying     map[string]int
	inflight   singleflight.Group
	defaultTTL time.Duration
	allowStale bool
	now        func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithDefaultTTL sets the freshness window used when callers pass ttl <= 0.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithStaleOnError overrides the AllowStaleOnError policy.
func WithStaleOnError(allow bool) Option {
	return func(c *Cache) { c.allowStale = allow }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]entry),
		gens:       make(map[string]uint64),
		flying:     make(map[string]int),
		defaultTTL: DefaultTTL,
		allowStale: AllowStaleOnError,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the value cached under key if it is at most ttl old.
// Otherwise it calls fetch, joining an in-flight call for the same key when
// there is one, so at most one fetch per key runs at a time.
//
// A successful fetch is stored with the current time. A failed fetch falls
// back to the previous (expired) value when the stale policy allows it.
//
// If ctx is cancelled while waiting, GetOrFetch returns ctx.Err() but the
// fetch keeps running and still populates the cache. A fetch that overlaps an
// invalidation of its key returns its value to its waiters without storing it.
func GetOrFetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if v, ok := lookup[T](c, key, ttl); ok {
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(key, func() (any, error) {
		// A flight that finished between our lookup and DoChan already
		// stored a fresh value.
		if v, ok := lookup[T](c, key, ttl); ok {
			return v, nil
		}
		gen := c.begin(key)
		defer c.end(key)
		v, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		if !c.store(key, v, gen) {
			logger.Debugf("cache: %s was invalidated during fetch, result not stored", key)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if c.allowStale {
				if v, ok := lookup[T](c, key, -1); ok {
					logger.Warnf("cache: refresh of %s failed, serving stale value: %v", key, res.Err)
					return v, nil
				}
			}
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, errors.Newf(errors.CodeInternal, "cache: value for %q has type %T", key, res.Val)
		}
		return v, nil
	}
}

// lookup returns the entry for key if it holds a T no older than ttl.
// A negative ttl accepts an entry of any age.
func lookup[T any](c *Cache, key string, ttl time.Duration) (T, bool) {
	var zero T
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	v, ok := e.value.(T)
	if !ok {
		return zero, false
	}
	if ttl >= 0 && c.now().Sub(e.storedAt) > ttl {
		return zero, false
	}
	return v, true
}

// begin registers a running fetch for key and returns the key's generation.
func (c *Cache) begin(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flying[key]++
	return c.gens[key]
}

func (c *Cache) end(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flying[key]--; c.flying[key] <= 0 {
		delete(c.flying, key)
	}
}

// store saves value under key unless key was invalidated after generation
// gen was read. It reports whether the value was stored.
func (c *Cache) store(key string, value any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return false
	}
	c.entries[key] = entry{value: value, storedAt: c.now()}
	return true
}

// evictLocked drops the entries for which match reports true, bumps their
// generation along with that of every matching in-flight key, and returns
// the removed entry count and the keys to detach from singleflight.
// c.mu must be held.
func (c *Cache) evictLocked(match func(string) bool) (int, []string) {
	var removed int
	var touched []string
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
			removed++
			c.gens[k]++
			touched = append(touched, k)
		}
	}
	for k := range c.flying {
		if match(k) {
			c.gens[k]++
			touched = append(touched, k)
		}
	}
	return removed, touched
}

func (c *Cache) evict(match func(string) bool) int {
	c.mu.Lock()
	removed, touched := c.evictLocked(match)
	c.mu.Unlock()
	for _, k := range touched {
		c.inflight.Forget(k)
	}
	return removed
}

// Invalidate drops the entry for key. It reports whether an entry existed.
// A fetch already in flight for key is detached so the next caller starts a
// new one, and its result is discarded.
func (c *Cache) Invalidate(key string) bool {
	return c.evict(func(k string) bool { return k == key }) > 0
}

// InvalidatePrefix drops every entry whose key starts with prefix and
// returns how many were removed. In-flight fetches for matching keys are
// detached and their results discarded.
func (c *Cache) InvalidatePrefix(prefix string) int {
	return c.evict(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

// Clear drops every entry and returns how many were removed. In-flight
// fetches are detached and their results discarded.
func (c *Cache) Clear() int {
	return c.evict(func(string) bool { return true })
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the stored keys in lexical order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
