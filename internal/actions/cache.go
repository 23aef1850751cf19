package actions

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// CacheStats holds statistics about cache usage.
type CacheStats struct {
	Hits   int64 // Number of requests served from a completed entry
	Misses int64 // Number of lookup chains started
	Shared int64 // Number of requests that attached to a chain in flight
}

// CacheEvent tells how a GetOrCreate call was served.
type CacheEvent string

const (
	EventHit   CacheEvent = "hit"   // served from a completed entry
	EventMiss  CacheEvent = "miss"  // the caller started the lookup chain
	EventShare CacheEvent = "share" // the caller attached to a chain in flight
)

// Result is the outcome of a resolution delivered through a Cache handle.
type Result struct {
	SHA    string
	Err    error
	Event  CacheEvent
	Shared bool // The result was delivered to more than one caller
}

// Cache maps resolution keys to shared in-flight or completed results so that
// at most one lookup chain runs per key. Failed resolutions are never retained.
type Cache struct {
	mu       sync.Mutex
	resolved map[string]string
	pending  map[string]struct{}
	gen      uint64
	flights  singleflight.Group
	hits     int64
	misses   int64
	shared   int64
}

// NewCache creates a new Cache instance.
func NewCache() *Cache {
	return &Cache{
		resolved: make(map[string]string),
		pending:  make(map[string]struct{}),
	}
}

// GetOrCreate returns a handle on the result for key. If the key was already
// resolved the handle is ready immediately. If a resolution for key is in
// flight the caller attaches to it. Otherwise start is run once in a new
// goroutine. A failed resolution is evicted before any waiter receives it,
// though a caller arriving while the failed flight is still winding down
// attaches to it and receives the same failure.
func (c *Cache) GetOrCreate(key ResolutionKey, start func() (string, error)) <-chan Result {
	k := key.String()

	// The lookup and the flight registration happen under one lock so two
	// first callers can never both start a chain.
	c.mu.Lock()
	if sha, ok := c.resolved[k]; ok {
		c.hits++
		c.mu.Unlock()
		return ready(Result{SHA: sha, Event: EventHit})
	}
	gen := c.gen
	c.pending[k] = struct{}{}
	var started bool
	flight := c.flights.DoChan(k, func() (any, error) {
		started = true
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()

		sha, err := start()

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen {
			// Cleared while in flight: deliver to the waiters but keep nothing.
			return sha, err
		}
		delete(c.pending, k)
		if err != nil {
			return "", err
		}
		c.resolved[k] = sha
		return sha, nil
	})
	c.mu.Unlock()

	out := make(chan Result, 1)
	go func() {
		r := <-flight
		sha, _ := r.Val.(string)
		// started is only written by this caller's own flight function,
		// which returns before the flight delivers.
		event := EventMiss
		if !started {
			event = EventShare
			c.mu.Lock()
			c.shared++
			c.mu.Unlock()
		}
		out <- Result{SHA: sha, Err: r.Err, Event: event, Shared: r.Shared}
	}()
	return out
}

// Get returns the completed resolution for key, if any.
func (c *Cache) Get(key ResolutionKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sha, ok := c.resolved[key.String()]
	return sha, ok
}

// Clear evicts all entries and resets statistics. Lookup chains already in
// flight still deliver to the callers attached to them, but later callers
// start a new chain and the stale result is not retained.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.pending {
		c.flights.Forget(k)
	}
	c.gen++
	c.pending = make(map[string]struct{})
	c.resolved = make(map[string]string)
	c.hits = 0
	c.misses = 0
	c.shared = 0
}

// Len returns the number of completed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resolved)
}

// Stats returns the current cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Hits:   c.hits,
		Misses: c.misses,
		Shared: c.shared,
	}
}

func ready(r Result) <-chan Result {
	ch := make(chan Result, 1)
	ch <- r
	return ch
}
