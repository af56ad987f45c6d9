// Package cache holds the TTL-bounded copies of the backend collections that
// act as the source of truth between refreshes.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
)

// Well-known collection keys. They live in the collection TTL class; every
// other key is generic.
const (
	KeyCategories = "categories"
	KeyContainers = "containers"
)

// Entry is a cached payload and the time it was fetched.
type Entry struct {
	Payload   any
	FetchedAt time.Time
}

// Observer is notified of every lookup.
type Observer interface {
	CacheLookup(key string, hit bool)
}

// Options configures TTLs and capacity.
type Options struct {
	CollectionTTL time.Duration
	GenericTTL    time.Duration
	Size          int
}

// DefaultOptions returns 60s for collections and 30s for everything else.
func DefaultOptions() Options {
	return Options{
		CollectionTTL: 60 * time.Second,
		GenericTTL:    30 * time.Second,
		Size:          256,
	}
}

// Cache is a TTL store with explicit invalidation. Each key carries an
// epoch that advances on invalidation so a fetch started before an
// invalidation can never write its result back.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu          sync.Mutex
	collections *expirable.LRU[string, Entry]
	generic     *expirable.LRU[string, Entry]
	ttls        Options
	epochs      map[string]uint64
	base        uint64
	clock       clockwork.Clock
	observer    Observer
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock sets the clock used to stamp entries.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithObserver reports hits and misses.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// New creates a Cache.
func New(opts Options, options ...Option) *Cache {
	def := DefaultOptions()
	if opts.CollectionTTL <= 0 {
		opts.CollectionTTL = def.CollectionTTL
	}
	if opts.GenericTTL <= 0 {
		opts.GenericTTL = def.GenericTTL
	}
	if opts.Size <= 0 {
		opts.Size = def.Size
	}

	c := &Cache{
		collections: expirable.NewLRU[string, Entry](opts.Size, nil, opts.CollectionTTL),
		generic:     expirable.NewLRU[string, Entry](opts.Size, nil, opts.GenericTTL),
		ttls:        opts,
		epochs:      make(map[string]uint64),
		clock:       clockwork.NewRealClock(),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

func (c *Cache) store(key string) *expirable.LRU[string, Entry] {
	if key == KeyCategories || key == KeyContainers {
		return c.collections
	}
	return c.generic
}

func (c *Cache) ttl(key string) time.Duration {
	if key == KeyCategories || key == KeyContainers {
		return c.ttls.CollectionTTL
	}
	return c.ttls.GenericTTL
}

// Get returns the entry for key if it is fresh, meaning less than the key's
// TTL has passed on the cache clock since FetchedAt. The LRU's own expiry
// only bounds memory. A forced lookup always misses.
func (c *Cache) Get(key string, force bool) (Entry, bool) {
	var (
		entry Entry
		ok    bool
	)
	if !force {
		entry, ok = c.store(key).Get(key)
		if ok && c.clock.Since(entry.FetchedAt) >= c.ttl(key) {
			c.store(key).Remove(key)
			entry, ok = Entry{}, false
		}
	}
	if c.observer != nil {
		c.observer.CacheLookup(key, ok)
	}
	return entry, ok
}

// Set stores payload stamped with the current time.
func (c *Cache) Set(key string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key).Add(key, Entry{Payload: payload, FetchedAt: c.clock.Now()})
}

// Epoch returns the current epoch for key. Capture it before fetching and
// pass it to SetIfCurrent.
func (c *Cache) Epoch(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base + c.epochs[key]
}

// SetIfCurrent stores payload only if key has not been invalidated since
// epoch was read. fetchedAt should be the time the fetch was issued; zero
// means now.
func (c *Cache) SetIfCurrent(key string, epoch uint64, payload any, fetchedAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base+c.epochs[key] != epoch {
		return false
	}
	if fetchedAt.IsZero() {
		fetchedAt = c.clock.Now()
	}
	c.store(key).Add(key, Entry{Payload: payload, FetchedAt: fetchedAt})
	return true
}

// Invalidate drops keys immediately, independent of TTL.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.store(key).Remove(key)
		c.epochs[key]++
	}
}

// InvalidateAll drops every entry in both TTL classes.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections.Purge()
	c.generic.Purge()
	c.base++
}

// Lookup is Get with the payload asserted to T. A payload of another type
// counts as a miss.
func Lookup[T any](c *Cache, key string, force bool) (T, time.Time, bool) {
	var zero T
	entry, ok := c.Get(key, force)
	if !ok {
		return zero, time.Time{}, false
	}
	v, ok := entry.Payload.(T)
	if !ok {
		return zero, time.Time{}, false
	}
	return v, entry.FetchedAt, true
}
