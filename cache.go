package sbeams

import (
	"sync"
	"time"
)

// CacheKey identifies one privilege computation: a user acting under a work
// group, over a table group. Membership level caps are per user, so the user
// is part of the key.
type CacheKey struct {
	User       string
	WorkGroup  string
	TableGroup string
}

// Cache stores resolved privilege levels.
// Implementations must be safe for concurrent use.
//
// PrivilegeNone results are cached like any other level; a denied lookup
// is as expensive as a granted one.
type Cache interface {
	// Get returns the cached level and whether it was found.
	Get(key CacheKey) (PrivilegeLevel, bool)

	// Set stores a level.
	Set(key CacheKey, level PrivilegeLevel)
}

type cacheEntry struct {
	level     PrivilegeLevel
	expiresAt time.Time // zero means no expiry
}

// CacheImpl is the default in-memory cache with optional TTL.
//
// The cache grows unbounded within its TTL window. Grant tables change only
// through administrative edits, so a TTL of minutes is typical; call Clear
// after editing grants in-process.
type CacheImpl struct {
	mu    sync.RWMutex
	items map[CacheKey]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

// CacheOption configures a CacheImpl.
type CacheOption func(*CacheImpl)

// WithTTL sets the time-to-live for cache entries.
// A TTL of 0 (default) means entries never expire.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CacheImpl) {
		c.ttl = ttl
	}
}

// withClock replaces time.Now, for tests.
func withClock(now func() time.Time) CacheOption {
	return func(c *CacheImpl) {
		c.now = now
	}
}

// NewCache creates a new privilege cache.
func NewCache(opts ...CacheOption) *CacheImpl {
	c := &CacheImpl{
		items: make(map[CacheKey]cacheEntry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements Cache.
func (c *CacheImpl) Get(key CacheKey) (PrivilegeLevel, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return PrivilegeNone, false
	}

	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return PrivilegeNone, false
	}

	return entry.level, true
}

// Set implements Cache.
func (c *CacheImpl) Set(key CacheKey, level PrivilegeLevel) {
	entry := cacheEntry{level: level}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.items[key] = entry
	c.mu.Unlock()
}

// Size returns the number of entries in the cache.
func (c *CacheImpl) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries, e.g. after grants were edited.
func (c *CacheImpl) Clear() {
	c.mu.Lock()
	c.items = make(map[CacheKey]cacheEntry)
	c.mu.Unlock()
}

var _ Cache = (*CacheImpl)(nil)
