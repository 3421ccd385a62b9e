package storage

import (
	"sync"
	"time"

	"github.com/dpshade/prompthive/internal/metrics"
	"github.com/dpshade/prompthive/internal/models"
)

// CacheEntry is an owned copy of a record plus its access bookkeeping.
type CacheEntry struct {
	Record       models.Record
	LastAccessed time.Time
	AccessCount  uint64
}

// CacheStats is a point-in-time view of a PromptCache.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Accesses   uint64  `json:"accesses"`
	HitRate    float64 `json:"hit_rate"`
}

// PromptCache is a bounded, TTL-expiring cache of records keyed by storage key.
//
// An entry stays valid while less than ttl has passed since its last access.
// Expired entries are removed lazily by Get. At capacity, Put evicts the
// entry with the oldest (last access, access count).
type PromptCache struct {
	entries    map[string]*CacheEntry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	mu         sync.RWMutex // Get mutates entries, so it takes the write lock
}

// CacheOption configures a cache.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	now func() time.Time
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(o *cacheOptions) { o.now = now }
}

func buildCacheOptions(opts []CacheOption) cacheOptions {
	o := cacheOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewPromptCache creates a new record cache
func NewPromptCache(maxEntries int, ttl time.Duration, opts ...CacheOption) *PromptCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	o := buildCacheOptions(opts)
	return &PromptCache{
		entries:    make(map[string]*CacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        o.now,
	}
}

// Get returns a copy of the cached record and refreshes its access time and count.
func (c *PromptCache) Get(key string) (models.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		metrics.RecordCacheLookup("record", "miss")
		return models.Record{}, false
	}

	now := c.now()
	if now.Sub(entry.LastAccessed) >= c.ttl {
		delete(c.entries, key)
		metrics.RecordCacheLookup("record", "expired")
		return models.Record{}, false
	}

	entry.LastAccessed = now
	entry.AccessCount++
	metrics.RecordCacheLookup("record", "hit")
	return entry.Record.Clone(), true
}

// Put stores a copy of rec. Replacing an existing key never evicts.
func (c *PromptCache) Put(key string, rec models.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}

	c.entries[key] = &CacheEntry{
		Record:       rec.Clone(),
		LastAccessed: c.now(),
		AccessCount:  1,
	}
}

// evictLocked removes the entry with the smallest (LastAccessed, AccessCount).
// Remaining ties go to the smallest key so eviction is deterministic.
func (c *PromptCache) evictLocked() {
	var victim string
	var oldest *CacheEntry
	for k, e := range c.entries {
		if oldest == nil || lessEntry(k, e, victim, oldest) {
			victim, oldest = k, e
		}
	}
	if oldest != nil {
		delete(c.entries, victim)
		metrics.RecordCacheEviction()
	}
}

func lessEntry(ka string, a *CacheEntry, kb string, b *CacheEntry) bool {
	if !a.LastAccessed.Equal(b.LastAccessed) {
		return a.LastAccessed.Before(b.LastAccessed)
	}
	if a.AccessCount != b.AccessCount {
		return a.AccessCount < b.AccessCount
	}
	return ka < kb
}

// Invalidate drops one key.
func (c *PromptCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *PromptCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *PromptCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// HitRate returns entries / total accesses over current entries, or 0 when
// empty. It is not a hit/miss ratio; see the prompthive_cache_lookups_total
// metric for that.
func (c *PromptCache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hitRateLocked()
}

func (c *PromptCache) hitRateLocked() float64 {
	var total uint64
	for _, e := range c.entries {
		total += e.AccessCount
	}
	if total == 0 {
		return 0
	}
	return float64(len(c.entries)) / float64(total)
}

// Stats returns a snapshot of the cache counters.
func (c *PromptCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total uint64
	for _, e := range c.entries {
		total += e.AccessCount
	}
	return CacheStats{
		Entries:    len(c.entries),
		MaxEntries: c.maxEntries,
		Accesses:   total,
		HitRate:    c.hitRateLocked(),
	}
}

// DirectoryCache holds a single TTL-guarded key listing.
type DirectoryCache struct {
	keys     []Key
	storedAt time.Time
	valid    bool
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// NewDirectoryCache creates a new listing cache
func NewDirectoryCache(ttl time.Duration, opts ...CacheOption) *DirectoryCache {
	o := buildCacheOptions(opts)
	return &DirectoryCache{ttl: ttl, now: o.now}
}

// Get returns a copy of the cached listing if it is younger than ttl.
func (d *DirectoryCache) Get() ([]Key, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.valid || d.now().Sub(d.storedAt) >= d.ttl {
		metrics.RecordCacheLookup("listing", "miss")
		return nil, false
	}
	metrics.RecordCacheLookup("listing", "hit")
	return append([]Key(nil), d.keys...), true
}

// Put replaces the cached listing.
func (d *DirectoryCache) Put(keys []Key) {
	d.mu.Lock()
	d.keys = append([]Key(nil), keys...)
	d.storedAt = d.now()
	d.valid = true
	d.mu.Unlock()
}

// Invalidate clears the slot unconditionally.
func (d *DirectoryCache) Invalidate() {
	d.mu.Lock()
	d.keys = nil
	d.valid = false
	d.mu.Unlock()
}
