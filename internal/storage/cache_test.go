package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dpshade/prompthive/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func record(key string) models.Record {
	return models.Record{
		Key:      key,
		Metadata: models.Metadata{ID: key, Description: "d", Tags: []string{"a"}},
		Body:     "body of " + key,
	}
}

func TestCacheTTLBoundary(t *testing.T) {
	const ttl = time.Minute
	eps := time.Millisecond

	t.Run("present just before ttl", func(t *testing.T) {
		clock := newFakeClock()
		c := NewPromptCache(10, ttl, WithClock(clock.Now))
		c.Put("foo", record("foo"))

		clock.Advance(ttl - eps)
		_, ok := c.Get("foo")
		assert.True(t, ok)
	})

	t.Run("absent just after ttl", func(t *testing.T) {
		clock := newFakeClock()
		c := NewPromptCache(10, ttl, WithClock(clock.Now))
		c.Put("foo", record("foo"))

		clock.Advance(ttl + eps)
		_, ok := c.Get("foo")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len(), "expired entry is removed on read")
	})

	t.Run("hit refreshes last access", func(t *testing.T) {
		clock := newFakeClock()
		c := NewPromptCache(10, ttl, WithClock(clock.Now))
		c.Put("foo", record("foo"))

		clock.Advance(ttl - eps)
		_, ok := c.Get("foo")
		require.True(t, ok)
		clock.Advance(ttl - eps)
		_, ok = c.Get("foo")
		assert.True(t, ok)
	})
}

func TestCacheEviction(t *testing.T) {
	clock := newFakeClock()
	c := NewPromptCache(3, time.Hour, WithClock(clock.Now))

	for _, k := range []string{"a", "b", "c"} {
		c.Put(k, record(k))
		clock.Advance(time.Second)
	}
	// touch a so b becomes the oldest
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("d", record("d"))

	assert.Equal(t, 3, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok, "b had the oldest last access")
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestCacheEvictionTieBreaksOnAccessCount(t *testing.T) {
	clock := newFakeClock()
	c := NewPromptCache(2, time.Hour, WithClock(clock.Now))

	c.Put("x", record("x"))
	c.Put("y", record("y"))
	// same timestamp for both; y gets a second access at that same instant
	_, ok := c.Get("y")
	require.True(t, ok)

	c.Put("z", record("z"))

	_, ok = c.Get("x")
	assert.False(t, ok)
	_, ok = c.Get("y")
	assert.True(t, ok)
}

func TestCachePutExistingKeyDoesNotEvict(t *testing.T) {
	c := NewPromptCache(2, time.Hour)
	c.Put("a", record("a"))
	c.Put("b", record("b"))
	c.Put("a", record("a"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestCacheReturnsOwnedCopies(t *testing.T) {
	c := NewPromptCache(2, time.Hour)
	rec := record("a")
	c.Put("a", rec)
	rec.Metadata.Tags[0] = "mutated"

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, got.Metadata.Tags)

	got.Metadata.Tags[0] = "again"
	again, _ := c.Get("a")
	assert.Equal(t, []string{"a"}, again.Metadata.Tags)
}

func TestCacheHitRate(t *testing.T) {
	c := NewPromptCache(10, time.Hour)
	assert.Equal(t, 0.0, c.HitRate())

	c.Put("a", record("a"))
	c.Put("b", record("b"))
	assert.Equal(t, 1.0, c.HitRate())

	c.Get("a")
	c.Get("a")
	// 2 entries over 4 accesses
	assert.Equal(t, 0.5, c.HitRate())

	stats := c.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, uint64(4), stats.Accesses)
	assert.Equal(t, 10, stats.MaxEntries)
}

func TestCacheInvalidateAndClear(t *testing.T) {
	c := NewPromptCache(10, time.Hour)
	c.Put("a", record("a"))
	c.Put("b", record("b"))

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewPromptCache(16, time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				k := fmt.Sprintf("k%d", (i*j)%32)
				if _, ok := c.Get(k); !ok {
					c.Put(k, record(k))
				}
				_ = c.HitRate()
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
}

func TestDirectoryCache(t *testing.T) {
	clock := newFakeClock()
	d := NewDirectoryCache(30*time.Second, WithClock(clock.Now))

	_, ok := d.Get()
	assert.False(t, ok)

	keys := []Key{LocalKey("a"), BankKey("b", "c")}
	d.Put(keys)
	keys[0] = LocalKey("mutated")

	got, ok := d.Get()
	require.True(t, ok)
	assert.Equal(t, []Key{LocalKey("a"), BankKey("b", "c")}, got)

	clock.Advance(31 * time.Second)
	_, ok = d.Get()
	assert.False(t, ok)

	d.Put(keys)
	d.Invalidate()
	_, ok = d.Get()
	assert.False(t, ok)
}
