package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	hits, misses map[string]int
}

func (o *countingObserver) CacheLookup(key string, hit bool) {
	if hit {
		o.hits[key]++
		return
	}
	o.misses[key]++
}

func TestCache_GetSet(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := New(DefaultOptions(), WithClock(clock))

	_, ok := c.Get(KeyCategories, false)
	assert.False(t, ok)

	c.Set(KeyCategories, []string{"a"})
	entry, ok := c.Get(KeyCategories, false)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, entry.Payload)
	assert.Equal(t, clock.Now(), entry.FetchedAt)
}

func TestCache_ForceAlwaysMisses(t *testing.T) {
	c := New(DefaultOptions())
	c.Set(KeyContainers, 1)

	_, ok := c.Get(KeyContainers, true)
	assert.False(t, ok)

	_, ok = c.Get(KeyContainers, false)
	assert.True(t, ok, "a forced lookup must not evict the entry")
}

func TestCache_InvalidateIsImmediate(t *testing.T) {
	c := New(DefaultOptions())
	c.Set(KeyCategories, 1)
	c.Set(KeyContainers, 2)

	c.Invalidate(KeyCategories)

	_, ok := c.Get(KeyCategories, false)
	assert.False(t, ok)
	_, ok = c.Get(KeyContainers, false)
	assert.True(t, ok)
}

func TestCache_SetIfCurrentRejectsStaleEpoch(t *testing.T) {
	c := New(DefaultOptions())
	epoch := c.Epoch(KeyCategories)

	c.Invalidate(KeyCategories)

	stored := c.SetIfCurrent(KeyCategories, epoch, "stale", time.Now())
	assert.False(t, stored)
	_, ok := c.Get(KeyCategories, false)
	assert.False(t, ok)

	stored = c.SetIfCurrent(KeyCategories, c.Epoch(KeyCategories), "fresh", time.Now())
	assert.True(t, stored)
}

func TestCache_InvalidateAllBumpsEveryEpoch(t *testing.T) {
	c := New(DefaultOptions())
	catEpoch := c.Epoch(KeyCategories)
	genEpoch := c.Epoch("proxy:/api/settings")
	c.Set("proxy:/api/settings", []byte("{}"))

	c.InvalidateAll()

	assert.NotEqual(t, catEpoch, c.Epoch(KeyCategories))
	assert.NotEqual(t, genEpoch, c.Epoch("proxy:/api/settings"))
	_, ok := c.Get("proxy:/api/settings", false)
	assert.False(t, ok)
}

func TestCache_EntriesExpireByClass(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(Options{CollectionTTL: time.Minute, GenericTTL: 30 * time.Second}, WithClock(clock))
	c.Set(KeyContainers, 1)
	c.Set("generic", 2)

	clock.Advance(29 * time.Second)
	_, ok := c.Get("generic", false)
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("generic", false)
	assert.False(t, ok, "generic class expires after 30s")

	_, ok = c.Get(KeyContainers, false)
	assert.True(t, ok)
	clock.Advance(30 * time.Second)
	_, ok = c.Get(KeyContainers, false)
	assert.False(t, ok, "collection class expires after 60s")
}

func TestCache_FreshnessCountsFromFetchIssue(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(Options{CollectionTTL: time.Minute}, WithClock(clock))

	issued := clock.Now()
	epoch := c.Epoch(KeyCategories)
	clock.Advance(50 * time.Second) // slow response
	require.True(t, c.SetIfCurrent(KeyCategories, epoch, "payload", issued))

	clock.Advance(9 * time.Second)
	_, ok := c.Get(KeyCategories, false)
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get(KeyCategories, false)
	assert.False(t, ok)
}

func TestLookup_TypeMismatchIsMiss(t *testing.T) {
	obs := &countingObserver{hits: map[string]int{}, misses: map[string]int{}}
	c := New(DefaultOptions(), WithObserver(obs))
	c.Set(KeyCategories, 42)

	_, _, ok := Lookup[string](c, KeyCategories, false)
	assert.False(t, ok)

	v, _, ok := Lookup[int](c, KeyCategories, false)
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, obs.hits[KeyCategories])
}
