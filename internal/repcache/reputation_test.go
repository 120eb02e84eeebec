package repcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox-janitor-go/internal/model"
)

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("cache down")
}
func (failingCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("cache down")
}
func (failingCache) Delete(ctx context.Context, key string) error {
	return errors.New("cache down")
}

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	value, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(10)
	ctx := context.Background()

	base := time.Now()
	c.now = func() time.Time { return base }
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCacheBoundedEviction(t *testing.T) {
	c := NewMemoryCache(3)
	ctx := context.Background()

	base := time.Now()
	c.now = func() time.Time { return base }

	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, c.Set(ctx, "b", "1", time.Hour))
	require.NoError(t, c.Set(ctx, "c", "1", time.Hour))
	require.NoError(t, c.Set(ctx, "d", "1", time.Hour))

	assert.Equal(t, 3, c.Len())

	// "a" expires soonest and is the eviction victim.
	_, found, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReputationStoreAndLookup(t *testing.T) {
	r := NewReputation(NewMemoryCache(10), DefaultOptions())
	ctx := context.Background()

	r.Store(ctx, "u1", "News@Acme.com", model.CategoryNewsletter, 0.91, model.SourceLLM)

	// Lookups are case-insensitive on the sender address.
	entry, decayed, found := r.Lookup(ctx, "u1", "news@acme.com")
	require.True(t, found)
	assert.Equal(t, model.CategoryNewsletter, entry.Category)
	assert.InDelta(t, 0.91, decayed, 0.001)
	assert.True(t, r.Reusable(decayed))
}

func TestReputationIsolatedPerUser(t *testing.T) {
	r := NewReputation(NewMemoryCache(10), DefaultOptions())
	ctx := context.Background()

	r.Store(ctx, "u1", "news@acme.com", model.CategoryNewsletter, 0.91, model.SourceLLM)

	_, _, found := r.Lookup(ctx, "u2", "news@acme.com")
	assert.False(t, found)
}

func TestReputationNeverStoresCacheSource(t *testing.T) {
	r := NewReputation(NewMemoryCache(10), DefaultOptions())
	ctx := context.Background()

	r.Store(ctx, "u1", "news@acme.com", model.CategoryNewsletter, 0.91, model.SourceCache)

	_, _, found := r.Lookup(ctx, "u1", "news@acme.com")
	assert.False(t, found)
}

func TestDecayedConfidence(t *testing.T) {
	r := NewReputation(NewMemoryCache(10), DefaultOptions())
	base := time.Now()
	r.now = func() time.Time { return base }

	entry := model.SenderCacheEntry{
		Category:   model.CategoryMarketing,
		Confidence: 0.90,
		CachedAt:   base.Add(-10 * 24 * time.Hour),
	}

	// 10 days at 0.01/day.
	assert.InDelta(t, 0.80, r.DecayedConfidence(entry), 0.001)
	assert.True(t, r.Reusable(r.DecayedConfidence(entry)))

	// 15 days drops below the reuse threshold.
	entry.CachedAt = base.Add(-15 * 24 * time.Hour)
	decayed := r.DecayedConfidence(entry)
	assert.InDelta(t, 0.75, decayed, 0.001)
	assert.False(t, r.Reusable(decayed))
}

func TestDecayCapped(t *testing.T) {
	r := NewReputation(NewMemoryCache(10), DefaultOptions())
	base := time.Now()
	r.now = func() time.Time { return base }

	entry := model.SenderCacheEntry{
		Confidence: 0.95,
		CachedAt:   base.Add(-200 * 24 * time.Hour),
	}

	// Decay caps at 0.30 no matter the age.
	assert.InDelta(t, 0.65, r.DecayedConfidence(entry), 0.001)
}

func TestDecayMonotone(t *testing.T) {
	r := NewReputation(NewMemoryCache(10), DefaultOptions())
	base := time.Now()
	r.now = func() time.Time { return base }

	prev := 1.0
	for days := 0; days <= 60; days += 5 {
		entry := model.SenderCacheEntry{
			Confidence: 0.90,
			CachedAt:   base.Add(-time.Duration(days) * 24 * time.Hour),
		}
		decayed := r.DecayedConfidence(entry)
		assert.LessOrEqual(t, decayed, prev, "decay must be monotone in age")
		prev = decayed
	}
}

func TestLookupCacheOutageDegrades(t *testing.T) {
	r := NewReputation(failingCache{}, DefaultOptions())

	_, _, found := r.Lookup(context.Background(), "u1", "news@acme.com")
	assert.False(t, found)
}

func TestLookupCorruptEntryDropped(t *testing.T) {
	c := NewMemoryCache(10)
	r := NewReputation(c, DefaultOptions())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, cacheKey("u1", "news@acme.com"), "{not json", time.Minute))

	_, _, found := r.Lookup(ctx, "u1", "news@acme.com")
	assert.False(t, found)
	assert.Equal(t, 0, c.Len())
}
