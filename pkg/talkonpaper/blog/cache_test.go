package blog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(time.Minute)
	cache.now = func() time.Time { return now }

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, []Post{{Slug: "a"}}))

	posts, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", posts[0].Slug)

	posts[0].Slug = "mutated"
	posts, _, _ = cache.Get(ctx)
	assert.Equal(t, "a", posts[0].Slug)

	now = now.Add(time.Minute)
	_, ok, _ = cache.Get(ctx)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, []Post{{Slug: "b"}}))
	require.NoError(t, cache.Invalidate(ctx))
	_, ok, _ = cache.Get(ctx)
	assert.False(t, ok)
}

func TestNewMemoryCacheDefaultsTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewMemoryCache(0).ttl)
}

// TestRedisCache needs a disposable Redis.
// REDIS_TEST_URL=redis://localhost:6379/15
func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("Skipping Redis integration test. Set REDIS_TEST_URL to run.")
	}
	ctx := context.Background()

	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	cache := NewRedisCache(client, "talkonpaper:test:blog", time.Minute)
	require.NoError(t, cache.Invalidate(ctx))

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Set(ctx, []Post{{Slug: "welcome", Date: date, Tags: []string{"research"}}}))

	posts, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, posts, 1)
	assert.Equal(t, "welcome", posts[0].Slug)
	assert.True(t, date.Equal(posts[0].Date))

	loader := New(t.TempDir(), WithCache(cache))
	_, err = loader.Reload(ctx)
	require.NoError(t, err)
	posts, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, posts)

	require.NoError(t, cache.Invalidate(ctx))
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}
