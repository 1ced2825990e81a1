package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL      = 5 * time.Minute
	DefaultRedisKey = "talkonpaper:blog:posts"
)

// Cache stores the full post list. Get reports false when the entry is
// missing or expired.
type Cache interface {
	Get(ctx context.Context) ([]Post, bool, error)
	Set(ctx context.Context, posts []Post) error
	Invalidate(ctx context.Context) error
}

// MemoryCache keeps posts in process for ttl.
type MemoryCache struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	posts    []Post
	loadedAt time.Time
	loaded   bool
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context) ([]Post, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil, false, nil
	}
	out := make([]Post, len(c.posts))
	copy(out, c.posts)
	return out, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, posts []Post) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = make([]Post, len(posts))
	copy(c.posts, posts)
	c.loadedAt = c.now()
	c.loaded = true
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = nil
	c.loaded = false
	return nil
}

// RedisCache shares the post list between instances.
type RedisCache struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, key string, ttl time.Duration) *RedisCache {
	if key == "" {
		key = DefaultRedisKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, key: key, ttl: ttl}
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context) ([]Post, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", c.key, err)
	}
	var posts []Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, false, fmt.Errorf("unmarshal cache value for %s: %w", c.key, err)
	}
	return posts, true, nil
}

func (c *RedisCache) Set(ctx context.Context, posts []Post) error {
	payload, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", c.key, err)
	}
	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", c.key, err)
	}
	return nil
}
