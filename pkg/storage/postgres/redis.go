package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/storage"
)

// RedisClient handles caching operations
type RedisClient struct {
	client *redis.Client
	config storage.Config
}

// NewRedisClient creates a new Redis client
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{
		client: client,
		config: config,
	}, nil
}

// GetCollection retrieves a cached collection record. A nil result
// with nil error is a cache miss.
func (c *RedisClient) GetCollection(ctx context.Context, id string) (*collections.Collection, error) {
	key := fmt.Sprintf("collection:%s", id)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var record collections.Collection
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		// Corrupt entries are dropped rather than served.
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal collection: %w", err)
	}
	return &record, nil
}

// SetCollection caches a collection record for display reads.
func (c *RedisClient) SetCollection(ctx context.Context, record *collections.Collection) error {
	key := fmt.Sprintf("collection:%s", record.ID)
	ttl := c.config.CacheTTL["collection"]

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// InvalidateCollection removes a collection and its post list from
// cache.
func (c *RedisClient) InvalidateCollection(ctx context.Context, id string) error {
	return c.client.Del(ctx,
		fmt.Sprintf("collection:%s", id),
		fmt.Sprintf("posts:%s", id),
	).Err()
}

// GetPostList retrieves a cached post id list for a collection.
func (c *RedisClient) GetPostList(ctx context.Context, collectionID string) ([]string, error) {
	key := fmt.Sprintf("posts:%s", collectionID)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal post list: %w", err)
	}
	return ids, nil
}

// SetPostList caches the ordered post ids of a collection.
func (c *RedisClient) SetPostList(ctx context.Context, collectionID string, ids []string) error {
	key := fmt.Sprintf("posts:%s", collectionID)
	ttl := c.config.CacheTTL["post_list"]

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal post list: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// InvalidatePostList removes a collection's cached post list.
func (c *RedisClient) InvalidatePostList(ctx context.Context, collectionID string) error {
	return c.client.Del(ctx, fmt.Sprintf("posts:%s", collectionID)).Err()
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetClient returns the underlying Redis client for health checks and
// middleware.
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// Incr increments a counter (for rate limiting)
func (c *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// Expire sets a key's expiration
func (c *RedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.client.Expire(ctx, key, expiration).Err()
}

// SetNX sets a key only if it doesn't exist (for distributed locks)
func (c *RedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, expiration).Result()
}
