package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisConfig configures the shared cache client
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// NewRedisClient creates a Redis client and verifies connectivity
func NewRedisClient(config RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.DB > 0 {
		opts.DB = config.DB
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// RedisCache stores JSON-encoded values in Redis under prefix:key.
// Redis failures are logged and reported as misses; the cache never fails
// the caller.
type RedisCache[K comparable, V any] struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	log     *logrus.Logger
	metrics *metrics
}

// NewRedisCache creates a Redis-backed cache
func NewRedisCache[K comparable, V any](client *redis.Client, prefix string, ttl time.Duration, log *logrus.Logger) *RedisCache[K, V] {
	if log == nil {
		log = logrus.New()
	}
	return &RedisCache[K, V]{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		log:     log,
		metrics: &metrics{},
	}
}

func (c *RedisCache[K, V]) key(k K) string {
	return fmt.Sprintf("%s:%v", c.prefix, k)
}

// Get retrieves a cached value
func (c *RedisCache[K, V]) Get(ctx context.Context, k K) (V, bool) {
	var value V
	key := c.key(k)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.metrics.recordMiss()
		return value, false
	} else if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("redis get failed")
		c.metrics.recordMiss()
		return value, false
	}

	if err := json.Unmarshal(data, &value); err != nil {
		// If unmarshal fails, delete corrupt data
		c.client.Del(ctx, key)
		c.log.WithError(err).WithField("key", key).Warn("dropping corrupt cache entry")
		c.metrics.recordMiss()
		return value, false
	}

	c.metrics.recordHit()
	return value, true
}

// Set stores a value
func (c *RedisCache[K, V]) Set(ctx context.Context, k K, value V) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.WithError(err).Warn("failed to marshal cache entry")
		return
	}
	if err := c.client.Set(ctx, c.key(k), data, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", c.key(k)).Warn("redis set failed")
	}
}

// Delete removes a cached value
func (c *RedisCache[K, V]) Delete(ctx context.Context, k K) {
	if err := c.client.Del(ctx, c.key(k)).Err(); err != nil {
		c.log.WithError(err).WithField("key", c.key(k)).Warn("redis delete failed")
	}
}

// Stats returns cache statistics
func (c *RedisCache[K, V]) Stats() Stats {
	return c.metrics.stats(0)
}
