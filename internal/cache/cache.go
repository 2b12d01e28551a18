// Package cache is a thin JSON-over-redis layer for fitted role bundles and
// the latest run outputs. The whole layer is optional: a nil Cache is a
// valid no-op, so runs work identically with no redis configured.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "props-engine"

// Cache handles redis caching for run outputs and role model bundles.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

// New connects to redis at redisURL. An empty URL returns a nil cache, which
// every method treats as a miss.
func New(redisURL string, ttl time.Duration, logger *logrus.Entry) (*Cache, error) {
	if redisURL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = logrus.WithField("component", "cache")
	}
	return &Cache{client: client, ttl: ttl, logger: logger}, nil
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Ping checks connectivity; a nil cache reports healthy-by-absence.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Enabled reports whether a redis backend is attached.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

func key(parts ...string) string {
	k := keyPrefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// SetJSON stores v under the namespaced key with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, name string, v interface{}) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache value %s: %w", name, err)
	}
	if err := c.client.Set(ctx, key(name), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", name).Warn("Cache set failed")
		return err
	}
	return nil
}

// GetJSON loads the named key into dst. The first return is false on a miss.
func (c *Cache) GetJSON(ctx context.Context, name string, dst interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	data, err := c.client.Get(ctx, key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", name).Warn("Cache get failed")
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decoding cache value %s: %w", name, err)
	}
	return true, nil
}
