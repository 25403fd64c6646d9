// Package cache provides the Redis-backed answer cache.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds the Redis connection and expiry settings.
type Config struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`

	// TTL bounds how long a cached answer stays valid.
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	MaxRetries   int `yaml:"max_retries" json:"max_retries"`
	PoolSize     int `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// DefaultConfig returns the default cache settings.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DB:           0,
		TTL:          10 * time.Minute,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// AnswerCache stores generated answers in Redis keyed by a digest of the
// normalized query. Lookups are best effort: a Redis failure is logged and
// reported as a miss rather than surfaced to the request path.
type AnswerCache struct {
	redis  *redis.Client
	config Config
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewAnswerCache connects to Redis and verifies the connection with a ping.
func NewAnswerCache(config Config, logger *zap.Logger) (*AnswerCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c := &AnswerCache{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "answer_cache")),
	}

	c.logger.Info("answer cache initialized",
		zap.String("addr", config.Addr),
		zap.Duration("ttl", config.TTL),
	)

	return c, nil
}

// Get looks up a cached answer for the query. A miss, a closed cache, and a
// Redis error all report false.
func (c *AnswerCache) Get(ctx context.Context, query string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return "", false
	}

	val, err := c.redis.Get(ctx, Key(query)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Warn("cache get failed", zap.Error(err))
		return "", false
	}

	return val, true
}

// Set stores the answer under the query's digest with the configured TTL.
// Failures are logged and swallowed so a dead Redis never fails a request.
func (c *AnswerCache) Set(ctx context.Context, query, answer string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}

	if err := c.redis.Set(ctx, Key(query), answer, c.config.TTL).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.Error(err))
	}
}

// Ping checks the Redis connection.
func (c *AnswerCache) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("answer cache is closed")
	}

	return c.redis.Ping(ctx).Err()
}

// Close shuts down the Redis client. Subsequent Get and Set calls are no-ops.
func (c *AnswerCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.logger.Info("closing answer cache")

	return c.redis.Close()
}

// Key derives the Redis key for a query. Queries are lowercased and trimmed
// first so trivially different phrasings of the same question share an entry.
func Key(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return "apibrowse:answer:" + hex.EncodeToString(sum[:])
}
