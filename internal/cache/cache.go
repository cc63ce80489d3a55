/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache shares assembled timelines between replicas through Redis.
// Entries are keyed by the content hash of the planning inputs, so a hit is
// always correct; the TTL only bounds memory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/hydroplan/internal/planning"
	"github.com/friendsincode/hydroplan/internal/telemetry"
)

const (
	// DefaultTimelineTTL bounds how long an unused timeline stays cached.
	DefaultTimelineTTL = 30 * time.Minute
	// DefaultRetryAfter is how long the cache stays bypassed after a Redis error.
	DefaultRetryAfter = 30 * time.Second
)

const (
	KeyPrefix   = "hydroplan:cache:"
	KeyTimeline = KeyPrefix + "timeline:" // + content hash
	// KeyTimelineIndex is a set of every timeline key written, so
	// invalidation never has to SCAN the keyspace.
	KeyTimelineIndex = KeyPrefix + "timelines"
)

// Config selects the Redis instance and cache behaviour.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TimelineTTL time.Duration

	// BypassOnError skips Redis for RetryAfter after a failed call.
	BypassOnError bool
	RetryAfter    time.Duration
}

// DefaultConfig returns the default cache settings.
func DefaultConfig() Config {
	return Config{
		RedisAddr:     "localhost:6379",
		TimelineTTL:   DefaultTimelineTTL,
		BypassOnError: true,
		RetryAfter:    DefaultRetryAfter,
	}
}

// Cache implements planner.TimelineCache. A Redis outage turns every call
// into a miss until the retry window passes.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config
	now    func() time.Time

	mu          sync.Mutex
	bypassUntil time.Time
}

// New connects to Redis. An unreachable Redis is not an error: the cache
// starts bypassed and retries later.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.TimelineTTL <= 0 {
		cfg.TimelineTTL = DefaultTimelineTTL
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = DefaultRetryAfter
	}

	c := &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		}),
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
		now:    time.Now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, timelines will be recomputed")
		c.trip()
		return c, nil
	}

	c.logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.TimelineTTL).Msg("timeline cache ready")
	return c, nil
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// IsAvailable reports whether calls currently go to Redis.
func (c *Cache) IsAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.bypassUntil)
}

func (c *Cache) trip() {
	c.mu.Lock()
	c.bypassUntil = c.now().Add(c.config.RetryAfter)
	c.mu.Unlock()
}

func (c *Cache) failed(err error, op string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	telemetry.CacheRequestsTotal.WithLabelValues(op, "error").Inc()
	c.logger.Debug().Err(err).Str("operation", op).Msg("cache operation failed")
	if c.config.BypassOnError {
		c.trip()
		c.logger.Warn().Dur("retry_after", c.config.RetryAfter).Msg("bypassing timeline cache after redis error")
	}
}

// TimelineKey returns the Redis key for a content hash.
func TimelineKey(hash string) string {
	return KeyTimeline + hash
}

// GetTimeline returns the timeline cached under hash, if any.
func (c *Cache) GetTimeline(ctx context.Context, hash string) (*planning.Timeline, bool) {
	if !c.IsAvailable() {
		return nil, false
	}

	data, err := c.client.Get(ctx, TimelineKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		telemetry.CacheRequestsTotal.WithLabelValues("get", "miss").Inc()
		return nil, false
	}
	if err != nil {
		c.failed(err, "get")
		return nil, false
	}

	var tl planning.Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		// Written by an incompatible build; treat as a miss and let the
		// next SetTimeline overwrite it.
		c.logger.Debug().Err(err).Str("hash", hash).Msg("discarding undecodable cached timeline")
		telemetry.CacheRequestsTotal.WithLabelValues("get", "miss").Inc()
		return nil, false
	}
	telemetry.CacheRequestsTotal.WithLabelValues("get", "hit").Inc()
	return &tl, true
}

// SetTimeline caches tl under hash and records the key in the index.
func (c *Cache) SetTimeline(ctx context.Context, hash string, tl *planning.Timeline) error {
	if !c.IsAvailable() {
		return nil
	}
	data, err := json.Marshal(tl)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}

	key := TimelineKey(hash)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, c.config.TimelineTTL)
		pipe.SAdd(ctx, KeyTimelineIndex, key)
		pipe.Expire(ctx, KeyTimelineIndex, c.config.TimelineTTL)
		return nil
	})
	if err != nil {
		c.failed(err, "set")
		return err
	}
	telemetry.CacheRequestsTotal.WithLabelValues("set", "ok").Inc()
	return nil
}

// InvalidateTimelines drops every indexed timeline.
func (c *Cache) InvalidateTimelines(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	keys, err := c.client.SMembers(ctx, KeyTimelineIndex).Result()
	if err != nil {
		c.failed(err, "invalidate")
		return err
	}
	if err := c.client.Del(ctx, append(keys, KeyTimelineIndex)...).Err(); err != nil {
		c.failed(err, "invalidate")
		return err
	}
	c.logger.Debug().Int("timelines", len(keys)).Msg("timeline cache invalidated")
	return nil
}

// FlushAll removes every hydroplan cache key, indexed or not.
func (c *Cache) FlushAll(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Warn().Msg("flushing timeline cache")

	iter := c.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				c.failed(err, "flush")
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		c.failed(err, "flush")
		return err
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			c.failed(err, "flush")
			return err
		}
	}
	return nil
}
