/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership picks one instance among replicas sharing a database
// to run singleton jobs such as scheduled snapshots.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/hydroplan/internal/telemetry"
)

const (
	defaultElectionKey     = "hydroplan:leader:snapshots"
	defaultLeaseDuration   = 15 * time.Second
	defaultRenewalInterval = 5 * time.Second
)

// Leader reports whether this instance should run singleton jobs.
type Leader interface {
	IsLeader() bool
}

// Solo is the Leader of a single-instance deployment.
type Solo struct{}

// IsLeader always returns true.
func (Solo) IsLeader() bool { return true }

// ElectionConfig configures leader election.
type ElectionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ElectionKey holds the current leader's instance ID.
	ElectionKey string

	// LeaseDuration must exceed RenewalInterval or leadership flaps.
	LeaseDuration   time.Duration
	RenewalInterval time.Duration

	InstanceID string
}

// DefaultConfig returns the default election settings.
func DefaultConfig() ElectionConfig {
	return ElectionConfig{
		RedisAddr:       "localhost:6379",
		ElectionKey:     defaultElectionKey,
		LeaseDuration:   defaultLeaseDuration,
		RenewalInterval: defaultRenewalInterval,
	}
}

// Election is a Redis lease: the instance whose ID is stored under the key
// is leader until it stops renewing.
type Election struct {
	client *redis.Client
	logger zerolog.Logger
	config ElectionConfig

	leader   atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// releaseScript deletes the key only while it still names this instance.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it still names this instance.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// NewElection connects to Redis. It fails when Redis is unreachable.
func NewElection(cfg ElectionConfig, logger zerolog.Logger) (*Election, error) {
	def := DefaultConfig()
	if cfg.ElectionKey == "" {
		cfg.ElectionKey = def.ElectionKey
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = def.LeaseDuration
	}
	if cfg.RenewalInterval <= 0 {
		cfg.RenewalInterval = def.RenewalInterval
	}
	if cfg.RenewalInterval >= cfg.LeaseDuration {
		return nil, fmt.Errorf("renewal interval %s must be shorter than lease %s", cfg.RenewalInterval, cfg.LeaseDuration)
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis for leader election: %w", err)
	}

	logger = logger.With().Str("component", "leader_election").Logger()
	logger.Info().
		Str("redis_addr", cfg.RedisAddr).
		Str("instance_id", cfg.InstanceID).
		Msg("connected to redis for leader election")

	return &Election{client: client, logger: logger, config: cfg}, nil
}

// InstanceID identifies this instance in the election key.
func (e *Election) InstanceID() string {
	return e.config.InstanceID
}

// IsLeader reports whether this instance currently holds the lease.
func (e *Election) IsLeader() bool {
	return e.leader.Load()
}

// Start campaigns in the background until ctx ends or Stop is called.
func (e *Election) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})

	e.logger.Info().Dur("lease", e.config.LeaseDuration).Msg("starting leader election")
	go func() {
		defer close(e.done)
		e.campaign(ctx)
		ticker := time.NewTicker(e.config.RenewalInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.campaign(ctx)
			}
		}
	}()
}

// Stop ends the campaign, releases the lease if held and closes Redis.
func (e *Election) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
			<-e.done
		}
		if e.leader.Load() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if relErr := releaseScript.Run(ctx, e.client, []string{e.config.ElectionKey}, e.config.InstanceID).Err(); relErr != nil {
				e.logger.Error().Err(relErr).Msg("failed to release leadership")
			}
			e.setLeader(false)
		}
		err = e.client.Close()
	})
	return err
}

// Leader returns the instance ID holding the lease, or "" when none does.
func (e *Election) Leader(ctx context.Context) (string, error) {
	id, err := e.client.Get(ctx, e.config.ElectionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return id, nil
}

func (e *Election) campaign(ctx context.Context) {
	held, err := e.acquire(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Error().Err(err).Msg("leader election round failed")
		}
		e.setLeader(false)
		return
	}
	e.setLeader(held)
}

func (e *Election) acquire(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.config.ElectionKey, e.config.InstanceID, e.config.LeaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("set lease: %w", err)
	}
	if ok {
		return true, nil
	}
	renewed, err := renewScript.Run(ctx, e.client, []string{e.config.ElectionKey}, e.config.InstanceID, e.config.LeaseDuration.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return renewed == 1, nil
}

func (e *Election) setLeader(held bool) {
	if e.leader.Swap(held) == held {
		return
	}
	if held {
		e.logger.Info().Str("instance_id", e.config.InstanceID).Msg("acquired leadership")
		telemetry.LeaderStatus.Set(1)
		telemetry.LeaderChangesTotal.WithLabelValues("acquired").Inc()
	} else {
		e.logger.Warn().Str("instance_id", e.config.InstanceID).Msg("lost leadership")
		telemetry.LeaderStatus.Set(0)
		telemetry.LeaderChangesTotal.WithLabelValues("lost").Inc()
	}
}
