/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hydroplan/internal/planning"
)

func TestNewWithUnreachableRedisIsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if c.IsAvailable() {
		t.Fatal("cache reported available without Redis")
	}

	ctx := context.Background()
	if err := c.SetTimeline(ctx, "abc", &planning.Timeline{}); err != nil {
		t.Fatalf("SetTimeline on disabled cache: %v", err)
	}
	if _, ok := c.GetTimeline(ctx, "abc"); ok {
		t.Fatal("disabled cache returned a hit")
	}
	if err := c.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll on disabled cache: %v", err)
	}
}

func TestNewAppliesDefaultTTL(t *testing.T) {
	c, err := New(Config{RedisAddr: "127.0.0.1:1"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.config.TimelineTTL != 30*time.Minute {
		t.Fatalf("TimelineTTL = %v, want 30m", c.config.TimelineTTL)
	}
}

func TestTimelineKey(t *testing.T) {
	if got := TimelineKey("deadbeef"); got != "hydroplan:cache:timeline:deadbeef" {
		t.Fatalf("TimelineKey = %q", got)
	}
}

func TestBypassExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	cfg.RetryAfter = time.Minute

	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.trip()
	if c.IsAvailable() {
		t.Fatal("cache available right after a failure")
	}
	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if !c.IsAvailable() {
		t.Fatal("cache still bypassed after the retry window")
	}
}
