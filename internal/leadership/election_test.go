/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package leadership

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSoloIsAlwaysLeader(t *testing.T) {
	var l Leader = Solo{}
	if !l.IsLeader() {
		t.Fatal("Solo.IsLeader() = false")
	}
}

func TestNewElectionRejectsLeaseShorterThanRenewal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LeaseDuration = time.Second
	cfg.RenewalInterval = 2 * time.Second
	if _, err := NewElection(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for renewal interval >= lease")
	}
}

func TestNewElectionFailsWithoutRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	if _, err := NewElection(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}
