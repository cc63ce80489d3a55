/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hydroplan/internal/events"
	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/project"
	"github.com/friendsincode/hydroplan/internal/store"
)

type follower struct{}

func (follower) IsLeader() bool { return false }

func TestSchedulerSavesOnlyChangedRevisions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	objects := NewFSStore(t.TempDir(), zerolog.Nop())
	bus := events.NewBus()
	saved := bus.Subscribe(events.EventSnapshotSaved)

	s := NewScheduler(st, objects, nil, bus, time.Minute, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC) }

	key, err := s.Tick(ctx)
	if err != nil {
		t.Fatalf("first Tick: %v", err)
	}
	if key == "" {
		t.Fatal("first Tick saved nothing")
	}
	select {
	case payload := <-saved:
		if payload["key"] != key || payload["scheduled"] != true {
			t.Fatalf("payload = %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot.saved event")
	}

	data, err := objects.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := project.Decode(bytes.NewReader(data), project.FormatJSON); err != nil {
		t.Fatalf("saved snapshot does not decode: %v", err)
	}

	if key, err := s.Tick(ctx); err != nil || key != "" {
		t.Fatalf("unchanged Tick = %q, %v; want nothing saved", key, err)
	}

	if _, err := st.SaveProject(ctx, models.Project{Name: "Block 9", UnsurveyedKM: 10}); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}
	s.now = func() time.Time { return time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC) }
	key, err = s.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick after change: %v", err)
	}
	if key != "block-9/20250301T070000Z.json" {
		t.Fatalf("key = %q", key)
	}
}

func TestSchedulerSkipsFollowers(t *testing.T) {
	s := NewScheduler(store.NewMemory(), NewFSStore(t.TempDir(), zerolog.Nop()), follower{}, nil, time.Minute, zerolog.Nop())
	if key, err := s.Tick(context.Background()); err != nil || key != "" {
		t.Fatalf("follower Tick = %q, %v; want nothing saved", key, err)
	}
}
