/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hydroplan/internal/events"
	"github.com/friendsincode/hydroplan/internal/leadership"
	"github.com/friendsincode/hydroplan/internal/project"
	"github.com/friendsincode/hydroplan/internal/store"
	"github.com/friendsincode/hydroplan/internal/telemetry"
)

// Scheduler saves a JSON snapshot of the project at a fixed interval, but
// only when the revision moved since the last save and only on the leader.
type Scheduler struct {
	store    store.Store
	objects  ObjectStore
	leader   leadership.Leader
	bus      events.Broker
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	lastRevision int64
}

// NewScheduler creates a snapshot scheduler. A nil leader means this
// instance always runs; bus may be nil.
func NewScheduler(st store.Store, objects ObjectStore, leader leadership.Leader, bus events.Broker, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if leader == nil {
		leader = leadership.Solo{}
	}
	return &Scheduler{
		store:        st,
		objects:      objects,
		leader:       leader,
		bus:          bus,
		interval:     interval,
		logger:       logger.With().Str("component", "snapshot_scheduler").Logger(),
		now:          time.Now,
		lastRevision: -1,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("snapshot scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("snapshot scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("scheduled snapshot failed")
			}
		}
	}
}

// Tick runs one round and returns the saved key, or "" when nothing was
// saved.
func (s *Scheduler) Tick(ctx context.Context) (string, error) {
	if !s.leader.IsLeader() {
		return "", nil
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		telemetry.SnapshotRunsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("snapshot store: %w", err)
	}
	if snap.Project.Revision == s.lastRevision {
		telemetry.SnapshotRunsTotal.WithLabelValues("unchanged").Inc()
		return "", nil
	}

	var buf bytes.Buffer
	if err := project.Encode(&buf, project.FormatJSON, snap); err != nil {
		telemetry.SnapshotRunsTotal.WithLabelValues("failed").Inc()
		return "", err
	}
	key, err := SaveExport(ctx, s.objects, snap.Project.Name, project.FormatJSON, buf.Bytes(), s.now())
	if err != nil {
		telemetry.SnapshotRunsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	s.lastRevision = snap.Project.Revision
	telemetry.SnapshotRunsTotal.WithLabelValues("saved").Inc()

	location := s.objects.Location(key)
	s.logger.Info().Str("location", location).Int64("revision", snap.Project.Revision).Msg("scheduled snapshot saved")
	if s.bus != nil {
		s.bus.Publish(events.EventSnapshotSaved, events.Payload{
			"key":       key,
			"location":  location,
			"revision":  snap.Project.Revision,
			"scheduled": true,
		})
	}
	return key, nil
}
