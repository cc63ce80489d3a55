/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package planner turns the stored session into a timeline. It owns the
// only memoization in the system, keyed by the content hash of the inputs.
package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/friendsincode/hydroplan/internal/events"
	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/planning"
	"github.com/friendsincode/hydroplan/internal/store"
	"github.com/friendsincode/hydroplan/internal/telemetry"
)

// Sources a Result can come from.
const (
	SourceEngine = "engine"
	SourceMemo   = "memo"
	SourceCache  = "cache"
)

// TimelineCache is a shared cache keyed by content hash. *cache.Cache
// implements it.
type TimelineCache interface {
	GetTimeline(ctx context.Context, hash string) (*planning.Timeline, bool)
	SetTimeline(ctx context.Context, hash string, tl *planning.Timeline) error
}

// Result is a built timeline with the context it was built from.
// Timeline may be shared with other callers and must not be modified.
type Result struct {
	Project     models.Project     `json:"project"`
	SurveyedKM  float64            `json:"surveyed_km"`
	RemainingKM float64            `json:"remaining_km"`
	Timeline    *planning.Timeline `json:"timeline"`
	Hash        string             `json:"hash"`
	Source      string             `json:"source"`
}

// Service builds timelines from a store.
type Service struct {
	store  store.Store
	cache  TimelineCache
	bus    events.Broker
	logger zerolog.Logger

	mu       sync.Mutex
	lastHash string
	last     *planning.Timeline
}

// NewService creates a planner. cache and bus may be nil.
func NewService(st store.Store, cache TimelineCache, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		cache:  cache,
		bus:    bus,
		logger: logger.With().Str("component", "planner").Logger(),
	}
}

// Build snapshots the store and returns its timeline.
func (s *Service) Build(ctx context.Context) (*Result, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}
	telemetry.StoreRevision.Set(float64(snap.Project.Revision))
	return s.BuildSnapshot(ctx, snap), nil
}

// BuildSnapshot returns the timeline of snap, reusing an earlier result only
// when the content hash matches.
func (s *Service) BuildSnapshot(ctx context.Context, snap store.Snapshot) *Result {
	ctx, span := telemetry.StartSpan(ctx, "planner", "build")
	defer span.End()
	start := time.Now()

	hash := planning.ContentHash(snap.Vessels, snap.Tasks)
	tl, source := s.lookup(ctx, hash)
	if tl == nil {
		tl = planning.Assemble(snap.Vessels, snap.Tasks)
		source = SourceEngine
		s.record(tl)
		if s.cache != nil {
			if err := s.cache.SetTimeline(ctx, hash, tl); err != nil {
				s.logger.Debug().Err(err).Msg("failed to cache timeline")
			}
		}
	}
	s.remember(hash, tl)

	telemetry.TimelineBuildDuration.Observe(time.Since(start).Seconds())
	telemetry.TimelineBuildsTotal.WithLabelValues(source).Inc()
	telemetry.TimelineSegments.Set(float64(len(tl.Segments)))
	span.SetAttributes(
		attribute.String("timeline.hash", hash),
		attribute.String("timeline.source", source),
		attribute.Int("timeline.vessels", len(snap.Vessels)),
		attribute.Int("timeline.tasks", len(snap.Tasks)),
		attribute.Int("timeline.segments", len(tl.Segments)),
	)

	s.logger.Debug().
		Str("hash", hash[:12]).
		Str("source", source).
		Int("vessels", len(snap.Vessels)).
		Int("tasks", len(snap.Tasks)).
		Int("segments", len(tl.Segments)).
		Int("errors", len(tl.Errors)).
		Int("warnings", len(tl.Warnings)).
		Msg("timeline built")

	if s.bus != nil {
		s.bus.Publish(events.EventTimelineBuilt, events.Payload{
			"hash":     hash,
			"revision": snap.Project.Revision,
			"source":   source,
			"segments": len(tl.Segments),
			"errors":   len(tl.Errors),
			"warnings": len(tl.Warnings),
		})
	}

	return &Result{
		Project:     snap.Project,
		SurveyedKM:  models.SurveyedKM(snap.Vessels),
		RemainingKM: snap.Project.RemainingKM(snap.Vessels),
		Timeline:    tl,
		Hash:        hash,
		Source:      source,
	}
}

func (s *Service) lookup(ctx context.Context, hash string) (*planning.Timeline, string) {
	s.mu.Lock()
	if s.last != nil && s.lastHash == hash {
		tl := s.last
		s.mu.Unlock()
		return tl, SourceMemo
	}
	s.mu.Unlock()

	if s.cache != nil {
		if tl, ok := s.cache.GetTimeline(ctx, hash); ok {
			return tl, SourceCache
		}
	}
	return nil, ""
}

func (s *Service) remember(hash string, tl *planning.Timeline) {
	s.mu.Lock()
	s.lastHash, s.last = hash, tl
	s.mu.Unlock()
}

// record logs and counts per-item problems of a fresh build.
func (s *Service) record(tl *planning.Timeline) {
	for _, e := range tl.Errors {
		telemetry.TimelineItemErrorsTotal.WithLabelValues(e.Entity, e.Code).Inc()
		s.logger.Warn().
			Str("entity", e.Entity).
			Str("id", e.ID).
			Str("field", e.Field).
			Str("code", e.Code).
			Msg(e.Message)
	}
	for _, w := range tl.Warnings {
		telemetry.TimelineWarningsTotal.WithLabelValues(w.Code).Inc()
		s.logger.Warn().Str("task_id", w.TaskID).Str("vessel_id", w.VesselID).Msg(w.Message)
	}
}

// Estimate runs the duration model for a single vessel without storing it.
func (s *Service) Estimate(v models.Vessel) (planning.Estimate, error) {
	return planning.EstimateVessel(v)
}
