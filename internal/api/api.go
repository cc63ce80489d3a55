/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/hydroplan/internal/events"
	"github.com/friendsincode/hydroplan/internal/logbuffer"
	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/planner"
	"github.com/friendsincode/hydroplan/internal/storage"
	"github.com/friendsincode/hydroplan/internal/store"
	"github.com/friendsincode/hydroplan/internal/version"
)

// maxBodyBytes bounds request bodies, including imported files.
const maxBodyBytes = 8 << 20

// API exposes HTTP handlers.
type API struct {
	store   store.Store
	planner *planner.Service
	objects storage.ObjectStore
	bus     events.Broker
	logs    *logbuffer.Buffer
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates the API router wrapper. objects, bus and logs may be nil;
// the endpoints that need them then answer 503.
func New(st store.Store, pl *planner.Service, objects storage.ObjectStore, bus events.Broker, logs *logbuffer.Buffer, logger zerolog.Logger) *API {
	return &API{
		store:   st,
		planner: pl,
		objects: objects,
		bus:     bus,
		logs:    logs,
		logger:  logger.With().Str("component", "api").Logger(),
		now:     time.Now,
	}
}

// Routes mounts the API under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Get("/project", a.handleProjectGet)
		r.Put("/project", a.handleProjectUpdate)

		r.Route("/vessels", func(r chi.Router) {
			r.Get("/", a.handleVesselsList)
			r.Post("/", a.handleVesselsCreate)
			r.Route("/{vesselID}", func(r chi.Router) {
				r.Get("/", a.handleVesselsGet)
				r.Put("/", a.handleVesselsUpdate)
				r.Delete("/", a.handleVesselsDelete)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", a.handleTasksList)
			r.Post("/", a.handleTasksCreate)
			r.Route("/{taskID}", func(r chi.Router) {
				r.Get("/", a.handleTasksGet)
				r.Put("/", a.handleTasksUpdate)
				r.Delete("/", a.handleTasksDelete)
			})
		})

		r.Post("/estimate", a.handleEstimate)
		r.Get("/timeline", a.handleTimeline)

		r.Get("/export/{format}", a.handleExport)
		r.Post("/import", a.handleImport)
		r.Post("/import/ical", a.handleImportICal)
		r.Post("/snapshots", a.handleSnapshotCreate)

		r.Get("/events", a.handleEvents)
		r.Get("/logs", a.handleLogs)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	revision, err := a.store.Revision(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  version.Version,
		"revision": revision,
	})
}

func (a *API) publish(eventType events.EventType, payload events.Payload) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(eventType, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

// writeStoreError maps store and validation errors onto responses.
func (a *API) writeStoreError(w http.ResponseWriter, err error, op string) {
	var fe *models.FieldError
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid_input",
			"entity": fe.Entity,
			"field":  fe.Field,
			"reason": fe.Reason,
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	default:
		a.logger.Error().Err(err).Msg(op + " failed")
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, events.EventType(part))
	}
	return out
}
