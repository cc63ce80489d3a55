/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/hydroplan/internal/events"
	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/project"
	"github.com/friendsincode/hydroplan/internal/storage"
	"github.com/friendsincode/hydroplan/internal/store"
)

func (a *API) handleTimeline(w http.ResponseWriter, r *http.Request) {
	res, err := a.planner.Build(r.Context())
	if err != nil {
		a.writeStoreError(w, err, "build timeline")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleExport writes the session in the requested format. CSV takes a
// ?sheet= of vessels, tasks or segments.
func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := project.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported_format")
		return
	}
	snap, err := a.store.Snapshot(r.Context())
	if err != nil {
		a.writeStoreError(w, err, "export")
		return
	}

	var buf bytes.Buffer
	filename := project.Filename(snap.Project.Name, format)
	switch format {
	case project.FormatJSON, project.FormatYAML:
		err = project.Encode(&buf, format, snap)
	case project.FormatCSV:
		sheet, sheetErr := project.ParseSheet(r.URL.Query().Get("sheet"))
		if sheetErr != nil {
			writeError(w, http.StatusBadRequest, "unknown_sheet")
			return
		}
		filename = strings.TrimSuffix(filename, ".csv") + "-" + string(sheet) + ".csv"
		err = project.WriteCSV(&buf, sheet, snap, a.planner.BuildSnapshot(r.Context(), snap).Timeline)
	case project.FormatICal:
		err = project.WriteICal(&buf, snap.Project.Name, a.planner.BuildSnapshot(r.Context(), snap).Timeline, a.now())
	}
	if err != nil {
		a.logger.Error().Err(err).Str("format", string(format)).Msg("export failed")
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	w.Header().Set("Content-Type", project.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// importFormat reads ?format=, falling back to the Content-Type.
func importFormat(r *http.Request) (project.Format, error) {
	if f := r.URL.Query().Get("format"); f != "" {
		return project.ParseFormat(f)
	}
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(ct, "yaml"):
		return project.FormatYAML, nil
	case strings.Contains(ct, "csv"), strings.HasPrefix(ct, "multipart/form-data"):
		return project.FormatCSV, nil
	}
	return project.FormatJSON, nil
}

// handleImport replaces the whole session with an uploaded project file.
func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	format, err := importFormat(r)
	if err != nil || format == project.FormatICal {
		writeError(w, http.StatusBadRequest, "unsupported_format")
		return
	}
	var snap store.Snapshot
	if format == project.FormatCSV {
		snap, err = a.decodeCSVImport(w, r)
	} else {
		snap, err = project.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), format)
	}
	if errors.Is(err, errSnapshotUnavailable) {
		a.writeStoreError(w, err, "import project")
		return
	}
	if err != nil {
		a.logger.Debug().Err(err).Msg("project import rejected")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_document", "reason": err.Error()})
		return
	}
	if err := a.store.Replace(r.Context(), snap); err != nil {
		a.writeStoreError(w, err, "import project")
		return
	}

	revision, _ := a.store.Revision(r.Context())
	a.publish(events.EventProjectImported, events.Payload{
		"name":     snap.Project.Name,
		"vessels":  len(snap.Vessels),
		"tasks":    len(snap.Tasks),
		"revision": revision,
		"source":   string(format),
	})
	a.logger.Info().Str("name", snap.Project.Name).Int("vessels", len(snap.Vessels)).Int("tasks", len(snap.Tasks)).Msg("project imported")
	writeJSON(w, http.StatusOK, map[string]any{
		"vessels":  len(snap.Vessels),
		"tasks":    len(snap.Tasks),
		"revision": revision,
	})
}

var errSnapshotUnavailable = errors.New("current session unavailable")

// decodeCSVImport reads vessels and tasks sheets, either as the
// "vessels"/"tasks" parts of a multipart form or as a single-sheet body.
// Sheets not supplied keep the session's current contents.
func (a *API) decodeCSVImport(w http.ResponseWriter, r *http.Request) (store.Snapshot, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var sheets []io.Reader
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = body
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return store.Snapshot{}, fmt.Errorf("parse form: %w", err)
		}
		for _, field := range []string{"vessels", "tasks"} {
			f, _, err := r.FormFile(field)
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			if err != nil {
				return store.Snapshot{}, fmt.Errorf("%s sheet: %w", field, err)
			}
			defer f.Close()
			sheets = append(sheets, f)
		}
		if len(sheets) == 0 {
			return store.Snapshot{}, errors.New("form has no vessels or tasks sheet")
		}
	} else {
		sheets = append(sheets, body)
	}

	imported, err := project.ReadCSV(sheets...)
	if err != nil {
		return store.Snapshot{}, err
	}
	current, err := a.store.Snapshot(r.Context())
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("%w: %w", errSnapshotUnavailable, err)
	}
	return imported.Apply(current), nil
}

// handleImportICal adds calendar events as unassigned tasks. Events already
// imported (same UID) are skipped.
func (a *API) handleImportICal(w http.ResponseWriter, r *http.Request) {
	res, err := project.ReadICal(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_calendar", "reason": err.Error()})
		return
	}

	skipped := append([]string{}, res.Skipped...)
	imported := 0
	for _, t := range res.Tasks {
		created, err := a.store.CreateTask(r.Context(), t)
		if err != nil {
			var fe *models.FieldError
			if !errors.As(err, &fe) {
				a.writeStoreError(w, err, "import calendar")
				return
			}
			skipped = append(skipped, fmt.Sprintf("%s: %s %s", t.Name, fe.Field, fe.Reason))
			continue
		}
		imported++
		a.publish(events.EventTaskCreated, taskPayload(created))
	}

	a.logger.Info().Int("imported", imported).Int("skipped", len(skipped)).Msg("iCal import completed")
	writeJSON(w, http.StatusOK, map[string]any{
		"imported": imported,
		"skipped":  skipped,
	})
}

// handleSnapshotCreate stores the current session as a JSON or YAML object.
func (a *API) handleSnapshotCreate(w http.ResponseWriter, r *http.Request) {
	if a.objects == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshots_disabled")
		return
	}
	format := project.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		parsed, err := project.ParseFormat(f)
		if err != nil || (parsed != project.FormatJSON && parsed != project.FormatYAML) {
			writeError(w, http.StatusBadRequest, "unsupported_format")
			return
		}
		format = parsed
	}

	snap, err := a.store.Snapshot(r.Context())
	if err != nil {
		a.writeStoreError(w, err, "snapshot")
		return
	}
	var buf bytes.Buffer
	if err := project.Encode(&buf, format, snap); err != nil {
		a.logger.Error().Err(err).Msg("snapshot encode failed")
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}
	key, err := storage.SaveExport(r.Context(), a.objects, snap.Project.Name, format, buf.Bytes(), a.now())
	if err != nil {
		a.logger.Error().Err(err).Msg("snapshot upload failed")
		writeError(w, http.StatusBadGateway, "snapshot_failed")
		return
	}

	location := a.objects.Location(key)
	a.publish(events.EventSnapshotSaved, events.Payload{
		"key":      key,
		"location": location,
		"revision": snap.Project.Revision,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"key":      key,
		"location": location,
		"revision": snap.Project.Revision,
	})
}
