/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package project reads and writes project files: JSON and YAML documents
// holding the whole session, CSV sheets, and iCal calendars.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/planning"
	"github.com/friendsincode/hydroplan/internal/store"
)

// FormatVersion is written to every JSON/YAML document.
const FormatVersion = 1

// Format names a file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatICal Format = "ics"
)

// ParseFormat normalizes a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	case "ics", "ical", "ifb", "icalendar":
		return FormatICal, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// ContentType returns the MIME type for a format.
func ContentType(f Format) string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatICal:
		return "text/calendar; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// Filename builds a download name from the project name.
func Filename(projectName string, f Format) string {
	slug := slugify(projectName)
	if slug == "" {
		slug = "project"
	}
	return slug + "." + string(f)
}

// Document is the on-disk form of a project. Derived values are written
// for readers of the file and ignored when it is loaded.
type Document struct {
	FormatVersion int            `json:"format_version" yaml:"format_version"`
	Project       ProjectHeader  `json:"project" yaml:"project"`
	Vessels       []VesselRecord `json:"vessels" yaml:"vessels"`
	Tasks         []TaskRecord   `json:"tasks" yaml:"tasks"`
}

// ProjectHeader is the project section of a Document.
type ProjectHeader struct {
	Name         string  `json:"name" yaml:"name"`
	UnsurveyedKM float64 `json:"unsurveyed_km" yaml:"unsurveyed_km"`
	SurveyedKM   float64 `json:"surveyed_km,omitempty" yaml:"surveyed_km,omitempty"`
	RemainingKM  float64 `json:"remaining_km,omitempty" yaml:"remaining_km,omitempty"`
}

// VesselRecord is one vessel of a Document.
type VesselRecord struct {
	ID          string           `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string           `json:"name" yaml:"name"`
	DistanceKM  float64          `json:"distance_km" yaml:"distance_km"`
	Speed       float64          `json:"speed" yaml:"speed"`
	StartDate   Timestamp        `json:"start_date" yaml:"start_date"`
	Transit     models.Allowance `json:"transit" yaml:"transit"`
	Weather     models.Allowance `json:"weather" yaml:"weather"`
	Maintenance models.Allowance `json:"maintenance" yaml:"maintenance"`

	SurveyDays float64 `json:"survey_days,omitempty" yaml:"survey_days,omitempty"`
	TotalDays  float64 `json:"total_days,omitempty" yaml:"total_days,omitempty"`
	EndDate    string  `json:"end_date,omitempty" yaml:"end_date,omitempty"`
}

// TaskRecord is one task of a Document.
type TaskRecord struct {
	ID           string    `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string    `json:"name" yaml:"name"`
	Category     string    `json:"category,omitempty" yaml:"category,omitempty"`
	StartDate    Timestamp `json:"start_date" yaml:"start_date"`
	EndDate      Timestamp `json:"end_date" yaml:"end_date"`
	VesselID     string    `json:"vessel_id,omitempty" yaml:"vessel_id,omitempty"`
	PausesSurvey bool      `json:"pauses_survey" yaml:"pauses_survey"`
	Recurrence   string    `json:"recurrence,omitempty" yaml:"recurrence,omitempty"`
}

// NewDocument converts a session into its file form.
func NewDocument(snap store.Snapshot) Document {
	doc := Document{
		FormatVersion: FormatVersion,
		Project: ProjectHeader{
			Name:         snap.Project.Name,
			UnsurveyedKM: snap.Project.UnsurveyedKM,
			SurveyedKM:   models.SurveyedKM(snap.Vessels),
			RemainingKM:  snap.Project.RemainingKM(snap.Vessels),
		},
		Vessels: make([]VesselRecord, 0, len(snap.Vessels)),
		Tasks:   make([]TaskRecord, 0, len(snap.Tasks)),
	}

	for _, v := range snap.Vessels {
		rec := VesselRecord{
			ID:          v.ID,
			Name:        v.Name,
			DistanceKM:  v.DistanceKM,
			Speed:       v.SpeedKnots,
			StartDate:   Timestamp{v.StartDate},
			Transit:     v.Transit,
			Weather:     v.Weather,
			Maintenance: v.Maintenance,
		}
		if est, err := planning.EstimateVessel(v); err == nil {
			sum := est.Summary()
			rec.SurveyDays = sum.SurveyDays
			rec.TotalDays = sum.TotalDays
			rec.EndDate = sum.EndDate
		}
		doc.Vessels = append(doc.Vessels, rec)
	}

	for _, t := range snap.Tasks {
		rec := TaskRecord{
			ID:           t.ID,
			Name:         t.Name,
			Category:     string(t.Category),
			StartDate:    Timestamp{t.StartDate},
			EndDate:      Timestamp{t.EndDate},
			PausesSurvey: t.PausesSurvey,
			Recurrence:   t.Recurrence,
		}
		if t.VesselID != nil {
			rec.VesselID = *t.VesselID
		}
		doc.Tasks = append(doc.Tasks, rec)
	}
	return doc
}

// Snapshot converts the document back into session records. Derived
// fields are dropped; they are recomputed by the engine.
func (d Document) Snapshot() store.Snapshot {
	snap := store.Snapshot{
		Project: models.Project{Name: d.Project.Name, UnsurveyedKM: d.Project.UnsurveyedKM},
	}
	for _, rec := range d.Vessels {
		snap.Vessels = append(snap.Vessels, models.Vessel{
			ID:          rec.ID,
			Name:        rec.Name,
			DistanceKM:  rec.DistanceKM,
			SpeedKnots:  rec.Speed,
			StartDate:   rec.StartDate.Time,
			Transit:     rec.Transit,
			Weather:     rec.Weather,
			Maintenance: rec.Maintenance,
		})
	}
	for _, rec := range d.Tasks {
		t := models.Task{
			ID:           rec.ID,
			Name:         rec.Name,
			Category:     models.TaskCategory(rec.Category),
			StartDate:    rec.StartDate.Time,
			EndDate:      rec.EndDate.Time,
			PausesSurvey: rec.PausesSurvey,
			Recurrence:   rec.Recurrence,
		}
		if rec.VesselID != "" {
			id := rec.VesselID
			t.VesselID = &id
		}
		snap.Tasks = append(snap.Tasks, t)
	}
	return snap
}

// Encode writes the session as a JSON or YAML document.
func Encode(w io.Writer, f Format, snap store.Snapshot) error {
	doc := NewDocument(snap)
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("encode %s: not a document format", f)
	}
}

// Decode reads a JSON or YAML document. Records are not validated here;
// the store or the engine rejects invalid ones.
func Decode(r io.Reader, f Format) (store.Snapshot, error) {
	var doc Document
	switch f {
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return store.Snapshot{}, fmt.Errorf("read json project: %w", err)
		}
		if isLegacyJSON(data) {
			return decodeLegacy(data)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return store.Snapshot{}, fmt.Errorf("decode json project: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return store.Snapshot{}, fmt.Errorf("decode yaml project: %w", err)
		}
	default:
		return store.Snapshot{}, fmt.Errorf("decode %s: not a document format", f)
	}
	if doc.FormatVersion > FormatVersion {
		return store.Snapshot{}, fmt.Errorf("project file format %d is newer than supported %d", doc.FormatVersion, FormatVersion)
	}
	return doc.Snapshot(), nil
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
