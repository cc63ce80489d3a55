/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package project

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/store"
)

// CSVImport holds the vessels and tasks sheets read by ReadCSV. A sheet
// that was not supplied leaves the matching Has flag false.
type CSVImport struct {
	Vessels    []models.Vessel
	Tasks      []models.Task
	HasVessels bool
	HasTasks   bool
}

// ReadCSV reads vessels and tasks sheets as written by WriteCSV. Each
// reader holds one sheet; its kind is recognized from the header row and
// columns may appear in any order. Rows without an id get a new one.
func ReadCSV(sheets ...io.Reader) (*CSVImport, error) {
	out := &CSVImport{}
	for i, r := range sheets {
		rows, err := csv.NewReader(r).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read csv sheet %d: %w", i+1, err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("csv sheet %d is empty", i+1)
		}
		cols := columnIndex(rows[0])

		switch sheetOf(cols) {
		case SheetVessels:
			if out.HasVessels {
				return nil, errors.New("vessels sheet supplied twice")
			}
			out.HasVessels = true
			for n, row := range rows[1:] {
				v, err := vesselFromRow(cols, row)
				if err != nil {
					return nil, fmt.Errorf("vessels row %d: %w", n+2, err)
				}
				out.Vessels = append(out.Vessels, v)
			}
		case SheetTasks:
			if out.HasTasks {
				return nil, errors.New("tasks sheet supplied twice")
			}
			out.HasTasks = true
			for n, row := range rows[1:] {
				t, err := taskFromRow(cols, row)
				if err != nil {
					return nil, fmt.Errorf("tasks row %d: %w", n+2, err)
				}
				out.Tasks = append(out.Tasks, t)
			}
		default:
			return nil, fmt.Errorf("csv sheet %d: header is neither a vessels nor a tasks sheet", i+1)
		}
	}
	return out, nil
}

// Apply returns current with the supplied sheets replacing their
// collections. Task vessel references that name a vessel are resolved to
// its ID; unknown references are kept and reported as dangling later.
func (c *CSVImport) Apply(current store.Snapshot) store.Snapshot {
	snap := store.Snapshot{
		Project: current.Project,
		Vessels: current.Vessels,
		Tasks:   current.Tasks,
	}
	if c.HasVessels {
		snap.Vessels = c.Vessels
	}
	if c.HasTasks {
		snap.Tasks = make([]models.Task, len(c.Tasks))
		copy(snap.Tasks, c.Tasks)
	}

	ids := make(map[string]bool, len(snap.Vessels))
	byName := make(map[string]string, len(snap.Vessels))
	for _, v := range snap.Vessels {
		ids[v.ID] = true
		if _, dup := byName[v.Name]; !dup {
			byName[v.Name] = v.ID
		}
	}
	for i, t := range snap.Tasks {
		if t.VesselID == nil || ids[*t.VesselID] {
			continue
		}
		if id, ok := byName[*t.VesselID]; ok {
			snap.Tasks[i].VesselID = &id
		}
	}
	return snap
}

type columns map[string]int

func columnIndex(header []string) columns {
	cols := make(columns, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func (c columns) has(name string) bool {
	_, ok := c[name]
	return ok
}

func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func sheetOf(cols columns) Sheet {
	switch {
	case cols.has("distance_km") && cols.has("speed"):
		return SheetVessels
	case cols.has("start_date") && cols.has("end_date") && cols.has("pauses_survey"):
		return SheetTasks
	default:
		return ""
	}
}

func vesselFromRow(cols columns, row []string) (models.Vessel, error) {
	v := models.Vessel{ID: cols.get(row, "id"), Name: cols.get(row, "name")}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	var err error
	if v.DistanceKM, err = parseNumber(cols.get(row, "distance_km")); err != nil {
		return v, fmt.Errorf("distance_km: %w", err)
	}
	if v.SpeedKnots, err = parseNumber(cols.get(row, "speed")); err != nil {
		return v, fmt.Errorf("speed: %w", err)
	}
	if v.StartDate, err = ParseTime(cols.get(row, "start_date")); err != nil {
		return v, fmt.Errorf("start_date: %w", err)
	}

	for _, a := range []struct {
		column, days string
		dst          *models.Allowance
	}{
		{"transit", "transit_days", &v.Transit},
		{"weather", "weather_days", &v.Weather},
		{"maintenance", "maintenance_days", &v.Maintenance},
	} {
		raw := cols.get(row, a.column)
		if raw == "" && !cols.has(a.column) {
			raw = cols.get(row, a.days)
		}
		if *a.dst, err = models.ParseAllowance(raw); err != nil {
			return v, err
		}
	}
	return v, nil
}

func taskFromRow(cols columns, row []string) (models.Task, error) {
	t := models.Task{
		ID:         cols.get(row, "id"),
		Name:       cols.get(row, "name"),
		Category:   models.TaskCategory(cols.get(row, "category")),
		Recurrence: cols.get(row, "recurrence"),
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	var err error
	if t.StartDate, err = ParseTime(cols.get(row, "start_date")); err != nil {
		return t, fmt.Errorf("start_date: %w", err)
	}
	if t.EndDate, err = ParseTime(cols.get(row, "end_date")); err != nil {
		return t, fmt.Errorf("end_date: %w", err)
	}
	if t.PausesSurvey, err = parseYesNo(cols.get(row, "pauses_survey")); err != nil {
		return t, fmt.Errorf("pauses_survey: %w", err)
	}

	vessel := cols.get(row, "vessel")
	if vessel == "" {
		vessel = cols.get(row, "vessel_id")
	}
	if vessel != "" {
		t.VesselID = &vessel
	}
	return t, nil
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("missing value")
	}
	return strconv.ParseFloat(s, 64)
}

// parseYesNo accepts Go booleans and the Yes/No values of spreadsheet files.
func parseYesNo(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "no", "n":
		return false, nil
	case "yes", "y":
		return true, nil
	}
	return strconv.ParseBool(s)
}
