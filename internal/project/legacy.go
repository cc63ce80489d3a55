/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package project

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/store"
)

// legacyDocument is the flat JSON written by the first spreadsheet-era
// planner. Tasks reference vessels by name and allowances are plain days.
type legacyDocument struct {
	ProjectName  string         `json:"project_name"`
	UnsurveyedKM float64        `json:"unsurveyed_km"`
	Vessels      []legacyVessel `json:"vessels"`
	Tasks        []legacyTask   `json:"tasks"`
}

type legacyVessel struct {
	Name            string    `json:"name"`
	LineKM          float64   `json:"line_km"`
	Speed           float64   `json:"speed"`
	StartDate       Timestamp `json:"start_date"`
	TransitDays     float64   `json:"transit_days"`
	WeatherDays     float64   `json:"weather_days"`
	MaintenanceDays float64   `json:"maintenance_days"`
}

type legacyTask struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	StartDate   Timestamp `json:"start_date"`
	EndDate     Timestamp `json:"end_date"`
	Vessel      *string   `json:"vessel"`
	PauseSurvey bool      `json:"pause_survey"`
}

// isLegacyJSON reports whether data is a legacy document.
func isLegacyJSON(data []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	_, hasName := probe["project_name"]
	_, hasVersion := probe["format_version"]
	return hasName && !hasVersion
}

func decodeLegacy(data []byte) (store.Snapshot, error) {
	var doc legacyDocument
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return store.Snapshot{}, fmt.Errorf("decode legacy project: %w", err)
	}

	snap := store.Snapshot{
		Project: models.Project{Name: doc.ProjectName, UnsurveyedKM: doc.UnsurveyedKM},
	}
	byName := make(map[string]string, len(doc.Vessels))
	for _, lv := range doc.Vessels {
		v := models.Vessel{
			ID:          uuid.NewString(),
			Name:        lv.Name,
			DistanceKM:  lv.LineKM,
			SpeedKnots:  lv.Speed,
			StartDate:   lv.StartDate.Time,
			Transit:     models.Days(lv.TransitDays),
			Weather:     models.Days(lv.WeatherDays),
			Maintenance: models.Days(lv.MaintenanceDays),
		}
		if _, dup := byName[lv.Name]; !dup {
			byName[lv.Name] = v.ID
		}
		snap.Vessels = append(snap.Vessels, v)
	}
	for _, lt := range doc.Tasks {
		t := models.Task{
			ID:           uuid.NewString(),
			Name:         lt.Name,
			Category:     models.TaskCategory(lt.Type),
			StartDate:    lt.StartDate.Time,
			EndDate:      lt.EndDate.Time,
			PausesSurvey: lt.PauseSurvey,
		}
		if lt.Vessel != nil && *lt.Vessel != "" {
			// Unknown names are kept so the engine reports them as dangling.
			ref := *lt.Vessel
			if id, ok := byName[ref]; ok {
				ref = id
			}
			t.VesselID = &ref
		}
		snap.Tasks = append(snap.Tasks, t)
	}
	return snap, nil
}
