/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package project

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/hydroplan/internal/planning"
	"github.com/friendsincode/hydroplan/internal/store"
)

// Sheet selects which table a CSV export holds.
type Sheet string

const (
	SheetVessels  Sheet = "vessels"
	SheetTasks    Sheet = "tasks"
	SheetSegments Sheet = "segments"
)

// ParseSheet normalizes a sheet name. Empty selects segments.
func ParseSheet(s string) (Sheet, error) {
	switch Sheet(strings.ToLower(strings.TrimSpace(s))) {
	case "", SheetSegments:
		return SheetSegments, nil
	case SheetVessels:
		return SheetVessels, nil
	case SheetTasks:
		return SheetTasks, nil
	default:
		return "", fmt.Errorf("unknown sheet %q", s)
	}
}

var (
	vesselHeader  = []string{"id", "name", "distance_km", "speed", "start_date", "transit", "weather", "maintenance", "survey_days", "transit_days", "weather_days", "maintenance_days", "total_days", "end_date"}
	taskHeader    = []string{"id", "name", "category", "start_date", "end_date", "vessel", "pauses_survey", "recurrence"}
	segmentHeader = []string{"resource", "label", "kind", "start", "finish", "days"}
)

// WriteCSV writes one sheet. tl is only read for SheetSegments. The vessels
// and tasks sheets can be loaded again with ReadCSV; the day columns after
// the allowances are derived and ignored on import.
func WriteCSV(w io.Writer, sheet Sheet, snap store.Snapshot, tl *planning.Timeline) error {
	cw := csv.NewWriter(w)
	var rows [][]string

	switch sheet {
	case SheetVessels:
		rows = append(rows, vesselHeader)
		for _, v := range snap.Vessels {
			row := []string{
				v.ID, v.Name, formatFloat(v.DistanceKM), formatFloat(v.SpeedKnots), Timestamp{v.StartDate}.String(),
				v.Transit.String(), v.Weather.String(), v.Maintenance.String(),
			}
			est, err := planning.EstimateVessel(v)
			if err != nil {
				row = append(row, "", "", "", "", "", "")
			} else {
				s := est.Summary()
				row = append(row,
					formatFloat(s.SurveyDays), formatFloat(s.TransitDays), formatFloat(s.WeatherDays),
					formatFloat(s.MaintenanceDays), formatFloat(s.TotalDays), s.EndDate)
			}
			rows = append(rows, row)
		}

	case SheetTasks:
		names := make(map[string]string, len(snap.Vessels))
		for _, v := range snap.Vessels {
			names[v.ID] = v.Name
		}
		rows = append(rows, taskHeader)
		for _, t := range snap.Tasks {
			vessel := ""
			if t.VesselID != nil {
				vessel = *t.VesselID
				if name, ok := names[vessel]; ok {
					vessel = name
				}
			}
			rows = append(rows, []string{
				t.ID, t.Name, string(t.CategoryOrDefault()),
				Timestamp{t.StartDate}.String(), Timestamp{t.EndDate}.String(),
				vessel, strconv.FormatBool(t.PausesSurvey), t.Recurrence,
			})
		}

	case SheetSegments:
		if tl == nil {
			return fmt.Errorf("segments sheet needs a timeline")
		}
		rows = append(rows, segmentHeader)
		for _, group := range [][]planning.Segment{tl.Segments, tl.Overlays} {
			for _, s := range group {
				rows = append(rows, []string{
					s.Resource, s.Label, s.Kind,
					s.Start.Format(time.RFC3339), s.Finish.Format(time.RFC3339),
					formatFloat(planning.RoundDays(planning.DaysBetween(s.Start, s.Finish))),
				})
			}
		}

	default:
		return fmt.Errorf("unknown sheet %q", sheet)
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s csv: %w", sheet, err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
