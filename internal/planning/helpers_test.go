/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"testing"
	"time"

	"github.com/friendsincode/hydroplan/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func testVessel(t *testing.T, id string, distance, speed float64, start time.Time, transit, weather, maintenance float64) models.Vessel {
	t.Helper()
	v, err := models.NewVessel(id, "Vessel "+id, distance, speed, start,
		models.Days(transit), models.Days(weather), models.Days(maintenance))
	if err != nil {
		t.Fatalf("NewVessel: %v", err)
	}
	return v
}

func pauseTask(id string, vesselID string, category models.TaskCategory, start, end time.Time) models.Task {
	return models.Task{
		ID:           id,
		Name:         id,
		Category:     category,
		StartDate:    start,
		EndDate:      end,
		VesselID:     strPtr(vesselID),
		PausesSurvey: true,
	}
}
