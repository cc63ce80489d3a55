/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"cmp"
	"slices"

	"github.com/friendsincode/hydroplan/internal/models"
)

// Pauses returns the tasks bound to vesselID that pause its survey, in
// chronological order. An empty result means an uninterrupted survey.
// Assemble passes it each vessel's bucket of expanded occurrences.
func Pauses(vesselID string, tasks []models.Task) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		if t.PausesSurvey && t.Assigned() && *t.VesselID == vesselID {
			out = append(out, t)
		}
	}
	SortChronological(out)
	return out
}

// SortChronological orders tasks by start date, then end date, then
// creation order, then ID, so the result never depends on input order.
func SortChronological(tasks []models.Task) {
	slices.SortStableFunc(tasks, compareChronological)
}

func compareChronological(a, b models.Task) int {
	if c := a.StartDate.Compare(b.StartDate); c != 0 {
		return c
	}
	if c := a.EndDate.Compare(b.EndDate); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
