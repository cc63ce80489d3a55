/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"fmt"
	"time"

	"github.com/friendsincode/hydroplan/internal/models"
)

// UnassignedResource is the resource name for tasks not bound to a vessel.
const UnassignedResource = "Unassigned"

// VesselPlan is the per-vessel result of a run.
type VesselPlan struct {
	VesselID string   `json:"vessel_id"`
	Name     string   `json:"name"`
	Estimate Estimate `json:"estimate"`
	Summary  Summary  `json:"summary"`
	Pauses   int      `json:"pauses"`
}

// Timeline is the project-wide output of Assemble.
//
// Segments holds, per vessel in input order, the contiguous survey/pause
// sequence followed by the Unassigned group. Overlays holds vessel-bound
// tasks that do not pause the survey; they are kept apart so each vessel's
// Segments group still tiles its span.
type Timeline struct {
	Segments []Segment    `json:"segments"`
	Overlays []Segment    `json:"overlays"`
	Vessels  []VesselPlan `json:"vessels"`
	Warnings []Warning    `json:"warnings"`
	Errors   []ItemError  `json:"errors"`
}

// Assemble runs the full pipeline over the caller's collections. Invalid
// records become ItemErrors and dangling vessel references become Warnings;
// neither stops the remaining records from being processed. The inputs are
// never modified.
func Assemble(vessels []models.Vessel, tasks []models.Task) *Timeline {
	tl := &Timeline{
		Segments: []Segment{},
		Overlays: []Segment{},
		Vessels:  []VesselPlan{},
		Warnings: []Warning{},
		Errors:   []ItemError{},
	}

	known := make(map[string]bool, len(vessels))
	for _, v := range vessels {
		known[v.ID] = true
	}

	pauses := make(map[string][]models.Task)
	overlays := make(map[string][]models.Task)
	var unassigned []models.Task

	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			tl.Errors = append(tl.Errors, newItemError("task", task.ID, err))
			continue
		}
		occurrences, err := ExpandRecurrence(task)
		if err != nil {
			tl.Errors = append(tl.Errors, newItemError("task", task.ID, err))
			continue
		}

		switch {
		case !task.Assigned():
			unassigned = append(unassigned, occurrences...)
		case !known[*task.VesselID]:
			tl.Warnings = append(tl.Warnings, danglingWarning(task))
			unassigned = append(unassigned, occurrences...)
		case task.PausesSurvey:
			pauses[*task.VesselID] = append(pauses[*task.VesselID], occurrences...)
		default:
			overlays[*task.VesselID] = append(overlays[*task.VesselID], occurrences...)
		}
	}

	seen := make(map[string]bool, len(vessels))
	for _, v := range vessels {
		if seen[v.ID] {
			tl.Errors = append(tl.Errors, ItemError{
				Entity:  "vessel",
				ID:      v.ID,
				Code:    CodeDuplicateID,
				Message: fmt.Sprintf("vessel %s appears more than once; later copy ignored", v.ID),
			})
			continue
		}
		seen[v.ID] = true

		est, err := EstimateVessel(v)
		if err != nil {
			tl.Errors = append(tl.Errors, newItemError("vessel", v.ID, err))
			continue
		}

		vesselPauses := Pauses(v.ID, pauses[v.ID])
		tl.Segments = append(tl.Segments, BuildSegments(v.Name, Span{Start: est.StartDate, End: est.EndDate}, vesselPauses)...)

		vesselOverlays := overlays[v.ID]
		SortChronological(vesselOverlays)
		for _, task := range vesselOverlays {
			tl.Overlays = append(tl.Overlays, taskSegment(v.Name, task))
		}

		tl.Vessels = append(tl.Vessels, VesselPlan{
			VesselID: v.ID,
			Name:     v.Name,
			Estimate: est,
			Summary:  est.Summary(),
			Pauses:   len(vesselPauses),
		})
	}

	SortChronological(unassigned)
	for _, task := range unassigned {
		tl.Segments = append(tl.Segments, taskSegment(UnassignedResource, task))
	}

	return tl
}

// Extent returns the earliest start and latest finish over all segments and
// overlays. Pauses may overflow a vessel's end date, so the extent is taken
// from the segments rather than from vessel end dates.
func (tl *Timeline) Extent() (start, finish time.Time, ok bool) {
	for _, group := range [][]Segment{tl.Segments, tl.Overlays} {
		for _, s := range group {
			if !ok || s.Start.Before(start) {
				start = s.Start
			}
			if !ok || s.Finish.After(finish) {
				finish = s.Finish
			}
			ok = true
		}
	}
	return start, finish, ok
}

// ByResource returns the segments of one resource, in output order.
func (tl *Timeline) ByResource(resource string) []Segment {
	var out []Segment
	for _, s := range tl.Segments {
		if s.Resource == resource {
			out = append(out, s)
		}
	}
	return out
}
