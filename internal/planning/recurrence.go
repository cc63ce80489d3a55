/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"fmt"
	"strings"

	"github.com/teambition/rrule-go"

	"github.com/friendsincode/hydroplan/internal/models"
)

// MaxOccurrences caps how many instances one recurring task may expand to.
const MaxOccurrences = 366

// ExpandRecurrence returns the occurrences of a recurring task. Each
// occurrence keeps the task's duration and gets the ID "<id>#<n>".
// Non-recurring tasks are returned unchanged.
func ExpandRecurrence(task models.Task) ([]models.Task, error) {
	rule := strings.TrimSpace(task.Recurrence)
	if rule == "" {
		return []models.Task{task}, nil
	}

	rr, err := rrule.StrToRRule(strings.TrimPrefix(rule, "RRULE:"))
	if err != nil {
		return nil, &models.FieldError{Entity: "task", ID: task.ID, Field: "recurrence", Reason: err.Error()}
	}
	if rr.OrigOptions.Count == 0 && rr.OrigOptions.Until.IsZero() {
		return nil, &models.FieldError{Entity: "task", ID: task.ID, Field: "recurrence", Reason: "must be bounded by COUNT or UNTIL"}
	}
	rr.DTStart(task.StartDate)

	duration := task.EndDate.Sub(task.StartDate)
	var out []models.Task
	next := rr.Iterator()
	for n := 1; n <= MaxOccurrences; n++ {
		start, ok := next()
		if !ok {
			break
		}
		occ := task
		occ.ID = fmt.Sprintf("%s#%d", task.ID, n)
		occ.Recurrence = ""
		occ.StartDate = start.In(task.StartDate.Location())
		occ.EndDate = occ.StartDate.Add(duration)
		out = append(out, occ)
	}
	return out, nil
}
