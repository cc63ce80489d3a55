/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"time"

	"github.com/friendsincode/hydroplan/internal/models"
)

// KindSurvey is the segment kind for active survey time. Pause segments use
// the pausing task's category as their kind.
const KindSurvey = string(models.CategorySurvey)

// Segment is one interval of the rendered timeline.
type Segment struct {
	Resource string    `json:"resource"`
	Label    string    `json:"label"`
	Kind     string    `json:"kind"`
	Start    time.Time `json:"start"`
	Finish   time.Time `json:"finish"`
}

// Duration returns Finish - Start.
func (s Segment) Duration() time.Duration {
	return s.Finish.Sub(s.Start)
}

// ZeroLength reports segments produced by clamping a pause to the cursor.
func (s Segment) ZeroLength() bool {
	return s.Finish.Equal(s.Start)
}

// Span is a vessel's operating window.
type Span struct {
	Start time.Time
	End   time.Time
}

// BuildSegments sweeps the span once, emitting survey segments between
// pauses and one segment per pause. pauses must already be ordered
// (see SortChronological).
//
// The cursor only moves forward. A pause starting before the cursor is
// clamped to it; a pause finishing after span.End is not clamped, so the
// last segment may run past the nominal end date.
func BuildSegments(resource string, span Span, pauses []models.Task) []Segment {
	if len(pauses) == 0 {
		return []Segment{surveySegment(resource, "Survey: ", span.Start, span.End)}
	}

	segments := make([]Segment, 0, 2*len(pauses)+1)
	cursor := span.Start

	for _, pause := range pauses {
		if pause.StartDate.After(cursor) {
			segments = append(segments, surveySegment(resource, "Survey (part): ", cursor, pause.StartDate))
		}

		start := laterOf(cursor, pause.StartDate)
		segments = append(segments, Segment{
			Resource: resource,
			Label:    taskLabel(pause),
			Kind:     string(pause.CategoryOrDefault()),
			Start:    start,
			Finish:   laterOf(start, pause.EndDate),
		})

		cursor = laterOf(cursor, pause.EndDate)
	}

	if cursor.Before(span.End) {
		segments = append(segments, surveySegment(resource, "Survey (resumed): ", cursor, span.End))
	}
	return segments
}

func surveySegment(resource, prefix string, start, finish time.Time) Segment {
	return Segment{
		Resource: resource,
		Label:    prefix + resource,
		Kind:     KindSurvey,
		Start:    start,
		Finish:   finish,
	}
}

func taskSegment(resource string, task models.Task) Segment {
	return Segment{
		Resource: resource,
		Label:    taskLabel(task),
		Kind:     string(task.CategoryOrDefault()),
		Start:    task.StartDate,
		Finish:   task.EndDate,
	}
}

func taskLabel(task models.Task) string {
	return "Task: " + task.Name
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
