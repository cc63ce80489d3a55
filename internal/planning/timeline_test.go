/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/friendsincode/hydroplan/internal/models"
)

func TestAssembleGroupsByVesselThenUnassigned(t *testing.T) {
	a := testVessel(t, "a", 120, 5, day(2025, 1, 1), 1, 2, 0)
	b := testVessel(t, "b", 240, 5, day(2025, 1, 3), 0, 0, 0)

	tasks := []models.Task{
		{ID: "u2", Name: "Crew change", StartDate: day(2025, 1, 4), EndDate: day(2025, 1, 4)},
		pauseTask("m", "a", models.CategoryMaintenance, day(2025, 1, 2), day(2025, 1, 3)),
		{ID: "u1", Name: "Permit", StartDate: day(2025, 1, 1), EndDate: day(2025, 1, 2)},
		{ID: "s", Name: "Sampling", Category: models.CategorySample, StartDate: day(2025, 1, 3), EndDate: day(2025, 1, 4), VesselID: strPtr("b")},
	}

	tl := Assemble([]models.Vessel{a, b}, tasks)

	if len(tl.Errors) != 0 || len(tl.Warnings) != 0 {
		t.Fatalf("errors = %+v, warnings = %+v", tl.Errors, tl.Warnings)
	}

	var resources []string
	for _, s := range tl.Segments {
		resources = append(resources, s.Resource)
	}
	want := []string{"Vessel a", "Vessel a", "Vessel a", "Vessel b", "Unassigned", "Unassigned"}
	if !reflect.DeepEqual(resources, want) {
		t.Fatalf("resources = %v, want %v", resources, want)
	}

	unassigned := tl.ByResource(UnassignedResource)
	if unassigned[0].Label != "Task: Permit" || unassigned[1].Label != "Task: Crew change" {
		t.Fatalf("unassigned order = %q, %q", unassigned[0].Label, unassigned[1].Label)
	}
	if unassigned[0].Kind != string(models.CategoryGeneral) {
		t.Fatalf("uncategorized kind = %q, want General", unassigned[0].Kind)
	}

	if len(tl.Overlays) != 1 || tl.Overlays[0].Resource != "Vessel b" || tl.Overlays[0].Kind != "Sample" {
		t.Fatalf("overlays = %+v", tl.Overlays)
	}

	if len(tl.Vessels) != 2 || tl.Vessels[0].Pauses != 1 || tl.Vessels[1].Summary.EndDate != "2025-01-05" {
		t.Fatalf("vessels = %+v", tl.Vessels)
	}
}

func TestAssembleOrdersPausesFromAnyInputOrder(t *testing.T) {
	v := testVessel(t, "a", 120, 5, day(2025, 1, 1), 1, 2, 0)
	early := pauseTask("early", "a", models.CategoryWeather, day(2025, 1, 2), day(2025, 1, 2).Add(12*time.Hour))
	late := pauseTask("late", "a", models.CategoryMaintenance, day(2025, 1, 3), day(2025, 1, 4))

	tl := Assemble([]models.Vessel{v}, []models.Task{late, early})
	want := []string{"Survey (part): Vessel a", "Task: early", "Survey (part): Vessel a", "Task: late", "Survey (resumed): Vessel a"}
	if len(tl.Segments) != len(want) {
		t.Fatalf("segments = %+v", tl.Segments)
	}
	for i, label := range want {
		if tl.Segments[i].Label != label {
			t.Fatalf("segment %d = %q, want %q", i, tl.Segments[i].Label, label)
		}
	}
	if tl.Vessels[0].Pauses != 2 {
		t.Fatalf("Pauses = %d, want 2", tl.Vessels[0].Pauses)
	}
}

func TestAssembleDanglingReferenceWarns(t *testing.T) {
	a := testVessel(t, "a", 120, 5, day(2025, 1, 1), 0, 0, 0)
	orphan := pauseTask("o", "ghost", models.CategoryWeather, day(2025, 1, 1), day(2025, 1, 2))
	orphan.Recurrence = "FREQ=DAILY;COUNT=2"

	tl := Assemble([]models.Vessel{a}, []models.Task{orphan})

	if len(tl.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1 per task", len(tl.Warnings))
	}
	if !errors.Is(tl.Warnings[0], ErrDanglingReference) {
		t.Fatalf("warning = %v, want ErrDanglingReference", tl.Warnings[0])
	}
	if got := len(tl.ByResource(UnassignedResource)); got != 2 {
		t.Fatalf("unassigned segments = %d, want 2", got)
	}
	if got := len(tl.ByResource("Vessel a")); got != 1 {
		t.Fatalf("vessel segments = %d, want 1 (orphan must not pause it)", got)
	}
}

func TestAssemblePartialFailure(t *testing.T) {
	good := testVessel(t, "good", 120, 5, day(2025, 1, 1), 0, 0, 0)
	bad := models.Vessel{ID: "bad", Name: "Bad", DistanceKM: -5, SpeedKnots: 5, StartDate: day(2025, 1, 1)}
	reversed := models.Task{ID: "rev", Name: "Reversed", StartDate: day(2025, 1, 3), EndDate: day(2025, 1, 2)}
	dup := good

	tl := Assemble([]models.Vessel{good, bad, dup}, []models.Task{reversed})

	if len(tl.Vessels) != 1 || tl.Vessels[0].VesselID != "good" {
		t.Fatalf("vessels = %+v, want only good", tl.Vessels)
	}
	codes := map[string]string{}
	for _, e := range tl.Errors {
		codes[e.Entity+":"+e.ID] = e.Code
	}
	want := map[string]string{
		"vessel:bad":  CodeInvalidInput,
		"vessel:good": CodeDuplicateID,
		"task:rev":    CodeInvalidInput,
	}
	if !reflect.DeepEqual(codes, want) {
		t.Fatalf("errors = %v, want %v", codes, want)
	}
	for _, e := range tl.Errors {
		if e.Code == CodeInvalidInput && !errors.Is(e, ErrInvalidInput) {
			t.Fatalf("item error %v does not wrap ErrInvalidInput", e)
		}
	}
	// Tasks are validated before vessels.
	if tl.Errors[0].Field != "end_date" || tl.Errors[1].Field != "distance_km" {
		t.Fatalf("fields = %q, %q; want end_date, distance_km", tl.Errors[0].Field, tl.Errors[1].Field)
	}
}

func TestAssembleDoesNotMutateInput(t *testing.T) {
	a := testVessel(t, "a", 500, 5, day(2025, 1, 1), 0, 0, 0)
	tasks := []models.Task{
		pauseTask("late", "a", models.CategoryWeather, day(2025, 1, 3), day(2025, 1, 4)),
		pauseTask("early", "a", models.CategoryWeather, day(2025, 1, 2), day(2025, 1, 3)),
	}
	before := append([]models.Task(nil), tasks...)

	first := Assemble([]models.Vessel{a}, tasks)
	second := Assemble([]models.Vessel{a}, tasks)

	if !reflect.DeepEqual(tasks, before) {
		t.Fatal("Assemble reordered or modified the input tasks")
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("Assemble is not idempotent")
	}
}

func TestTimelineExtentIncludesOverflow(t *testing.T) {
	a := testVessel(t, "a", 120, 5, day(2025, 1, 1), 0, 0, 0)
	tasks := []models.Task{
		pauseTask("storm", "a", models.CategoryWeather, day(2025, 1, 1), day(2025, 1, 6)),
		{ID: "u", Name: "Prep", StartDate: day(2024, 12, 20), EndDate: day(2024, 12, 22)},
	}

	tl := Assemble([]models.Vessel{a}, tasks)
	start, finish, ok := tl.Extent()
	if !ok {
		t.Fatal("Extent reported empty timeline")
	}
	if !start.Equal(day(2024, 12, 20)) || !finish.Equal(day(2025, 1, 6)) {
		t.Fatalf("extent = [%v, %v], want [2024-12-20, 2025-01-06]", start, finish)
	}

	if _, _, ok := Assemble(nil, nil).Extent(); ok {
		t.Fatal("empty timeline reported an extent")
	}
}
