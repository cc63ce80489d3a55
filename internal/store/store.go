/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store holds the vessels, tasks and project header of the single
// planning session. Memory keeps them in process; Repository keeps them in
// a SQL database through gorm. The planning engine never sees either: it is
// handed a Snapshot.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/friendsincode/hydroplan/internal/models"
)

// ErrNotFound is returned when a vessel or task ID does not exist.
var ErrNotFound = errors.New("not found")

// DefaultProjectName names the project header created on first use.
const DefaultProjectName = "Untitled survey"

// Snapshot is a consistent copy of the session. Vessels and tasks are in
// creation order. Callers own the slices.
type Snapshot struct {
	Project models.Project
	Vessels []models.Vessel
	Tasks   []models.Task
}

// Store is the session storage used by the planner, API and CLI.
type Store interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Revision(ctx context.Context) (int64, error)

	Project(ctx context.Context) (models.Project, error)
	SaveProject(ctx context.Context, p models.Project) (models.Project, error)

	ListVessels(ctx context.Context) ([]models.Vessel, error)
	GetVessel(ctx context.Context, id string) (models.Vessel, error)
	CreateVessel(ctx context.Context, v models.Vessel) (models.Vessel, error)
	UpdateVessel(ctx context.Context, v models.Vessel) (models.Vessel, error)
	DeleteVessel(ctx context.Context, id string) error

	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, t models.Task) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// Replace swaps the whole session for snap, as a project import does.
	Replace(ctx context.Context, snap Snapshot) error
	// Reset clears vessels and tasks and restores the default project header.
	Reset(ctx context.Context) error
}

// prepareVessel assigns an ID when missing and validates the record.
func prepareVessel(v models.Vessel) (models.Vessel, error) {
	if strings.TrimSpace(v.ID) == "" {
		v.ID = uuid.NewString()
	}
	normalizeAllowances(&v)
	if err := v.Validate(); err != nil {
		return models.Vessel{}, err
	}
	return v, nil
}

func prepareTask(t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	if t.VesselID != nil && strings.TrimSpace(*t.VesselID) == "" {
		t.VesselID = nil
	}
	if err := t.Validate(); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// Allowances entered without a unit are days.
func normalizeAllowances(v *models.Vessel) {
	for _, a := range []*models.Allowance{&v.Transit, &v.Weather, &v.Maintenance} {
		if a.Unit == "" {
			a.Unit = models.UnitDays
		}
	}
}

func defaultProject() models.Project {
	return models.Project{ID: uuid.NewString(), Name: DefaultProjectName}
}

// prepareSnapshot validates and normalizes an imported session, assigning
// IDs and creation order.
func prepareSnapshot(snap Snapshot) (Snapshot, error) {
	out := Snapshot{Project: snap.Project}
	if strings.TrimSpace(out.Project.ID) == "" {
		out.Project.ID = uuid.NewString()
	}
	if strings.TrimSpace(out.Project.Name) == "" {
		out.Project.Name = DefaultProjectName
	}
	if err := out.Project.Validate(); err != nil {
		return Snapshot{}, err
	}

	seen := make(map[string]bool)
	for i, v := range snap.Vessels {
		v, err := prepareVessel(v)
		if err != nil {
			return Snapshot{}, err
		}
		if seen[v.ID] {
			return Snapshot{}, &models.FieldError{Entity: "vessel", ID: v.ID, Field: "id", Reason: "is duplicated"}
		}
		seen[v.ID] = true
		v.Seq = int64(i + 1)
		out.Vessels = append(out.Vessels, v)
	}
	for i, t := range snap.Tasks {
		t, err := prepareTask(t)
		if err != nil {
			return Snapshot{}, err
		}
		if seen[t.ID] {
			return Snapshot{}, &models.FieldError{Entity: "task", ID: t.ID, Field: "id", Reason: "is duplicated"}
		}
		seen[t.ID] = true
		t.Seq = int64(i + 1)
		out.Tasks = append(out.Tasks, t)
	}
	return out, nil
}
