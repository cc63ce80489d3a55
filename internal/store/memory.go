/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/friendsincode/hydroplan/internal/models"
)

// Memory is an in-process Store. It is the caller-owned session used by the
// CLI and by tests; the zero value is not usable, call NewMemory.
type Memory struct {
	mu      sync.RWMutex
	project models.Project
	vessels []models.Vessel
	tasks   []models.Task
	seq     int64
}

// NewMemory returns an empty session with a default project header.
func NewMemory() *Memory {
	return &Memory{project: defaultProject()}
}

func (m *Memory) touch() {
	m.project.Revision++
	m.project.UpdatedAt = time.Now().UTC()
}

func (m *Memory) nextSeq() int64 {
	m.seq++
	return m.seq
}

// Snapshot returns copies of the session collections.
func (m *Memory) Snapshot(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Project: m.project,
		Vessels: slices.Clone(m.vessels),
		Tasks:   cloneTasks(m.tasks),
	}, nil
}

// Revision returns the change counter.
func (m *Memory) Revision(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.project.Revision, nil
}

func (m *Memory) Project(_ context.Context) (models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.project, nil
}

func (m *Memory) SaveProject(_ context.Context, p models.Project) (models.Project, error) {
	if err := p.Validate(); err != nil {
		return models.Project{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.project.Name = p.Name
	if m.project.Name == "" {
		m.project.Name = DefaultProjectName
	}
	m.project.UnsurveyedKM = p.UnsurveyedKM
	m.touch()
	return m.project, nil
}

func (m *Memory) ListVessels(_ context.Context) ([]models.Vessel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.vessels), nil
}

func (m *Memory) GetVessel(_ context.Context, id string) (models.Vessel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.vesselIndex(id)
	if i < 0 {
		return models.Vessel{}, ErrNotFound
	}
	return m.vessels[i], nil
}

func (m *Memory) CreateVessel(_ context.Context, v models.Vessel) (models.Vessel, error) {
	v, err := prepareVessel(v)
	if err != nil {
		return models.Vessel{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vesselIndex(v.ID) >= 0 {
		return models.Vessel{}, &models.FieldError{Entity: "vessel", ID: v.ID, Field: "id", Reason: "already exists"}
	}
	now := time.Now().UTC()
	v.Seq = m.nextSeq()
	v.CreatedAt, v.UpdatedAt = now, now
	m.vessels = append(m.vessels, v)
	m.touch()
	return v, nil
}

func (m *Memory) UpdateVessel(_ context.Context, v models.Vessel) (models.Vessel, error) {
	v, err := prepareVessel(v)
	if err != nil {
		return models.Vessel{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.vesselIndex(v.ID)
	if i < 0 {
		return models.Vessel{}, ErrNotFound
	}
	v.Seq = m.vessels[i].Seq
	v.CreatedAt = m.vessels[i].CreatedAt
	v.UpdatedAt = time.Now().UTC()
	m.vessels[i] = v
	m.touch()
	return v, nil
}

// DeleteVessel removes the vessel. Tasks bound to it are kept and become
// dangling references.
func (m *Memory) DeleteVessel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.vesselIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	m.vessels = slices.Delete(m.vessels, i, i+1)
	m.touch()
	return nil
}

func (m *Memory) ListTasks(_ context.Context) ([]models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneTasks(m.tasks), nil
}

func (m *Memory) GetTask(_ context.Context, id string) (models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.taskIndex(id)
	if i < 0 {
		return models.Task{}, ErrNotFound
	}
	return cloneTask(m.tasks[i]), nil
}

func (m *Memory) CreateTask(_ context.Context, t models.Task) (models.Task, error) {
	t, err := prepareTask(t)
	if err != nil {
		return models.Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taskIndex(t.ID) >= 0 {
		return models.Task{}, &models.FieldError{Entity: "task", ID: t.ID, Field: "id", Reason: "already exists"}
	}
	now := time.Now().UTC()
	t.Seq = m.nextSeq()
	t.CreatedAt, t.UpdatedAt = now, now
	t = cloneTask(t)
	m.tasks = append(m.tasks, t)
	m.touch()
	return cloneTask(t), nil
}

func (m *Memory) UpdateTask(_ context.Context, t models.Task) (models.Task, error) {
	t, err := prepareTask(t)
	if err != nil {
		return models.Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.taskIndex(t.ID)
	if i < 0 {
		return models.Task{}, ErrNotFound
	}
	t.Seq = m.tasks[i].Seq
	t.CreatedAt = m.tasks[i].CreatedAt
	t.UpdatedAt = time.Now().UTC()
	m.tasks[i] = cloneTask(t)
	m.touch()
	return cloneTask(t), nil
}

func (m *Memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.taskIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	m.tasks = slices.Delete(m.tasks, i, i+1)
	m.touch()
	return nil
}

func (m *Memory) Replace(_ context.Context, snap Snapshot) error {
	prepared, err := prepareSnapshot(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	revision := m.project.Revision
	m.project = prepared.Project
	m.project.Revision = revision
	m.vessels = prepared.Vessels
	m.tasks = cloneTasks(prepared.Tasks)
	m.seq = int64(len(m.vessels) + len(m.tasks))
	m.touch()
	return nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	revision := m.project.Revision
	m.project = defaultProject()
	m.project.Revision = revision
	m.vessels = nil
	m.tasks = nil
	m.touch()
	return nil
}

func (m *Memory) vesselIndex(id string) int {
	return slices.IndexFunc(m.vessels, func(v models.Vessel) bool { return v.ID == id })
}

func (m *Memory) taskIndex(id string) int {
	return slices.IndexFunc(m.tasks, func(t models.Task) bool { return t.ID == id })
}

// cloneTask detaches the VesselID pointer so callers cannot edit stored tasks.
func cloneTask(t models.Task) models.Task {
	if t.VesselID != nil {
		id := *t.VesselID
		t.VesselID = &id
	}
	return t
}

func cloneTasks(tasks []models.Task) []models.Task {
	if tasks == nil {
		return nil
	}
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = cloneTask(t)
	}
	return out
}
