/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/hydroplan/internal/events"
	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/project"
)

type taskRequest struct {
	Name         string            `json:"name"`
	Category     string            `json:"category"`
	StartDate    project.Timestamp `json:"start_date"`
	EndDate      project.Timestamp `json:"end_date"`
	VesselID     *string           `json:"vessel_id"`
	PausesSurvey bool              `json:"pauses_survey"`
	Recurrence   string            `json:"recurrence"`
}

func (req taskRequest) task(id string) models.Task {
	return models.Task{
		ID:           id,
		Name:         req.Name,
		Category:     models.TaskCategory(req.Category),
		StartDate:    req.StartDate.Time,
		EndDate:      req.EndDate.Time,
		VesselID:     req.VesselID,
		PausesSurvey: req.PausesSurvey,
		Recurrence:   req.Recurrence,
	}
}

func taskPayload(t models.Task) events.Payload {
	payload := events.Payload{
		"task_id":       t.ID,
		"name":          t.Name,
		"pauses_survey": t.PausesSurvey,
	}
	if t.VesselID != nil {
		payload["vessel_id"] = *t.VesselID
	}
	return payload
}

func (a *API) handleTasksList(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.store.ListTasks(r.Context())
	if err != nil {
		a.writeStoreError(w, err, "list tasks")
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (a *API) handleTasksGet(w http.ResponseWriter, r *http.Request) {
	t, err := a.store.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		a.writeStoreError(w, err, "get task")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleTasksCreate does not require the referenced vessel to exist.
func (a *API) handleTasksCreate(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := a.store.CreateTask(r.Context(), req.task(""))
	if err != nil {
		a.writeStoreError(w, err, "create task")
		return
	}
	a.publish(events.EventTaskCreated, taskPayload(t))
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) handleTasksUpdate(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := a.store.UpdateTask(r.Context(), req.task(chi.URLParam(r, "taskID")))
	if err != nil {
		a.writeStoreError(w, err, "update task")
		return
	}
	a.publish(events.EventTaskUpdated, taskPayload(t))
	writeJSON(w, http.StatusOK, t)
}

func (a *API) handleTasksDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if err := a.store.DeleteTask(r.Context(), id); err != nil {
		a.writeStoreError(w, err, "delete task")
		return
	}
	a.publish(events.EventTaskDeleted, events.Payload{"task_id": id})
	w.WriteHeader(http.StatusNoContent)
}
