/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/friendsincode/hydroplan/internal/events"
	"github.com/friendsincode/hydroplan/internal/models"
)

type projectView struct {
	models.Project
	SurveyedKM  float64 `json:"surveyed_km"`
	RemainingKM float64 `json:"remaining_km"`
}

type projectRequest struct {
	Name         string  `json:"name"`
	UnsurveyedKM float64 `json:"unsurveyed_km"`
}

func (a *API) handleProjectGet(w http.ResponseWriter, r *http.Request) {
	snap, err := a.store.Snapshot(r.Context())
	if err != nil {
		a.writeStoreError(w, err, "load project")
		return
	}
	writeJSON(w, http.StatusOK, projectView{
		Project:     snap.Project,
		SurveyedKM:  models.SurveyedKM(snap.Vessels),
		RemainingKM: snap.Project.RemainingKM(snap.Vessels),
	})
}

func (a *API) handleProjectUpdate(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	current, err := a.store.Project(r.Context())
	if err != nil {
		a.writeStoreError(w, err, "load project")
		return
	}
	current.Name = req.Name
	current.UnsurveyedKM = req.UnsurveyedKM

	saved, err := a.store.SaveProject(r.Context(), current)
	if err != nil {
		a.writeStoreError(w, err, "save project")
		return
	}
	a.publish(events.EventProjectUpdated, events.Payload{
		"project_id":    saved.ID,
		"name":          saved.Name,
		"unsurveyed_km": saved.UnsurveyedKM,
		"revision":      saved.Revision,
	})
	writeJSON(w, http.StatusOK, saved)
}
