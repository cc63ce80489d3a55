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
	"github.com/friendsincode/hydroplan/internal/planning"
	"github.com/friendsincode/hydroplan/internal/project"
)

// vesselRequest accepts plain dates and allowance shorthand ("36h", 1.5).
type vesselRequest struct {
	Name        string            `json:"name"`
	DistanceKM  float64           `json:"distance_km"`
	Speed       float64           `json:"speed"`
	StartDate   project.Timestamp `json:"start_date"`
	Transit     models.Allowance  `json:"transit"`
	Weather     models.Allowance  `json:"weather"`
	Maintenance models.Allowance  `json:"maintenance"`
}

func (req vesselRequest) vessel(id string) models.Vessel {
	return models.Vessel{
		ID:          id,
		Name:        req.Name,
		DistanceKM:  req.DistanceKM,
		SpeedKnots:  req.Speed,
		StartDate:   req.StartDate.Time,
		Transit:     req.Transit,
		Weather:     req.Weather,
		Maintenance: req.Maintenance,
	}
}

// vesselView is a stored vessel with its derived durations.
type vesselView struct {
	models.Vessel
	Summary *planning.Summary `json:"summary,omitempty"`
}

func newVesselView(v models.Vessel) vesselView {
	view := vesselView{Vessel: v}
	if est, err := planning.EstimateVessel(v); err == nil {
		sum := est.Summary()
		view.Summary = &sum
	}
	return view
}

func (a *API) handleVesselsList(w http.ResponseWriter, r *http.Request) {
	vessels, err := a.store.ListVessels(r.Context())
	if err != nil {
		a.writeStoreError(w, err, "list vessels")
		return
	}
	out := make([]vesselView, 0, len(vessels))
	for _, v := range vessels {
		out = append(out, newVesselView(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleVesselsGet(w http.ResponseWriter, r *http.Request) {
	v, err := a.store.GetVessel(r.Context(), chi.URLParam(r, "vesselID"))
	if err != nil {
		a.writeStoreError(w, err, "get vessel")
		return
	}
	writeJSON(w, http.StatusOK, newVesselView(v))
}

func (a *API) handleVesselsCreate(w http.ResponseWriter, r *http.Request) {
	var req vesselRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := a.store.CreateVessel(r.Context(), req.vessel(""))
	if err != nil {
		a.writeStoreError(w, err, "create vessel")
		return
	}
	a.publish(events.EventVesselCreated, events.Payload{"vessel_id": v.ID, "name": v.Name})
	writeJSON(w, http.StatusCreated, newVesselView(v))
}

func (a *API) handleVesselsUpdate(w http.ResponseWriter, r *http.Request) {
	var req vesselRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := a.store.UpdateVessel(r.Context(), req.vessel(chi.URLParam(r, "vesselID")))
	if err != nil {
		a.writeStoreError(w, err, "update vessel")
		return
	}
	a.publish(events.EventVesselUpdated, events.Payload{"vessel_id": v.ID, "name": v.Name})
	writeJSON(w, http.StatusOK, newVesselView(v))
}

// handleVesselsDelete leaves tasks referencing the vessel in place; the
// timeline reports them as dangling.
func (a *API) handleVesselsDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "vesselID")
	if err := a.store.DeleteVessel(r.Context(), id); err != nil {
		a.writeStoreError(w, err, "delete vessel")
		return
	}
	a.publish(events.EventVesselDeleted, events.Payload{"vessel_id": id})
	w.WriteHeader(http.StatusNoContent)
}

// handleEstimate runs the duration model on an unsaved vessel.
func (a *API) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req vesselRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v := req.vessel("")
	if v.Name == "" {
		v.Name = "estimate"
	}
	est, err := a.planner.Estimate(v)
	if err != nil {
		a.writeStoreError(w, err, "estimate")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"estimate": est,
		"summary":  est.Summary(),
	})
}
