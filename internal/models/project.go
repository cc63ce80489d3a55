/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput is the sentinel all field validation errors unwrap to.
var ErrInvalidInput = errors.New("invalid input")

// FieldError reports the field of a vessel or task that failed validation.
type FieldError struct {
	Entity string
	ID     string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("invalid %s %s: %s %s", e.Entity, e.ID, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

// Project holds the header information of the survey being planned.
// A deployment plans a single project at a time.
type Project struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	UnsurveyedKM float64   `json:"unsurveyed_km" yaml:"unsurveyed_km"`
	// Revision increases on every change to the project, its vessels or its tasks.
	Revision  int64     `json:"revision" yaml:"-"`
	CreatedAt time.Time `json:"-" yaml:"-"`
	UpdatedAt time.Time `json:"-" yaml:"-"`
}

// Validate checks the project header.
func (p Project) Validate() error {
	if p.UnsurveyedKM < 0 {
		return &FieldError{Entity: "project", ID: p.ID, Field: "unsurveyed_km", Reason: fmt.Sprintf("must be >= 0, got %v", p.UnsurveyedKM)}
	}
	return nil
}

// SurveyedKM sums the line kilometres assigned to vessels.
func SurveyedKM(vessels []Vessel) float64 {
	var total float64
	for _, v := range vessels {
		total += v.DistanceKM
	}
	return total
}

// RemainingKM is the unsurveyed workload not yet assigned to a vessel.
func (p Project) RemainingKM(vessels []Vessel) float64 {
	remaining := p.UnsurveyedKM - SurveyedKM(vessels)
	if remaining < 0 {
		return 0
	}
	return remaining
}
