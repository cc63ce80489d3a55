/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"
)

// TaskCategory is an open enumeration; any non-empty label is accepted.
type TaskCategory string

const (
	CategorySurvey      TaskCategory = "Survey"
	CategoryMaintenance TaskCategory = "Maintenance"
	CategoryWeather     TaskCategory = "Weather"
	CategoryTransit     TaskCategory = "Transit"
	CategoryDelay       TaskCategory = "Delay"
	CategorySample      TaskCategory = "Sample"
	CategoryDeployment  TaskCategory = "Deployment"
	CategoryRecovery    TaskCategory = "Recovery"
	CategoryGeneral     TaskCategory = "General"
	CategoryOther       TaskCategory = "Other"
)

// KnownCategories lists the categories offered by default.
var KnownCategories = []TaskCategory{
	CategorySurvey,
	CategoryMaintenance,
	CategoryWeather,
	CategoryTransit,
	CategoryDelay,
	CategorySample,
	CategoryDeployment,
	CategoryRecovery,
	CategoryGeneral,
	CategoryOther,
}

// Task is a discrete activity on the project timeline. A task bound to a
// vessel with PausesSurvey set halts that vessel's survey clock.
type Task struct {
	ID        string       `gorm:"type:uuid;primaryKey" json:"id" yaml:"id"`
	Name      string       `json:"name" yaml:"name"`
	Category  TaskCategory `gorm:"type:varchar(32)" json:"category" yaml:"category"`
	StartDate time.Time    `json:"start_date" yaml:"start_date"`
	EndDate   time.Time    `json:"end_date" yaml:"end_date"`
	// VesselID is a lookup reference only; the vessel may not exist.
	VesselID     *string `gorm:"type:uuid;index" json:"vessel_id,omitempty" yaml:"vessel_id,omitempty"`
	PausesSurvey bool    `json:"pauses_survey" yaml:"pauses_survey"`
	// Recurrence is an optional RFC 5545 RRULE (e.g. "FREQ=WEEKLY;COUNT=4").
	Recurrence string    `gorm:"type:varchar(255)" json:"recurrence,omitempty" yaml:"recurrence,omitempty"`
	Seq        int64     `gorm:"index" json:"seq" yaml:"seq"`
	CreatedAt  time.Time `json:"-" yaml:"-"`
	UpdatedAt  time.Time `json:"-" yaml:"-"`
}

// NewTask constructs a task and validates its inputs.
func NewTask(id, name string, category TaskCategory, start, end time.Time, vesselID *string, pausesSurvey bool) (Task, error) {
	t := Task{
		ID:           id,
		Name:         name,
		Category:     category,
		StartDate:    start,
		EndDate:      end,
		VesselID:     vesselID,
		PausesSurvey: pausesSurvey,
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Validate checks the task's input invariants.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return &FieldError{Entity: "task", ID: t.ID, Field: "name", Reason: "must not be empty"}
	}
	if t.StartDate.IsZero() {
		return &FieldError{Entity: "task", ID: t.ID, Field: "start_date", Reason: "must be set"}
	}
	if t.EndDate.IsZero() {
		return &FieldError{Entity: "task", ID: t.ID, Field: "end_date", Reason: "must be set"}
	}
	if t.EndDate.Before(t.StartDate) {
		return &FieldError{Entity: "task", ID: t.ID, Field: "end_date", Reason: "must not be before start_date"}
	}
	return nil
}

// Assigned reports whether the task references a vessel.
func (t Task) Assigned() bool {
	return t.VesselID != nil && *t.VesselID != ""
}

// CategoryOrDefault returns the category, falling back to General.
func (t Task) CategoryOrDefault() TaskCategory {
	if c := strings.TrimSpace(string(t.Category)); c != "" {
		return TaskCategory(c)
	}
	return CategoryGeneral
}
