/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"errors"
	"fmt"

	"github.com/friendsincode/hydroplan/internal/models"
)

var (
	// ErrInvalidInput marks records rejected before estimation or segmentation.
	ErrInvalidInput = models.ErrInvalidInput

	// ErrDanglingReference marks a task whose vessel_id matches no vessel.
	ErrDanglingReference = errors.New("dangling vessel reference")
)

// Error and warning codes carried in timeline results.
const (
	CodeInvalidInput      = "invalid_input"
	CodeDuplicateID       = "duplicate_id"
	CodeDanglingReference = "dangling_reference"
)

// ItemError reports a single vessel or task that could not be processed.
// Other records in the same run are unaffected.
type ItemError struct {
	Entity  string `json:"entity"`
	ID      string `json:"id"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ItemError) Error() string { return e.Message }

func (e ItemError) Unwrap() error {
	if e.Code == CodeInvalidInput {
		return ErrInvalidInput
	}
	return nil
}

func newItemError(entity, id string, err error) ItemError {
	item := ItemError{Entity: entity, ID: id, Code: CodeInvalidInput, Message: err.Error()}
	var fe *models.FieldError
	if errors.As(err, &fe) {
		item.Field = fe.Field
	}
	return item
}

// Warning is a non-fatal problem surfaced alongside a successful run.
type Warning struct {
	Code     string `json:"code"`
	TaskID   string `json:"task_id"`
	VesselID string `json:"vessel_id"`
	Message  string `json:"message"`
}

func (w Warning) Error() string { return w.Message }

func (w Warning) Unwrap() error {
	if w.Code == CodeDanglingReference {
		return ErrDanglingReference
	}
	return nil
}

func danglingWarning(task models.Task) Warning {
	return Warning{
		Code:     CodeDanglingReference,
		TaskID:   task.ID,
		VesselID: *task.VesselID,
		Message:  fmt.Sprintf("task %q references unknown vessel %s; shown as unassigned", task.Name, *task.VesselID),
	}
}
