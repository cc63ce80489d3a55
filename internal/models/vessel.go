/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AllowanceUnit is the unit a contingency allowance was entered in.
type AllowanceUnit string

const (
	UnitDays  AllowanceUnit = "days"
	UnitHours AllowanceUnit = "hours"
)

// Allowance is a non-negative contingency duration (transit, weather, maintenance).
type Allowance struct {
	Value float64       `json:"value" yaml:"value"`
	Unit  AllowanceUnit `json:"unit" yaml:"unit" gorm:"type:varchar(8)"`
}

// Days returns the allowance normalized to days.
func (a Allowance) Days() float64 {
	if a.Unit == UnitHours {
		return a.Value / 24
	}
	return a.Value
}

// Days builds an allowance expressed in days.
func Days(v float64) Allowance { return Allowance{Value: v, Unit: UnitDays} }

// Hours builds an allowance expressed in hours.
func Hours(v float64) Allowance { return Allowance{Value: v, Unit: UnitHours} }

// ParseAllowance accepts "1.5", "1.5d", "36h", "2 days" or "12 hours".
func ParseAllowance(raw string) (Allowance, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Days(0), nil
	}
	unit := UnitDays
	for _, suffix := range []struct {
		text string
		unit AllowanceUnit
	}{
		{"hours", UnitHours}, {"hour", UnitHours}, {"h", UnitHours},
		{"days", UnitDays}, {"day", UnitDays}, {"d", UnitDays},
	} {
		if strings.HasSuffix(s, suffix.text) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix.text))
			unit = suffix.unit
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Allowance{}, fmt.Errorf("parse allowance %q: %w", raw, err)
	}
	return Allowance{Value: v, Unit: unit}, nil
}

// UnmarshalJSON accepts a bare number of days, a string such as "36h", or
// the {"value": 1.5, "unit": "days"} object form.
func (a *Allowance) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	return a.fromAny(raw)
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (a *Allowance) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return a.fromAny(raw)
}

func (a *Allowance) fromAny(raw any) error {
	switch v := raw.(type) {
	case nil:
		*a = Days(0)
	case float64:
		*a = Days(v)
	case int:
		*a = Days(float64(v))
	case string:
		parsed, err := ParseAllowance(v)
		if err != nil {
			return err
		}
		*a = parsed
	case map[string]any:
		value, ok := v["value"].(float64)
		if !ok {
			if n, isInt := v["value"].(int); isInt {
				value, ok = float64(n), true
			}
		}
		if !ok {
			return fmt.Errorf("allowance value must be a number, got %v", v["value"])
		}
		unit, _ := v["unit"].(string)
		*a = Allowance{Value: value, Unit: AllowanceUnit(strings.ToLower(unit))}
		if a.Unit == "" {
			a.Unit = UnitDays
		}
	default:
		return fmt.Errorf("unsupported allowance %v", raw)
	}
	return nil
}

func (a Allowance) String() string {
	if a.Unit == UnitHours {
		return strconv.FormatFloat(a.Value, 'f', -1, 64) + "h"
	}
	return strconv.FormatFloat(a.Value, 'f', -1, 64) + "d"
}

// Vessel is a survey vessel with its line-kilometre workload.
//
// Survey days, total days and end date are not stored; they are derived by
// the planning engine every time the timeline is built.
type Vessel struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id" yaml:"id"`
	Name        string    `gorm:"index" json:"name" yaml:"name"`
	DistanceKM  float64   `json:"distance_km" yaml:"distance_km"`
	SpeedKnots  float64   `json:"speed" yaml:"speed"`
	StartDate   time.Time `json:"start_date" yaml:"start_date"`
	Transit     Allowance `gorm:"embedded;embeddedPrefix:transit_" json:"transit" yaml:"transit"`
	Weather     Allowance `gorm:"embedded;embeddedPrefix:weather_" json:"weather" yaml:"weather"`
	Maintenance Allowance `gorm:"embedded;embeddedPrefix:maintenance_" json:"maintenance" yaml:"maintenance"`
	// Seq preserves creation order for deterministic tie-breaking.
	Seq       int64     `gorm:"index" json:"seq" yaml:"seq"`
	CreatedAt time.Time `json:"-" yaml:"-"`
	UpdatedAt time.Time `json:"-" yaml:"-"`
}

// NewVessel constructs a vessel and validates its inputs.
func NewVessel(id, name string, distanceKM, speedKnots float64, start time.Time, transit, weather, maintenance Allowance) (Vessel, error) {
	v := Vessel{
		ID:          id,
		Name:        name,
		DistanceKM:  distanceKM,
		SpeedKnots:  speedKnots,
		StartDate:   start,
		Transit:     transit,
		Weather:     weather,
		Maintenance: maintenance,
	}
	if err := v.Validate(); err != nil {
		return Vessel{}, err
	}
	return v, nil
}

// Validate checks the vessel's input invariants.
func (v Vessel) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return &FieldError{Entity: "vessel", ID: v.ID, Field: "name", Reason: "must not be empty"}
	}
	if !(v.DistanceKM > 0) {
		return &FieldError{Entity: "vessel", ID: v.ID, Field: "distance_km", Reason: fmt.Sprintf("must be > 0, got %v", v.DistanceKM)}
	}
	if !(v.SpeedKnots > 0) {
		return &FieldError{Entity: "vessel", ID: v.ID, Field: "speed", Reason: fmt.Sprintf("must be > 0, got %v", v.SpeedKnots)}
	}
	if v.StartDate.IsZero() {
		return &FieldError{Entity: "vessel", ID: v.ID, Field: "start_date", Reason: "must be set"}
	}
	for _, a := range []struct {
		field string
		value Allowance
	}{
		{"transit", v.Transit},
		{"weather", v.Weather},
		{"maintenance", v.Maintenance},
	} {
		if a.value.Unit != "" && a.value.Unit != UnitDays && a.value.Unit != UnitHours {
			return &FieldError{Entity: "vessel", ID: v.ID, Field: a.field, Reason: fmt.Sprintf("unknown unit %q", a.value.Unit)}
		}
		if a.value.Value < 0 {
			return &FieldError{Entity: "vessel", ID: v.ID, Field: a.field, Reason: fmt.Sprintf("must be >= 0, got %v", a.value.Value)}
		}
	}
	return nil
}
