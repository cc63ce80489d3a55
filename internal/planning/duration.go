/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"math"
	"time"

	"github.com/friendsincode/hydroplan/internal/models"
)

// HoursPerDay converts knots (nautical miles per hour) and allowances in hours to days.
const HoursPerDay = 24

// Estimate is the DurationModel output for one vessel. Day counts are kept
// unrounded; use Summary for display values.
type Estimate struct {
	SurveyDays      float64   `json:"survey_days"`
	TransitDays     float64   `json:"transit_days"`
	WeatherDays     float64   `json:"weather_days"`
	MaintenanceDays float64   `json:"maintenance_days"`
	TotalDays       float64   `json:"total_days"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

// EstimateVessel computes survey duration, total duration and end date.
// Invalid vessels are rejected with an error wrapping ErrInvalidInput.
func EstimateVessel(v models.Vessel) (Estimate, error) {
	if err := v.Validate(); err != nil {
		return Estimate{}, err
	}

	e := Estimate{
		SurveyDays:      v.DistanceKM / (v.SpeedKnots * HoursPerDay),
		TransitDays:     v.Transit.Days(),
		WeatherDays:     v.Weather.Days(),
		MaintenanceDays: v.Maintenance.Days(),
		StartDate:       v.StartDate,
	}
	e.TotalDays = e.SurveyDays + e.TransitDays + e.WeatherDays + e.MaintenanceDays
	e.EndDate = AddDays(v.StartDate, e.TotalDays)
	return e, nil
}

// AddDays offsets t by a fractional number of 24-hour days, rounded to the
// nearest nanosecond. The offset is absolute elapsed time, so across a DST
// change the wall clock of the result moves by the shift; DaysBetween uses
// the same measure and undoes it exactly.
func AddDays(t time.Time, days float64) time.Time {
	return t.Add(time.Duration(math.Round(days * float64(HoursPerDay*time.Hour))))
}

// DaysBetween returns the elapsed time between two instants in 24-hour days.
func DaysBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours() / HoursPerDay
}

// RoundDays rounds a day count to two decimal places for display.
func RoundDays(days float64) float64 {
	return math.Round(days*100) / 100
}

// Summary is the display form of an estimate.
type Summary struct {
	SurveyDays      float64 `json:"survey_days"`
	TransitDays     float64 `json:"transit_days"`
	WeatherDays     float64 `json:"weather_days"`
	MaintenanceDays float64 `json:"maintenance_days"`
	TotalDays       float64 `json:"total_days"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
}

// Summary rounds day counts and formats dates. Rounding happens here only,
// never before date arithmetic.
func (e Estimate) Summary() Summary {
	return Summary{
		SurveyDays:      RoundDays(e.SurveyDays),
		TransitDays:     RoundDays(e.TransitDays),
		WeatherDays:     RoundDays(e.WeatherDays),
		MaintenanceDays: RoundDays(e.MaintenanceDays),
		TotalDays:       RoundDays(e.TotalDays),
		StartDate:       FormatDate(e.StartDate),
		EndDate:         FormatDate(e.EndDate),
	}
}

// FormatDate prints midnight instants as a plain date and anything else
// with hours and minutes.
func FormatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}
