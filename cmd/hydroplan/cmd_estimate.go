/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/planning"
	"github.com/friendsincode/hydroplan/internal/project"
)

var (
	estimateDistance    float64
	estimateSpeed       float64
	estimateStart       string
	estimateTransit     string
	estimateWeather     string
	estimateMaintenance string
	estimateJSON        bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate survey duration for one vessel",
	Long: `Estimate survey, contingency and total days for a single vessel.

Allowances accept days or hours: "1.5", "2d", "36h".

Example:
  hydroplan estimate --distance 120 --speed 5 --start 2025-01-01 --transit 1d --weather 48h
`,
	RunE: runEstimate,
}

func init() {
	estimateCmd.Flags().Float64Var(&estimateDistance, "distance", 0, "Line kilometres to survey (required)")
	estimateCmd.Flags().Float64Var(&estimateSpeed, "speed", 0, "Survey speed in knots (required)")
	estimateCmd.Flags().StringVar(&estimateStart, "start", "", "Start date, YYYY-MM-DD or RFC 3339 (required)")
	estimateCmd.Flags().StringVar(&estimateTransit, "transit", "0", "Transit allowance")
	estimateCmd.Flags().StringVar(&estimateWeather, "weather", "0", "Weather allowance")
	estimateCmd.Flags().StringVar(&estimateMaintenance, "maintenance", "0", "Maintenance allowance")
	estimateCmd.Flags().BoolVar(&estimateJSON, "json", false, "Print JSON instead of a summary")
	_ = estimateCmd.MarkFlagRequired("distance")
	_ = estimateCmd.MarkFlagRequired("speed")
	_ = estimateCmd.MarkFlagRequired("start")
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	start, err := project.ParseTime(estimateStart)
	if err != nil {
		return err
	}
	allowances := make([]models.Allowance, 3)
	for i, raw := range []string{estimateTransit, estimateWeather, estimateMaintenance} {
		if allowances[i], err = models.ParseAllowance(raw); err != nil {
			return err
		}
	}

	v, err := models.NewVessel("", "estimate", estimateDistance, estimateSpeed, start, allowances[0], allowances[1], allowances[2])
	if err != nil {
		return err
	}
	est, err := planning.EstimateVessel(v)
	if err != nil {
		return err
	}

	if estimateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"estimate": est, "summary": est.Summary()})
	}
	return printSummary(cmd.OutOrStdout(), est.Summary())
}

func printSummary(w io.Writer, s planning.Summary) error {
	_, err := fmt.Fprintf(w,
		"survey days:      %.2f\ntransit days:     %.2f\nweather days:     %.2f\nmaintenance days: %.2f\ntotal days:       %.2f\nstart:            %s\nend:              %s\n",
		s.SurveyDays, s.TransitDays, s.WeatherDays, s.MaintenanceDays, s.TotalDays, s.StartDate, s.EndDate)
	return err
}
