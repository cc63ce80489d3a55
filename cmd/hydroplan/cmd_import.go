/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/friendsincode/hydroplan/internal/models"
	"github.com/friendsincode/hydroplan/internal/project"
)

var importCmd = &cobra.Command{
	Use:   "import <file> [tasks.csv]",
	Short: "Load a project file into the database",
	Long: `Load a project file into the database.

JSON and YAML files (including files from the original spreadsheet planner)
replace the whole project. CSV files are the vessels and tasks sheets
written by export; pass one or both, and a sheet left out keeps its current
contents. iCal files (.ics) add their events as unassigned tasks.
`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	path := args[0]
	format, err := project.FormatFromPath(path)
	if err != nil {
		return err
	}

	repo, closeDB, err := openRepository()
	if err != nil {
		return err
	}
	defer closeDB()
	ctx := context.Background()

	if len(args) > 1 && format != project.FormatCSV {
		return errors.New("only csv sheets can be imported together")
	}

	switch format {
	case project.FormatJSON, project.FormatYAML:
		snap, err := readProjectFile(path)
		if err != nil {
			return err
		}
		if err := repo.Replace(ctx, snap); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		logger.Info().
			Str("path", path).
			Str("project", snap.Project.Name).
			Int("vessels", len(snap.Vessels)).
			Int("tasks", len(snap.Tasks)).
			Msg("project imported")

	case project.FormatCSV:
		var sheets []io.Reader
		for _, p := range args {
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			sheets = append(sheets, f)
		}
		imported, err := project.ReadCSV(sheets...)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		current, err := repo.Snapshot(ctx)
		if err != nil {
			return err
		}
		snap := imported.Apply(current)
		if err := repo.Replace(ctx, snap); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		logger.Info().
			Strs("sheets", args).
			Int("vessels", len(snap.Vessels)).
			Int("tasks", len(snap.Tasks)).
			Msg("csv sheets imported")

	case project.FormatICal:
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		res, err := project.ReadICal(f)
		if err != nil {
			return err
		}
		imported := 0
		for _, t := range res.Tasks {
			if _, err := repo.CreateTask(ctx, t); err != nil {
				var fe *models.FieldError
				if !errors.As(err, &fe) {
					return err
				}
				res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %s %s", t.Name, fe.Field, fe.Reason))
				continue
			}
			imported++
		}
		for _, reason := range res.Skipped {
			logger.Warn().Str("path", path).Msg("skipped event: " + reason)
		}
		logger.Info().Str("path", path).Int("imported", imported).Int("skipped", len(res.Skipped)).Msg("calendar imported")

	default:
		return fmt.Errorf("cannot import %s files", format)
	}
	return nil
}
