/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/hydroplan/internal/planner"
	"github.com/friendsincode/hydroplan/internal/project"
	"github.com/friendsincode/hydroplan/internal/storage"
	"github.com/friendsincode/hydroplan/internal/store"
)

var (
	exportFormat string
	exportSheet  string
	exportOutput string
	exportUpload bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the project from the database",
	Long: `Export the project as JSON, YAML, CSV or iCal.

Output goes to stdout unless --output is given. With --upload the export is
also stored in the snapshot bucket or directory.

Examples:
  hydroplan export --format yaml --output survey.yaml
  hydroplan export --format csv --sheet vessels
  hydroplan export --format ics --upload
`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, yaml, csv, ics")
	exportCmd.Flags().StringVar(&exportSheet, "sheet", "segments", "CSV sheet: vessels, tasks, segments")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to this file instead of stdout")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "Also store the export as a snapshot")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	format, err := project.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	repo, closeDB, err := openRepository()
	if err != nil {
		return err
	}
	defer closeDB()
	ctx := context.Background()

	snap, err := repo.Snapshot(ctx)
	if err != nil {
		return err
	}
	data, err := encodeExport(ctx, snap, format, exportSheet, time.Now())
	if err != nil {
		return err
	}

	if exportOutput != "" {
		if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", exportOutput, err)
		}
		logger.Info().Str("path", exportOutput).Str("format", string(format)).Msg("project exported")
	} else if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return err
	}

	if exportUpload {
		objects, err := storage.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		key, err := storage.SaveExport(ctx, objects, snap.Project.Name, format, data, time.Now())
		if err != nil {
			return fmt.Errorf("upload snapshot: %w", err)
		}
		logger.Info().Str("location", objects.Location(key)).Msg("snapshot uploaded")
	}
	return nil
}

func encodeExport(ctx context.Context, snap store.Snapshot, format project.Format, sheet string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case project.FormatJSON, project.FormatYAML:
		if err := project.Encode(&buf, format, snap); err != nil {
			return nil, err
		}
	case project.FormatCSV:
		s, err := project.ParseSheet(sheet)
		if err != nil {
			return nil, err
		}
		tl := planner.NewService(nil, nil, nil, logger).BuildSnapshot(ctx, snap).Timeline
		if err := project.WriteCSV(&buf, s, snap, tl); err != nil {
			return nil, err
		}
	case project.FormatICal:
		tl := planner.NewService(nil, nil, nil, logger).BuildSnapshot(ctx, snap).Timeline
		if err := project.WriteICal(&buf, snap.Project.Name, tl, now); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
