/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/friendsincode/hydroplan/internal/planner"
	"github.com/friendsincode/hydroplan/internal/planning"
	"github.com/friendsincode/hydroplan/internal/project"
	"github.com/friendsincode/hydroplan/internal/store"
)

var timelineJSON bool

var timelineCmd = &cobra.Command{
	Use:   "timeline [project.json|project.yaml]",
	Short: "Print the survey timeline",
	Long: `Build the timeline of a project file, or of the database when no file is given.

Segments are printed per vessel followed by unassigned tasks. Invalid vessels
or tasks are listed as errors; the rest of the timeline is still built.
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTimeline,
}

func init() {
	timelineCmd.Flags().BoolVar(&timelineJSON, "json", false, "Print the full result as JSON")
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := context.Background()

	var res *planner.Result
	if len(args) == 1 {
		snap, err := readProjectFile(args[0])
		if err != nil {
			return err
		}
		res = planner.NewService(nil, nil, nil, logger).BuildSnapshot(ctx, snap)
	} else {
		repo, closeDB, err := openRepository()
		if err != nil {
			return err
		}
		defer closeDB()
		if res, err = planner.NewService(repo, nil, nil, logger).Build(ctx); err != nil {
			return err
		}
	}

	if timelineJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printTimeline(cmd.OutOrStdout(), res.Timeline)
}

func readProjectFile(path string) (store.Snapshot, error) {
	format, err := project.FormatFromPath(path)
	if err != nil {
		return store.Snapshot{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return store.Snapshot{}, err
	}
	defer f.Close()
	return project.Decode(f, format)
}

func printTimeline(w io.Writer, tl *planning.Timeline) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tLABEL\tKIND\tSTART\tFINISH\tDAYS")
	for _, s := range tl.Segments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
			s.Resource, s.Label, s.Kind, planning.FormatDate(s.Start), planning.FormatDate(s.Finish),
			planning.RoundDays(planning.DaysBetween(s.Start, s.Finish)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(tl.Overlays) > 0 {
		fmt.Fprintln(w, "\nNon-pausing vessel tasks:")
		for _, s := range tl.Overlays {
			fmt.Fprintf(w, "  %s  %s  %s .. %s\n", s.Resource, s.Label, planning.FormatDate(s.Start), planning.FormatDate(s.Finish))
		}
	}
	for _, warn := range tl.Warnings {
		fmt.Fprintf(w, "%s %s\n", color.New(color.FgYellow).Sprint("warning:"), warn.Message)
	}
	for _, e := range tl.Errors {
		fmt.Fprintf(w, "%s %s %s: %s\n", color.New(color.FgRed).Sprint("error:"), e.Entity, e.ID, e.Message)
	}
	return nil
}
