/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all vessels and tasks",
	Long: `Reset the project to a fresh state.

All vessels and tasks are deleted and the project header is restored to its
defaults. Stored snapshots are not touched.

WARNING: This action is irreversible!

Examples:
  # Interactive reset (will prompt for confirmation)
  hydroplan reset

  # Force reset without confirmation
  hydroplan reset --force
`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if !resetForce {
		fmt.Println("This will DELETE ALL vessels and tasks. This action CANNOT be undone!")
		fmt.Print("Type 'yes' to confirm reset: ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	repo, closeDB, err := openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := repo.Reset(context.Background()); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	logger.Info().Msg("project reset")
	return nil
}
