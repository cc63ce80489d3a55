/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/hydroplan/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Project{},
		&models.Vessel{},
		&models.Task{},
	); err != nil {
		return err
	}

	if err := applyPostgresTaskRangeGuard(database); err != nil {
		return err
	}

	return nil
}

// applyPostgresTaskRangeGuard enforces end_date >= start_date in the
// database as well, so rows written outside the API cannot reverse a task.
func applyPostgresTaskRangeGuard(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM pg_constraint WHERE conname = 'chk_tasks_date_order'
  ) THEN
    ALTER TABLE tasks ADD CONSTRAINT chk_tasks_date_order CHECK (end_date >= start_date);
  END IF;
END;
$$;
`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres task range guard: %w", err)
	}

	return nil
}
