/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/hydroplan/internal/models"
)

// Repository is a Store persisted through gorm. The project row carries the
// revision counter, bumped in the same transaction as every change.
type Repository struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewRepository wraps an already migrated database.
func NewRepository(db *gorm.DB, logger zerolog.Logger) *Repository {
	return &Repository{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// project loads the single project row, creating it on first use.
func (r *Repository) project(tx *gorm.DB) (models.Project, error) {
	var p models.Project
	err := tx.Order("created_at ASC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = defaultProject()
		if err := tx.Create(&p).Error; err != nil {
			return models.Project{}, fmt.Errorf("create project: %w", err)
		}
		return p, nil
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("load project: %w", err)
	}
	return p, nil
}

// bump increments the revision inside tx.
func (r *Repository) bump(tx *gorm.DB) error {
	p, err := r.project(tx)
	if err != nil {
		return err
	}
	return tx.Model(&models.Project{}).Where("id = ?", p.ID).
		Update("revision", gorm.Expr("revision + 1")).Error
}

func (r *Repository) nextSeq(tx *gorm.DB, model any) (int64, error) {
	var max sql.NullInt64
	if err := tx.Model(model).Select("MAX(seq)").Row().Scan(&max); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return max.Int64 + 1, nil
}

// Snapshot reads the project, vessels and tasks in one transaction.
func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := r.project(tx)
		if err != nil {
			return err
		}
		snap.Project = p
		if err := tx.Order("seq ASC").Find(&snap.Vessels).Error; err != nil {
			return fmt.Errorf("list vessels: %w", err)
		}
		if err := tx.Order("seq ASC").Find(&snap.Tasks).Error; err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		return nil
	})
	return snap, err
}

func (r *Repository) Revision(ctx context.Context) (int64, error) {
	p, err := r.Project(ctx)
	return p.Revision, err
}

func (r *Repository) Project(ctx context.Context) (models.Project, error) {
	var p models.Project
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = r.project(tx)
		return err
	})
	return p, err
}

func (r *Repository) SaveProject(ctx context.Context, in models.Project) (models.Project, error) {
	if err := in.Validate(); err != nil {
		return models.Project{}, err
	}
	if in.Name == "" {
		in.Name = DefaultProjectName
	}
	var out models.Project
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := r.project(tx)
		if err != nil {
			return err
		}
		if err := tx.Model(&p).Updates(map[string]any{
			"name":          in.Name,
			"unsurveyed_km": in.UnsurveyedKM,
			"revision":      gorm.Expr("revision + 1"),
		}).Error; err != nil {
			return fmt.Errorf("save project: %w", err)
		}
		return tx.First(&out, "id = ?", p.ID).Error
	})
	return out, err
}

func (r *Repository) ListVessels(ctx context.Context) ([]models.Vessel, error) {
	var vessels []models.Vessel
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&vessels).Error; err != nil {
		return nil, fmt.Errorf("list vessels: %w", err)
	}
	return vessels, nil
}

func (r *Repository) GetVessel(ctx context.Context, id string) (models.Vessel, error) {
	var v models.Vessel
	err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Vessel{}, ErrNotFound
	}
	return v, err
}

func (r *Repository) CreateVessel(ctx context.Context, v models.Vessel) (models.Vessel, error) {
	v, err := prepareVessel(v)
	if err != nil {
		return models.Vessel{}, err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Vessel{}).Where("id = ?", v.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &models.FieldError{Entity: "vessel", ID: v.ID, Field: "id", Reason: "already exists"}
		}
		seq, err := r.nextSeq(tx, &models.Vessel{})
		if err != nil {
			return err
		}
		v.Seq = seq
		if err := tx.Create(&v).Error; err != nil {
			return fmt.Errorf("create vessel: %w", err)
		}
		return r.bump(tx)
	})
	if err != nil {
		return models.Vessel{}, err
	}
	r.logger.Debug().Str("vessel_id", v.ID).Str("name", v.Name).Msg("vessel created")
	return v, nil
}

func (r *Repository) UpdateVessel(ctx context.Context, v models.Vessel) (models.Vessel, error) {
	v, err := prepareVessel(v)
	if err != nil {
		return models.Vessel{}, err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Vessel
		if err := tx.First(&existing, "id = ?", v.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		v.Seq = existing.Seq
		v.CreatedAt = existing.CreatedAt
		if err := tx.Save(&v).Error; err != nil {
			return fmt.Errorf("update vessel: %w", err)
		}
		return r.bump(tx)
	})
	if err != nil {
		return models.Vessel{}, err
	}
	return v, nil
}

// DeleteVessel removes the vessel. Tasks bound to it are kept and become
// dangling references.
func (r *Repository) DeleteVessel(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Vessel{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete vessel: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return r.bump(tx)
	})
}

func (r *Repository) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *Repository) GetTask(ctx context.Context, id string) (models.Task, error) {
	var t models.Task
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Task{}, ErrNotFound
	}
	return t, err
}

func (r *Repository) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	t, err := prepareTask(t)
	if err != nil {
		return models.Task{}, err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Task{}).Where("id = ?", t.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &models.FieldError{Entity: "task", ID: t.ID, Field: "id", Reason: "already exists"}
		}
		seq, err := r.nextSeq(tx, &models.Task{})
		if err != nil {
			return err
		}
		t.Seq = seq
		if err := tx.Create(&t).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return r.bump(tx)
	})
	if err != nil {
		return models.Task{}, err
	}
	r.logger.Debug().Str("task_id", t.ID).Str("name", t.Name).Bool("pauses_survey", t.PausesSurvey).Msg("task created")
	return t, nil
}

func (r *Repository) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	t, err := prepareTask(t)
	if err != nil {
		return models.Task{}, err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Task
		if err := tx.First(&existing, "id = ?", t.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		t.Seq = existing.Seq
		t.CreatedAt = existing.CreatedAt
		if err := tx.Save(&t).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return r.bump(tx)
	})
	if err != nil {
		return models.Task{}, err
	}
	return t, nil
}

func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Task{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return r.bump(tx)
	})
}

func (r *Repository) Replace(ctx context.Context, snap Snapshot) error {
	prepared, err := prepareSnapshot(snap)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.project(tx)
		if err != nil {
			return err
		}
		if err := clearSession(tx); err != nil {
			return err
		}
		p := prepared.Project
		p.Revision = current.Revision + 1
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("import project: %w", err)
		}
		if len(prepared.Vessels) > 0 {
			if err := tx.Create(&prepared.Vessels).Error; err != nil {
				return fmt.Errorf("import vessels: %w", err)
			}
		}
		if len(prepared.Tasks) > 0 {
			if err := tx.Create(&prepared.Tasks).Error; err != nil {
				return fmt.Errorf("import tasks: %w", err)
			}
		}
		r.logger.Info().
			Int("vessels", len(prepared.Vessels)).
			Int("tasks", len(prepared.Tasks)).
			Msg("session replaced")
		return nil
	})
}

func (r *Repository) Reset(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.project(tx)
		if err != nil {
			return err
		}
		if err := clearSession(tx); err != nil {
			return err
		}
		p := defaultProject()
		p.Revision = current.Revision + 1
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("reset project: %w", err)
		}
		r.logger.Warn().Msg("session reset")
		return nil
	})
}

func clearSession(tx *gorm.DB) error {
	for _, model := range []any{&models.Task{}, &models.Vessel{}, &models.Project{}} {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}
