/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package storage keeps exported project snapshots in a local directory or
// an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hydroplan/internal/config"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("object not found")

// ObjectStore abstracts object storage operations.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Location describes where key lives, for logs and API responses.
	Location(key string) string
}

// New picks S3 when a bucket is configured and the snapshot directory
// otherwise.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ObjectStore, error) {
	if cfg.S3Enabled() {
		return NewS3Store(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
	}
	return NewFSStore(cfg.SnapshotDir, logger), nil
}

// SnapshotKey names a snapshot object: "<slug>/<UTC timestamp>.<ext>".
func SnapshotKey(slug, ext string, at time.Time) string {
	slug = strings.Trim(slug, "/")
	if slug == "" {
		slug = "project"
	}
	return fmt.Sprintf("%s/%s.%s", slug, at.UTC().Format("20060102T150405Z"), ext)
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
