/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/friendsincode/hydroplan/internal/project"
	"github.com/friendsincode/hydroplan/internal/telemetry"
)

// SaveExport stores an encoded project export under a timestamped key
// derived from the project name, and returns the key.
func SaveExport(ctx context.Context, st ObjectStore, projectName string, f project.Format, data []byte, at time.Time) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "storage", "save_export")
	defer span.End()

	slug := strings.TrimSuffix(project.Filename(projectName, f), "."+string(f))
	key := SnapshotKey(slug, string(f), at)
	span.SetAttributes(
		attribute.String("snapshot.key", key),
		attribute.Int("snapshot.bytes", len(data)),
	)
	if err := st.Put(ctx, key, data, project.ContentType(f)); err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}
	return key, nil
}
