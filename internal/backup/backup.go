// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// Package backup writes and reads zstd-compressed JSON backups of the key
// pair records. Backups never contain private key material since the store
// never holds any.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/toeirei/keygate/internal/model"
)

// Extension is appended to backup file names that lack it.
const Extension = ".zst"

// Exporter produces a consistent snapshot of the store.
type Exporter interface {
	ExportDataForBackup(ctx context.Context) (*model.BackupData, error)
}

// Integrator merges a backup into the store.
type Integrator interface {
	IntegrateDataFromBackup(ctx context.Context, data *model.BackupData) error
}

// DefaultFileName returns keygate-backup-YYYY-MM-DD.json.zst for t.
func DefaultFileName(t time.Time) string {
	return fmt.Sprintf("keygate-backup-%s.json%s", t.Format("2006-01-02"), Extension)
}

// NormalizeFileName appends Extension when missing.
func NormalizeFileName(name string) string {
	if strings.HasSuffix(name, Extension) {
		return name
	}
	return name + Extension
}

// Write encodes data as indented JSON into a zstd stream on w.
func Write(w io.Writer, data *model.BackupData) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("could not create zstd writer: %w", err)
	}
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		_ = zw.Close()
		return fmt.Errorf("could not encode json to zstd writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("could not flush zstd writer: %w", err)
	}
	return nil
}

// Read decodes a backup written by Write. Backups from a newer schema are
// rejected.
func Read(r io.Reader) (*model.BackupData, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not create zstd reader: %w", err)
	}
	defer zr.Close()

	var data model.BackupData
	if err := json.NewDecoder(zr).Decode(&data); err != nil {
		return nil, fmt.Errorf("could not decode json from zstd reader: %w", err)
	}
	if data.SchemaVersion > model.BackupSchemaVersion {
		return nil, fmt.Errorf("backup schema version %d is newer than supported version %d", data.SchemaVersion, model.BackupSchemaVersion)
	}
	return &data, nil
}

// Export snapshots src and writes it to w. It returns the snapshot so
// callers can report on it.
func Export(ctx context.Context, src Exporter, w io.Writer) (*model.BackupData, error) {
	data, err := src.ExportDataForBackup(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if err := Write(w, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Restore reads a backup from r and merges it into dst.
func Restore(ctx context.Context, dst Integrator, r io.Reader) (*model.BackupData, error) {
	data, err := Read(r)
	if err != nil {
		return nil, err
	}
	if err := dst.IntegrateDataFromBackup(ctx, data); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return data, nil
}
