// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"

	"github.com/toeirei/keygate/internal/model"
	"github.com/uptrace/bun"
)

// KeyPairStore is the persistence contract of the key lifecycle manager and
// the admission gate. Uniqueness of (owner, name) lives here.
type KeyPairStore interface {
	// Get returns the key pair or (nil, nil) when none exists.
	Get(ctx context.Context, owner model.Owner, name string) (*model.KeyPair, error)
	// Put inserts kp and returns ErrDuplicate when (owner, name) is taken.
	Put(ctx context.Context, kp *model.KeyPair) error
	// Delete removes the key pair and reports whether a row was removed.
	Delete(ctx context.Context, owner model.Owner, name string) (bool, error)
	// List returns every key pair of owner ordered by name.
	List(ctx context.Context, owner model.Owner) ([]model.KeyPair, error)
}

// AuditWriter records audit trail events.
type AuditWriter interface {
	LogAction(ctx context.Context, action string, details string) error
}

// Store defines the interface for all database operations in keygate.
// This allows for multiple database backends to be implemented.
type Store interface {
	KeyPairStore
	AuditWriter

	// Audit Log methods
	GetAllAuditLogEntries(ctx context.Context) ([]model.AuditLogEntry, error)

	// Backup methods
	ExportDataForBackup(ctx context.Context) (*model.BackupData, error)
	IntegrateDataFromBackup(ctx context.Context, backup *model.BackupData) error

	// BunDB exposes the underlying Bun handle for maintenance and tests.
	BunDB() *bun.DB
	Close() error
}
