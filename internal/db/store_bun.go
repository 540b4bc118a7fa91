// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"

	"github.com/toeirei/keygate/internal/model"
	"github.com/uptrace/bun"
)

// BunStore is the Bun-backed Store used for every supported dialect.
type BunStore struct {
	bun    *bun.DB
	dbType string
}

var _ Store = (*BunStore)(nil)

// BunDB returns the underlying Bun handle.
func (s *BunStore) BunDB() *bun.DB { return s.bun }

// Type returns the configured database type.
func (s *BunStore) Type() string { return s.dbType }

// Close releases the connection pool.
func (s *BunStore) Close() error { return s.bun.Close() }

// Get retrieves a single key pair by owner and name.
func (s *BunStore) Get(ctx context.Context, owner model.Owner, name string) (*model.KeyPair, error) {
	return GetKeyPairBun(ctx, s.bun, owner, name)
}

// Put inserts a new key pair.
func (s *BunStore) Put(ctx context.Context, kp *model.KeyPair) error {
	if err := InsertKeyPairBun(ctx, s.bun, kp); err != nil {
		return err
	}
	dbLogf("db: inserted key pair %s for %s", kp.Name, kp.Owner)
	return nil
}

// Delete removes a key pair.
func (s *BunStore) Delete(ctx context.Context, owner model.Owner, name string) (bool, error) {
	return DeleteKeyPairBun(ctx, s.bun, owner, name)
}

// List returns all key pairs of owner.
func (s *BunStore) List(ctx context.Context, owner model.Owner) ([]model.KeyPair, error) {
	return ListKeyPairsBun(ctx, s.bun, owner)
}

// GetAllAuditLogEntries retrieves all entries from the audit log, most recent first.
func (s *BunStore) GetAllAuditLogEntries(ctx context.Context) ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(ctx, s.bun)
}

// LogAction records an audit trail event.
func (s *BunStore) LogAction(ctx context.Context, action string, details string) error {
	return LogActionBun(ctx, s.bun, action, details)
}

// ExportDataForBackup retrieves all data from the database for a backup.
// It uses a transaction to ensure a consistent snapshot of the data.
func (s *BunStore) ExportDataForBackup(ctx context.Context) (*model.BackupData, error) {
	backup := &model.BackupData{SchemaVersion: model.BackupSchemaVersion}
	err := s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		kps, err := ListAllKeyPairsBun(ctx, tx)
		if err != nil {
			return fmt.Errorf("export key pairs: %w", err)
		}
		backup.KeyPairs = kps
		entries, err := GetAllAuditLogEntriesBun(ctx, tx)
		if err != nil {
			return fmt.Errorf("export audit log: %w", err)
		}
		backup.AuditLogEntries = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return backup, nil
}

// IntegrateDataFromBackup restores key pairs from a backup in a non-destructive
// way, skipping (owner, name) pairs that already exist. Audit entries are not
// replayed.
func (s *BunStore) IntegrateDataFromBackup(ctx context.Context, backup *model.BackupData) error {
	if backup == nil {
		return nil
	}
	return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := range backup.KeyPairs {
			kp := backup.KeyPairs[i]
			existing, err := GetKeyPairBun(ctx, tx, kp.Owner, kp.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			if err := InsertKeyPairBun(ctx, tx, &kp); err != nil {
				return fmt.Errorf("restore key pair %s for %s: %w", kp.Name, kp.Owner, err)
			}
		}
		return nil
	})
}
