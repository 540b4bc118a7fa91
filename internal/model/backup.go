// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package model

// BackupSchemaVersion is bumped whenever BackupData changes shape.
const BackupSchemaVersion = 1

// BackupData is a container for all data exported for a backup. It never
// contains private key material.
type BackupData struct {
	// SchemaVersion helps in handling migrations during restore.
	SchemaVersion   int             `json:"schema_version"`
	KeyPairs        []KeyPair       `json:"key_pairs"`
	AuditLogEntries []AuditLogEntry `json:"audit_log_entries"`
}
