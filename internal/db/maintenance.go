// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// maintenanceTimeout bounds RunDBMaintenance when ctx carries no deadline.
const maintenanceTimeout = 2 * time.Minute

// RunDBMaintenance runs engine-specific housekeeping against dsn: VACUUM,
// optimize and an integrity check for SQLite, VACUUM ANALYZE for
// PostgreSQL and OPTIMIZE TABLE for every MySQL table.
func RunDBMaintenance(ctx context.Context, dbType, dsn string) error {
	driverName, err := driverNameFor(dbType)
	if err != nil {
		return fmt.Errorf("unsupported db type for maintenance: %s", dbType)
	}
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for maintenance: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()
	}

	start := time.Now()
	switch dbType {
	case "sqlite":
		err = maintainSQLite(ctx, sqlDB)
	case "postgres":
		if _, err = sqlDB.ExecContext(ctx, "VACUUM ANALYZE"); err != nil {
			err = fmt.Errorf("postgres vacuum failed: %w", err)
		}
	case "mysql":
		err = maintainMySQL(ctx, sqlDB)
	}
	if err != nil {
		return err
	}
	dbLogf("db: %s maintenance finished in %s", dbType, time.Since(start))
	return nil
}

func maintainSQLite(ctx context.Context, sqlDB *sql.DB) error {
	// Not every build of SQLite supports optimize on every file system.
	if _, err := sqlDB.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		dbLogf("db: sqlite optimize failed (ignored): %v", err)
	}
	if _, err := sqlDB.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("sqlite vacuum failed: %w", err)
	}
	_, _ = sqlDB.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")

	var res string
	if err := sqlDB.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&res); err != nil {
		return fmt.Errorf("sqlite integrity_check failed: %w", err)
	}
	if res != "ok" {
		return fmt.Errorf("sqlite integrity_check failed: %s", res)
	}
	return nil
}

func maintainMySQL(ctx context.Context, sqlDB *sql.DB) error {
	rows, err := sqlDB.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return fmt.Errorf("mysql show tables failed: %w", err)
	}
	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			_ = rows.Close()
			return fmt.Errorf("mysql read table name failed: %w", err)
		}
		tables = append(tables, t)
	}
	_ = rows.Close()

	// A failing table does not stop the others.
	var errsOut []error
	for _, t := range tables {
		if _, err := sqlDB.ExecContext(ctx, "OPTIMIZE TABLE `"+t+"`"); err != nil {
			dbLogf("db: mysql optimize table %s failed: %v", t, err)
			errsOut = append(errsOut, fmt.Errorf("%s: %w", t, err))
		}
	}
	if len(errsOut) > 0 {
		return fmt.Errorf("mysql optimize encountered errors: %w", errors.Join(errsOut...))
	}
	return nil
}
