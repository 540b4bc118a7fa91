// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

//go:embed migrations
var embeddedMigrations embed.FS

// migration is one embedded <version>.up.sql script.
type migration struct {
	version    string
	statements []string
}

// loadMigrations returns the embedded migrations of dbType in version order.
func loadMigrations(dbType string) ([]migration, error) {
	dir := path.Join("migrations", dbType)
	entries, err := fs.ReadDir(embeddedMigrations, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations (%s): %w", dir, err)
	}
	var out []migration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		data, err := embeddedMigrations.ReadFile(path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		out = append(out, migration{
			version:    strings.TrimSuffix(name, ".up.sql"),
			statements: splitStatements(string(data)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// RunMigrations applies every embedded migration of dbType that is not yet
// recorded in schema_migrations. Each migration runs in its own transaction.
func RunMigrations(sqlDB *sql.DB, dbType string) error {
	migrations, err := loadMigrations(dbType)
	if err != nil {
		return err
	}
	if len(migrations) == 0 {
		dbLogf("db: no migrations embedded for %s", dbType)
		return nil
	}

	ctx := context.Background()
	start := time.Now()
	bdb := createBunDB(sqlDB, dbType)
	if err := ensureSchemaMigrationsTable(ctx, bdb, dbType); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		var n int
		if err := QueryRawInto(ctx, bdb, &n, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version); err != nil {
			return fmt.Errorf("failed to check migration version %s: %w", m.version, err)
		}
		if n > 0 {
			continue
		}
		err := bdb.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			// One statement per Exec: MySQL rejects multi-statement scripts
			// unless the DSN opts in.
			for _, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := ExecRaw(ctx, tx, "INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.version, time.Now().UTC())
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.version, err)
		}
		applied++
	}
	dbLogf("db: %d of %d migrations applied for %s in %s", applied, len(migrations), dbType, time.Since(start))
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func ensureSchemaMigrationsTable(ctx context.Context, bdb bun.IDB, dbType string) error {
	// MySQL cannot index TEXT without a prefix length.
	versionType := "TEXT"
	if dbType == "mysql" {
		versionType = "VARCHAR(191)"
	}
	_, err := ExecRaw(ctx, bdb, "CREATE TABLE IF NOT EXISTS schema_migrations (version "+versionType+" PRIMARY KEY, applied_at TIMESTAMP)")
	return err
}
