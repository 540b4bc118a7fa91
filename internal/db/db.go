// Copyright (c) 2025 ToeiRei
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for keygate.
// Key pair records and the audit trail live in SQLite, PostgreSQL or MySQL;
// all three are reached through Bun so callers never see the dialect.
package db // import "github.com/toeirei/keygate/internal/db"

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// sqlOpenFunc allows tests to override database opening behavior.
var sqlOpenFunc = sql.Open

// SupportedTypes lists the accepted values of database.type.
var SupportedTypes = []string{"sqlite", "postgres", "mysql"}

// poolSettings are the connection pool limits applied to every store.
type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
}

func driverNameFor(dbType string) (string, error) {
	switch dbType {
	case "sqlite", "mysql":
		return dbType, nil
	case "postgres":
		// pgx/v5/stdlib registers itself as "pgx".
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported database type: '%s'", dbType)
	}
}

// poolFor reads the pool limits from the environment. In-memory SQLite is
// pinned to one connection that is never recycled: the database only lives
// as long as that connection.
func poolFor(dbType, dsn string) poolSettings {
	if dbType == "sqlite" && isMemoryDSN(dsn) {
		return poolSettings{maxOpen: 1, maxIdle: 1}
	}
	return poolSettings{
		maxOpen:     envInt("KEYGATE_DB_MAX_OPEN_CONNS", 25),
		maxIdle:     envInt("KEYGATE_DB_MAX_IDLE_CONNS", 25),
		maxLifetime: time.Duration(envInt("KEYGATE_DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		maxIdleTime: time.Duration(envInt("KEYGATE_DB_CONN_MAX_IDLE_SECONDS", 60)) * time.Second,
	}
}

func (p poolSettings) apply(sqlDB *sql.DB) {
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxLifetime(p.maxLifetime)
	sqlDB.SetConnMaxIdleTime(p.maxIdleTime)
}

// NewStoreFromDSN opens the database, brings its schema up to date and
// returns a Store backed by a long-lived *bun.DB.
func NewStoreFromDSN(dbType, dsn string) (*BunStore, error) {
	driverName, err := driverNameFor(dbType)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pool := poolFor(dbType, dsn)
	pool.apply(sqlDB)
	dbLogf("db: opened %s driver in %s (max open=%d, idle=%s, lifetime=%s)", driverName, time.Since(start), pool.maxOpen, pool.maxIdleTime, pool.maxLifetime)

	if err := RunMigrations(sqlDB, dbType); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &BunStore{bun: createBunDB(sqlDB, dbType), dbType: dbType}, nil
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}

// createBunDB wraps sqlDB with the Bun dialect matching dbType.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case "postgres":
		return bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}
