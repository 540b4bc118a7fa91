// Copyright (c) 2025 ToeiRei
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

// ErrDuplicate is returned when attempting to insert a record that already exists.
var ErrDuplicate = errors.New("duplicate record")

// Driver codes of unique-constraint violations.
const (
	pgUniqueViolation     = "23505"
	mysqlDuplicateEntry   = 1062
	sqliteConstraint      = 19
	sqliteConstraintPK    = 1555
	sqliteConstraintUniq  = 2067
	sqliteUniqueMsgPrefix = "unique constraint failed"
)

// MapDBError maps unique-constraint violations reported by the SQLite,
// PostgreSQL and MySQL drivers to ErrDuplicate. Classification uses the
// driver's typed error and code only; any other error passes through
// unchanged.
func MapDBError(err error) error {
	if err == nil || errors.Is(err, ErrDuplicate) {
		return err
	}
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqliteConstraintUniq, sqliteConstraintPK:
			return true
		case sqliteConstraint:
			// Without extended result codes every constraint shares code 19.
			return strings.Contains(strings.ToLower(liteErr.Error()), sqliteUniqueMsgPrefix)
		}
	}
	return false
}
