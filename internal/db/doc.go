// Package db contains the data-access layer of keygate.
//
// The KeyPairStore interface is what the key lifecycle manager and the
// admission gate depend on. BunStore implements it (plus audit logging and
// backup export) on top of a long-lived *bun.DB for SQLite, PostgreSQL and
// MySQL. Schema migrations are embedded per dialect under migrations/ and
// applied by NewStoreFromDSN.
//
// Uniqueness of (account, user, name) is enforced by a UNIQUE index, so two
// concurrent inserts of the same key pair cannot both succeed; the loser gets
// ErrDuplicate from MapDBError.
//
// Low-level Bun helpers (the *Bun functions) accept a bun.IDB so they work
// inside and outside transactions.
//
// Testing notes
//   - Use NewStoreFromDSN("sqlite", "file:<test>?mode=memory&cache=shared")
//     in tests that need real DB semantics and migrations.
//   - For fast unit tests that don't need a DB, use FakeKeyPairStore.
package db
