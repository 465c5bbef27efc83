// Package store runs compiled read queries against the bandmap tables.
//
// Two engines are supported:
//   - SQLite (mattn/go-sqlite3): the embedded schema.sql is applied on
//     Open and upgraded through PRAGMA user_version migrations.
//   - PostgreSQL (pgx/v5): tables come from the embedded
//     migrations/postgres set, applied with golang-migrate.
//
// Both return rows as ordered column/value pairs with driver-specific
// values normalized: []byte becomes string, dates become YYYY-MM-DD and
// timestamps RFC 3339 UTC.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: concurrent leaf readers
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
