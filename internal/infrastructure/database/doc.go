// Package database provides SQLite persistence for the Linden access core.
//
// It wraps database/sql with:
//   - Connection setup (WAL mode, busy timeout, foreign keys)
//   - Embedded schema migrations with per-migration transactions
//   - Health checks and lifecycle management
//
// SQLite is opened with a single-connection pool because SQLite supports
// only one writer; all repositories share the same *DB.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/linden-access.db", WALMode: true, BusyTimeout: 5})
//	if err != nil { ... }
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil { ... }
package database
