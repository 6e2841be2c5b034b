package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lindenpress/linden-access/internal/infrastructure/database"
	_ "github.com/lindenpress/linden-access/migrations"
)

func openMigratedDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(context.Background(), database.Config{Path: path, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestMigrate_CreatesSchema(t *testing.T) {
	db := openMigratedDB(t)

	for _, table := range []string{"users", "credentials", "refresh_tokens", "audit_logs"} {
		var name string
		err := db.QueryRowContext(context.Background(),
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not created: %v", table, err)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openMigratedDB(t)

	// Second run must be a no-op, not a re-apply.
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown_RollsBackLatest(t *testing.T) {
	db := openMigratedDB(t)

	if err := db.MigrateDown(context.Background()); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	var name string
	err := db.QueryRowContext(context.Background(),
		"SELECT name FROM sqlite_master WHERE type='table' AND name='users'").Scan(&name)
	if err == nil {
		t.Error("users table should be dropped after MigrateDown")
	}
}
