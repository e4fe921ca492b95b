// Package storagetest opens migrated in-memory databases for tests.
package storagetest

import (
	"database/sql"
	"testing"

	"libchat/internal/config"
	"libchat/internal/storage"
)

// NewSQLite returns a migrated in-memory SQLite database closed at test cleanup.
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{
		"sqlite3": {DSN: ":memory:"},
	}}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		db.Close()
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
