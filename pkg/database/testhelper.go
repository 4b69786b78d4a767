package database

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
)

// OpenTestDB opens a migrated SQLite database in a per-test temp directory.
func OpenTestDB(t *testing.T) *ConnectionPool {
	t.Helper()

	pool, err := NewConnectionPool(context.Background(), &Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.sqlite"),
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return pool
}
