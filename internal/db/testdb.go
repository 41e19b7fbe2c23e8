package db

import (
	"database/sql"
	"testing"
)

// NewTestDB returns a fresh in-memory database with the schema applied. It
// is closed when the test ends.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})

	if err := EnsureSchema(db); err != nil {
		t.Fatalf("creating test database schema: %v", err)
	}
	return db
}
