package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB opens an in-memory database with migrations applied. The
// database is closed when the test finishes.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	raw, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(ON)")
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)

	db := &DB{DB: raw, path: ":memory:"}
	require.NoError(t, db.Migrate())

	t.Cleanup(func() { db.Close() })
	return db
}
