// Package storagetest provides migrated in-memory databases for tests.
package storagetest

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/bip/backend/internal/storage"
)

// Open returns a migrated in-memory database closed at test cleanup.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := storage.Open(storage.Options{Path: storage.MemoryPath}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// OpenFile returns a migrated file database in a temp dir with a pool of
// maxOpen connections.
func OpenFile(t testing.TB, maxOpen int) *sqlx.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(storage.Options{Path: path, MaxOpenConns: maxOpen}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
