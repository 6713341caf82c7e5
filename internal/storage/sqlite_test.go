package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/helpmate/internal/config"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_Chunks(t *testing.T) {
	runChunkStoreTests(t, newTestSQLite(t))
}

func TestSQLiteStorage_Helpers(t *testing.T) {
	runHelperCatalogTests(t, newTestSQLite(t))
}

func TestSQLiteStorage_DuplicateChunkIndex(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	chunks := fixtureChunks(2)
	chunks[1].ChunkIndex = 0
	if err := store.InsertChunks(ctx, chunks); err == nil {
		t.Fatal("expected unique constraint violation")
	}
	if n, _ := store.CountChunks(ctx, "pdf", "Guide"); n != 0 {
		t.Errorf("failed batch should be rolled back, found %d chunks", n)
	}
}

func TestSQLiteStorage_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "helpmate.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Close()
	n, err := DiskUsageBytes(path)
	if err != nil || n == 0 {
		t.Errorf("database file not created: %d, %v", n, err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, &config.StorageConfig{Driver: config.DriverSQLite, DatabasePath: filepath.Join(t.TempDir(), "open.db")})
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	if _, err := Open(ctx, &config.StorageConfig{Driver: "postgres"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
