// Package storage defines persistence for knowledge chunks and the helper catalog.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/helpmate/internal/config"
	"github.com/hyperjump/helpmate/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ChunkStore persists embedded text chunks keyed by (source, title, chunk index).
type ChunkStore interface {
	// DeleteChunks removes every chunk for (source, title) and returns how many were removed.
	DeleteChunks(ctx context.Context, source, title string) (int64, error)
	// InsertChunks bulk-inserts chunks in the given order.
	InsertChunks(ctx context.Context, chunks []*models.TextChunk) error
	// ListChunks returns all chunks for (source, title) ordered by chunk index.
	ListChunks(ctx context.Context, source, title string) ([]*models.TextChunk, error)
	CountChunks(ctx context.Context, source, title string) (int64, error)
}

// HelperCatalog is the read side of the helper profile collection, plus bulk replace for seeding.
type HelperCatalog interface {
	// FindHelpers returns at most limit profiles matching every constraint set on filter.
	FindHelpers(ctx context.Context, filter *models.HelperSearchFilter, limit int) ([]*models.HelperProfile, error)
	// ListHelpers returns one page of the catalog and the total number of matches.
	ListHelpers(ctx context.Context, q *models.HelperQuery) ([]*models.HelperProfile, int64, error)
	GetHelper(ctx context.Context, id string) (*models.HelperProfile, error)
	// ReplaceHelpers deletes every profile and inserts the given ones.
	ReplaceHelpers(ctx context.Context, helpers []*models.HelperProfile) error
}

// Storage is the full document store used by the server and tools.
type Storage interface {
	ChunkStore
	HelperCatalog
	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return NewSQLiteStorage(cfg.DatabasePath)
	case config.DriverMongo:
		return NewMongoStorage(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: sqlite, mongo)", cfg.Driver)
	}
}
