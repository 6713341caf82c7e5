package vector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/helpmate/internal/models"
	"github.com/hyperjump/helpmate/internal/storage"
)

// Store serves similarity search over the chunks of one (source, title) knowledge base.
// Chunks are read from the ChunkStore once, on the first successful EnsureLoaded.
type Store struct {
	chunks storage.ChunkStore
	source string
	title  string
	logger *zap.Logger

	mu     sync.RWMutex
	loaded bool
	index  *MemoryIndex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns an unloaded Store over the given knowledge base.
func NewStore(chunks storage.ChunkStore, source, title string, opts ...Option) *Store {
	s := &Store{
		chunks: chunks,
		source: source,
		title:  title,
		logger: zap.NewNop(),
		index:  NewMemoryIndex(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureLoaded loads all chunks on the first call. Later calls return immediately.
// A failed load leaves the Store unloaded so the next call tries again.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	start := time.Now()
	chunks, err := s.chunks.ListChunks(ctx, s.source, s.title)
	if err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}
	index := NewMemoryIndex(0)
	for _, c := range chunks {
		if err := index.Add(c, c.Embedding); err != nil {
			return fmt.Errorf("failed to index chunks: %w", err)
		}
	}
	s.index = index
	s.loaded = true
	s.logger.Info("Vector store loaded",
		zap.String("title", s.title),
		zap.Int("chunks", index.Len()),
		zap.Int("dimensions", index.Dimensions()),
		zap.Duration("took", time.Since(start)))
	if index.Len() == 0 {
		// Empty loads are cached too; chunks ingested later are only seen after a restart.
		s.logger.Warn("Knowledge base is empty; run the ingest command, then restart the server to load it",
			zap.String("title", s.title))
	}
	return nil
}

// Search returns at most k chunks by descending score. It returns nothing when the store
// is not ready or k is not positive. Equal scores keep chunk order.
func (s *Store) Search(query []float32, k int) []models.ScoredChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil
	}
	return s.index.Search(query, k)
}

// Ready reports whether a load has completed with at least one chunk.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded && s.index.Len() > 0
}

// Size returns the number of loaded chunks.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Title returns the knowledge base title.
func (s *Store) Title() string {
	return s.title
}
