// Package ingest turns a source document into embedded knowledge-base chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/helpmate/internal/config"
	"github.com/hyperjump/helpmate/internal/embedding"
	"github.com/hyperjump/helpmate/internal/extract"
	"github.com/hyperjump/helpmate/internal/models"
	"github.com/hyperjump/helpmate/internal/storage"
)

// progressBatch is how many chunks are embedded between progress lines.
const progressBatch = 40

// ErrNoText is returned when a document yields no text to ingest.
var ErrNoText = errors.New("document contains no text")

// Ingester replaces the chunks of one (source, title) knowledge base.
type Ingester struct {
	store     storage.ChunkStore
	embedder  embedding.Embedder
	extractor *extract.Extractor
	chunker   *Chunker
	source    string
	title     string
	out       io.Writer
	logger    *zap.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithOutput sets where progress lines are written. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(in *Ingester) { in.out = w }
}

// WithTitle overrides the document title from config.
func WithTitle(title string) Option {
	return func(in *Ingester) {
		if title != "" {
			in.title = title
		}
	}
}

// NewIngester creates an ingester writing to store with chunking settings from cfg.
func NewIngester(
	store storage.ChunkStore,
	embedder embedding.Embedder,
	extractor *extract.Extractor,
	cfg *config.KnowledgeConfig,
	opts ...Option,
) *Ingester {
	in := &Ingester{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		source:    cfg.Source,
		title:     cfg.Title,
		out:       io.Discard,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Title returns the knowledge base title chunks are written under.
func (in *Ingester) Title() string {
	return in.title
}

// Ingest extracts the file at path and replaces the knowledge base with its chunks.
// Nothing is deleted if extraction fails or yields no text.
func (in *Ingester) Ingest(ctx context.Context, path string) (int, error) {
	in.logger.Debug("ingesting file", zap.String("path", path), zap.String("title", in.title))
	text, err := in.extractor.Extract(path)
	if err != nil {
		return 0, fmt.Errorf("failed to extract %s: %w", path, err)
	}
	return in.IngestText(ctx, text)
}

// IngestText chunks and embeds text, then deletes the existing chunks for (source, title)
// and inserts the new ones with chunk indexes from 0. The delete and insert are not atomic.
func (in *Ingester) IngestText(ctx context.Context, text string) (int, error) {
	start := time.Now()
	fmt.Fprintf(in.out, "Parsed %d chars\n", len(text))

	texts := in.chunker.Chunk(text)
	if len(texts) == 0 {
		return 0, ErrNoText
	}
	fmt.Fprintf(in.out, "Chunked into %d pieces\n", len(texts))

	now := time.Now()
	chunks := make([]*models.TextChunk, len(texts))
	for i, t := range texts {
		vec, err := in.embedder.Embed(ctx, t)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}
		chunks[i] = &models.TextChunk{
			Source:     in.source,
			Title:      in.title,
			ChunkIndex: i,
			Text:       t,
			Embedding:  vec,
			CreatedAt:  now,
		}
		if (i+1)%progressBatch == 0 || i+1 == len(texts) {
			fmt.Fprintf(in.out, "Embedded %d / %d\n", i+1, len(texts))
		}
	}

	deleted, err := in.store.DeleteChunks(ctx, in.source, in.title)
	if err != nil {
		return 0, fmt.Errorf("failed to delete previous chunks: %w", err)
	}
	if err := in.store.InsertChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to insert chunks: %w", err)
	}
	fmt.Fprintf(in.out, "Inserted %d chunks\n", len(chunks))
	in.logger.Info("Knowledge base replaced",
		zap.String("title", in.title),
		zap.Int64("deleted", deleted),
		zap.Int("inserted", len(chunks)),
		zap.Duration("took", time.Since(start)))
	return len(chunks), nil
}
