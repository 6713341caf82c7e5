// Package embedding turns text into unit-length vectors using a local sentence model.
package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/helpmate/internal/config"
	"github.com/hyperjump/helpmate/pkg/utils"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Factory builds the underlying embedder. It is called on first use.
type Factory func() (Embedder, error)

// Provider wraps an Embedder that is created lazily on first use. Initialization is
// attempted again on the next call if it fails. Every vector it returns has unit L2 norm.
type Provider struct {
	factory    Factory
	dimensions int
	version    string
	logger     *zap.Logger

	mu       sync.Mutex
	embedder Embedder
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithModelVersion records the model identifier reported by Version.
func WithModelVersion(v string) Option {
	return func(p *Provider) { p.version = v }
}

// NewProvider returns a Provider that calls factory on first use. When dimensions is
// positive, vectors of any other length are rejected.
func NewProvider(factory Factory, dimensions int, opts ...Option) *Provider {
	p := &Provider{factory: factory, dimensions: dimensions, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// New builds the Provider selected by cfg.Provider.
func New(cfg *config.EmbeddingConfig, opts ...Option) *Provider {
	opts = append([]Option{WithModelVersion(cfg.ModelVersion)}, opts...)
	p := NewProvider(nil, cfg.Dimensions, opts...)
	p.factory = func() (Embedder, error) {
		if cfg.Provider == config.ProviderMock {
			return NewMockEmbedder(cfg.Dimensions), nil
		}
		var tok Tokenizer = &SimpleTokenizer{}
		if vocab, err := LoadWordPiece(cfg.VocabPath); err != nil {
			p.logger.Warn("WordPiece vocabulary unavailable, using hash tokenizer",
				zap.String("path", cfg.VocabPath), zap.Error(err))
		} else {
			tok = vocab
		}
		return NewONNXEmbedder(cfg.ModelPath, tok, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	}
	return p
}

// Init creates the underlying embedder if it does not exist yet.
func (p *Provider) Init(ctx context.Context) error {
	_, err := p.get()
	return err
}

func (p *Provider) get() (Embedder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.embedder != nil {
		return p.embedder, nil
	}
	start := time.Now()
	e, err := p.factory()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	p.embedder = e
	p.logger.Info("Embedding model loaded",
		zap.String("version", p.version),
		zap.Int("dimensions", e.Dimensions()),
		zap.Duration("took", time.Since(start)))
	return e, nil
}

// Embed returns the unit-normalized embedding of text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	e, err := p.get()
	if err != nil {
		return nil, err
	}
	vec, err := e.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	return p.normalized(vec)
}

// EmbedBatch embeds each text independently.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e, err := p.get()
	if err != nil {
		return nil, err
	}
	vecs, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch: %w", err)
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		if out[i], err = p.normalized(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// normalized returns a unit-length copy of vec. Cached vectors are never modified.
func (p *Provider) normalized(vec []float32) ([]float32, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedder returned an empty vector")
	}
	if p.dimensions > 0 && len(vec) != p.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), p.dimensions)
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	utils.NormalizeL2(out)
	return out, nil
}

// Dimensions returns the configured dimension, or that of the loaded embedder.
func (p *Provider) Dimensions() int {
	if p.dimensions > 0 {
		return p.dimensions
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.embedder != nil {
		return p.embedder.Dimensions()
	}
	return 0
}

// Version returns the configured model identifier.
func (p *Provider) Version() string {
	return p.version
}

// Ready reports whether the underlying embedder has been created.
func (p *Provider) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.embedder != nil
}

// Close releases the underlying embedder, if any.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.embedder == nil {
		return nil
	}
	err := p.embedder.Close()
	p.embedder = nil
	return err
}
