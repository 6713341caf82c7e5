package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/helpmate/internal/embedding"
	"github.com/hyperjump/helpmate/internal/llm"
	"github.com/hyperjump/helpmate/internal/models"
	"github.com/hyperjump/helpmate/internal/storage"
)

// DefaultReferral is sent whenever no grounded answer can be given.
const DefaultReferral = "Sorry, I could not get recommendations. Please contact our team directly and one of our consultants will assist you."

const (
	defaultTopK        = 5
	defaultHelperLimit = 3
)

// Retriever is the read side of the vector store.
type Retriever interface {
	EnsureLoaded(ctx context.Context) error
	Search(query []float32, k int) []models.ScoredChunk
}

// Assistant answers chat requests.
type Assistant struct {
	router      *Router
	extractor   *FilterExtractor
	catalog     storage.HelperCatalog
	embedder    embedding.Embedder
	retriever   Retriever
	llm         llm.Client
	referral    string
	topK        int
	helperLimit int
	logger      *zap.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithReferral replaces the referral text. Empty strings are ignored.
func WithReferral(text string) Option {
	return func(a *Assistant) {
		if text != "" {
			a.referral = text
		}
	}
}

// WithTopK sets how many passages ground a policy answer.
func WithTopK(k int) Option {
	return func(a *Assistant) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithHelperLimit sets how many catalog matches are listed.
func WithHelperLimit(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.helperLimit = n
		}
	}
}

// NewAssistant wires the answer pipeline.
func NewAssistant(
	catalog storage.HelperCatalog,
	embedder embedding.Embedder,
	retriever Retriever,
	client llm.Client,
	opts ...Option,
) *Assistant {
	a := &Assistant{
		router:      NewRouter(),
		catalog:     catalog,
		embedder:    embedder,
		retriever:   retriever,
		llm:         client,
		referral:    DefaultReferral,
		topK:        defaultTopK,
		helperLimit: defaultHelperLimit,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.extractor = NewFilterExtractor(client, a.logger)
	return a
}

// Referral returns the text sent when no grounded answer is available.
func (a *Assistant) Referral() string {
	return a.referral
}

// Reply answers req on the returned channel, one fragment per send, and closes it when done.
// Errors never reach the caller: they are logged and replaced by the referral, after a
// blank line if part of an answer was already sent. Cancelling ctx stops the reply.
func (a *Assistant) Reply(ctx context.Context, req *models.ChatRequest) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		start := time.Now()
		sent := false
		emit := func(s string) error {
			select {
			case out <- s:
				sent = true
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		route := a.router.Route(req.Message, req.Mode)
		err := a.answer(ctx, route, req.Message, emit)
		switch {
		case err == nil:
			a.logger.Debug("Chat reply sent",
				zap.Stringer("route", route),
				zap.Duration("took", time.Since(start)))
		case ctx.Err() != nil:
			a.logger.Debug("Chat reply cancelled", zap.Stringer("route", route), zap.Error(err))
		default:
			a.logger.Error("Chat reply failed", zap.Stringer("route", route), zap.Error(err))
			msg := a.referral
			if sent {
				msg = "\n\n" + msg
			}
			_ = emit(msg)
		}
	}()
	return out
}

// Collect drains a reply channel into a single string.
func Collect(ch <-chan string) string {
	var sb strings.Builder
	for frag := range ch {
		sb.WriteString(frag)
	}
	return sb.String()
}

func (a *Assistant) answer(ctx context.Context, route Route, message string, emit func(string) error) error {
	switch route {
	case RouteHelper:
		return a.answerHelpers(ctx, message, emit)
	case RoutePolicy:
		return a.answerPolicy(ctx, message, emit)
	default:
		return emit(a.referral)
	}
}

func (a *Assistant) answerHelpers(ctx context.Context, message string, emit func(string) error) error {
	filter, err := a.extractor.Extract(ctx, message)
	if err != nil {
		return err
	}
	helpers, err := a.catalog.FindHelpers(ctx, filter, a.helperLimit)
	if err != nil {
		return fmt.Errorf("failed to search helpers: %w", err)
	}
	a.logger.Debug("Helper search",
		zap.Any("filter", filter),
		zap.Int("matches", len(helpers)))
	if len(helpers) == 0 {
		return emit(a.referral)
	}
	return emit(FormatHelpers(helpers))
}

func (a *Assistant) answerPolicy(ctx context.Context, message string, emit func(string) error) error {
	vec, err := a.embedder.Embed(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to embed question: %w", err)
	}
	if err := a.retriever.EnsureLoaded(ctx); err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}
	hits := a.retriever.Search(vec, a.topK)
	if len(hits) == 0 {
		return emit(a.referral)
	}
	a.logger.Debug("Policy retrieval",
		zap.Int("hits", len(hits)),
		zap.Float64("top_score", hits[0].Score))

	if err := a.llm.Stream(ctx, PolicyMessages(message, hits), emit); err != nil {
		return err
	}
	return emit(SourcesFooter(hits))
}
