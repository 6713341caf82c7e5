package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/helpmate/internal/config"
)

func vecNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// scaledEmbedder returns non-normalized vectors so the Provider has to normalize them.
type scaledEmbedder struct{ MockEmbedder }

func (e *scaledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.MockEmbedder.Embed(ctx, text)
	for i := range v {
		v[i] *= 7
	}
	return v, err
}

func (e *scaledEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = e.Embed(ctx, text)
	}
	return out, nil
}

func TestProvider_LazyInitOnce(t *testing.T) {
	var calls int32
	p := NewProvider(func() (Embedder, error) {
		atomic.AddInt32(&calls, 1)
		return NewMockEmbedder(8), nil
	}, 8)
	if p.Ready() {
		t.Fatal("provider should not initialize before first use")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Embed(context.Background(), "rest day"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("factory called %d times, want 1", n)
	}
	if !p.Ready() {
		t.Error("provider should be ready after use")
	}
}

func TestProvider_RetriesFailedInit(t *testing.T) {
	fail := true
	p := NewProvider(func() (Embedder, error) {
		if fail {
			return nil, errors.New("model missing")
		}
		return NewMockEmbedder(4), nil
	}, 4)
	if _, err := p.Embed(context.Background(), "levy"); err == nil {
		t.Fatal("expected init error")
	}
	fail = false
	if _, err := p.Embed(context.Background(), "levy"); err != nil {
		t.Fatalf("second attempt should succeed: %v", err)
	}
}

func TestProvider_NormalizesOutput(t *testing.T) {
	p := NewProvider(func() (Embedder, error) {
		return &scaledEmbedder{*NewMockEmbedder(16)}, nil
	}, 16)
	ctx := context.Background()
	texts := []string{"work permit", "security bond of $5,000", "Section 3:\nrest day", ""}
	for _, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(vecNorm(v)-1) > 1e-6 {
			t.Errorf("norm(%q) = %f", text, vecNorm(v))
		}
	}
	vecs, err := p.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vecs {
		if math.Abs(vecNorm(v)-1) > 1e-6 {
			t.Errorf("batch norm[%d] = %f", i, vecNorm(v))
		}
	}
}

func TestProvider_DimensionMismatch(t *testing.T) {
	p := NewProvider(func() (Embedder, error) { return NewMockEmbedder(4), nil }, 384)
	if _, err := p.Embed(context.Background(), "levy"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestNew_MockProvider(t *testing.T) {
	p := New(&config.EmbeddingConfig{Provider: config.ProviderMock, Dimensions: 32, ModelVersion: "mock-v1"})
	defer p.Close()
	v, err := p.Embed(context.Background(), "medical examination")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 32 || p.Dimensions() != 32 || p.Version() != "mock-v1" {
		t.Errorf("len=%d dims=%d version=%s", len(v), p.Dimensions(), p.Version())
	}
}

func TestMockEmbedder_SharedWordsScoreHigher(t *testing.T) {
	e := NewMockEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "monthly levy")
	a, _ := e.Embed(ctx, "The monthly levy for a work permit")
	b, _ := e.Embed(ctx, "Rest day arrangements")
	dot := func(x, y []float32) (s float32) {
		for i := range x {
			s += x[i] * y[i]
		}
		return s
	}
	if dot(q, a) <= dot(q, b) {
		t.Errorf("expected levy passage to score higher: %f <= %f", dot(q, a), dot(q, b))
	}
	again, _ := e.Embed(ctx, "monthly levy")
	for i := range q {
		if q[i] != again[i] {
			t.Fatal("mock embeddings should be deterministic")
		}
	}
}
