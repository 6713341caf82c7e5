package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/helpmate/internal/embedding"
	"github.com/hyperjump/helpmate/internal/llm"
	"github.com/hyperjump/helpmate/internal/models"
	"github.com/hyperjump/helpmate/internal/storage"
	"github.com/hyperjump/helpmate/internal/vector"
)

const testTitle = "Hiring a Foreign Domestic Worker (MDW) in Singapore"

type fakeLLM struct {
	mu          sync.Mutex
	json        string
	jsonErr     error
	tokens      []string
	streamErr   error
	jsonCalls   int
	streamCalls int
	lastPrompt  []llm.Message
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jsonCalls++
	f.lastPrompt = messages
	return f.json, f.jsonErr
}

func (f *fakeLLM) Stream(ctx context.Context, messages []llm.Message, onToken func(string) error) error {
	f.mu.Lock()
	f.streamCalls++
	f.lastPrompt = messages
	f.mu.Unlock()
	for _, tok := range f.tokens {
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return f.streamErr
}

type fakeRetriever struct {
	hits    []models.ScoredChunk
	loadErr error
}

func (r *fakeRetriever) EnsureLoaded(ctx context.Context) error { return r.loadErr }

func (r *fakeRetriever) Search(query []float32, k int) []models.ScoredChunk {
	if len(r.hits) > k {
		return r.hits[:k]
	}
	return r.hits
}

type failingCatalog struct{ storage.HelperCatalog }

func (failingCatalog) FindHelpers(context.Context, *models.HelperSearchFilter, int) ([]*models.HelperProfile, error) {
	return nil, errors.New("database unreachable")
}

func testCatalog(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	helpers := []*models.HelperProfile{
		{Name: "Siti", Age: 29, Nationality: "Indonesian", Experience: 5, Skills: []string{"Cooking", "Infant Care"}, Availability: true},
		{Name: "Maria", Age: 34, Nationality: "Filipino", Experience: 8, Skills: []string{"Cooking", "Elderly Care"}, Availability: true},
		{Name: "Dewi", Age: 41, Nationality: "Indonesian", Experience: 12, Skills: []string{"Housekeeping", "Cooking"}, Availability: true},
		{Name: "Nur", Age: 26, Nationality: "Indonesian", Experience: 2, Skills: []string{"cooking"}, Availability: true},
		{Name: "Rina", Age: 31, Nationality: "Indonesian", Experience: 6, Skills: []string{"Cooking", "Pet Care"}, Availability: false},
		{Name: "Aye", Age: 30, Nationality: "Myanmar", Experience: 4, Skills: []string{"Housekeeping"}, Availability: true},
	}
	if err := store.ReplaceHelpers(context.Background(), helpers); err != nil {
		t.Fatal(err)
	}
	return store
}

func policyHits() []models.ScoredChunk {
	return []models.ScoredChunk{
		{Score: 0.8731, Chunk: &models.TextChunk{Title: testTitle, ChunkIndex: 4, Text: "Section 5:\nThe monthly levy is $300."}},
		{Score: 0.61, Chunk: &models.TextChunk{Title: testTitle, ChunkIndex: 9, Text: "Section 10:\nA concessionary levy of $60 applies."}},
	}
}

func newAssistant(catalog storage.HelperCatalog, r Retriever, client llm.Client) *Assistant {
	return NewAssistant(catalog, embedding.NewMockEmbedder(16), r, client)
}

func TestReply_HelperSearch(t *testing.T) {
	client := &fakeLLM{json: `{"nationality":"Indonesia","minAge":null,"maxAge":null,"minExperience":null,"skills":["cooking"]}`}
	a := newAssistant(testCatalog(t), &fakeRetriever{}, client)

	got := Collect(a.Reply(context.Background(), &models.ChatRequest{Message: "I need a maid from Indonesia who can cook"}))

	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 helper lines, got %q", got)
	}
	if lines[0] != "Siti, 29 years old, Indonesian, skills: Cooking, Infant Care" {
		t.Errorf("first line = %q", lines[0])
	}
	for _, line := range lines {
		if !strings.Contains(line, "Indonesian") || !strings.Contains(strings.ToLower(line), "cooking") {
			t.Errorf("line does not match filter: %q", line)
		}
	}
	if client.jsonCalls != 1 || client.streamCalls != 0 {
		t.Errorf("json calls = %d, stream calls = %d", client.jsonCalls, client.streamCalls)
	}
	if client.lastPrompt[0].Content != extractionPrompt {
		t.Error("extraction prompt not sent as system message")
	}
}

func TestReply_HelperNoMatches(t *testing.T) {
	client := &fakeLLM{json: `{"nationality":"Sri Lankan","skills":null}`}
	a := newAssistant(testCatalog(t), &fakeRetriever{}, client)
	got := Collect(a.Reply(context.Background(), &models.ChatRequest{Message: "any helper", Mode: models.ModeHelper}))
	if got != DefaultReferral {
		t.Errorf("got %q", got)
	}
}

func TestReply_HelperUnparsableFilter(t *testing.T) {
	client := &fakeLLM{json: "sorry, I cannot do that"}
	a := newAssistant(testCatalog(t), &fakeRetriever{}, client)
	got := Collect(a.Reply(context.Background(), &models.ChatRequest{Message: "show me helpers"}))
	if n := len(strings.Split(got, "\n")); n != 3 {
		t.Errorf("empty filter should list 3 helpers, got %d lines: %q", n, got)
	}
}

func TestReply_HelperUpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		catalog storage.HelperCatalog
		client  *fakeLLM
	}{
		{"model error", testCatalog(t), &fakeLLM{jsonErr: errors.New("connection refused")}},
		{"catalog error", failingCatalog{}, &fakeLLM{json: `{}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAssistant(tt.catalog, &fakeRetriever{}, tt.client)
			got := Collect(a.Reply(context.Background(), &models.ChatRequest{Message: "maid please"}))
			if got != DefaultReferral {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestReply_Policy(t *testing.T) {
	client := &fakeLLM{tokens: []string{"The levy ", "is $300 ", "[Source 1]."}}
	a := newAssistant(testCatalog(t), &fakeRetriever{hits: policyHits()}, client)

	ch := a.Reply(context.Background(), &models.ChatRequest{Message: "How much is the levy?"})
	var frags []string
	for f := range ch {
		frags = append(frags, f)
	}
	if len(frags) != 4 {
		t.Fatalf("expected 3 tokens and a footer, got %q", frags)
	}
	want := "The levy is $300 [Source 1]." +
		"\n\nSources:\n[1] " + testTitle + " (chunk 4, score 0.873)\n[2] " + testTitle + " (chunk 9, score 0.610)"
	if got := strings.Join(frags, ""); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	prompt := client.lastPrompt[1].Content
	for _, s := range []string{"Source 1:\nThe monthly levy is $300.", "Source 2:\nA concessionary levy", "Question: How much is the levy?"} {
		if !strings.Contains(prompt, s) {
			t.Errorf("prompt missing %q:\n%s", s, prompt)
		}
	}
	if strings.Contains(prompt, "Section 5:") {
		t.Error("section labels should be stripped from passages")
	}
	if !strings.Contains(client.lastPrompt[0].Content, "official source") {
		t.Error("system prompt should point to the official source")
	}
}

func TestReply_PolicyEmptyKnowledgeBase(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	client := &fakeLLM{tokens: []string{"should not be called"}}
	a := newAssistant(store, vector.NewStore(store, "pdf", testTitle), client)

	got := Collect(a.Reply(context.Background(), &models.ChatRequest{Message: "levy", Mode: models.ModePolicy}))
	if got != DefaultReferral {
		t.Errorf("got %q", got)
	}
	if client.streamCalls != 0 || client.jsonCalls != 0 {
		t.Error("no model call expected when nothing is retrieved")
	}
}

func TestReply_PolicyFailures(t *testing.T) {
	t.Run("load error", func(t *testing.T) {
		client := &fakeLLM{}
		a := newAssistant(testCatalog(t), &fakeRetriever{loadErr: errors.New("timeout")}, client)
		if got := Collect(a.Reply(context.Background(), &models.ChatRequest{Message: "work permit", Mode: models.ModePolicy})); got != DefaultReferral {
			t.Errorf("got %q", got)
		}
	})
	t.Run("mid-stream error", func(t *testing.T) {
		client := &fakeLLM{tokens: []string{"The levy"}, streamErr: errors.New("stream interrupted")}
		a := newAssistant(testCatalog(t), &fakeRetriever{hits: policyHits()}, client)
		got := Collect(a.Reply(context.Background(), &models.ChatRequest{Message: "levy", Mode: models.ModePolicy}))
		if got != "The levy\n\n"+DefaultReferral {
			t.Errorf("got %q", got)
		}
	})
}

func TestReply_Fallback(t *testing.T) {
	client := &fakeLLM{}
	a := NewAssistant(testCatalog(t), embedding.NewMockEmbedder(16), &fakeRetriever{hits: policyHits()}, client,
		WithReferral("Please WhatsApp us."))
	got := Collect(a.Reply(context.Background(), &models.ChatRequest{Message: "What's the weather like?"}))
	if got != "Please WhatsApp us." || a.Referral() != got {
		t.Errorf("got %q", got)
	}
	if client.jsonCalls+client.streamCalls != 0 {
		t.Error("fallback must not call the model")
	}
}

func TestReply_Cancelled(t *testing.T) {
	client := &fakeLLM{tokens: []string{"a", "b", "c"}}
	a := newAssistant(testCatalog(t), &fakeRetriever{hits: policyHits()}, client)
	ctx, cancel := context.WithCancel(context.Background())
	ch := a.Reply(ctx, &models.ChatRequest{Message: "levy"})
	if first := <-ch; first != "a" {
		t.Errorf("first fragment = %q", first)
	}
	cancel()
	for range ch {
	}
}

func TestFormatHelpers(t *testing.T) {
	got := FormatHelpers([]*models.HelperProfile{
		{Name: "Siti", Age: 29, Nationality: "Indonesian", Skills: []string{"Cooking", "Infant Care"}},
		{Name: "Aye", Age: 30, Nationality: "Myanmar"},
	})
	want := "Siti, 29 years old, Indonesian, skills: Cooking, Infant Care\nAye, 30 years old, Myanmar, skills: "
	if got != want {
		t.Errorf("got %q", got)
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("```json\n{\"nationality\": \"Filipino\", \"minAge\": \"25\", \"skills\": \"cooking, elderly care\"}\n```")
	if err != nil {
		t.Fatal(err)
	}
	if f.Nationality == nil || *f.Nationality != "Filipino" || f.MinAge == nil || *f.MinAge != 25 {
		t.Errorf("filter = %+v", f)
	}
	if len(f.Skills) != 2 || f.Skills[1] != "elderly care" {
		t.Errorf("skills = %v", f.Skills)
	}
	if _, err := ParseFilter("no json here"); err == nil {
		t.Error("expected parse error")
	}
}
