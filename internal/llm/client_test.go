package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/helpmate/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewOpenAIClient(&config.LLMConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/v1",
		Model:      "gpt-4o-mini",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"error"}}`, msg)
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(&config.LLMConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestCompleteJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			writeError(w, http.StatusBadGateway, "upstream")
			return
		}
		var body struct {
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		if body.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %q", body.ResponseFormat.Type)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", body.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","model":"gpt-4o-mini",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":"{\"nationality\":\"Indonesia\"}"},"finish_reason":"stop"}]}`)
	})

	got, err := c.CompleteJSON(context.Background(), []Message{System("extract"), User("maid from Indonesia")})
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"nationality":"Indonesia"}` {
		t.Errorf("content = %s", got)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestCompleteJSON_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeError(w, http.StatusUnauthorized, "bad key")
	})
	if _, err := c.CompleteJSON(context.Background(), []Message{User("hi")}); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestCompleteJSON_GivesUp(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeError(w, http.StatusServiceUnavailable, "overloaded")
	})
	if _, err := c.CompleteJSON(context.Background(), []Message{User("hi")}); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func streamHandler(tokens ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range tokens {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"model\":\"m\","+
				"\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func TestStream(t *testing.T) {
	c := newTestClient(t, streamHandler("The levy ", "", "is $300 ", "[Source 1]."))
	var sb strings.Builder
	var n int
	err := c.Stream(context.Background(), []Message{User("levy?")}, func(tok string) error {
		n++
		sb.WriteString(tok)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if sb.String() != "The levy is $300 [Source 1]." {
		t.Errorf("streamed %q", sb.String())
	}
	if n != 3 {
		t.Errorf("onToken called %d times, want 3 (empty deltas skipped)", n)
	}
}

func TestStream_CallbackErrorStops(t *testing.T) {
	c := newTestClient(t, streamHandler("a", "b", "c"))
	stop := errors.New("client gone")
	var n int
	err := c.Stream(context.Background(), []Message{User("x")}, func(string) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Errorf("err = %v, calls = %d", err, n)
	}
}

func TestRetryable(t *testing.T) {
	if retryable(context.Canceled) {
		t.Error("cancellation is final")
	}
	if !retryable(errors.New("connection reset")) {
		t.Error("transport errors are transient")
	}
	for code, want := range map[int]bool{400: false, 401: false, 429: true, 500: true, 503: true} {
		if got := retryableStatus(code); got != want {
			t.Errorf("retryableStatus(%d) = %v", code, got)
		}
	}
}
