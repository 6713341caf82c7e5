// Package llm wraps the chat-completion provider used for filter extraction and answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/helpmate/internal/config"
	"github.com/hyperjump/helpmate/pkg/utils"
)

// Message roles.
const (
	RoleSystem = openai.ChatMessageRoleSystem
	RoleUser   = openai.ChatMessageRoleUser
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Client is a chat model.
type Client interface {
	// CompleteJSON returns the content of a completion constrained to a JSON object.
	CompleteJSON(ctx context.Context, messages []Message) (string, error)
	// Stream calls onToken with each non-empty content fragment in order. It stops at the
	// first error returned by onToken.
	Stream(ctx context.Context, messages []Message, onToken func(string) error) error
}

// OpenAIClient implements Client on an OpenAI-compatible API with retry on transient errors.
type OpenAIClient struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *OpenAIClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewOpenAIClient creates a client from cfg. An API key is required.
func NewOpenAIClient(cfg *config.LLMConfig, opts ...Option) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or llm.api_key)")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	c := &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CompleteJSON implements Client.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAI(messages),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var content string
	err := c.retry(ctx, "completion", func() error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errNoChoices
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to complete: %w", err)
	}
	return content, nil
}

// Stream implements Client. Opening the stream is retried; once a fragment has been
// received the stream is never retried.
func (c *OpenAIClient) Stream(ctx context.Context, messages []Message, onToken func(string) error) error {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAI(messages),
	}

	var stream *openai.ChatCompletionStream
	err := c.retry(ctx, "stream", func() error {
		var err error
		stream, err = c.client.CreateChatCompletionStream(ctx, req)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream interrupted: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if token := resp.Choices[0].Delta.Content; token != "" {
			if err := onToken(token); err != nil {
				return err
			}
		}
	}
}

var errNoChoices = errors.New("no completion choices returned")

// retry runs fn up to maxRetries+1 times, backing off between attempts while the error is transient.
func (c *OpenAIClient) retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := utils.Sleep(ctx, utils.CalculateBackoff(c.retryDelay, attempt)); err != nil {
				return err
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		c.logger.Warn("LLM request failed",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}
	return fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

// retryable reports whether err is worth another attempt: rate limits, server errors and
// transport failures. Cancellation and client errors are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError || code == 0
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
