package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/helpmate/internal/llm"
	"github.com/hyperjump/helpmate/internal/models"
)

const extractionPrompt = "Extract helper search criteria from the following user message and respond as JSON " +
	"with keys: nationality, minAge, maxAge, minExperience, skills (array). If not specified, use null."

// FilterExtractor turns a free-text helper request into a HelperSearchFilter.
type FilterExtractor struct {
	client llm.Client
	logger *zap.Logger
}

// NewFilterExtractor creates an extractor backed by client.
func NewFilterExtractor(client llm.Client, logger *zap.Logger) *FilterExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilterExtractor{client: client, logger: logger}
}

// Extract asks the model for search criteria. A provider error is returned; output that
// cannot be parsed yields an empty filter.
func (e *FilterExtractor) Extract(ctx context.Context, message string) (*models.HelperSearchFilter, error) {
	content, err := e.client.CompleteJSON(ctx, []llm.Message{
		llm.System(extractionPrompt),
		llm.User(message),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract helper filter: %w", err)
	}
	filter, err := ParseFilter(content)
	if err != nil {
		e.logger.Warn("Unparsable filter from model, searching without constraints",
			zap.String("content", content),
			zap.Error(err))
		return &models.HelperSearchFilter{}, nil
	}
	return filter, nil
}

// ParseFilter decodes a filter from model output, tolerating text around the JSON object.
func ParseFilter(content string) (*models.HelperSearchFilter, error) {
	content = strings.TrimSpace(content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}
	var f models.HelperSearchFilter
	if err := json.Unmarshal([]byte(content), &f); err != nil {
		return nil, err
	}
	return &f, nil
}
