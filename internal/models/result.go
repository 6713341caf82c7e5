package models

import (
	"fmt"
	"strings"

	"github.com/hyperjump/helpmate/internal/config"
)

// Mode is an explicit routing hint sent by the chat client.
type Mode string

const (
	ModeNone   Mode = ""
	ModeHelper Mode = "helper"
	ModePolicy Mode = "policy"
)

// ChatRequest is the body of a chat message.
type ChatRequest struct {
	Message string `json:"message"`
	Mode    Mode   `json:"mode,omitempty"`
}

// Validate trims the message and rejects empty messages and unknown modes.
func (r *ChatRequest) Validate() error {
	r.Message = strings.TrimSpace(r.Message)
	if r.Message == "" {
		return fmt.Errorf("message is required")
	}
	switch r.Mode {
	case ModeNone, ModeHelper, ModePolicy:
	default:
		return fmt.Errorf("unsupported mode: %s", r.Mode)
	}
	return nil
}

// ScoredChunk is a vector search hit.
type ScoredChunk struct {
	Score float64    `json:"score"`
	Chunk *TextChunk `json:"chunk"`
}

// HelperPage is one page of a catalog listing.
type HelperPage struct {
	Items []*HelperProfile `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int64            `json:"total"`
	Pages int              `json:"pages"`
}

// NewHelperPage builds a page for the given query and total match count.
func NewHelperPage(q *HelperQuery, items []*HelperProfile, total int64) *HelperPage {
	if items == nil {
		items = []*HelperProfile{}
	}
	pages := 0
	if q.Limit > 0 {
		pages = int((total + int64(q.Limit) - 1) / int64(q.Limit))
	}
	return &HelperPage{Items: items, Page: q.Page, Limit: q.Limit, Total: total, Pages: pages}
}

// KnowledgeStatus reports the state of the policy knowledge base.
type KnowledgeStatus struct {
	Title          string        `json:"title"`
	Source         string        `json:"source"`
	Chunks         int64         `json:"chunks"`
	LoadedVectors  int           `json:"loaded_vectors"`
	Ready          bool          `json:"ready"`
	DiskUsageBytes *int64        `json:"disk_usage_bytes,omitempty"`
	Config         *StatusConfig `json:"config,omitempty"`
}

// StatusConfig is the subset of configuration shown by status.
type StatusConfig struct {
	StorageDriver       string `json:"storage_driver"`
	DatabasePath        string `json:"database_path,omitempty"`
	EmbeddingProvider   string `json:"embedding_provider"`
	EmbeddingModel      string `json:"embedding_model"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	ChatModel           string `json:"chat_model"`
	ChunkSize           int    `json:"chunk_size"`
	ChunkOverlap        int    `json:"chunk_overlap"`
	TopK                int    `json:"top_k"`
}

// NewStatusConfig extracts the status view of cfg. The database path is only shown for SQLite.
func NewStatusConfig(cfg *config.Config) *StatusConfig {
	sc := &StatusConfig{
		StorageDriver:       cfg.Storage.Driver,
		EmbeddingProvider:   cfg.Embedding.Provider,
		EmbeddingModel:      cfg.Embedding.ModelVersion,
		EmbeddingDimensions: cfg.Embedding.Dimensions,
		ChatModel:           cfg.LLM.Model,
		ChunkSize:           cfg.Knowledge.ChunkSize,
		ChunkOverlap:        cfg.Knowledge.ChunkOverlap,
		TopK:                cfg.Knowledge.TopK,
	}
	if cfg.Storage.Driver == config.DriverSQLite {
		sc.DatabasePath = cfg.Storage.DatabasePath
	}
	return sc
}
