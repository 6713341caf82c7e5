// Package config provides configuration loading and structs for the helpmate server and tools.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Chat      ChatConfig      `yaml:"chat"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects and configures the document store shared by chunks and helpers.
type StorageConfig struct {
	Driver        string `yaml:"driver"` // sqlite or mongo
	DatabasePath  string `yaml:"database_path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// EmbeddingConfig holds local embedding model settings.
type EmbeddingConfig struct {
	Provider     string `yaml:"provider"` // onnx or mock
	ModelPath    string `yaml:"model_path"`
	VocabPath    string `yaml:"vocab_path"` // WordPiece vocab.txt; hash tokenizer when empty or missing
	ModelVersion string `yaml:"model_version"`
	Dimensions   int    `yaml:"dimensions"`
	MaxTokens    int    `yaml:"max_tokens"`
	CacheSize    int    `yaml:"cache_size"`
}

// LLMConfig holds the chat model provider settings.
type LLMConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// KnowledgeConfig describes the ingested policy document and how it is chunked and searched.
type KnowledgeConfig struct {
	Source        string        `yaml:"source"`
	Title         string        `yaml:"title"`
	ChunkSize     int           `yaml:"chunk_size"`
	ChunkOverlap  int           `yaml:"chunk_overlap"`
	TopK          int           `yaml:"top_k"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// ChatConfig holds chat assistant behaviour.
type ChatConfig struct {
	FallbackMessage string `yaml:"fallback_message"`
	HelperLimit     int    `yaml:"helper_limit"`
}

// Load reads and parses the config file at path, applies environment overrides,
// expands paths and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Embedding.VocabPath != "" {
		cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=value pairs from a .env file into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides config values from well-known environment variables.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.Storage.MongoURI = v
	}
	if v := os.Getenv("DOC_TITLE"); v != "" {
		cfg.Knowledge.Title = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("unknown storage driver: %s (supported: sqlite, mongo)", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverMongo && c.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required for the mongo driver")
	}
	switch c.Embedding.Provider {
	case ProviderONNX, ProviderMock:
	default:
		return fmt.Errorf("unknown embedding provider: %s (supported: onnx, mock)", c.Embedding.Provider)
	}
	if c.Knowledge.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.Knowledge.ChunkSize)
	}
	if c.Knowledge.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must not be negative, got %d", c.Knowledge.ChunkOverlap)
	}
	if c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Knowledge.ChunkOverlap, c.Knowledge.ChunkSize)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
