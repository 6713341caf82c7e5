package config

import "time"

const (
	// DriverSQLite stores chunks and helpers in a local SQLite file.
	DriverSQLite = "sqlite"
	// DriverMongo stores chunks and helpers in MongoDB collections.
	DriverMongo = "mongo"

	// ProviderONNX runs the embedding model locally through ONNX Runtime.
	ProviderONNX = "onnx"
	// ProviderMock produces deterministic hash-based embeddings (tests and dry runs).
	ProviderMock = "mock"

	// DefaultDocTitle is the title the policy knowledge base is stored under.
	DefaultDocTitle = "Hiring a Foreign Domestic Worker (MDW) in Singapore"
)

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4000
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/helpmate/data/helpmate.db"
	}
	if cfg.Storage.MongoDatabase == "" {
		cfg.Storage.MongoDatabase = "mdw_policy"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/helpmate/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.VocabPath == "" {
		cfg.Embedding.VocabPath = "/usr/local/var/helpmate/data/models/vocab.txt"
	}
	if cfg.Embedding.ModelVersion == "" {
		cfg.Embedding.ModelVersion = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.LLM.RetryDelay == 0 {
		cfg.LLM.RetryDelay = time.Second
	}
	if cfg.Knowledge.Source == "" {
		cfg.Knowledge.Source = "pdf"
	}
	if cfg.Knowledge.Title == "" {
		cfg.Knowledge.Title = DefaultDocTitle
	}
	// An explicit chunk_size keeps its overlap as given, including 0.
	if cfg.Knowledge.ChunkSize == 0 {
		cfg.Knowledge.ChunkSize = 900
		if cfg.Knowledge.ChunkOverlap == 0 {
			cfg.Knowledge.ChunkOverlap = 150
		}
	}
	if cfg.Knowledge.TopK == 0 {
		cfg.Knowledge.TopK = 5
	}
	if cfg.Knowledge.WatchDebounce == 0 {
		cfg.Knowledge.WatchDebounce = 400 * time.Millisecond
	}
	if cfg.Chat.HelperLimit == 0 {
		cfg.Chat.HelperLimit = 3
	}
}
