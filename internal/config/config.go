package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultTopK           = 5
	DefaultWorkers        = 2
	DefaultBatchSize      = 32
	DefaultMaxConcurrency = 4
	DefaultMaxRetries     = 3
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultStorePath      = "chroma_db"
	DefaultCollection     = "documents"
)

// LLMConfig configures one external model endpoint (embedding or chat).
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "ollama"
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`

	// Embedding batch controls.
	BatchSize      int `yaml:"batch_size"`
	MaxConcurrency int `yaml:"max_concurrency"`
	MaxRetries     int `yaml:"max_retries"`
}

// RAGConfig holds chunking and retrieval parameters.
type RAGConfig struct {
	ChunkSize    int               `yaml:"chunk_size"`
	ChunkOverlap int               `yaml:"chunk_overlap"`
	TopK         int               `yaml:"top_k"`
	Workers      int               `yaml:"workers"`
	Extensions   []string          `yaml:"extensions"`
	Tags         map[string]string `yaml:"tags"`
}

// StoreConfig selects and locates the vector store backend.
type StoreConfig struct {
	Backend    string `yaml:"backend"` // "chromem" or "postgres"
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// DatabaseConfig configures the optional Postgres backend.
type DatabaseConfig struct {
	DSN        string `yaml:"dsn"`
	Password   string `yaml:"password"`
	Debug      bool   `yaml:"debug"`
	VectorSize int    `yaml:"vector_size"`
}

type Config struct {
	RAG      RAGConfig      `yaml:"rag"`
	Store    StoreConfig    `yaml:"store"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	Database DatabaseConfig `yaml:"database"`
}

// LoadConfig reads a yaml config file and applies defaults. A missing file
// is not an error: defaults are returned so the CLI can run on flags alone.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(&cfg)
			return &cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = DefaultChunkSize
	}
	// A yaml zero is indistinguishable from an omitted key, so the default
	// overlap applies to both; an explicit zero overlap goes through the
	// --chunk-overlap flag. The default is skipped when it would not fit
	// the configured chunk size.
	if cfg.RAG.ChunkOverlap == 0 && DefaultChunkOverlap < cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = DefaultTopK
	}
	if cfg.RAG.Workers == 0 {
		cfg.RAG.Workers = DefaultWorkers
	}
	if len(cfg.RAG.Extensions) == 0 {
		cfg.RAG.Extensions = []string{".pdf"}
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "chromem"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = DefaultCollection
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "openai"
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = DefaultEmbeddingModel
	}
	if cfg.EmbedLLM.BatchSize == 0 {
		cfg.EmbedLLM.BatchSize = DefaultBatchSize
	}
	if cfg.EmbedLLM.MaxConcurrency == 0 {
		cfg.EmbedLLM.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.EmbedLLM.MaxRetries == 0 {
		cfg.EmbedLLM.MaxRetries = DefaultMaxRetries
	}
	if cfg.ChatLLM.Provider == "" {
		cfg.ChatLLM.Provider = "openai"
	}
}

// Validate rejects configurations that would corrupt chunking or storage.
// An overlap at or above the chunk size is a configuration error, not
// something to clamp silently.
func (cfg *Config) Validate() error {
	if cfg.RAG.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", cfg.RAG.ChunkSize)
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return fmt.Errorf("chunk_overlap must satisfy 0 <= overlap < chunk_size, got overlap=%d size=%d",
			cfg.RAG.ChunkOverlap, cfg.RAG.ChunkSize)
	}
	switch cfg.Store.Backend {
	case "chromem", "postgres":
	default:
		return fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
	return nil
}
