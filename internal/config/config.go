package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// CacheConfig bounds the in-process embedding cache.
type CacheConfig struct {
	Enabled    bool  `yaml:"enabled"`
	MaxEntries int64 `yaml:"max_entries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string                `yaml:"type"`
	Dimension   int                   `yaml:"dimension"`
	TimeoutSecs int                   `yaml:"timeout_secs"`
	Cache       CacheConfig           `yaml:"cache"`
	OpenAI      *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

func (c EmbedderConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// CompleterConfig selects the language model that produces agent turns.
type CompleterConfig struct {
	Type          string  `yaml:"type"`
	Model         string  `yaml:"model"`
	SystemPrompt  string  `yaml:"system_prompt"`
	AIMessage     string  `yaml:"ai_message"`     // opens every conversation as an assistant message
	HumanTemplate string  `yaml:"human_template"` // wraps each user message at {human_input}
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	TimeoutSecs   int     `yaml:"timeout_secs"`
	APIKeyEnv     string  `yaml:"api_key_env"`
	BaseURL       string  `yaml:"base_url"`
}

func (c CompleterConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxChars int `yaml:"max_chars"`
}

// VectorStoreConfig selects the in-memory index backend and its metric.
type VectorStoreConfig struct {
	Type   string `yaml:"type"`
	Metric string `yaml:"metric"`
}

// RetrievalConfig controls how much context a turn gets.
type RetrievalConfig struct {
	TopK         int `yaml:"top_k"`
	HistoryTurns int `yaml:"history_turns"`
}

// SummarizerConfig configures the ingest summary.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// LogConfig routes the structured log.
type LogConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Store       StoreConfig       `yaml:"store"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Completer   CompleterConfig   `yaml:"completer"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./memchat.yaml first, then ~/.config/memchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/memchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "memchat.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "memchat", "config.yaml"), nil
}

// Default returns the configuration used when no file exists.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "hash", Cache: CacheConfig{Enabled: true}},
		Completer:   CompleterConfig{Type: "openai", Temperature: 0.7},
		VectorStore: VectorStoreConfig{Type: "memory", Metric: "l2sq"},
		Log:         LogConfig{Mode: "dev"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = "memchat.db"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hash"
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.Cache.MaxEntries == 0 {
		cfg.Embedder.Cache.MaxEntries = 10000
	}
	switch cfg.Embedder.Type {
	case "hash":
		if cfg.Embedder.Dimension == 0 {
			cfg.Embedder.Dimension = 256
		}
	case "mock":
		if cfg.Embedder.Dimension == 0 {
			cfg.Embedder.Dimension = 384
		}
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.Dimension == 0 {
			cfg.Embedder.Dimension = 1536
		}
	}

	if cfg.Completer.Type == "" {
		cfg.Completer.Type = "openai"
	}
	if cfg.Completer.TimeoutSecs == 0 {
		cfg.Completer.TimeoutSecs = 60
	}
	if cfg.Completer.MaxTokens == 0 {
		cfg.Completer.MaxTokens = 1024
	}
	switch cfg.Completer.Type {
	case "openai":
		if cfg.Completer.Model == "" {
			cfg.Completer.Model = "gpt-4o-mini"
		}
		if cfg.Completer.APIKeyEnv == "" {
			cfg.Completer.APIKeyEnv = "OPENAI_API_KEY"
		}
	case "anthropic":
		if cfg.Completer.Model == "" {
			cfg.Completer.Model = "claude-sonnet-4-20250514"
		}
		if cfg.Completer.APIKeyEnv == "" {
			cfg.Completer.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	}

	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = 1024
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Metric == "" {
		cfg.VectorStore.Metric = "l2sq"
		if cfg.VectorStore.Type == "chromem" {
			cfg.VectorStore.Metric = "cosine"
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.HistoryTurns == 0 {
		cfg.Retrieval.HistoryTurns = 10
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "dev"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "memchat.log"
	}
}

// Validate rejects combinations the application cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "hash", "mock", "openai":
	default:
		return fmt.Errorf("unknown embedder type %q", c.Embedder.Type)
	}
	switch c.Completer.Type {
	case "echo", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown completer type %q", c.Completer.Type)
	}
	switch c.VectorStore.Type {
	case "memory":
	case "chromem":
		if c.VectorStore.Metric != "cosine" {
			return fmt.Errorf("vector store chromem only supports the cosine metric, got %q", c.VectorStore.Metric)
		}
	default:
		return fmt.Errorf("unknown vector store type %q", c.VectorStore.Type)
	}
	if c.Embedder.Dimension <= 0 {
		return fmt.Errorf("embedder dimension must be positive, got %d", c.Embedder.Dimension)
	}
	if c.Chunker.MaxChars < 0 || c.Retrieval.TopK < 0 || c.Retrieval.HistoryTurns < 0 {
		return errors.New("chunker.max_chars, retrieval.top_k and retrieval.history_turns must not be negative")
	}
	return nil
}
