// Package config provides configuration loading and structs for kotae.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend types.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// APIKeyEnv is the environment variable consulted when no OpenAI key is configured.
const APIKeyEnv = "OPENAI_API_KEY"

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	DataDir    string           `yaml:"data_dir"`
	Backend    BackendConfig    `yaml:"backend"`
	Storage    StorageConfig    `yaml:"storage"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Server     ServerConfig     `yaml:"server"`
	Watch      WatchConfig      `yaml:"watch"`
}

// BackendConfig selects the embedding/completion backend.
type BackendConfig struct {
	Type        string       `yaml:"type"`
	CacheSize   int          `yaml:"cache_size"`
	TimeoutSecs int          `yaml:"timeout_secs"`
	Ollama      OllamaConfig `yaml:"ollama"`
	OpenAI      OpenAIConfig `yaml:"openai"`
}

// OllamaConfig holds settings for the local-network backend.
type OllamaConfig struct {
	BaseURL         string `yaml:"base_url"`
	EmbeddingModel  string `yaml:"embedding_model"`
	GenerationModel string `yaml:"generation_model"`
}

// OpenAIConfig holds settings for the hosted-API backend.
type OpenAIConfig struct {
	APIKey          string `yaml:"api_key,omitempty"`
	BaseURL         string `yaml:"base_url,omitempty"`
	EmbeddingModel  string `yaml:"embedding_model"`
	GenerationModel string `yaml:"generation_model"`
}

// StorageConfig holds paths for the persisted stores.
type StorageConfig struct {
	Type             string `yaml:"type"`
	IndexPath        string `yaml:"index_path"`
	DocumentsPath    string `yaml:"documents_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// GenerationConfig holds prompt settings.
type GenerationConfig struct {
	DefaultTemplate string `yaml:"default_template"`
	PromptsDir      string `yaml:"prompts_dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig holds data directory watch settings.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.DataDir = expandPath(cfg.DataDir, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.DocumentsPath = expandPath(cfg.Storage.DocumentsPath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Generation.PromptsDir = expandPath(cfg.Generation.PromptsDir, configDir)

	return &cfg, nil
}

// LoadOrDefault loads path when it exists and returns defaults otherwise.
// The second return value reports whether the file was found.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return Default(), false, nil
	}
	return nil, false, err
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath resolves paths starting with "./" or "../" against configDir.
// Bare relative paths stay relative to the working directory; empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if path == "." || strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return filepath.Join(configDir, path)
	}
	return path
}
