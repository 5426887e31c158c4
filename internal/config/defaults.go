package config

import "os"

// DefaultCacheSize is the embedding cache capacity when none is configured.
// A negative cache_size disables the cache.
const DefaultCacheSize = 1000

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Backend.Type == "" {
		cfg.Backend.Type = BackendOllama
	}
	if cfg.Backend.CacheSize == 0 {
		cfg.Backend.CacheSize = DefaultCacheSize
	}
	if cfg.Backend.TimeoutSecs == 0 {
		cfg.Backend.TimeoutSecs = 120
	}
	if cfg.Backend.Ollama.BaseURL == "" {
		cfg.Backend.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Backend.Ollama.EmbeddingModel == "" {
		cfg.Backend.Ollama.EmbeddingModel = "nomic-embed-text"
	}
	if cfg.Backend.Ollama.GenerationModel == "" {
		cfg.Backend.Ollama.GenerationModel = "deepseek-coder-v2"
	}
	if cfg.Backend.OpenAI.EmbeddingModel == "" {
		cfg.Backend.OpenAI.EmbeddingModel = "text-embedding-ada-002"
	}
	if cfg.Backend.OpenAI.GenerationModel == "" {
		cfg.Backend.OpenAI.GenerationModel = "gpt-3.5-turbo"
	}
	if cfg.Backend.OpenAI.APIKey == "" {
		cfg.Backend.OpenAI.APIKey = os.Getenv(APIKeyEnv)
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "json"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "index"
	}
	if cfg.Storage.DocumentsPath == "" {
		cfg.Storage.DocumentsPath = "documents"
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Generation.DefaultTemplate == "" {
		cfg.Generation.DefaultTemplate = "text"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}
