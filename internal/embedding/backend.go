// Package embedding provides the text embedding and completion backends
// used for retrieval and answer generation.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

// Backend turns text into vectors and produces completions for prompts.
// Vectors from one backend instance always share a dimension.
type Backend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
	Close() error
}

// NewBackend builds the backend selected by cfg.Type. A positive CacheSize
// wraps the backend in an embedding cache; zero or negative leaves it bare.
func NewBackend(cfg config.BackendConfig) (Backend, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	var (
		b   Backend
		err error
	)
	switch cfg.Type {
	case config.BackendOllama, "":
		b = NewOllama(OllamaConfig{
			BaseURL:         cfg.Ollama.BaseURL,
			EmbeddingModel:  cfg.Ollama.EmbeddingModel,
			GenerationModel: cfg.Ollama.GenerationModel,
			HTTPClient:      httpClient,
		})
	case config.BackendOpenAI:
		b, err = NewOpenAI(OpenAIConfig{
			APIKey:          cfg.OpenAI.APIKey,
			BaseURL:         cfg.OpenAI.BaseURL,
			EmbeddingModel:  cfg.OpenAI.EmbeddingModel,
			GenerationModel: cfg.OpenAI.GenerationModel,
			HTTPClient:      httpClient,
		})
	default:
		return nil, fmt.Errorf("%w: unknown backend type %q", models.ErrConfiguration, cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		b = NewCached(b, cfg.CacheSize)
	}
	return b, nil
}

func backendError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrEmbeddingBackend, op, err)
}

func float64sToFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
