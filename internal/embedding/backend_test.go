package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.BackendConfig
		wantName string
		wantErr  error
	}{
		{"ollama", config.BackendConfig{Type: config.BackendOllama, Ollama: config.OllamaConfig{EmbeddingModel: "e"}}, "ollama/e", nil},
		{"default type", config.BackendConfig{}, "ollama/" + DefaultOllamaEmbeddingModel, nil},
		{"openai", config.BackendConfig{Type: config.BackendOpenAI, OpenAI: config.OpenAIConfig{APIKey: "k", EmbeddingModel: "m"}}, "openai/m", nil},
		{"openai no key", config.BackendConfig{Type: config.BackendOpenAI}, "", models.ErrConfiguration},
		{"cached", config.BackendConfig{Type: config.BackendOllama, CacheSize: 4, Ollama: config.OllamaConfig{EmbeddingModel: "e"}}, "ollama/e+cache", nil},
		{"cache disabled", config.BackendConfig{Type: config.BackendOllama, CacheSize: -1, Ollama: config.OllamaConfig{EmbeddingModel: "e"}}, "ollama/e", nil},
		{"unknown", config.BackendConfig{Type: "carrier-pigeon"}, "", models.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer b.Close()
			if b.Name() != tt.wantName {
				t.Errorf("Name = %q, want %q", b.Name(), tt.wantName)
			}
		})
	}
}

func TestBackendErrorKeepsCause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMock(2).Embed(ctx, "late")
	if !errors.Is(err, models.ErrEmbeddingBackend) {
		t.Errorf("expected ErrEmbeddingBackend, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled to be matchable, got %v", err)
	}
}

func TestMock(t *testing.T) {
	ctx := context.Background()
	m := NewMock(3)
	m.Vectors["cat"] = []float32{1, 0, 0}

	v, err := m.Embed(ctx, "cat")
	if err != nil || v[0] != 1 {
		t.Fatalf("configured vector: %v %v", v, err)
	}
	a, _ := m.Embed(ctx, "other")
	b, _ := m.Embed(ctx, "other")
	if len(a) != 3 || a[0] != b[0] || a[2] != b[2] {
		t.Errorf("hash vectors should be deterministic: %v %v", a, b)
	}

	m.Answer = "42"
	if got, _ := m.Complete(ctx, "question"); got != "42" || m.LastPrompt() != "question" {
		t.Errorf("Complete = %q, last prompt %q", got, m.LastPrompt())
	}
}
