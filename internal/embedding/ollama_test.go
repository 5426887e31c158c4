package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func newOllamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "test-embed" {
			http.Error(w, "unknown model "+req.Model, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.5, float64(len(req.Prompt)), 1}})
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Stream {
			http.Error(w, "streaming not expected", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "echo: " + req.Prompt, "done": true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllama_Embed(t *testing.T) {
	srv := newOllamaServer(t)
	o := NewOllama(OllamaConfig{BaseURL: srv.URL + "/", EmbeddingModel: "test-embed"})

	vec, err := o.Embed(context.Background(), "abcd")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != 4 {
		t.Errorf("unexpected vector %v", vec)
	}
	if o.Name() != "ollama/test-embed" {
		t.Errorf("Name = %q", o.Name())
	}
}

func TestOllama_Complete(t *testing.T) {
	srv := newOllamaServer(t)
	o := NewOllama(OllamaConfig{BaseURL: srv.URL})
	got, err := o.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	if got != "echo: hi" {
		t.Errorf("Complete = %q", got)
	}
}

func TestOllama_Errors(t *testing.T) {
	srv := newOllamaServer(t)

	// Unknown model yields a non-200 status.
	o := NewOllama(OllamaConfig{BaseURL: srv.URL, EmbeddingModel: "missing"})
	if _, err := o.Embed(context.Background(), "x"); !errors.Is(err, models.ErrEmbeddingBackend) {
		t.Errorf("expected ErrEmbeddingBackend, got %v", err)
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer empty.Close()
	o = NewOllama(OllamaConfig{BaseURL: empty.URL})
	if _, err := o.Embed(context.Background(), "x"); !errors.Is(err, models.ErrEmbeddingBackend) {
		t.Errorf("empty embedding: expected ErrEmbeddingBackend, got %v", err)
	}

	unreachable := NewOllama(OllamaConfig{BaseURL: "http://127.0.0.1:1"})
	if _, err := unreachable.Complete(context.Background(), "x"); !errors.Is(err, models.ErrEmbeddingBackend) {
		t.Errorf("unreachable: expected ErrEmbeddingBackend, got %v", err)
	}
}

func TestNewOllama_Defaults(t *testing.T) {
	o := NewOllama(OllamaConfig{})
	if o.baseURL != DefaultOllamaURL || o.embeddingModel != DefaultOllamaEmbeddingModel || o.generationModel != DefaultOllamaGenerationModel {
		t.Errorf("defaults not applied: %+v", o)
	}
}
