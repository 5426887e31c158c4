package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOllamaURL is the default Ollama server address.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultOllamaEmbeddingModel is the default Ollama embedding model.
	DefaultOllamaEmbeddingModel = "nomic-embed-text"

	// DefaultOllamaGenerationModel is the default Ollama generation model.
	DefaultOllamaGenerationModel = "deepseek-coder-v2"
)

// OllamaConfig holds configuration for the Ollama backend.
type OllamaConfig struct {
	// BaseURL is the server address without the /api suffix.
	BaseURL         string
	EmbeddingModel  string
	GenerationModel string
	HTTPClient      *http.Client
}

// Ollama talks to a local Ollama server.
type Ollama struct {
	baseURL         string
	embeddingModel  string
	generationModel string
	httpClient      *http.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// NewOllama creates an Ollama backend. Empty fields take the package defaults.
func NewOllama(cfg OllamaConfig) *Ollama {
	o := &Ollama{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		embeddingModel:  cfg.EmbeddingModel,
		generationModel: cfg.GenerationModel,
		httpClient:      cfg.HTTPClient,
	}
	if o.baseURL == "" {
		o.baseURL = DefaultOllamaURL
	}
	if o.embeddingModel == "" {
		o.embeddingModel = DefaultOllamaEmbeddingModel
	}
	if o.generationModel == "" {
		o.generationModel = DefaultOllamaGenerationModel
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return o
}

// Embed returns the embedding for text.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbedResponse
	if err := o.post(ctx, "/api/embeddings", ollamaEmbedRequest{Model: o.embeddingModel, Prompt: text}, &resp); err != nil {
		return nil, backendError("ollama embed", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, backendError("ollama embed", fmt.Errorf("no embedding returned"))
	}
	return float64sToFloat32s(resp.Embedding), nil
}

// Complete returns the generated response for prompt.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	var resp ollamaGenerateResponse
	req := ollamaGenerateRequest{Model: o.generationModel, Prompt: prompt, Stream: false}
	if err := o.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", backendError("ollama generate", err)
	}
	return resp.Response, nil
}

func (o *Ollama) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Name returns the backend identifier.
func (o *Ollama) Name() string {
	return "ollama/" + o.embeddingModel
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (o *Ollama) Close() error {
	return nil
}

var _ Backend = (*Ollama)(nil)
