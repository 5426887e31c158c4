package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperjump/kotae/internal/models"
)

const (
	// DefaultOpenAIEmbeddingModel is the default hosted embedding model.
	DefaultOpenAIEmbeddingModel = "text-embedding-ada-002"

	// DefaultOpenAIGenerationModel is the default hosted chat model.
	DefaultOpenAIGenerationModel = "gpt-3.5-turbo"

	openAISystemPrompt = "You are a helpful assistant that answers questions based on the provided context."
)

// OpenAIConfig holds configuration for the OpenAI backend.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL         string
	EmbeddingModel  string
	GenerationModel string
	HTTPClient      *http.Client
}

// OpenAI uses the hosted OpenAI API for embeddings and chat completions.
type OpenAI struct {
	client          *openai.Client
	embeddingModel  string
	generationModel string
}

// NewOpenAI creates an OpenAI backend. It returns ErrConfiguration when no
// API key is supplied.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai backend requires an API key", models.ErrConfiguration)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	client := openai.NewClient(opts...)

	o := &OpenAI{
		client:          &client,
		embeddingModel:  cfg.EmbeddingModel,
		generationModel: cfg.GenerationModel,
	}
	if o.embeddingModel == "" {
		o.embeddingModel = DefaultOpenAIEmbeddingModel
	}
	if o.generationModel == "" {
		o.generationModel = DefaultOpenAIGenerationModel
	}
	return o, nil
}

// Embed returns the embedding for text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:          o.embeddingModel,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, backendError("openai embed", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, backendError("openai embed", fmt.Errorf("no embedding returned"))
	}
	return float64sToFloat32s(resp.Data[0].Embedding), nil
}

// Complete sends prompt as a single user message and returns the reply.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.generationModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openAISystemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", backendError("openai chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", backendError("openai chat", fmt.Errorf("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

// Name returns the backend identifier.
func (o *OpenAI) Name() string {
	return "openai/" + o.embeddingModel
}

// Close is a no-op.
func (o *OpenAI) Close() error {
	return nil
}

var _ Backend = (*OpenAI)(nil)
