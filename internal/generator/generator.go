// Package generator turns retrieved documents and a query into an answer.
package generator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/prompt"
)

// Generator formats prompts and asks the backend to complete them.
type Generator struct {
	backend         embedding.Backend
	prompts         *prompt.Manager
	defaultTemplate string
	logger          *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// New creates a generator. defaultTemplate is used when Generate gets no template name.
func New(backend embedding.Backend, prompts *prompt.Manager, defaultTemplate string, opts ...Option) *Generator {
	g := &Generator{
		backend:         backend,
		prompts:         prompts,
		defaultTemplate: defaultTemplate,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.defaultTemplate == "" {
		g.defaultTemplate = "text"
	}
	return g
}

// Prompt builds the full prompt for query without calling the backend.
func (g *Generator) Prompt(query string, docs []*models.Document, templateName string) (string, error) {
	if templateName == "" {
		templateName = g.defaultTemplate
	}
	return g.prompts.Format(templateName, FormatContext(docs), query)
}

// Generate builds the prompt and returns the backend completion.
func (g *Generator) Generate(ctx context.Context, query string, docs []*models.Document, templateName string) (string, error) {
	p, err := g.Prompt(query, docs, templateName)
	if err != nil {
		return "", err
	}
	g.logger.Debug("generating answer",
		zap.String("backend", g.backend.Name()),
		zap.Int("documents", len(docs)),
		zap.Int("prompt_bytes", len(p)))
	answer, err := g.backend.Complete(ctx, p)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return answer, nil
}

// DefaultTemplate returns the template used when none is named.
func (g *Generator) DefaultTemplate() string {
	return g.defaultTemplate
}

// FormatContext renders docs as blocks separated by a blank line. Documents
// with metadata get a "[Metadata: k=v, ...]" header with keys sorted.
func FormatContext(docs []*models.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if len(doc.Metadata) == 0 {
			parts = append(parts, doc.Content)
			continue
		}
		keys := make([]string, 0, len(doc.Metadata))
		for k := range doc.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + doc.Metadata[k]
		}
		parts = append(parts, "[Metadata: "+strings.Join(pairs, ", ")+"]\n"+doc.Content)
	}
	return strings.Join(parts, "\n\n")
}
