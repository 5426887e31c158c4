package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/prompt"
)

func TestFormatContext(t *testing.T) {
	tests := []struct {
		name string
		docs []*models.Document
		want string
	}{
		{"empty", nil, ""},
		{"no metadata", []*models.Document{{Content: "a"}, {Content: "b"}}, "a\n\nb"},
		{
			"sorted metadata",
			[]*models.Document{{Content: "body", Metadata: map[string]string{"source": "x.txt", "author": "kim"}}},
			"[Metadata: author=kim, source=x.txt]\nbody",
		},
		{"skips nil", []*models.Document{nil, {Content: "only"}}, "only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatContext(tt.docs); got != tt.want {
				t.Errorf("FormatContext = %q, want %q", got, tt.want)
			}
		})
	}
}

func newGenerator(t *testing.T, backend embedding.Backend) *Generator {
	t.Helper()
	pm, err := prompt.NewManager("")
	if err != nil {
		t.Fatal(err)
	}
	pm.Add(prompt.Template{Name: "plain", Template: "{context}|{query}"})
	return New(backend, pm, "plain")
}

func TestGenerate(t *testing.T) {
	mock := embedding.NewMock(2)
	mock.Answer = "the cat"
	g := newGenerator(t, mock)

	doc := models.NewFileDocument("a.txt", "cats purr")
	docs := []*models.Document{&doc}
	answer, err := g.Generate(context.Background(), "who purrs?", docs, "")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "the cat" {
		t.Errorf("answer = %q", answer)
	}
	if want := "[Metadata: source=a.txt]\ncats purr|who purrs?"; mock.LastPrompt() != want {
		t.Errorf("prompt = %q, want %q", mock.LastPrompt(), want)
	}

	if _, err := g.Generate(context.Background(), "q", docs, "text"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mock.LastPrompt(), "Question: q") {
		t.Errorf("named template not used: %q", mock.LastPrompt())
	}
}

func TestGenerate_Errors(t *testing.T) {
	mock := embedding.NewMock(2)
	g := newGenerator(t, mock)

	if _, err := g.Generate(context.Background(), "q", nil, "missing"); !errors.Is(err, models.ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}

	mock.Err = errors.New("offline")
	if _, err := g.Generate(context.Background(), "q", nil, ""); !errors.Is(err, models.ErrEmbeddingBackend) {
		t.Errorf("expected ErrEmbeddingBackend, got %v", err)
	}
}
