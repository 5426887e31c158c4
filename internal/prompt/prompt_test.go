package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager("")
	if err != nil {
		t.Fatal(err)
	}
	names := []string{}
	for _, tpl := range m.List() {
		names = append(names, tpl.Name)
	}
	if got := strings.Join(names, ","); got != "code,concise,text" {
		t.Errorf("templates = %s", got)
	}
	if m.Descriptions()["text"] == "" {
		t.Error("text template should have a description")
	}
}

func TestManager_Format(t *testing.T) {
	m, err := NewManager("")
	if err != nil {
		t.Fatal(err)
	}
	m.Add(Template{Name: "raw", Template: "C={context} Q={query} {{literal}}"})

	tests := []struct {
		name    string
		tpl     string
		want    string
		wantErr error
	}{
		{"raw", "raw", "C=ctx Q=what? {literal}", nil},
		{"missing", "nope", "", models.ErrTemplateNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Format(tt.tpl, "ctx", "what?")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Format = %q, want %q", got, tt.want)
			}
		})
	}

	text, err := m.Format("text", "the cat sat", "where did it sit?")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "the cat sat") || !strings.Contains(text, "where did it sit?") {
		t.Errorf("placeholders not filled: %q", text)
	}
	if strings.Contains(text, "{context}") || strings.Contains(text, "{query}") {
		t.Errorf("placeholders left over: %q", text)
	}
}

func TestNewManager_Directory(t *testing.T) {
	dir := t.TempDir()
	custom := "name: text\ndescription: overridden\ntemplate: \"{query}\"\n"
	if err := os.WriteFile(filepath.Join(dir, "text.yaml"), []byte(custom), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extra.yml"), []byte("description: unnamed\ntemplate: x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Format("text", "ignored context", "q")
	if err != nil {
		t.Fatal(err)
	}
	if got != "q" {
		t.Errorf("override not applied: %q", got)
	}
	if _, ok := m.Get("extra"); !ok {
		t.Error("template without name should be keyed by file name")
	}
	if _, ok := m.Get("concise"); !ok {
		t.Error("built-in templates should remain")
	}
}

func TestNewManager_Errors(t *testing.T) {
	if _, err := NewManager(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("missing dir: expected ErrConfiguration, got %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("template: [oops"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(dir); err == nil {
		t.Error("expected parse error")
	}
}
