// Package prompt loads named prompt templates and fills in retrieved context.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kotae/internal/models"
)

//go:embed templates/*.yaml
var defaultTemplates embed.FS

// Template is a named prompt with {context} and {query} placeholders.
type Template struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Template    string `yaml:"template" json:"template"`
}

// Manager holds the loaded templates by name.
type Manager struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewManager loads the built-in templates, then any YAML files in dir.
// An empty dir means built-ins only; a non-empty dir must exist.
func NewManager(dir string) (*Manager, error) {
	m := &Manager{templates: make(map[string]Template)}
	if err := m.loadFS(defaultTemplates, "templates"); err != nil {
		return nil, fmt.Errorf("failed to load built-in templates: %w", err)
	}
	if dir == "" {
		return m, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: prompts directory: %v", models.ErrConfiguration, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: prompts path %s is not a directory", models.ErrConfiguration, dir)
	}
	if err := m.loadFS(os.DirFS(dir), "."); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, e.Name())))
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", e.Name(), err)
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", e.Name(), err)
		}
		if t.Name == "" {
			t.Name = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		m.Add(t)
	}
	return nil
}

// Add registers t, replacing any template with the same name.
func (m *Manager) Add(t Template) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.Name] = t
}

// Get returns the template named name.
func (m *Manager) Get(name string) (Template, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[name]
	return t, ok
}

// Format fills the named template. "{{" and "}}" produce literal braces.
func (m *Manager) Format(name, context, query string) (string, error) {
	t, ok := m.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", models.ErrTemplateNotFound, name)
	}
	r := strings.NewReplacer(
		"{{", "{",
		"}}", "}",
		"{context}", context,
		"{query}", query,
	)
	return r.Replace(t.Template), nil
}

// List returns every template sorted by name.
func (m *Manager) List() []Template {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Descriptions returns name to description for every template.
func (m *Manager) Descriptions() map[string]string {
	out := make(map[string]string)
	for _, t := range m.List() {
		out[t.Name] = t.Description
	}
	return out
}
