package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
)

// Mock is a deterministic backend for tests. Texts listed in Vectors get
// those vectors; any other text gets a vector derived from its hash.
type Mock struct {
	Dimensions int
	Vectors    map[string][]float32
	// Answer is returned by Complete. Empty means echo the prompt length.
	Answer string
	// Err, when set, is returned from every call wrapped in ErrEmbeddingBackend.
	Err error

	mu         sync.Mutex
	embedCalls int
	lastPrompt string
}

// NewMock returns a Mock producing vectors of the given dimensions.
func NewMock(dimensions int) *Mock {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &Mock{Dimensions: dimensions, Vectors: map[string][]float32{}}
}

// Embed returns the configured or hash-derived vector for text.
func (m *Mock) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, backendError("mock embed", m.Err)
	}
	if err := ctx.Err(); err != nil {
		return nil, backendError("mock embed", err)
	}
	if v, ok := m.Vectors[text]; ok {
		return cloneVector(v), nil
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := float64(h.Sum32())
	emb := make([]float32, m.Dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(seed*float64(i+1))*0.1 + 0.01)
	}
	return emb, nil
}

// Complete records prompt and returns Answer.
func (m *Mock) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.lastPrompt = prompt
	m.mu.Unlock()
	if m.Err != nil {
		return "", backendError("mock complete", m.Err)
	}
	if m.Answer != "" {
		return m.Answer, nil
	}
	return fmt.Sprintf("answer for a %d byte prompt", len(prompt)), nil
}

// EmbedCalls returns how many times Embed was called.
func (m *Mock) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// LastPrompt returns the most recent prompt passed to Complete.
func (m *Mock) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// Name returns "mock".
func (m *Mock) Name() string {
	return "mock"
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

var _ Backend = (*Mock)(nil)
