// Package local owns the single shared local inference resource. The
// engine itself is an opaque collaborator; this package only enforces
// exclusive access to it.
package local

import (
	"context"
	"sync"

	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/observability"
)

// Model guards the inference engine with a read/write lock: at most one
// generation call holds the engine at a time, and all other generation
// requests block until it releases. Cache traffic is unaffected — the
// lock covers only the engine.
type Model struct {
	mu     sync.RWMutex
	engine domain.InferenceEngine
}

// NewModel wraps engine in an exclusive handle.
func NewModel(engine domain.InferenceEngine) *Model {
	return &Model{engine: engine}
}

// Generate runs one completion under the write lock.
func (m *Model) Generate(ctx context.Context, prompt, conversationID string, temperature float64, maxTokens int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := observability.FromContext(ctx)
	logger.Debug("local generation started",
		observability.String("engine", m.engine.Name()),
		observability.Int("prompt_length", len(prompt)))

	return m.engine.Generate(ctx, prompt, conversationID, temperature, maxTokens)
}

// EngineName reports the wrapped engine's identifier.
func (m *Model) EngineName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engine.Name()
}
