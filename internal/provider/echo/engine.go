// Package echo provides a deterministic in-memory inference engine. It
// implements domain.InferenceEngine without loading a model, providing
// predictable responses for development and tests.
package echo

import (
	"context"
	"errors"
	"strings"

	"github.com/davidbz/ember/internal/observability"
)

const engineName = "echo"

// Engine echoes the prompt back, truncated to the token budget.
type Engine struct {
	name string
}

// NewEngine creates an echo engine. No configuration is required.
func NewEngine() *Engine {
	return &Engine{name: engineName}
}

// Generate returns the prompt itself, capped at maxTokens words.
func (e *Engine) Generate(ctx context.Context, prompt, conversationID string, temperature float64, maxTokens int) (string, error) {
	if prompt == "" {
		return "", errors.New("prompt cannot be empty")
	}
	if maxTokens <= 0 {
		return "", errors.New("max tokens must be positive")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	observability.FromContext(ctx).Debug("echo generation",
		observability.String("conversation_id", conversationID),
		observability.Float64("temperature", temperature))

	words := strings.Fields(prompt)
	if len(words) > maxTokens {
		words = words[:maxTokens]
	}
	return strings.Join(words, " "), nil
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return e.name
}
