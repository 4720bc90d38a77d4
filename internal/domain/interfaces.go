package domain

import "context"

// Generator produces text from a prompt using the local model.
type Generator interface {
	// Generate runs one completion. conversationID scopes the engine's
	// conversation context; temperature and maxTokens are resolved values.
	Generate(ctx context.Context, prompt, conversationID string, temperature float64, maxTokens int) (string, error)
}

// InferenceEngine is the opaque local inference collaborator. It fails on
// engine unavailability or invalid parameters; it knows nothing about
// caching or routing.
type InferenceEngine interface {
	Generate(ctx context.Context, prompt, conversationID string, temperature float64, maxTokens int) (string, error)

	// Name returns the engine identifier.
	Name() string
}

// Searcher is the search collaborator. An empty result list is success;
// an error means the upstream transport failed.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// CloudGenerator produces text from a remote completion API.
type CloudGenerator interface {
	Complete(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error)
}
