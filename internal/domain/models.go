package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	maxMessageLength = 8192
	maxTemperature   = 2.0
)

// ChatRequest represents an inbound generation request.
type ChatRequest struct {
	Message        string     `json:"message"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Model          string     `json:"model,omitempty"`
	Temperature    *float64   `json:"temperature,omitempty"`
	MaxTokens      *int       `json:"max_tokens,omitempty"`
	CacheBypass    bool       `json:"cache_bypass,omitempty"`
	Stream         bool       `json:"stream,omitempty"`
}

// Validate checks request fields before they reach the pipeline.
func (r *ChatRequest) Validate() error {
	if r.Message == "" {
		return errors.New("message cannot be empty")
	}
	if len(r.Message) > maxMessageLength {
		return fmt.Errorf("message exceeds %d bytes", maxMessageLength)
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > maxTemperature) {
		return fmt.Errorf("temperature must be between 0 and %g", maxTemperature)
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return errors.New("max_tokens must be positive")
	}
	return nil
}

// ChatResponse represents the result of a generation or a cache hit.
// ConversationID, CacheHit, CacheSource and Timestamp are always assigned
// by the orchestration layer; values embedded in a cached payload are
// never trusted.
type ChatResponse struct {
	Response       string    `json:"response"`
	ConversationID uuid.UUID `json:"conversation_id"`
	CacheHit       bool      `json:"cache_hit"`
	CacheSource    string    `json:"cache_source,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewChatResponse creates a response with the current timestamp.
func NewChatResponse(text string, conversationID uuid.UUID) *ChatResponse {
	return &ChatResponse{
		Response:       text,
		ConversationID: conversationID,
		CacheHit:       false,
		CacheSource:    "",
		Timestamp:      time.Now().UTC(),
	}
}

// SearchResult is a single result returned by the search collaborator.
// It is read-only input to prompt enrichment and is never cached on its own.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ErrorResponse is the JSON body returned for request failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WithDetails creates an error response with an explanatory detail string.
func WithDetails(message, details string) *ErrorResponse {
	return &ErrorResponse{
		Error:   message,
		Details: details,
	}
}
