package domain

import (
	"context"
	"time"
)

// Provider is the uniform capability interface over one LLM backend.
// Every adapter must implement completion and a health probe; streaming is
// the optional StreamingProvider extension.
type Provider interface {
	// Name returns the provider's identifier (e.g. "anthropic", "openai").
	Name() string
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
	// HealthCheck performs one fresh round-trip to the backend.
	// A nil return means the provider answered.
	HealthCheck(ctx context.Context) error
}

// StreamingProvider extends Provider with incremental delivery. The returned
// channel is single-consumer and closed when the stream ends or ctx is
// cancelled.
type StreamingProvider interface {
	Provider
	CompleteStream(ctx context.Context, req CompletionRequest) (<-chan StreamDelta, error)
}

// ProviderHealth is the outcome of a single health probe. It is computed on
// demand; nothing in the system caches it for routing decisions.
type ProviderHealth struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
