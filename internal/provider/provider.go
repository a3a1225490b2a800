// Package provider defines the generation capability boundary and the
// registry that selects an implementation per provider id.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownProvider is returned when a catalog entry names a provider with
// no registered implementation.
var ErrUnknownProvider = errors.New("unknown provider")

// Message is one prior conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token counts when the upstream API supplies them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is a successful generation.
type Response struct {
	Text  string
	Usage *Usage
}

// Provider generates chat completions for provider-specific model strings.
type Provider interface {
	// Generate sends prompt and prior history to the given model and blocks
	// until the completion is available or fails. No retries beyond what the
	// implementation itself performs.
	Generate(ctx context.Context, model, prompt string, history []Message) (*Response, error)

	// HasCredential reports whether the provider is configured to make
	// authenticated calls.
	HasCredential() bool
}

// Registry maps provider ids to implementations.
type Registry map[string]Provider

// Lookup returns the provider registered under id.
func (r Registry) Lookup(id string) (Provider, error) {
	p, ok := r[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return p, nil
}

// Availability reports per-provider credential status for health reporting.
func (r Registry) Availability() map[string]bool {
	out := make(map[string]bool, len(r))
	for id, p := range r {
		out[id] = p.HasCredential()
	}
	return out
}
