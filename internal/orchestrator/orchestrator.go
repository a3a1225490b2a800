// Package orchestrator composes the per-turn chat pipeline: resolve model,
// retrieve and guard context, delegate generation.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parallelrag/ragd/internal/catalog"
	"github.com/parallelrag/ragd/internal/provider"
	"github.com/parallelrag/ragd/internal/retrieval"
)

// ModelResolver resolves a model id to its descriptor.
type ModelResolver interface {
	Resolve(id string) (catalog.Descriptor, error)
}

// Augmenter wraps a query with retrieved context.
type Augmenter interface {
	Augment(ctx context.Context, query string) retrieval.Augmented
}

// Result is the outcome of one chat turn. Either the success fields or the
// failure fields are populated, never a mix.
type Result struct {
	Success     bool            `json:"success"`
	Response    string          `json:"response,omitempty"`
	Model       string          `json:"model,omitempty"`
	ModelID     string          `json:"modelId"`
	Usage       *provider.Usage `json:"usage,omitempty"`
	ContextUsed bool            `json:"contextUsed"`
	Error       string          `json:"error,omitempty"`
}

// Orchestrator is the sole entry point for a chat turn.
type Orchestrator struct {
	models    ModelResolver
	providers provider.Registry
	guardrail Augmenter
	logger    *slog.Logger
}

// New creates an Orchestrator over the given collaborators.
func New(models ModelResolver, providers provider.Registry, guardrail Augmenter) *Orchestrator {
	return &Orchestrator{
		models:    models,
		providers: providers,
		guardrail: guardrail,
		logger:    slog.Default(),
	}
}

// Handle runs one chat turn: resolve model, retrieve context, build the
// guarded prompt, generate. History must already be truncated by the caller;
// it is forwarded as-is. Configuration problems (unknown model or provider,
// missing credential) fail before any retrieval or generation is attempted.
// When retrieval finds nothing, generation is skipped and the canned refusal
// is returned as a success.
func (o *Orchestrator) Handle(ctx context.Context, modelID, text string, history []provider.Message) Result {
	desc, err := o.models.Resolve(modelID)
	if err != nil {
		return failure(modelID, err.Error())
	}

	p, err := o.providers.Lookup(desc.Provider)
	if err != nil {
		return failure(modelID, fmt.Sprintf("provider %s not supported", desc.Provider))
	}
	if !p.HasCredential() {
		return failure(modelID, fmt.Sprintf("API key for %s is not configured", desc.Provider))
	}

	o.logger.Debug("retrieving context", "model", desc.Name, "provider", desc.Provider)
	aug := o.guardrail.Augment(ctx, text)
	if !aug.ContextUsed {
		o.logger.Info("no context found, refusing generation", "model_id", modelID)
		return Result{
			Success:  true,
			Response: retrieval.RefusalMessage,
			Model:    desc.Name,
			ModelID:  modelID,
		}
	}

	resp, err := p.Generate(ctx, desc.Model, aug.Prompt, history)
	if err != nil {
		o.logger.Warn("generation failed", "model_id", modelID, "error", err)
		return failure(modelID, err.Error())
	}

	return Result{
		Success:     true,
		Response:    resp.Text,
		Model:       desc.Name,
		ModelID:     modelID,
		Usage:       resp.Usage,
		ContextUsed: true,
	}
}

func failure(modelID, message string) Result {
	return Result{ModelID: modelID, Error: message}
}
