package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// RefusalMessage is the canned answer returned when retrieval finds nothing.
// Generation is skipped entirely in that case: answering from the model's
// own knowledge is exactly what the guardrail exists to prevent.
const RefusalMessage = "I cannot answer this question because there is no relevant information in the provided documents."

const guardrailTemplate = `You are a helpful assistant. You must answer the user's question based ONLY on the context provided below.
If the answer is not in the context, say "I cannot answer this based on the available information."
Do not use your own knowledge.

Context:
%s

Question: %s

Answer:`

// Augmented is the result of wrapping a query with retrieved context.
// ContextUsed is false when retrieval found nothing; Prompt is empty then.
type Augmented struct {
	Prompt      string
	ContextUsed bool
	Documents   []Document
}

// Guardrail retrieves context for a query and builds the restricted prompt.
type Guardrail struct {
	retriever Retriever
}

// NewGuardrail creates a Guardrail over the given Retriever.
func NewGuardrail(r Retriever) *Guardrail {
	return &Guardrail{retriever: r}
}

// Augment retrieves documents for query and, when any are found, wraps the
// query in the guardrail template with the document contents joined in
// relevance order. Retrieval failures look identical to empty results.
func (g *Guardrail) Augment(ctx context.Context, query string) Augmented {
	docs := g.retriever.Retrieve(ctx, query)
	if len(docs) == 0 {
		return Augmented{}
	}

	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = doc.Content
	}

	return Augmented{
		Prompt:      fmt.Sprintf(guardrailTemplate, strings.Join(parts, "\n\n"), query),
		ContextUsed: true,
		Documents:   docs,
	}
}
