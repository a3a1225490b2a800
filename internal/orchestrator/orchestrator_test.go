package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parallelrag/ragd/internal/catalog"
	"github.com/parallelrag/ragd/internal/provider"
	"github.com/parallelrag/ragd/internal/retrieval"
)

type fakeProvider struct {
	calls      int
	lastModel  string
	lastPrompt string
	lastHist   []provider.Message
	resp       *provider.Response
	err        error
	credential bool
}

func (f *fakeProvider) Generate(_ context.Context, model, prompt string, history []provider.Message) (*provider.Response, error) {
	f.calls++
	f.lastModel = model
	f.lastPrompt = prompt
	f.lastHist = history
	return f.resp, f.err
}

func (f *fakeProvider) HasCredential() bool { return f.credential }

type fakeRetriever struct {
	calls int
	docs  []retrieval.Document
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string) []retrieval.Document {
	f.calls++
	return f.docs
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Descriptor{
		{ID: "test-model", Name: "Test Model", Provider: "huggingface", Model: "org/test-model", Category: "Test"},
		{ID: "orphan-model", Name: "Orphan", Provider: "nonexistent", Model: "org/orphan", Category: "Test"},
	})
}

func TestHandle_Success(t *testing.T) {
	p := &fakeProvider{
		credential: true,
		resp: &provider.Response{
			Text:  "grounded answer",
			Usage: &provider.Usage{PromptTokens: 10, CompletionTokens: 3},
		},
	}
	r := &fakeRetriever{docs: []retrieval.Document{{Content: "a fact", Score: 0.8}}}
	o := New(testCatalog(), provider.Registry{"huggingface": p}, retrieval.NewGuardrail(r))

	history := []provider.Message{{Role: "user", Content: "earlier"}}
	res := o.Handle(context.Background(), "test-model", "question", history)

	if !res.Success {
		t.Fatalf("failure: %s", res.Error)
	}
	if res.Response != "grounded answer" {
		t.Errorf("response = %q", res.Response)
	}
	if !res.ContextUsed {
		t.Error("ContextUsed = false")
	}
	if res.Model != "Test Model" || res.ModelID != "test-model" {
		t.Errorf("model fields = %q/%q", res.Model, res.ModelID)
	}
	if res.Usage == nil || res.Usage.CompletionTokens != 3 {
		t.Errorf("usage = %+v", res.Usage)
	}
	if res.Error != "" {
		t.Errorf("error populated on success: %q", res.Error)
	}

	if p.lastModel != "org/test-model" {
		t.Errorf("provider model = %q, want provider-specific string", p.lastModel)
	}
	if !strings.Contains(p.lastPrompt, "a fact") {
		t.Errorf("guarded prompt missing context: %q", p.lastPrompt)
	}
	if len(p.lastHist) != 1 || p.lastHist[0].Content != "earlier" {
		t.Errorf("history not forwarded as-is: %+v", p.lastHist)
	}
}

func TestHandle_NoContextRefusesWithoutGenerating(t *testing.T) {
	p := &fakeProvider{credential: true}
	r := &fakeRetriever{} // no documents
	o := New(testCatalog(), provider.Registry{"huggingface": p}, retrieval.NewGuardrail(r))

	res := o.Handle(context.Background(), "test-model", "question", nil)

	if !res.Success {
		t.Fatalf("refusal must be a success result, got error %q", res.Error)
	}
	if res.ContextUsed {
		t.Error("ContextUsed = true on refusal")
	}
	if res.Response != retrieval.RefusalMessage {
		t.Errorf("response = %q, want refusal message", res.Response)
	}
	if res.Usage != nil {
		t.Errorf("usage = %+v, want nil", res.Usage)
	}
	if p.calls != 0 {
		t.Errorf("provider called %d times, want 0", p.calls)
	}
}

func TestHandle_UnknownModelSkipsCollaborators(t *testing.T) {
	p := &fakeProvider{credential: true}
	r := &fakeRetriever{docs: []retrieval.Document{{Content: "x"}}}
	o := New(testCatalog(), provider.Registry{"huggingface": p}, retrieval.NewGuardrail(r))

	res := o.Handle(context.Background(), "no-such-model", "question", nil)

	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "no-such-model") {
		t.Errorf("error = %q", res.Error)
	}
	if res.ModelID != "no-such-model" {
		t.Errorf("model id = %q", res.ModelID)
	}
	if r.calls != 0 {
		t.Errorf("retriever called %d times, want 0", r.calls)
	}
	if p.calls != 0 {
		t.Errorf("provider called %d times, want 0", p.calls)
	}
}

func TestHandle_UnknownProvider(t *testing.T) {
	r := &fakeRetriever{docs: []retrieval.Document{{Content: "x"}}}
	o := New(testCatalog(), provider.Registry{}, retrieval.NewGuardrail(r))

	res := o.Handle(context.Background(), "orphan-model", "question", nil)

	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "nonexistent") {
		t.Errorf("error = %q", res.Error)
	}
	if r.calls != 0 {
		t.Errorf("retriever called %d times, want 0", r.calls)
	}
}

func TestHandle_MissingCredential(t *testing.T) {
	p := &fakeProvider{credential: false}
	r := &fakeRetriever{docs: []retrieval.Document{{Content: "x"}}}
	o := New(testCatalog(), provider.Registry{"huggingface": p}, retrieval.NewGuardrail(r))

	res := o.Handle(context.Background(), "test-model", "question", nil)

	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "API key") {
		t.Errorf("error = %q", res.Error)
	}
	if r.calls != 0 || p.calls != 0 {
		t.Errorf("collaborators invoked: retriever=%d provider=%d", r.calls, p.calls)
	}
}

func TestHandle_ProviderErrorWrapped(t *testing.T) {
	p := &fakeProvider{credential: true, err: errors.New("upstream exploded")}
	r := &fakeRetriever{docs: []retrieval.Document{{Content: "x"}}}
	o := New(testCatalog(), provider.Registry{"huggingface": p}, retrieval.NewGuardrail(r))

	res := o.Handle(context.Background(), "test-model", "question", nil)

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "upstream exploded" {
		t.Errorf("error = %q", res.Error)
	}
	if res.Response != "" || res.Usage != nil || res.ContextUsed {
		t.Errorf("failure result carries success fields: %+v", res)
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (no retries)", p.calls)
	}
}
