package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "meta-llama/Llama-3.1-8B-Instruct:novita" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		// system + 2 history + current prompt
		if len(req.Messages) != 4 {
			t.Fatalf("expected 4 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("first message role = %q, want system", req.Messages[0].Role)
		}
		if last := req.Messages[3]; last.Role != "user" || last.Content != "the guarded prompt" {
			t.Errorf("last message = %+v", last)
		}

		fmt.Fprint(w, `{
			"choices":[{"message":{"role":"assistant","content":"Paris."}}],
			"usage":{"prompt_tokens":42,"completion_tokens":7}
		}`)
	}))
	defer srv.Close()

	h := NewHuggingFaceWithBaseURL("test-key", srv.URL)
	resp, err := h.Generate(context.Background(), "meta-llama/Llama-3.1-8B-Instruct:novita", "the guarded prompt", []Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "Paris." {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Usage == nil || resp.Usage.PromptTokens != 42 || resp.Usage.CompletionTokens != 7 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestGenerate_NonAssistantHistoryRolesBecomeUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Messages[1].Role != "user" {
			t.Errorf("normalized role = %q, want user", req.Messages[1].Role)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	h := NewHuggingFaceWithBaseURL("k", srv.URL)
	if _, err := h.Generate(context.Background(), "m", "p", []Message{{Role: "tool", Content: "x"}}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestGenerate_MissingUsageIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hi"}}]}`)
	}))
	defer srv.Close()

	resp, err := NewHuggingFaceWithBaseURL("k", srv.URL).Generate(context.Background(), "m", "p", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Usage != nil {
		t.Errorf("usage = %+v, want nil", resp.Usage)
	}
}

func TestGenerate_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"finally"}}]}`)
	}))
	defer srv.Close()

	resp, err := NewHuggingFaceWithBaseURL("k", srv.URL).Generate(context.Background(), "m", "p", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "finally" {
		t.Errorf("text = %q", resp.Text)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("call count = %d, want 3", got)
	}
}

func TestGenerate_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHuggingFaceWithBaseURL("k", srv.URL).Generate(context.Background(), "m", "p", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error missing status: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("call count = %d, want 1 (no retry)", got)
	}
}

func TestGenerate_NoCredentialFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	for _, key := range []string{"", "your_api_key_here"} {
		h := NewHuggingFaceWithBaseURL(key, srv.URL)
		if h.HasCredential() {
			t.Errorf("HasCredential() = true for key %q", key)
		}
		if _, err := h.Generate(context.Background(), "m", "p", nil); err == nil {
			t.Errorf("Generate succeeded with key %q", key)
		}
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	if _, err := NewHuggingFaceWithBaseURL("k", srv.URL).Generate(context.Background(), "m", "p", nil); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestRegistry_Lookup(t *testing.T) {
	hf := NewHuggingFace("key")
	reg := Registry{"huggingface": hf}

	p, err := reg.Lookup("huggingface")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p != hf {
		t.Error("wrong provider returned")
	}

	_, err = reg.Lookup("nonexistent")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}

	avail := reg.Availability()
	if !avail["huggingface"] {
		t.Error("availability should be true with a key set")
	}
}
