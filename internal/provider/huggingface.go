package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	hfBaseURL      = "https://router.huggingface.co/v1"
	hfTimeout      = 60 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond

	defaultMaxTokens   = 1024
	defaultTemperature = 0.7

	assistantSystemPrompt = "You are a helpful, respectful and honest assistant. " +
		"Always answer as helpfully as possible, while being safe."
)

// HuggingFace generates completions through the HuggingFace router's
// OpenAI-compatible chat completions endpoint.
type HuggingFace struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewHuggingFace creates a HuggingFace provider with the given API key.
// An empty key is allowed; HasCredential reports it and Generate fails fast.
func NewHuggingFace(apiKey string) *HuggingFace {
	return &HuggingFace{
		apiKey:  apiKey,
		baseURL: hfBaseURL,
		httpClient: &http.Client{
			Timeout: hfTimeout,
		},
	}
}

// NewHuggingFaceWithBaseURL creates a provider pointing at a custom base URL
// (for testing).
func NewHuggingFaceWithBaseURL(apiKey, baseURL string) *HuggingFace {
	h := NewHuggingFace(apiKey)
	h.baseURL = strings.TrimRight(baseURL, "/")
	return h
}

// HasCredential reports whether an API key is configured. The placeholder
// value from a template .env file does not count.
func (h *HuggingFace) HasCredential() bool {
	return h.apiKey != "" && h.apiKey != "your_api_key_here"
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// Generate sends the prompt with prior history and returns the first choice.
// Rate-limited requests are retried with exponential backoff; all other
// failures surface immediately.
func (h *HuggingFace) Generate(ctx context.Context, model, prompt string, history []Message) (*Response, error) {
	if !h.HasCredential() {
		return nil, errors.New("HuggingFace API key not configured")
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    buildMessages(history, prompt),
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		resp, err := h.doGenerate(ctx, body)
		if err == nil {
			return resp, nil
		}

		if !isRateLimit(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func (h *HuggingFace) doGenerate(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &rateLimitError{status: resp.StatusCode}
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("response contained no choices")
	}

	return &Response{
		Text:  decoded.Choices[0].Message.Content,
		Usage: decoded.Usage,
	}, nil
}

// buildMessages assembles the OpenAI-format messages array: a fixed system
// message, the prior history with roles normalized, then the current prompt.
func buildMessages(history []Message, prompt string) []Message {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: "system", Content: assistantSystemPrompt})

	for _, m := range history {
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		msgs = append(msgs, Message{Role: role, Content: m.Content})
	}

	return append(msgs, Message{Role: "user", Content: prompt})
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	var rle *rateLimitError
	return errors.As(err, &rle)
}

var _ Provider = (*HuggingFace)(nil)
