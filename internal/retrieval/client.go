// Package retrieval talks to the external retrieval pipeline and wraps user
// queries in a context-only guardrail prompt.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Document is one retrieved context fragment, ordered relevance-descending
// as supplied by the pipeline.
type Document struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Retriever fetches context documents for a query. Implementations must
// swallow their own failures: an empty result is the only failure mode the
// rest of the pipeline sees.
type Retriever interface {
	Retrieve(ctx context.Context, query string) []Document
}

// Client is an HTTP Retriever backed by the retrieval pipeline's /retrieve
// endpoint.
type Client struct {
	baseURL    string
	rerank     bool
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given pipeline base URL. When rerank is
// set, the pipeline is asked to re-rank candidates before returning them.
func NewClient(baseURL string, rerank bool) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		rerank:     rerank,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
}

type retrieveRequest struct {
	Query  string `json:"query"`
	Rerank bool   `json:"rerank,omitempty"`
}

type retrieveResponse struct {
	Results []Document `json:"results"`
}

// Retrieve posts the query to the pipeline and returns its documents in the
// order given. Every failure (transport, status, decoding) degrades to "no
// documents found" and is logged, never surfaced.
func (c *Client) Retrieve(ctx context.Context, query string) []Document {
	body, err := json.Marshal(retrieveRequest{Query: query, Rerank: c.rerank})
	if err != nil {
		c.logger.Warn("retrieval request marshalling failed", "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/retrieve", bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("retrieval request creation failed", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("retrieval request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("retrieval returned non-OK status", "status", resp.StatusCode)
		return nil
	}

	var decoded retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.logger.Warn("retrieval response decoding failed", "error", err)
		return nil
	}

	return decoded.Results
}

var _ Retriever = (*Client)(nil)

// String implements fmt.Stringer for diagnostics.
func (c *Client) String() string {
	return fmt.Sprintf("retrieval pipeline at %s (rerank=%v)", c.baseURL, c.rerank)
}
