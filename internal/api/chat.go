// Package api is the caller layer: it validates chat requests, supplies the
// bounded history window, invokes the orchestrator, persists the resulting
// turn pair, and guarantees exactly one metrics append per chat attempt.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parallelrag/ragd/internal/catalog"
	"github.com/parallelrag/ragd/internal/metrics"
	"github.com/parallelrag/ragd/internal/orchestrator"
	"github.com/parallelrag/ragd/internal/provider"
	"github.com/parallelrag/ragd/internal/session"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB

	// historyWindow bounds the prior-turn context sent to the orchestrator.
	// The orchestrator forwards history as-is; truncation happens here.
	historyWindow = 10
)

// ChatEngine runs one chat turn. Satisfied by *orchestrator.Orchestrator.
type ChatEngine interface {
	Handle(ctx context.Context, modelID, text string, history []provider.Message) orchestrator.Result
}

// MetricsAppender records one analytics row per chat attempt.
// Implementations never fail.
type MetricsAppender interface {
	Append(in metrics.Input)
}

// SessionStore is the caller-side session collaborator.
type SessionStore interface {
	CreateSession(title string) (session.Session, error)
	GetSession(id string) (session.Session, error)
	AppendTurn(sessionID string, user, assistant session.Message) error
	History(sessionID string, limit int) ([]session.Message, error)
}

// Deps holds the collaborators for the chat API.
type Deps struct {
	Engine    ChatEngine
	Sessions  SessionStore
	Metrics   MetricsAppender
	Catalog   *catalog.Catalog
	Providers provider.Registry
}

// NewHandler returns the HTTP handler for the chat API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	r.Get("/api/chat/models", handleModels(deps))
	r.Post("/api/chat", handleChat(deps))

	return r
}

type chatRequest struct {
	ModelID        string `json:"modelId"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
}

type chatMetrics struct {
	LatencyMs    int64 `json:"latencyMs"`
	InputTokens  *int  `json:"inputTokens,omitempty"`
	OutputTokens *int  `json:"outputTokens,omitempty"`
}

type chatResponse struct {
	orchestrator.Result
	ConversationID string      `json:"conversationId,omitempty"`
	Metrics        chatMetrics `json:"metrics"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.ModelID == "" {
			logAttemptFailure(deps, req, start, "Model ID is required")
			respondError(w, http.StatusBadRequest, "Model ID is required")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			logAttemptFailure(deps, req, start, "Message is required")
			respondError(w, http.StatusBadRequest, "Message is required")
			return
		}

		resp, status := runTurn(r.Context(), deps, req, start)
		respondJSON(w, status, resp)
	}
}

// runTurn executes one chat attempt end to end and appends exactly one
// metrics record, whatever the outcome. Shared by the HTTP and MCP surfaces.
func runTurn(ctx context.Context, deps Deps, req chatRequest, start time.Time) (chatResponse, int) {
	// Session identity is an explicit precondition of the orchestrator: it is
	// established here, never implicitly inside the generation path.
	sessionID := req.ConversationID
	if sessionID == "" {
		sess, err := deps.Sessions.CreateSession("")
		if err != nil {
			return failTurn(deps, req, start, "creating session: "+err.Error(), http.StatusInternalServerError)
		}
		sessionID = sess.ID
	} else if _, err := deps.Sessions.GetSession(sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return failTurn(deps, req, start, "Session not found", http.StatusNotFound)
		}
		return failTurn(deps, req, start, "loading session: "+err.Error(), http.StatusInternalServerError)
	}
	req.ConversationID = sessionID

	history, err := deps.Sessions.History(sessionID, historyWindow)
	if err != nil {
		slog.Warn("loading history failed, continuing without", "session_id", sessionID, "error", err)
		history = nil
	}

	result := deps.Engine.Handle(ctx, req.ModelID, req.Message, toProviderMessages(history))
	latencyMs := time.Since(start).Milliseconds()

	if !result.Success {
		deps.Metrics.Append(metrics.Input{
			UserID:         req.UserID,
			ConversationID: sessionID,
			ModelID:        req.ModelID,
			Prompt:         req.Message,
			Error:          result.Error,
			LatencyMs:      latencyMs,
		})
		return chatResponse{Result: result, ConversationID: sessionID, Metrics: chatMetrics{LatencyMs: latencyMs}}, http.StatusInternalServerError
	}

	if err := deps.Sessions.AppendTurn(sessionID,
		session.Message{Role: "user", Content: req.Message},
		session.Message{Role: "assistant", Content: result.Response, ModelID: result.ModelID},
	); err != nil {
		return failTurn(deps, req, start, "saving conversation: "+err.Error(), http.StatusInternalServerError)
	}

	deps.Metrics.Append(metrics.Input{
		UserID:         req.UserID,
		ConversationID: sessionID,
		ModelID:        result.ModelID,
		Prompt:         req.Message,
		Response:       result.Response,
		LatencyMs:      latencyMs,
		Usage:          usageToMetrics(result.Usage),
	})

	resp := chatResponse{
		Result:         result,
		ConversationID: sessionID,
		Metrics:        chatMetrics{LatencyMs: latencyMs},
	}
	if result.Usage != nil {
		resp.Metrics.InputTokens = &result.Usage.PromptTokens
		resp.Metrics.OutputTokens = &result.Usage.CompletionTokens
	}
	return resp, http.StatusOK
}

// failTurn records the failed attempt and shapes the error response.
func failTurn(deps Deps, req chatRequest, start time.Time, msg string, status int) (chatResponse, int) {
	latencyMs := time.Since(start).Milliseconds()
	deps.Metrics.Append(metrics.Input{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		ModelID:        req.ModelID,
		Prompt:         req.Message,
		Error:          msg,
		LatencyMs:      latencyMs,
	})
	return chatResponse{
		Result:  orchestrator.Result{ModelID: req.ModelID, Error: msg},
		Metrics: chatMetrics{LatencyMs: latencyMs},
	}, status
}

// logAttemptFailure covers validation failures that never reach the
// orchestrator: every attempt gets a metrics row, valid or not.
func logAttemptFailure(deps Deps, req chatRequest, start time.Time, msg string) {
	deps.Metrics.Append(metrics.Input{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		ModelID:        req.ModelID,
		Prompt:         req.Message,
		Error:          msg,
		LatencyMs:      time.Since(start).Milliseconds(),
	})
}

func handleModels(deps Deps) http.HandlerFunc {
	type modelWithStatus struct {
		catalog.Descriptor
		Available bool `json:"available"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		availability := deps.Providers.Availability()

		withStatus := func(ds []catalog.Descriptor) []modelWithStatus {
			out := make([]modelWithStatus, len(ds))
			for i, d := range ds {
				out[i] = modelWithStatus{Descriptor: d, Available: availability[d.Provider]}
			}
			return out
		}

		grouped := make(map[string][]modelWithStatus)
		for category, ds := range deps.Catalog.ByCategory() {
			grouped[category] = withStatus(ds)
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"models":   withStatus(deps.Catalog.All()),
			"grouped":  grouped,
			"services": availability,
		})
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		availability := deps.Providers.Availability()
		active := 0
		for _, ok := range availability {
			if ok {
				active++
			}
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"status":   "online",
			"services": availability,
			"summary":  fmt.Sprintf("%d/%d services available", active, len(availability)),
		})
	}
}

func toProviderMessages(msgs []session.Message) []provider.Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]provider.Message, len(msgs))
	for i, m := range msgs {
		out[i] = provider.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func usageToMetrics(u *provider.Usage) *metrics.Usage {
	if u == nil {
		return nil
	}
	return &metrics.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens}
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]any{
		"success": false,
		"error":   msg,
	})
}
