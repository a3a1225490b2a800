package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/parallelrag/ragd/internal/catalog"
)

// NewMCPServer creates an MCP server exposing the chat pipeline as tools.
// The chat tool goes through the same turn execution as the HTTP handler,
// so every attempt produces a metrics record either way.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"ragd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("ragd — retrieval-grounded chat over a local document corpus."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Ask a question answered strictly from the ingested document corpus."),
			mcp.WithString("message", mcp.Description("The question to ask"), mcp.Required()),
			mcp.WithString("model", mcp.Description("Model ID (see list_models); defaults to the first catalog entry")),
			mcp.WithString("conversation_id", mcp.Description("Existing conversation to continue; omit to start a new one")),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("list_models",
			mcp.WithDescription("List available models with their provider availability."),
		),
		mcpListModels(deps),
	)

	return s
}

func mcpChat(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		modelID := req.GetString("model", "")
		if modelID == "" {
			if ds := deps.Catalog.All(); len(ds) > 0 {
				modelID = ds[0].ID
			}
		}

		chatReq := chatRequest{
			ModelID:        modelID,
			Message:        message,
			ConversationID: req.GetString("conversation_id", ""),
			UserID:         "mcp",
		}

		resp, _ := runTurn(ctx, deps, chatReq, time.Now())
		if !resp.Success {
			return mcpError(resp.Error), nil
		}

		b, err := json.Marshal(map[string]any{
			"response":        resp.Response,
			"model":           resp.Model,
			"conversation_id": resp.ConversationID,
			"context_used":    resp.ContextUsed,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListModels(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		availability := deps.Providers.Availability()

		type modelEntry struct {
			catalog.Descriptor
			Available bool `json:"available"`
		}

		all := deps.Catalog.All()
		entries := make([]modelEntry, len(all))
		for i, d := range all {
			entries[i] = modelEntry{Descriptor: d, Available: availability[d.Provider]}
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal models: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
