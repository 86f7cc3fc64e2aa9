package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	gomcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/druzicka/youtrack-mcp-server/internal/mcp"
	"github.com/druzicka/youtrack-mcp-server/internal/youtrack"
)

// @title YouTrack MCP Server API
// @version 1.0
// @description HTTP transport exposing YouTrack MCP tools
// @host localhost:8000
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type contextKey string

const clientContextKey contextKey = "youtrackClient"

func withClient(ctx context.Context, client *youtrack.Client) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

func getClient(ctx context.Context) *youtrack.Client {
	return ctx.Value(clientContextKey).(*youtrack.Client)
}

func (s *Server) newClient(token string) *youtrack.Client {
	return youtrack.NewClientWithTimeout(s.config.YouTrackURL, token, s.config.Timeout)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForCode maps a tool error code to an HTTP status
func statusForCode(code string) int {
	switch youtrack.Code(code) {
	case youtrack.CodeValidation:
		return http.StatusBadRequest
	case youtrack.CodeAuth:
		return http.StatusUnauthorized
	case youtrack.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// toolResultText returns the text payload of a tool result
func toolResultText(result *gomcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	if text, ok := result.Content[0].(gomcp.TextContent); ok {
		return text.Text
	}
	return ""
}

// @Summary Server information
// @Description Returns the server name, version, and transport
// @Tags Info
// @Produce json
// @Success 200 {object} map[string]any
// @Router / [get]
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         mcp.ServerName,
		"version":      mcp.ServerVersion,
		"transport":    "http",
		"youtrack_url": s.config.YouTrackURL,
	})
}

// @Summary List available tools
// @Description Returns every tool definition with its JSON schema
// @Tags MCP
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /mcp/tools [post]
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	handlers := mcp.NewToolHandlers(getClient(r.Context()))

	entries := handlers.Tools()
	tools := make([]gomcp.Tool, len(entries))
	for i, entry := range entries {
		tools[i] = entry.Tool
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tools": tools,
		"count": len(tools),
	})
}

// @Summary Invoke a tool
// @Description Dispatches a tool call by name and returns its result
// @Tags MCP
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object true "Tool call with name and arguments"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /mcp/call [post]
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	handlers := mcp.NewToolHandlers(getClient(r.Context()))

	var handler func(context.Context, gomcp.CallToolRequest) (*gomcp.CallToolResult, error)
	for _, entry := range handlers.Tools() {
		if entry.Tool.Name == req.Name {
			handler = entry.Handler
			break
		}
	}
	if handler == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown tool: %s", req.Name))
		return
	}

	callReq := gomcp.CallToolRequest{}
	callReq.Params.Name = req.Name
	callReq.Params.Arguments = req.Arguments

	result, err := handler(r.Context(), callReq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	text := toolResultText(result)
	if result.IsError {
		var fault struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(text), &fault); err != nil || fault.Code == "" {
			writeError(w, http.StatusInternalServerError, text)
			return
		}
		writeJSON(w, statusForCode(fault.Code), map[string]any{
			"error": map[string]string{
				"code":    fault.Code,
				"message": fault.Message,
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result": json.RawMessage(text),
	})
}
