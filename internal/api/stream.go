package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/druzicka/youtrack-mcp-server/internal/mcp"
)

// pingInterval is how often the stream emits keep-alive events
const pingInterval = 15 * time.Second

// @Summary Server-sent event stream
// @Description Opens an SSE stream that announces the server and emits pings
// @Tags MCP
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {string} string "SSE stream"
// @Router /mcp/stream [get]
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	info, _ := json.Marshal(map[string]string{
		"name":    mcp.ServerName,
		"version": mcp.ServerVersion,
	})
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", info)
	flusher.Flush()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case t := <-ticker.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"time\": %q}\n\n", t.UTC().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}
