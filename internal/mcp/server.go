package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/druzicka/youtrack-mcp-server/internal/youtrack"
)

const (
	ServerName    = "youtrack-mcp-server"
	ServerVersion = "1.0.0"
)

// Config holds MCP server configuration
type Config struct {
	YouTrackURL   string
	YouTrackToken string
	Timeout       time.Duration
	Host          string
	Port          int
	SSEMode       bool
}

// Server wraps the MCP server
type Server struct {
	config  Config
	mcp     *server.MCPServer
	handler *ToolHandlers
}

// NewServer creates a new MCP server
func NewServer(config Config) *Server {
	return &Server{
		config: config,
	}
}

// Run starts the MCP server
func (s *Server) Run() error {
	// Create MCP server
	s.mcp = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	if s.config.SSEMode {
		// SSE mode - create client per connection from header
		return s.runSSE()
	}

	// Stdio mode - use configured token
	client := youtrack.NewClientWithTimeout(s.config.YouTrackURL, s.config.YouTrackToken, s.config.Timeout)
	s.handler = NewToolHandlers(client)
	s.handler.RegisterTools(s.mcp)

	// Probe the tracker so a bad URL or token shows up in the log right
	// away instead of on the first tool call.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.ListProjects(ctx); err != nil {
		slog.Warn("YouTrack connection check failed",
			"youtrack_url", s.config.YouTrackURL,
			"error", err,
		)
	}

	slog.Info("Starting MCP server in stdio mode",
		"youtrack_url", s.config.YouTrackURL,
	)

	return server.ServeStdio(s.mcp)
}

// runSSE starts the server in SSE mode
func (s *Server) runSSE() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	slog.Info("Starting MCP server in SSE mode",
		"address", addr,
		"youtrack_url", s.config.YouTrackURL,
	)

	// Custom SSE handler that picks the token per connection
	sseHandler := &sseHandler{
		youtrackURL:   s.config.YouTrackURL,
		fallbackToken: s.config.YouTrackToken,
		timeout:       s.config.Timeout,
	}

	// Rate limiter: 100 requests per minute per IP
	rateLimiter := newSimpleRateLimiter(100, time.Minute)

	mux := http.NewServeMux()
	mux.Handle("/sse", sseHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Apply middleware chain
	handler := securityHeadersMiddleware(rateLimiter.middleware(mux))

	return http.ListenAndServe(addr, handler)
}

// sseHandler handles SSE connections with a per-connection token
type sseHandler struct {
	youtrackURL   string
	fallbackToken string
	timeout       time.Duration
}

func (h *sseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Prefer the caller's bearer token, fall back to the configured one
	token := bearerToken(r)
	if token == "" {
		token = h.fallbackToken
	}
	if token == "" {
		http.Error(w, "Missing Authorization: Bearer token", http.StatusUnauthorized)
		return
	}

	// Create client for this connection
	client := youtrack.NewClientWithTimeout(h.youtrackURL, token, h.timeout)

	// Create MCP server for this connection
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	// Register tools
	handler := NewToolHandlers(client)
	handler.RegisterTools(mcpServer)

	// Create SSE server and handle the connection
	sseServer := server.NewSSEServer(mcpServer)
	sseServer.ServeHTTP(w, r)
}

// bearerToken extracts the token from an Authorization header
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// securityHeaders middleware adds security headers
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// simpleRateLimiter for SSE mode
type simpleRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func newSimpleRateLimiter(limit int, window time.Duration) *simpleRateLimiter {
	return &simpleRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

func (rl *simpleRateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	// Filter old requests
	var recent []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}

	rl.requests[key] = append(recent, now)
	return true
}

func (rl *simpleRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if !rl.allow(key) {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
