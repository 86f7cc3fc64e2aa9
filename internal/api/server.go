package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/druzicka/youtrack-mcp-server/docs" // swagger docs
)

// Config holds API server configuration
type Config struct {
	YouTrackURL   string
	YouTrackToken string
	Timeout       time.Duration
	Host          string
	Port          int
}

// Server is the HTTP transport for the MCP tool set
type Server struct {
	config      Config
	router      *chi.Mux
	rateLimiter *RateLimiter
}

// NewServer creates a new API server
func NewServer(config Config) *Server {
	s := &Server{
		config:      config,
		router:      chi.NewRouter(),
		rateLimiter: NewRateLimiter(100, time.Second, 200), // 100 req/sec, burst 200
	}

	s.setupRoutes()

	// Start rate limiter cleanup goroutine
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			s.rateLimiter.Cleanup(10 * time.Minute)
		}
	}()

	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)          // Security headers
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.rateLimiter.Middleware) // Rate limiting

	// Server info
	r.Get("/", s.handleRoot)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Swagger UI - uses swaggo generated docs
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// OpenAPI spec (static inline)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(openAPISpec))
	})

	// MCP routes with authentication middleware
	r.Route("/mcp", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/tools", s.handleListTools)
		r.Post("/call", s.handleCallTool)
		r.Get("/stream", s.handleStream)
	})
}

// authMiddleware resolves the YouTrack token and stores a client in the
// request context. The caller's bearer token wins over the configured one.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = s.config.YouTrackToken
		}
		if token == "" {
			http.Error(w, `{"error": "Missing Authorization: Bearer token"}`, http.StatusUnauthorized)
			return
		}

		ctx := withClient(r.Context(), s.newClient(token))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Run starts the API server
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	slog.Info("Starting HTTP transport",
		"address", addr,
		"youtrack_url", s.config.YouTrackURL,
		"docs", fmt.Sprintf("http://localhost:%d/docs/index.html", s.config.Port),
	)

	return http.ListenAndServe(addr, s.router)
}

const openAPISpec = `openapi: 3.0.3
info:
  title: YouTrack MCP Server API
  description: HTTP transport exposing YouTrack MCP tools
  version: 1.0.0
security:
  - BearerAuth: []
components:
  securitySchemes:
    BearerAuth:
      type: http
      scheme: bearer
  schemas:
    Error:
      type: object
      properties:
        error:
          type: object
          properties:
            code:
              type: string
            message:
              type: string
paths:
  /:
    get:
      summary: Server information
      security: []
      responses:
        '200':
          description: Server name, version, and transport
  /health:
    get:
      summary: Health check
      security: []
      responses:
        '200':
          description: OK
  /mcp/tools:
    post:
      summary: List available tools
      tags: [MCP]
      responses:
        '200':
          description: Tool definitions with JSON schemas
  /mcp/call:
    post:
      summary: Invoke a tool by name
      tags: [MCP]
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name:
                  type: string
                  description: Tool name (e.g., youtrack.get_issue)
                arguments:
                  type: object
                  description: Tool arguments
      responses:
        '200':
          description: Tool result
        '400':
          description: Validation failure
        '401':
          description: Authentication failure
        '404':
          description: Unknown tool or missing entity
        '502':
          description: Upstream YouTrack failure
  /mcp/stream:
    get:
      summary: Server-sent event stream
      tags: [MCP]
      responses:
        '200':
          description: SSE stream with connected and ping events
`
