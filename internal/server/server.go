package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/psd401/toolhub/internal/auth"
	"github.com/psd401/toolhub/internal/executor"
	"github.com/psd401/toolhub/internal/model"
	"github.com/psd401/toolhub/internal/ratelimit"
	"github.com/psd401/toolhub/internal/storage"
)

// Server is the toolhub HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Optional (nil-safe): AuthLimiter, ExecLimiter, MCPServer.
type ServerConfig struct {
	// Required dependencies.
	DB       *storage.DB
	JWTMgr   *auth.JWTManager
	Executor *executor.Executor
	Provider executor.ModelProvider
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	AuthLimiter ratelimit.Limiter
	ExecLimiter ratelimit.Limiter
	MCPServer   *mcpserver.MCPServer
	OpenAPISpec []byte

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64

	// Model settings surfaced to the chat handlers.
	DefaultModelID string
	ModelTimeout   time.Duration
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		JWTMgr:              cfg.JWTMgr,
		Executor:            cfg.Executor,
		Provider:            cfg.Provider,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		DefaultModelID:      cfg.DefaultModelID,
		ModelTimeout:        cfg.ModelTimeout,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	authRL := ratelimit.Middleware(cfg.AuthLimiter, func(r *http.Request) string {
		return "auth:" + ratelimit.IPKeyFunc(r)
	}, reqIDFunc)
	execRL := ratelimit.Middleware(cfg.ExecLimiter, userKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Auth endpoint (no auth required, rate limited by IP).
	mux.Handle("POST /auth/token", authRL(http.HandlerFunc(h.HandleAuthToken)))

	// Navigation: reads for any authenticated caller, mutations administrator.
	adminOnly := h.requireRole(model.RoleAdministrator)
	mux.HandleFunc("GET /api/navigation", h.HandleListNavigation)
	mux.Handle("POST /api/navigation", adminOnly(http.HandlerFunc(h.HandleCreateNavigation)))
	mux.Handle("PUT /api/navigation/{id}", adminOnly(http.HandlerFunc(h.HandleUpdateNavigation)))
	mux.Handle("DELETE /api/navigation/{id}", adminOnly(http.HandlerFunc(h.HandleDeleteNavigation)))

	// Ideas board. Status changes and notes need staff or better.
	staffOnly := h.requireRole(model.RoleStaff)
	mux.HandleFunc("GET /api/ideas", h.HandleListIdeas)
	mux.HandleFunc("POST /api/ideas", h.HandleCreateIdea)
	mux.HandleFunc("POST /api/ideas/{id}/vote", h.HandleVoteIdea)
	mux.Handle("PATCH /api/ideas/{id}/status", staffOnly(http.HandlerFunc(h.HandleUpdateIdeaStatus)))
	mux.Handle("GET /api/ideas/{id}/notes", staffOnly(http.HandlerFunc(h.HandleListIdeaNotes)))
	mux.Handle("POST /api/ideas/{id}/notes", staffOnly(http.HandlerFunc(h.HandleCreateIdeaNote)))

	// Chat (owner-scoped).
	mux.HandleFunc("GET /api/chat/conversations", h.HandleListConversations)
	mux.HandleFunc("POST /api/chat/conversations", h.HandleCreateConversation)
	mux.HandleFunc("GET /api/chat/conversations/{id}", h.HandleGetConversation)
	mux.HandleFunc("GET /api/chat/conversations/{id}/messages", h.HandleListMessages)
	mux.HandleFunc("POST /api/chat/conversations/{id}/messages", h.HandleSendMessage)

	// Documents.
	mux.HandleFunc("GET /api/documents", h.HandleListDocuments)
	mux.HandleFunc("POST /api/documents", h.HandleCreateDocument)
	mux.HandleFunc("POST /api/documents/link", h.HandleLinkDocument)

	// Users admin.
	mux.Handle("GET /api/users", adminOnly(http.HandlerFunc(h.HandleListUsers)))
	mux.Handle("POST /api/users/promote", adminOnly(http.HandlerFunc(h.HandlePromoteUser)))
	mux.Handle("POST /api/users/role", adminOnly(http.HandlerFunc(h.HandleUpdateUserRole)))

	// Assistant Architect. Every route requires the tool entitlement;
	// approve/reject additionally require administrator.
	architect := h.requireTool("assistant-architect")
	mux.Handle("GET /api/architect/tools", architect(http.HandlerFunc(h.HandleListArchitectTools)))
	mux.Handle("POST /api/architect/tools", architect(http.HandlerFunc(h.HandleCreateArchitectTool)))
	mux.Handle("GET /api/architect/tools/{id}", architect(http.HandlerFunc(h.HandleGetArchitectTool)))
	mux.Handle("PUT /api/architect/tools/{id}", architect(http.HandlerFunc(h.HandleUpdateArchitectTool)))
	mux.Handle("DELETE /api/architect/tools/{id}", architect(http.HandlerFunc(h.HandleDeleteArchitectTool)))
	mux.Handle("POST /api/architect/tools/{id}/submit", architect(http.HandlerFunc(h.HandleSubmitTool)))
	mux.Handle("POST /api/architect/tools/{id}/approve", architect(adminOnly(http.HandlerFunc(h.HandleApproveTool))))
	mux.Handle("POST /api/architect/tools/{id}/reject", architect(adminOnly(http.HandlerFunc(h.HandleRejectTool))))
	mux.Handle("POST /api/architect/tools/{id}/fields", architect(http.HandlerFunc(h.HandleCreateInputField)))
	mux.Handle("PUT /api/architect/tools/{id}/fields/{fieldID}", architect(http.HandlerFunc(h.HandleUpdateInputField)))
	mux.Handle("DELETE /api/architect/tools/{id}/fields/{fieldID}", architect(http.HandlerFunc(h.HandleDeleteInputField)))
	mux.Handle("POST /api/architect/tools/{id}/prompts", architect(http.HandlerFunc(h.HandleCreateChainPrompt)))
	mux.Handle("PUT /api/architect/tools/{id}/prompts/{promptID}", architect(http.HandlerFunc(h.HandleUpdateChainPrompt)))
	mux.Handle("DELETE /api/architect/tools/{id}/prompts/{promptID}", architect(http.HandlerFunc(h.HandleDeleteChainPrompt)))
	mux.Handle("POST /api/architect/tools/{id}/execute",
		architect(execRL(http.HandlerFunc(h.HandleExecuteTool))))
	mux.Handle("GET /api/architect/executions/{id}", architect(http.HandlerFunc(h.HandleGetExecution)))

	// MCP StreamableHTTP transport (auth required, entitlement enforced).
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", architect(mcpHTTP))
	}

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// userKeyFunc extracts the caller's user ID for rate limiting.
// Administrators are exempt.
func userKeyFunc(r *http.Request) string {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	if claims.Role == model.RoleAdministrator {
		return ""
	}
	return "exec:" + claims.UserID
}

// Handlers returns the underlying Handlers for access to SeedAdmin etc.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
