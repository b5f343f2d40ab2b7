// Package mcpserver exposes the search tool set as a remote MCP server
// over streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ai8future/perplexity-mcp/internal/auth"
	"github.com/ai8future/perplexity-mcp/internal/search"
)

// ServerName identifies this implementation during the MCP handshake.
const ServerName = "perplexity-mcp"

// Config holds MCP server configuration.
type Config struct {
	Host        string
	Port        int
	BearerToken string
	Version     string
}

// Server is the authenticated MCP endpoint. It owns the underlying HTTP
// server and registers one handler per tool in the closed tool set.
type Server struct {
	service    *search.Service
	mcpServer  *server.MCPServer
	httpServer *http.Server
	version    string
	port       int
}

// New creates the MCP server and registers the search tools.
func New(cfg Config, service *search.Service) *Server {
	s := &Server{
		service: service,
		version: cfg.Version,
		port:    cfg.Port,
	}

	s.mcpServer = server.NewMCPServer(ServerName, cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	for _, tool := range search.AllTools() {
		s.mcpServer.AddTool(
			mcp.NewTool(string(tool),
				mcp.WithDescription(tool.Description()),
				mcp.WithString("query",
					mcp.Required(),
					mcp.Description("Search query string"),
				),
			),
			s.toolHandler(tool),
		)
	}

	// Each tool call is independent; no session state to keep.
	streamable := server.NewStreamableHTTPServer(s.mcpServer,
		server.WithStateLess(true),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamable)
	mux.HandleFunc("/health", s.handleHealth)

	authenticator := auth.NewAuthenticator(cfg.BearerToken)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           authenticator.Middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// Deep-research calls hold the response open for minutes.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// toolHandler builds the MCP handler for one tool. Failures become
// tool-result errors; the handler itself never returns a protocol error
// for a bad call, so the server stays available.
func (s *Server) toolHandler(tool search.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := s.service.Run(ctx, tool, query)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultStructured(result, fallbackText(result)), nil
	}
}

// fallbackText renders the result as JSON for clients that only read text
// content, keeping the source list visible to them as well.
func fallbackText(result search.Result) string {
	data, err := json.Marshal(result)
	if err != nil {
		return result.Answer
	}
	return string(data)
}

// handleHealth returns liveness. Exempt from authentication.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "healthy",
		"server":  ServerName,
		"version": s.version,
	})
}

// Handler exposes the authenticated HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	slog.Info("starting MCP HTTP server", "addr", s.httpServer.Addr, "endpoint", "/mcp")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
