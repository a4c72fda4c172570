// Package mcp exposes the reload coordinator as a Model Context Protocol
// server, so agent tooling can reload, inspect, and clear the running
// application without touching the process.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/graft"
	"github.com/aretw0/graft/internal/logging"
	"github.com/aretw0/graft/pkg/domain"
)

// StatusResult describes the coordinator state returned by the status tool.
type StatusResult struct {
	Target     string `json:"target" jsonschema_description:"The application target being served"`
	Loaded     bool   `json:"loaded" jsonschema_description:"Whether a handle is currently cached"`
	Generation uint64 `json:"generation" jsonschema_description:"Monotonic reload counter"`
	LastError  string `json:"last_error,omitempty" jsonschema_description:"Message of the most recent load failure"`
}

// ReloadResult is returned by the reload and load tools.
type ReloadResult struct {
	Target     string `json:"target" jsonschema_description:"The target that was loaded"`
	Generation uint64 `json:"generation" jsonschema_description:"Cache generation after the load"`
}

// Reloader defines the surface of the reload coordinator exposed over MCP.
type Reloader interface {
	Load(ctx context.Context, target string, force bool) (domain.Handle, uint64, error)
	Cached() (domain.Handle, bool)
	Generation() uint64
	Target() (domain.Target, bool)
	LastError() error
	Clear()
}

// Server wraps a Reloader and exposes it as an MCP Server.
type Server struct {
	target    string
	reloader  Reloader
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for tool call diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance for the given target.
func NewServer(target string, rl Reloader, opts ...Option) *Server {
	s := &Server{
		target:    target,
		reloader:  rl,
		mcpServer: server.NewMCPServer("graft-mcp", strings.TrimSpace(graft.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.For(s.logger, logging.ComponentMCP)
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutdown signal received, stopping mcp server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: reload
	reloadTool := mcp.NewTool("reload",
		mcp.WithDescription("Force a reload of the served application target. Sweeps run, the resolver cache is invalidated, and a fresh handle is resolved."),
		mcp.WithOutputSchema[ReloadResult](),
	)
	s.mcpServer.AddTool(reloadTool, mcp.NewStructuredToolHandler(s.handleReload))

	// TOOL: load
	loadTool := mcp.NewTool("load",
		mcp.WithDescription("Load a target through the coordinator cache. Defaults to the served target; pass force to bypass the cache."),
		mcp.WithString("target", mcp.Description("Target in \"module.path:attribute\" form (optional, defaults to the served target)")),
		mcp.WithBoolean("force", mcp.Description("Force a reload even when a handle is cached")),
		mcp.WithOutputSchema[ReloadResult](),
	)
	s.mcpServer.AddTool(loadTool, mcp.NewStructuredToolHandler(s.handleLoad))

	// TOOL: status
	statusTool := mcp.NewTool("status",
		mcp.WithDescription("Report the coordinator state: target, cache generation, and the most recent failure."),
		mcp.WithOutputSchema[StatusResult](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleStatus))

	// TOOL: clear_cache
	s.mcpServer.AddTool(mcp.NewTool("clear_cache",
		mcp.WithDescription("Drop the cached handle without resolving a new one. The next load resolves from scratch."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.reloader.Clear()
		s.logger.Info("cache cleared over mcp")
		return mcp.NewToolResultText("cache cleared"), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleReload(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ReloadResult, error) {
	_, generation, err := s.reloader.Load(ctx, s.target, true)
	if err != nil {
		s.logger.Error("mcp reload failed", "target", s.target, "err", err)
		return ReloadResult{}, fmt.Errorf("reload failed: %w", err)
	}
	s.logger.Info("reload requested over mcp", "target", s.target, "generation", generation)
	return ReloadResult{Target: s.target, Generation: generation}, nil
}

func (s *Server) handleLoad(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ReloadResult, error) {
	target, _ := args["target"].(string)
	if target == "" {
		target = s.target
	}
	force, _ := args["force"].(bool)

	_, generation, err := s.reloader.Load(ctx, target, force)
	if err != nil {
		return ReloadResult{}, fmt.Errorf("load failed: %w", err)
	}
	return ReloadResult{Target: target, Generation: generation}, nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StatusResult, error) {
	result := StatusResult{
		Target:     s.target,
		Generation: s.reloader.Generation(),
	}
	if target, ok := s.reloader.Target(); ok {
		result.Target = target.String()
		result.Loaded = true
	}
	if err := s.reloader.LastError(); err != nil {
		result.LastError = err.Error()
	}
	return result, nil
}

func (s *Server) registerResources() {
	// EXPOSE: graft://status
	s.mcpServer.AddResource(mcp.NewResource("graft://status", "Coordinator Status",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		status, err := s.handleStatus(ctx, mcp.CallToolRequest{}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read status: %w", err)
		}
		jsonBytes, _ := json.Marshal(status)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "graft://status",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
