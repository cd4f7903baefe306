// Package mcp implements the MCP tool server exposing shell sessions.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/volanti/shellmux/internal/adapters/realfs"
	"github.com/volanti/shellmux/internal/config"
	"github.com/volanti/shellmux/internal/ports"
	"github.com/volanti/shellmux/internal/session"
)

// Server wraps the MCP server implementation.
type Server struct {
	mcpServer *server.MCPServer
	manager   SessionManager
	store     *session.Store
	config    *config.Config
	fs        ports.FileSystem
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithFileSystem sets the filesystem used by the file tools.
func WithFileSystem(fs ports.FileSystem) ServerOption {
	return func(s *Server) {
		s.fs = fs
	}
}

// WithSessionManager replaces the session manager (for testing).
func WithSessionManager(m SessionManager) ServerOption {
	return func(s *Server) {
		s.manager = m
	}
}

// WithStore sets the session metadata store.
func WithStore(store *session.Store) ServerOption {
	return func(s *Server) {
		s.store = store
	}
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	mcpServer := server.NewMCPServer(
		"shellmux",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		config:    cfg,
		fs:        realfs.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = session.NewStore()
	}
	if s.manager == nil {
		s.manager = session.NewManager(cfg, s.store)
	}

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio transport.
func (s *Server) Run() error {
	slog.Info("starting MCP server on stdio transport")
	return server.ServeStdio(s.mcpServer)
}

// Shutdown closes every live session.
func (s *Server) Shutdown() {
	s.manager.CloseAll()
}

// Manager exposes the session manager (used by the shutdown path and tests).
func (s *Server) Manager() SessionManager {
	return s.manager
}

// UpdateConfig applies a new configuration at runtime. Only settings read
// per-call can be hot-reloaded; already-open sessions keep their shell.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.config = cfg
	s.manager.UpdateConfig(cfg)
	slog.Info("configuration hot-reloaded")
}
