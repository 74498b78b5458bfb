// Package server exposes the shared window list to MCP clients.
package server

import (
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/mj1618/winsync/internal/store"
	"github.com/rs/zerolog"
)

// Config holds MCP server configuration.
type Config struct {
	Transport string
	Port      int
	CacheTTL  time.Duration
	Version   string
}

// Server wraps the MCP server with the store and its window cache.
type Server struct {
	cache *WindowCache
	log   zerolog.Logger
	mcp   *mcpserver.MCPServer
}

// New creates and configures an MCP server with all winsync tools.
func New(st store.Store, cfg Config, log zerolog.Logger) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		cache: NewWindowCache(st, cfg.CacheTTL),
		log:   log.With().Str("component", "mcp").Logger(),
		mcp:   mcpserver.NewMCPServer("winsync", version),
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server with the configured transport and blocks.
func (s *Server) Serve(cfg Config) error {
	switch cfg.Transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "http":
		addr := fmt.Sprintf(":%d", cfg.Port)
		s.log.Info().Str("addr", addr).Msg("serving MCP over streamable http")
		return mcpserver.NewStreamableHTTPServer(s.mcp).Start(addr)
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or http)", cfg.Transport)
	}
}

// Close releases the cache subscription.
func (s *Server) Close() {
	s.cache.Close()
}

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool("list_windows",
			mcp.WithDescription("List every window currently registered in the shared window list, with id, shape (x, y, w, h) and metaData"),
			mcp.WithBoolean("include_meta", mcp.Description("Include each window's metaData (default: true)")),
		),
		s.handleListWindows,
	)

	s.mcp.AddTool(
		mcp.NewTool("get_window",
			mcp.WithDescription("Get one window record from the shared list by id"),
			mcp.WithNumber("id", mcp.Description("Window id"), mcp.Required()),
		),
		s.handleGetWindow,
	)

	s.mcp.AddTool(
		mcp.NewTool("window_count",
			mcp.WithDescription("Report how many windows are registered and the last id minted by the shared counter"),
		),
		s.handleWindowCount,
	)
}
