package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mj1618/winsync/internal/model"
	"gopkg.in/yaml.v3"
)

// countResult is the window_count tool output.
type countResult struct {
	Windows int `yaml:"windows"`
	LastID  int `yaml:"last_id"`
}

func yamlResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("yaml encode: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleListWindows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	includeMeta := request.GetBool("include_meta", true)

	windows, err := s.cache.Windows(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("list_windows failed")
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !includeMeta {
		for i := range windows {
			windows[i].MetaData = nil
		}
	}
	return yamlResult(windows)
}

func (s *Server) handleGetWindow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	windows, err := s.cache.Windows(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	i := model.IndexByID(windows, id)
	if i < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("no window with id %d", id)), nil
	}
	return yamlResult(windows[i])
}

func (s *Server) handleWindowCount(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	windows, err := s.cache.Windows(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	count, err := s.cache.Count(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return yamlResult(countResult{Windows: len(windows), LastID: count})
}
