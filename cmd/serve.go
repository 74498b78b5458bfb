package cmd

import (
	"fmt"
	"time"

	"github.com/mj1618/winsync/internal/server"
	"github.com/mj1618/winsync/internal/version"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server exposing the shared window list",
	Long: `Start a Model Context Protocol (MCP) server that exposes read-only winsync
tools (list_windows, get_window, window_count). The server does not register
a window of its own.

Supported transports:
  stdio   Standard I/O (default, for MCP clients)
  http    Streamable HTTP transport (for remote agents)

Examples:
  winsync serve
  winsync serve --transport http --port 8080
  winsync serve --cache-ttl 0`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "", "Transport: stdio, http (default from config)")
	serveCmd.Flags().Int("port", 0, "HTTP port for the http transport (default from config)")
	serveCmd.Flags().Int("cache-ttl", -1, "Window list cache TTL in milliseconds (0 to disable, default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := server.Config{
		Transport: appConfig.Serve.Transport,
		Port:      appConfig.Serve.Port,
		CacheTTL:  appConfig.Serve.CacheTTL,
		Version:   version.Version,
	}
	if cmd.Flags().Changed("transport") {
		cfg.Transport, _ = cmd.Flags().GetString("transport")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("cache-ttl") {
		ms, _ := cmd.Flags().GetInt("cache-ttl")
		if ms < 0 {
			return fmt.Errorf("--cache-ttl must be non-negative")
		}
		cfg.CacheTTL = time.Duration(ms) * time.Millisecond
	}
	if cfg.Transport == "http" && cfg.Port <= 0 {
		return fmt.Errorf("--port is required for the http transport")
	}

	st, err := openStore(cmd.Context(), appConfig.Store, appLog)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(st, cfg, appLog)
	defer srv.Close()
	return srv.Serve(cfg)
}
