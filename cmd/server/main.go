package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/druzicka/youtrack-mcp-server/internal/api"
	"github.com/druzicka/youtrack-mcp-server/internal/config"
	"github.com/druzicka/youtrack-mcp-server/internal/mcp"
)

var (
	version = "1.0.0"

	cfg *config.Config

	// Global flags
	youtrackURL string
	port        int
	logLevel    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "youtrack-mcp-server",
		Short:   "YouTrack MCP Server - AI assistant integration for YouTrack",
		Long:    "Exposes YouTrack issues, comments, attachments, and work items as MCP tools over stdio or HTTP",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.FromEnv()
			if youtrackURL != "" {
				cfg.YouTrack.URL = youtrackURL
			}
			if port != 0 {
				cfg.Transport.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}
			setupLogging()
			return nil
		},
		// Without a subcommand the configured transport decides
		RunE: runDefault,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&youtrackURL, "youtrack-url", "", "YouTrack server URL; overrides YOUTRACK_URL")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "Server port (for SSE and HTTP modes); overrides MCP_PORT")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	// MCP command
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Start the MCP server in stdio or SSE mode",
		RunE:  runMCP,
	}

	var sseMode bool
	mcpCmd.Flags().BoolVar(&sseMode, "sse", false, "Run in SSE mode instead of stdio")

	// HTTP command
	httpCmd := &cobra.Command{
		Use:   "http",
		Short: "Start HTTP transport",
		Long:  "Start the HTTP transport with REST tool endpoints and an SSE stream",
		RunE:  runHTTP,
	}

	rootCmd.AddCommand(mcpCmd, httpCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging() {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func runDefault(cmd *cobra.Command, args []string) error {
	if cfg.Transport.Mode == config.TransportHTTP {
		return runHTTP(cmd, args)
	}
	return runMCP(cmd, args)
}

func runMCP(cmd *cobra.Command, args []string) error {
	sseMode, _ := cmd.Flags().GetBool("sse")

	server := mcp.NewServer(mcp.Config{
		YouTrackURL:   cfg.YouTrack.URL,
		YouTrackToken: cfg.YouTrack.Token,
		Timeout:       cfg.YouTrack.Timeout,
		Host:          cfg.Transport.Host,
		Port:          cfg.Transport.Port,
		SSEMode:       sseMode,
	})
	return server.Run()
}

func runHTTP(cmd *cobra.Command, args []string) error {
	server := api.NewServer(api.Config{
		YouTrackURL:   cfg.YouTrack.URL,
		YouTrackToken: cfg.YouTrack.Token,
		Timeout:       cfg.YouTrack.Timeout,
		Host:          cfg.Transport.Host,
		Port:          cfg.Transport.Port,
	})
	return server.Run()
}
