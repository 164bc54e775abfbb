package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/toolrelay/toolrelay/internal/dependency"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tools to an MCP client over stdio",
	Long:  "Serve the tool registry over the Model Context Protocol on stdin/stdout. Logs go to stderr.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := dependency.New(cfg, dependency.Options{})
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	slog.SetDefault(c.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return c.MCPBridge().Run(ctx)
}
