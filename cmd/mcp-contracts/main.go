// Command mcp-contracts runs the MCP tool server for contract comparisons.
// Uses stdio transport for integration with AI assistants.
package main

import (
	"context"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/claw-gang/amendment-diff/internal/app"
	"github.com/claw-gang/amendment-diff/internal/config"
	"github.com/claw-gang/amendment-diff/internal/mcpserver"
	"github.com/claw-gang/amendment-diff/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	// stdout carries the protocol.
	logger := observability.InitLoggerTo(os.Stderr, cfg.LogLevel)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "amendment-diff",
		Version: "v1.0.0",
	}, nil)
	var states mcpserver.StateReader
	if a.History != nil {
		states = a.History
	}
	mcpserver.RegisterTools(server, a.Comparer, states)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
