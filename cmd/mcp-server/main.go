// Package main provides the entry point for the ASCVD risk MCP server.
// It needs no external services by default: patient records live in a local
// SQLite registry and risk results are cached in memory.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ascvd-risk-server/internal/config"
	"github.com/ascvd-risk-server/internal/mcp"
)

func main() {
	cfg := config.LoadLiteConfig()

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}
}
