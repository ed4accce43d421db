// Package mcp exposes the risk engine and patient registry as MCP tools.
// The server is lightweight: it needs no external services, using SQLite for
// persistence and an in-memory cache, and speaks MCP over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/ascvd-risk-server/internal/cache"
	"github.com/ascvd-risk-server/internal/config"
	"github.com/ascvd-risk-server/internal/registry"
	"github.com/ascvd-risk-server/internal/risk"
)

// LiteServer is a standalone MCP server around the risk engine.
type LiteServer struct {
	config    *config.LiteConfig
	mcpServer *mcp.Server
	engine    *risk.Engine
	store     registry.Store
	results   *cache.MemoryCache
	logger    *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithStore sets a custom patient store.
func WithStore(store registry.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.store = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *config.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{
		config: cfg,
		logger: logrus.New(),
	}

	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	server.logger.SetLevel(level)

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	server.results = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
	server.engine = risk.NewEngine(server.logger)

	if server.store == nil {
		store, err := openStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open patient registry: %w", err)
		}
		server.store = store
	}

	serverInfo := &mcp.Implementation{
		Name:    "ascvd-risk-server",
		Version: "v1.0.0",
	}

	server.mcpServer = mcp.NewServer(serverInfo, nil)
	server.registerTools()

	server.logger.Info("Lite server initialized successfully")
	return server, nil
}

// openStore picks PostgreSQL when a database URL is configured, falling back
// to the local SQLite registry otherwise.
func openStore(cfg *config.LiteConfig) (registry.Store, error) {
	if cfg.DatabaseURL != "" {
		return registry.NewPostgresStoreFromURL(cfg.DatabaseURL)
	}
	return registry.NewSQLiteStore(cfg.RegistryDBPath())
}

// Start runs the MCP server over stdio until ctx is cancelled.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.Info("Starting ASCVD risk MCP server...")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close patient registry")
			return err
		}
	}
	return nil
}

// GetStore returns the patient store for external access.
func (s *LiteServer) GetStore() registry.Store {
	return s.store
}
