// Package api exposes the risk engine and patient registry over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ascvd-risk-server/internal/cache"
	"github.com/ascvd-risk-server/internal/config"
	"github.com/ascvd-risk-server/internal/database"
	"github.com/ascvd-risk-server/internal/registry"
	"github.com/ascvd-risk-server/internal/risk"
)

// PatientStore is the persistence surface the API needs.
type PatientStore interface {
	Create(ctx context.Context, record *registry.PatientRecord) error
	GetByID(ctx context.Context, id string) (*registry.PatientRecord, error)
	List(ctx context.Context, filter registry.ListFilter) ([]*registry.PatientRecord, error)
	Count(ctx context.Context, filter registry.ListFilter) (int64, error)
	Overview(ctx context.Context) (*registry.Overview, error)
}

// Server represents the HTTP server
type Server struct {
	cfg     *config.Config
	engine  *risk.Engine
	store   PatientStore
	results cache.ResultCache
	db      *database.DB
	log     *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server instance. db may be nil in setups
// without PostgreSQL; the health endpoint then skips the database check.
func NewServer(
	cfg *config.Config,
	engine *risk.Engine,
	store PatientStore,
	results cache.ResultCache,
	db *database.DB,
	logger *logrus.Logger,
) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(auditLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(rateLimitMiddleware(cfg.Server.RatePerSecond, cfg.Server.RateBurst))

	server := &Server{
		cfg:     cfg,
		engine:  engine,
		store:   store,
		results: results,
		db:      db,
		log:     logger,
		router:  router,
	}

	server.setupRoutes()

	return server
}

// Router returns the underlying handler, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("starting server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.log.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/risk/ascvd", s.handleComputeRisk)
		v1.POST("/patients", s.handleCreatePatient)
		v1.GET("/patients", s.handleListPatients)
		v1.GET("/patients/:id", s.handleGetPatient)
		v1.GET("/patients/:id/risk", s.handleGetPatientRisk)
		v1.GET("/analytics/overview", s.handleAnalyticsOverview)
	}
}
