// Package server provides the HTTP transport layer over the classification
// engine.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/billsense/billsense/internal/config"
	"github.com/billsense/billsense/internal/engine"
)

// Server is the HTTP facade over the engine.
type Server struct {
	engine  *engine.Engine
	cfg     *config.Config
	logger  *slog.Logger
	version string
}

// New creates a server.
func New(eng *engine.Engine, cfg *config.Config, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  eng,
		cfg:     cfg,
		logger:  logger,
		version: version,
	}
}

// Router builds the gin engine with all routes and middleware mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(RequestID())
	router.Use(CORS())
	router.Use(RequestLogger(s.logger))
	router.Use(gin.Recovery())

	router.GET("/health", s.health)

	api := router.Group("/api/v1")
	{
		images := api.Group("/images")
		{
			images.POST("/categorize", s.categorizeImage)
			images.POST("/categorize/async", s.categorizeImageAsync)
			images.GET("/task/:id", s.taskStatus)
		}

		records := api.Group("/records")
		{
			records.POST("/validate", s.validateRecord)
			records.POST("/:id/reconcile", s.reconcileRecord)
		}
	}

	return router
}

// Run serves HTTP until the context is canceled, then shuts down gracefully
// and sweeps all remaining tasks to release memory deterministically.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown failed", "error", err.Error())
	}

	swept := s.engine.SweepTasks(0)
	s.logger.Info("server stopped", "tasks_swept", swept)

	return nil
}
