// Package api exposes the analysis pipeline over HTTP: synchronous
// signal triggering, record queries, health and readiness probes, and
// the real-time WebSocket stream.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgewatch/vigil/pkg/config"
	"github.com/edgewatch/vigil/pkg/coordinator"
	"github.com/edgewatch/vigil/pkg/store"
)

// Server is the HTTP API server.
type Server struct {
	cfg         config.HTTPConfig
	engine      *gin.Engine
	coordinator *coordinator.Coordinator
	store       store.SharedStore
	ws          *WSManager
	recentLimit int
	startedAt   time.Time
}

// NewServer wires the routes. The WSManager must already be constructed;
// the caller starts its Run loop alongside the server.
func NewServer(
	cfg config.HTTPConfig,
	coord *coordinator.Coordinator,
	sharedStore store.SharedStore,
	ws *WSManager,
	recentLimit int,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), securityHeaders())

	s := &Server{
		cfg:         cfg,
		engine:      engine,
		coordinator: coord,
		store:       sharedStore,
		ws:          ws,
		recentLimit: recentLimit,
		startedAt:   time.Now(),
	}

	engine.GET("/health", s.health)
	engine.GET("/ready", s.ready)
	engine.GET("/ws", s.handleWS)

	threats := engine.Group("/api/threats")
	threats.POST("/trigger", s.triggerAnalysis)
	threats.GET("", s.listThreats)
	threats.GET("/:id", s.getThreat)

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests
// within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", s.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	slog.Info("HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}
