// Vigil threat-analysis server — ingests threat signals, runs the
// multi-analyst pipeline, and serves the HTTP API and real-time stream.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/edgewatch/vigil/pkg/analysis"
	"github.com/edgewatch/vigil/pkg/analyst"
	"github.com/edgewatch/vigil/pkg/api"
	"github.com/edgewatch/vigil/pkg/config"
	"github.com/edgewatch/vigil/pkg/coordinator"
	"github.com/edgewatch/vigil/pkg/knowledge"
	"github.com/edgewatch/vigil/pkg/reasoning"
	"github.com/edgewatch/vigil/pkg/store"
	"github.com/edgewatch/vigil/pkg/version"
)

// wsInitialBatch is how many recent records a fresh WebSocket connection
// receives before the live stream starts.
const wsInitialBatch = 20

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment")
	}

	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting vigil",
		"version", version.Full(),
		"reasoning_mode", cfg.Reasoning.Mode,
		"http_port", cfg.HTTP.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 2. Shared store
	sharedStore, err := newStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("Failed to initialize shared store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := sharedStore.Close(); err != nil {
			slog.Error("Error closing shared store", "error", err)
		}
	}()

	// 3. Knowledge and reasoning
	knowledgeStore := knowledge.NewSeededStore()
	provider := reasoning.New(cfg.Reasoning)
	analysts := analyst.NewAll(provider, cfg.Mock())
	slog.Info("Analysts initialized", "count", len(analysts), "mock", cfg.Mock())

	// 4. Pipeline
	coord := coordinator.New(
		cfg.Coordinator,
		analysts,
		knowledgeStore,
		analysis.NewFPAnalyzer(),
		analysis.NewResponseEngine(),
		analysis.NewTimelineBuilder(),
		sharedStore,
	)

	// 5. WebSocket broadcast loop
	ws := api.NewWSManager(sharedStore, wsInitialBatch, cfg.HTTP.ShutdownTimeout)
	wsDone := make(chan struct{})
	go func() {
		defer close(wsDone)
		if err := ws.Run(ctx); err != nil {
			slog.Error("WebSocket broadcast loop failed", "error", err)
		}
	}()

	// 6. HTTP server — blocks until shutdown signal
	server := api.NewServer(cfg.HTTP, coord, sharedStore, ws, cfg.Store.RecentLimit)
	if err := server.Run(ctx); err != nil {
		slog.Error("HTTP server error", "error", err)
		stop()
		<-wsDone
		os.Exit(1)
	}

	<-wsDone
	slog.Info("Shutdown complete")
}

// newStore selects the store backing: a broker URL or the in-process
// store for single-replica deployments.
func newStore(ctx context.Context, cfg config.StoreConfig) (store.SharedStore, error) {
	if cfg.Backing == config.InProcessBacking {
		slog.Info("Using in-process shared store")
		return store.NewMemoryStore(cfg.Retention, cfg.SubscriberBuffer), nil
	}
	if !strings.HasPrefix(cfg.Backing, "redis://") && !strings.HasPrefix(cfg.Backing, "rediss://") {
		slog.Warn("Store backing is not a recognized broker URL, attempting anyway", "backing", cfg.Backing)
	}
	return store.NewRedisStore(ctx, cfg.Backing, cfg.Retention, cfg.SubscriberBuffer)
}
