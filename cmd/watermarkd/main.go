package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Leks2000/NinyMark/internal/adapter/httpserver"
	"github.com/Leks2000/NinyMark/internal/adapter/processor"
	"github.com/Leks2000/NinyMark/internal/adapter/redis"
	"github.com/Leks2000/NinyMark/internal/broadcast"
	"github.com/Leks2000/NinyMark/internal/domain"
	"github.com/Leks2000/NinyMark/internal/history"
	"github.com/Leks2000/NinyMark/internal/platform/config"
	"github.com/Leks2000/NinyMark/internal/platform/logging"
	"github.com/Leks2000/NinyMark/internal/session"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupHistoryStore picks Redis when configured, otherwise in-memory only.
func setupHistoryStore(cfg *config.Config) domain.HistoryStore {
	if cfg.RedisURL == "" {
		slog.Info("No Redis configured, undo history will not survive restarts")
		return history.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("Redis unavailable, falling back to in-memory history", "error", err)
		return history.NewMemoryStore()
	}

	return redis.NewHistoryStore(client, cfg.SessionID)
}

func runGracefulShutdown(srv *httpserver.Server, sess *session.Controller, hub *broadcast.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()
		sess.Close()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	historyStore := setupHistoryStore(cfg)
	processorClient := processor.NewClient(cfg.ProcessorURL)
	hub := broadcast.NewHub(clock, cfg.MaxWebSocketClients)

	sess := session.New(session.Options{
		Processor:          processorClient,
		HistoryStore:       historyStore,
		Publisher:          hub,
		Clock:              clock,
		ChunkSize:          cfg.BatchChunkSize,
		HealthPollInterval: cfg.HealthPollInterval,
	})

	restoreCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	sess.Restore(restoreCtx)
	cancel()

	srv := httpserver.NewServer(cfg, sess, hub)

	done := runGracefulShutdown(srv, sess, hub)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
