package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"

	"github.com/pedroporto/refi-pipeline/internal/config"
	"github.com/pedroporto/refi-pipeline/internal/httpx"
	"github.com/pedroporto/refi-pipeline/internal/middleware"
	"github.com/pedroporto/refi-pipeline/internal/readapi"
	"github.com/pedroporto/refi-pipeline/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	handlers := readapi.New(gateway, logger)
	go handlers.PollAndBroadcast(ctx, 5*time.Second)

	mux := http.NewServeMux()
	handlers.Register(mux)
	mux.HandleFunc("GET /health", httpx.HandleHealth)
	mux.HandleFunc("GET /version", httpx.HandleVersion)

	handler := httpx.Chain(mux,
		middleware.NoCache(),
		middleware.Logging(logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.Recovery(logger),
	)

	srv := &http.Server{
		Addr:    cfg.ReadAPIAddr,
		Handler: handler,
	}

	go func() {
		logger.Info("starting read api server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down read api server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}
