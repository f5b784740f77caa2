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

	"github.com/pedroporto/refi-pipeline/internal/bus"
	"github.com/pedroporto/refi-pipeline/internal/chatgw"
	"github.com/pedroporto/refi-pipeline/internal/config"
	"github.com/pedroporto/refi-pipeline/internal/httpx"
	"github.com/pedroporto/refi-pipeline/internal/ingress"
	"github.com/pedroporto/refi-pipeline/internal/middleware"
)

// webhookRateLimit bounds how often a single IP may hit the Telegram
// webhook and the Verifier/Notifier trigger endpoints.
const (
	webhookRateLimitRequests = 120
	webhookRateLimitWindow   = time.Minute
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

	chat := chatgw.New(cfg.ChatAPIRoot, cfg.BotToken, logger)

	rawPublisher, err := bus.NewPublisher(cfg.KafkaBrokerURL, cfg.TopicRaw, logger)
	if err != nil {
		logger.Error("failed to create raw publisher", "error", err)
		os.Exit(1)
	}
	defer rawPublisher.Close()

	verifiedPublisher, err := bus.NewPublisher(cfg.KafkaBrokerURL, cfg.TopicVerified, logger)
	if err != nil {
		logger.Error("failed to create verified publisher", "error", err)
		os.Exit(1)
	}
	defer verifiedPublisher.Close()

	actor := ingress.NewActor(chat, rawPublisher, verifiedPublisher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go actor.Run(ctx)

	handlers := ingress.NewHandlers(actor, chat, logger)
	mux := http.NewServeMux()
	handlers.Register(mux)
	mux.HandleFunc("GET /health", httpx.HandleHealth)
	mux.HandleFunc("GET /version", httpx.HandleVersion)

	limiter := middleware.NewRateLimiter(webhookRateLimitRequests, webhookRateLimitWindow)

	handler := httpx.Chain(mux,
		middleware.NoCache(),
		middleware.Logging(logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.Recovery(logger),
		middleware.RateLimit(limiter),
	)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: handler,
	}

	go func() {
		logger.Info("starting ingress server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down ingress server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}
