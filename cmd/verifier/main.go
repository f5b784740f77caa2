package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pedroporto/refi-pipeline/internal/bus"
	"github.com/pedroporto/refi-pipeline/internal/config"
	"github.com/pedroporto/refi-pipeline/internal/llm"
	"github.com/pedroporto/refi-pipeline/internal/store"
	"github.com/pedroporto/refi-pipeline/internal/verifier"
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

	llmClient, err := llm.NewClient(llm.Config{
		Provider:      cfg.LLMProvider,
		Model:         cfg.LLMModel,
		Temperature:   cfg.LLMTemperature,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
	}, logger)
	if err != nil {
		logger.Warn("llm gateway unavailable, bank matching will always insert new banks", "error", err)
		llmClient = nil
	}

	stage := verifier.New(gateway, llmClient, cfg.IngressAPIURL, logger)
	consumer := bus.NewConsumer(cfg.KafkaBrokerURL, cfg.TopicInterpreted, cfg.GroupID, logger)
	defer consumer.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutting down verifier...")
		cancel()
	}()

	logger.Info("verifier consuming", "topic", cfg.TopicInterpreted, "group_id", cfg.GroupID)
	if err := consumer.Run(ctx, stage.Handle); err != nil {
		logger.Error("verifier consumer stopped with error", "error", err)
		os.Exit(1)
	}
}
