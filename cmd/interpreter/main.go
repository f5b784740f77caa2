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
	"github.com/pedroporto/refi-pipeline/internal/interpreter"
	"github.com/pedroporto/refi-pipeline/internal/llm"
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

	llmClient, err := llm.NewClient(llm.Config{
		Provider:      cfg.LLMProvider,
		Model:         cfg.LLMModel,
		Temperature:   cfg.LLMTemperature,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
	}, logger)
	if err != nil {
		logger.Warn("llm gateway unavailable, interpreter will rely on deterministic extraction only", "error", err)
		llmClient = nil
	}

	publisher, err := bus.NewPublisher(cfg.KafkaBrokerURL, cfg.TopicInterpreted, logger)
	if err != nil {
		logger.Error("failed to create interpreted publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	stage := interpreter.New(llmClient, publisher, logger)
	consumer := bus.NewConsumer(cfg.KafkaBrokerURL, cfg.TopicParsed, cfg.GroupID, logger)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutting down interpreter...")
		cancel()
	}()

	logger.Info("interpreter consuming", "topic", cfg.TopicParsed, "group_id", cfg.GroupID)
	if err := consumer.Run(ctx, stage.Handle); err != nil {
		logger.Error("interpreter consumer stopped with error", "error", err)
		os.Exit(1)
	}
}
