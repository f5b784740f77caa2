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
	"github.com/pedroporto/refi-pipeline/internal/matcher"
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

	publisher, err := bus.NewPublisher(cfg.KafkaBrokerURL, cfg.TopicMatched, logger)
	if err != nil {
		logger.Error("failed to create matched publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	stage := matcher.New(gateway, publisher, logger)
	consumer := bus.NewConsumer(cfg.KafkaBrokerURL, cfg.TopicEnriched, cfg.GroupID, logger)
	defer consumer.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutting down matcher...")
		cancel()
	}()

	logger.Info("matcher consuming", "topic", cfg.TopicEnriched, "group_id", cfg.GroupID)
	if err := consumer.Run(ctx, stage.Handle); err != nil {
		logger.Error("matcher consumer stopped with error", "error", err)
		os.Exit(1)
	}
}
