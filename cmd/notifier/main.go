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
	"github.com/pedroporto/refi-pipeline/internal/notifier"
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

	stage := notifier.New(cfg.ChatGatewaySendURL, logger)
	consumer := bus.NewConsumer(cfg.KafkaBrokerURL, cfg.TopicComposed, cfg.GroupID, logger)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutting down notifier...")
		cancel()
	}()

	logger.Info("notifier consuming", "topic", cfg.TopicComposed, "group_id", cfg.GroupID)
	if err := consumer.Run(ctx, stage.Handle); err != nil {
		logger.Error("notifier consumer stopped with error", "error", err)
		os.Exit(1)
	}
}
