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
	"github.com/pedroporto/refi-pipeline/internal/extractor"
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

	ocrBaseURL := os.Getenv("OCR_BASE_URL")
	if ocrBaseURL == "" {
		ocrBaseURL = "http://localhost:8090"
	}
	ocr := extractor.NewHTTPOCR(ocrBaseURL)

	publisher, err := bus.NewPublisher(cfg.KafkaBrokerURL, cfg.TopicParsed, logger)
	if err != nil {
		logger.Error("failed to create parsed publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	stage := extractor.New(ocr, publisher, logger)
	consumer := bus.NewConsumer(cfg.KafkaBrokerURL, cfg.TopicRaw, cfg.GroupID, logger)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutting down extractor...")
		cancel()
	}()

	logger.Info("extractor consuming", "topic", cfg.TopicRaw, "group_id", cfg.GroupID)
	if err := consumer.Run(ctx, stage.Handle); err != nil {
		logger.Error("extractor consumer stopped with error", "error", err)
		os.Exit(1)
	}
}
