// Package config loads the flat, environment-variable-driven configuration
// shared by every cmd/* entrypoint in the pipeline. Each service reads only
// the fields its stage needs; unused fields are simply ignored.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Config holds every setting any pipeline stage might need. Individual
// cmd/* binaries pull out the subset relevant to them.
type Config struct {
	// HTTP server (Ingress, Read API)
	ServerAddr     string
	ReadAPIAddr    string
	AllowedOrigins []string

	// Chat Gateway
	ChatAPIRoot string
	BotToken    string

	// Bus
	KafkaBrokerURL string
	GroupID        string

	TopicRaw         string
	TopicParsed      string
	TopicInterpreted string
	TopicVerified    string
	TopicEnriched    string
	TopicMatched     string
	TopicComposed    string

	// Store
	DatabaseURL string

	// LLM Gateway
	LLMProvider    string
	LLMModel       string
	LLMTemperature float64
	OllamaBaseURL  string
	OpenAIAPIKey   string

	// Verifier / Ingress programmatic trigger
	IngressAPIURL string

	// Notifier
	ChatGatewaySendURL string

	// Worker pools
	WorkerCount int
}

// Load reads configuration from environment variables, applying the same
// defaults the pipeline is deployed with in development.
func Load() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, errors.New("config: DATABASE_URL environment variable is required")
	}

	botToken := os.Getenv("BOT_TOKEN")

	cfg := &Config{
		ServerAddr:     ":" + getEnvOr("PORT", "3000"),
		ReadAPIAddr:    ":" + getEnvOr("READAPI_PORT", "3001"),
		AllowedOrigins: nil,

		ChatAPIRoot: getEnvOr("CHAT_API_ROOT", "https://api.telegram.org"),
		BotToken:    botToken,

		KafkaBrokerURL: getEnvOr("KAFKA_BROKER_URL", "localhost:9092"),
		GroupID:        getEnvOr("GROUP_ID", "refi-pipeline"),

		TopicRaw:         getEnvOr("TOPIC_RAW", "raw"),
		TopicParsed:      getEnvOr("TOPIC_PARSED", "parsed"),
		TopicInterpreted: getEnvOr("TOPIC_INTERPRETED", "interpreted"),
		TopicVerified:    getEnvOr("TOPIC_VERIFIED", "verified"),
		TopicEnriched:    getEnvOr("TOPIC_ENRICHED", "enriched"),
		TopicMatched:     getEnvOr("TOPIC_MATCHED", "matched"),
		TopicComposed:    getEnvOr("TOPIC_COMPOSED", "composed"),

		DatabaseURL: databaseURL,

		LLMProvider:    getEnvOr("LLM_PROVIDER", "ollama"),
		LLMModel:       getEnvOr("LLM_MODEL", "qwen2.5:7b-instruct"),
		LLMTemperature: 0.0,
		OllamaBaseURL:  getEnvOr("OLLAMA_BASE_URL", "https://ollama.pedro-porto.com"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),

		IngressAPIURL:      getEnvOr("POST_URL", "http://localhost:3000"),
		ChatGatewaySendURL: getEnvOr("API_URL", "http://localhost:3000/api/send_message"),

		WorkerCount: 4,
	}

	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		temp, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("config: LLM_TEMPERATURE: %w", err)
		}
		cfg.LLMTemperature = temp
	}

	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: WORKER_COUNT: %w", err)
		}
		cfg.WorkerCount = n
	}

	if cfg.LLMProvider == "openai" && cfg.OpenAIAPIKey == "" {
		return nil, errors.New("config: OPENAI_API_KEY is required when LLM_PROVIDER=openai")
	}

	return cfg, nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
