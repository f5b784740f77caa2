package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ollamaClient calls a local or self-hosted Ollama server's /api/generate
// endpoint. Grounded on the original LLM wrapper's _generate_ollama, which
// concatenates the system prompt and prompt into a single body and reads
// the non-streaming "response" field back.
type ollamaClient struct {
	baseURL     string
	model       string
	temperature float64
	http        *http.Client
	logger      *slog.Logger
}

func newOllamaClient(cfg Config, logger *slog.Logger) *ollamaClient {
	return &ollamaClient{
		baseURL:     strings.TrimSuffix(cfg.OllamaBaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		http:        &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
	}
}

func (c *ollamaClient) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	body := map[string]any{
		"model":  c.model,
		"prompt": strings.TrimSpace(systemPrompt + "\n" + prompt),
		"stream": false,
		"options": map[string]any{
			"temperature": c.temperature,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm/ollama: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("llm/ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm/ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm/ollama: status %d", resp.StatusCode)
	}

	var decoded struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("llm/ollama: decode response: %w", err)
	}
	return strings.TrimSpace(decoded.Response), nil
}
