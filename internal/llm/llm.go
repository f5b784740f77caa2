// Package llm is the pipeline's provider-polymorphic text-generation
// gateway. The Interpreter, Verifier and Composer all generate through the
// same Client interface; which backend actually serves a call is a matter
// of configuration, not of the caller's code.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Client generates free text from a prompt, optionally steered by a system
// prompt. Implementations must not retain state across calls.
type Client interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Provider    string // "ollama" or "openai"
	Model       string
	Temperature float64

	OllamaBaseURL string

	OpenAIAPIKey string
}

// NewClient builds the Client for cfg.Provider.
func NewClient(cfg Config, logger *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case "ollama":
		return newOllamaClient(cfg, logger), nil
	case "openai":
		return newOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractFirstJSON returns the substring of text from the first '{' to the
// last '}', after stripping the markdown code fences LLMs routinely wrap
// JSON in. It returns the text only and does not decode it; when the reply
// holds several objects the result spans all of them. Returns ok=false if
// no brace pair is present.
func ExtractFirstJSON(text string) (string, bool) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	match := jsonObjectPattern.FindString(cleaned)
	if match == "" {
		return "", false
	}
	return match, true
}
