// Package notifier delivers a composed offer message back to the chat it
// originated from. It is deliberately the simplest stage on the bus: no
// retries, no state, a single HTTP POST per message.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pedroporto/refi-pipeline/internal/bus"
	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

// Stage subscribes to composed and POSTs each message to the Ingress's
// send-message endpoint. source_id doubles as the Telegram chat_id, so no
// separate chat lookup is required.
type Stage struct {
	sendURL string
	http    *http.Client
	logger  *slog.Logger
}

// New builds a Stage posting to sendURL (the Ingress's /api/send_message).
func New(sendURL string, logger *slog.Logger) *Stage {
	return &Stage{
		sendURL: sendURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Handle implements bus.Handler for the composed topic.
func (s *Stage) Handle(ctx context.Context, sourceID int64, raw []byte) error {
	var env pipeline.ComposedEnvelope
	if !bus.DecodeOrOpaque(s.logger, raw, &env) {
		return nil
	}

	if env.SourceID == 0 || env.OfferMessage == "" {
		s.logger.Warn("notifier: invalid message, missing source_id or offer_message", "source_id", sourceID)
		return nil
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: env.SourceID, Text: env.OfferMessage})
	if err != nil {
		return fmt.Errorf("notifier: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Error("notifier: send request failed", "source_id", env.SourceID, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		s.logger.Info("notifier: message delivered", "chat_id", env.SourceID)
	} else {
		s.logger.Error("notifier: send endpoint returned non-200", "chat_id", env.SourceID, "status", resp.StatusCode)
	}
	return nil
}
