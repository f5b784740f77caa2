// Package enricher implements the Enricher stage: it joins a verified loan
// descriptor with the user's profile, account, transaction history and
// investments, zero-filling a missing account and dropping the message
// entirely when the user itself cannot be resolved.
package enricher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pedroporto/refi-pipeline/internal/bus"
	"github.com/pedroporto/refi-pipeline/internal/pipeline"
	"github.com/pedroporto/refi-pipeline/internal/store"
)

// Stage wires verified -> enriched.
type Stage struct {
	store     *store.Gateway
	publisher *bus.Publisher
	logger    *slog.Logger
}

// New builds a Stage.
func New(gateway *store.Gateway, publisher *bus.Publisher, logger *slog.Logger) *Stage {
	return &Stage{store: gateway, publisher: publisher, logger: logger}
}

// Handle implements bus.Handler for the verified topic.
func (s *Stage) Handle(ctx context.Context, sourceID int64, raw []byte) error {
	var env pipeline.VerifiedEnvelope
	if !bus.DecodeOrOpaque(s.logger, raw, &env) {
		return nil
	}

	if env.FinancingInfo.Value <= 0 {
		s.logger.Info("enricher: missing financing_info, dropping", "source_id", sourceID)
		return nil
	}

	userID, err := s.store.UserIDFromSource(ctx, sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Info("enricher: user not found, dropping", "source_id", sourceID)
			return nil
		}
		return fmt.Errorf("enricher: resolve user: %w", err)
	}

	metadata, err := s.store.UserMetadataRow(ctx, userID)
	if err != nil {
		return fmt.Errorf("enricher: fetch user metadata: %w", err)
	}

	account, err := s.store.AccountRow(ctx, userID)
	if err != nil {
		return fmt.Errorf("enricher: fetch account: %w", err)
	}

	transactions, err := s.store.TransactionHistory(ctx, userID)
	if err != nil {
		return fmt.Errorf("enricher: fetch transactions: %w", err)
	}

	investments, err := s.store.InvestmentHistory(ctx, userID)
	if err != nil {
		return fmt.Errorf("enricher: fetch investments: %w", err)
	}

	out := pipeline.EnrichedEnvelope{
		Header:        env.Header,
		AgentAnalysis: env.AgentAnalysis,
		FinancingInfo: env.FinancingInfo,
		UserData: pipeline.UserData{
			UserMetadata: metadata,
			Account:      account,
			Transactions: transactions,
			Investments:  investments,
		},
	}
	if err := s.publisher.Publish(ctx, sourceID, out); err != nil {
		return fmt.Errorf("enricher: publish enriched: %w", err)
	}
	return nil
}
