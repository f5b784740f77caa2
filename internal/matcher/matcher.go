package matcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pedroporto/refi-pipeline/internal/bus"
	"github.com/pedroporto/refi-pipeline/internal/pipeline"
	"github.com/pedroporto/refi-pipeline/internal/store"
)

// Stage subscribes to enriched, resolves the current rate, finds a cheaper
// catalog product if one exists, and publishes matched.
type Stage struct {
	store     *store.Gateway
	publisher *bus.Publisher
	logger    *slog.Logger
}

// New builds a Stage.
func New(gateway *store.Gateway, publisher *bus.Publisher, logger *slog.Logger) *Stage {
	return &Stage{store: gateway, publisher: publisher, logger: logger}
}

// Handle implements bus.Handler for the enriched topic.
func (s *Stage) Handle(ctx context.Context, sourceID int64, raw []byte) error {
	var env pipeline.EnrichedEnvelope
	if !bus.DecodeOrOpaque(s.logger, raw, &env) {
		return nil
	}

	if env.AgentAnalysis.InstallmentCount == nil || env.AgentAnalysis.CurrentInstallmentNumber == nil || env.AgentAnalysis.InstallmentAmount == nil {
		s.logger.Info("matcher: missing required field, dropping", "source_id", sourceID)
		return nil
	}

	installmentCount := *env.AgentAnalysis.InstallmentCount
	currentInstallment := *env.AgentAnalysis.CurrentInstallmentNumber
	installmentAmount := *env.AgentAnalysis.InstallmentAmount
	totalValue := env.FinancingInfo.Value
	remainingInstallments := installmentCount - currentInstallment + 1

	var currentRatePercent, remainingBalance float64
	var rateOK bool

	switch env.FinancingInfo.Type {
	case pipeline.FinancingProperty:
		currentRatePercent, rateOK = sacMonthlyRatePercent(totalValue, installmentCount, currentInstallment, installmentAmount)
		remainingBalance = sacRemainingBalance(totalValue, installmentCount, currentInstallment)
	case pipeline.FinancingAutomobile:
		currentRatePercent, rateOK = priceMonthlyRatePercent(totalValue, installmentCount, installmentAmount)
		remainingBalance = priceRemainingBalance(installmentAmount, currentRatePercent/100, remainingInstallments)
	default:
		s.logger.Info("matcher: unknown financing type, dropping", "source_id", sourceID, "type", env.FinancingInfo.Type)
		return nil
	}

	if !rateOK {
		s.logger.Info("matcher: rate inversion failed, dropping", "source_id", sourceID)
		return nil
	}

	catalog, err := s.store.BestCatalogOffer(ctx, string(env.FinancingInfo.Type), currentRatePercent, remainingBalance)
	if err != nil {
		return fmt.Errorf("matcher: catalog lookup: %w", err)
	}

	out := pipeline.MatchedEnvelope{
		Header:        env.Header,
		AgentAnalysis: env.AgentAnalysis,
		FinancingInfo: env.FinancingInfo,
	}

	if catalog == nil {
		out.OfferAvailable = false
		if err := s.publisher.Publish(ctx, sourceID, out); err != nil {
			return fmt.Errorf("matcher: publish matched: %w", err)
		}
		return nil
	}

	newRatePercent := catalog.TaxMes * 100
	potentialSavings := remainingBalance * (currentRatePercent-newRatePercent) / 100 * float64(remainingInstallments)
	if potentialSavings < 0 {
		potentialSavings = 0
	}

	out.OfferAvailable = true
	out.EligibleOffer = &pipeline.EligibleOffer{
		RemainingFinanceAmount: remainingBalance,
		CurrentFinanceMonthTax: currentRatePercent,
		NewFinanceMonthTax:     newRatePercent,
		NewFinancingAmount:     catalog.MaxAmount,
		PotentialSavings:       potentialSavings,
	}

	if err := s.publisher.Publish(ctx, sourceID, out); err != nil {
		return fmt.Errorf("matcher: publish matched: %w", err)
	}

	userID, err := s.store.UserIDFromSource(ctx, sourceID)
	if err != nil {
		s.logger.Warn("matcher: could not resolve user to finalize offer", "source_id", sourceID, "error", err)
		return nil
	}

	bankID, err := s.store.BankIDForScaffold(ctx, userID, installmentCount)
	if err != nil {
		s.logger.Warn("matcher: no scaffold offer row to finalize", "source_id", sourceID, "user_id", userID, "error", err)
		return nil
	}

	if err := s.store.FinalizeOffer(ctx, store.FinalizeOfferParams{
		BankID:              bankID,
		UserID:              userID,
		InstallmentsCount:   installmentCount,
		AssetValue:          remainingBalance,
		MonthlyInterestRate: currentRatePercent,
		OfferedInterestRate: newRatePercent,
	}); err != nil {
		s.logger.Error("matcher: finalize offer failed", "error", err)
	}

	return nil
}
