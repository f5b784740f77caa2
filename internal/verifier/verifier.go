// Package verifier implements the Verifier stage: it rejects off-pipeline
// traffic by cross-checking the user's transaction history, then triggers
// the Ingress FSM's conversational collection of financing_info for
// legitimate candidates.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pedroporto/refi-pipeline/internal/bus"
	"github.com/pedroporto/refi-pipeline/internal/llm"
	"github.com/pedroporto/refi-pipeline/internal/pipeline"
	"github.com/pedroporto/refi-pipeline/internal/store"
)

// installmentThreshold is the minimum installment_amount that keeps a
// document in the pipeline; at or below it, the document is dropped.
const installmentThreshold = 300.0

// Stage subscribes to interpreted, resolves legitimacy, and triggers the
// Ingress FSM.
type Stage struct {
	store      *store.Gateway
	llm        llm.Client
	ingressURL string
	http       *http.Client
	logger     *slog.Logger
}

// New builds a Stage. ingressURL is the base URL of the Ingress service's
// /api/processar endpoint's host (POST_URL from configuration).
func New(gateway *store.Gateway, llmClient llm.Client, ingressURL string, logger *slog.Logger) *Stage {
	return &Stage{
		store:      gateway,
		llm:        llmClient,
		ingressURL: ingressURL,
		http:       &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Handle implements bus.Handler for the interpreted topic.
func (s *Stage) Handle(ctx context.Context, sourceID int64, raw []byte) error {
	var env pipeline.InterpretedEnvelope
	if !bus.DecodeOrOpaque(s.logger, raw, &env) {
		return nil
	}

	if !schemaComplete(env.AgentAnalysis) {
		s.logger.Info("verifier: incomplete agent_analysis, dropping", "source_id", sourceID)
		return nil
	}

	amount := *env.AgentAnalysis.InstallmentAmount
	if amount <= installmentThreshold {
		s.logger.Info("verifier: installment below threshold, dropping", "source_id", sourceID, "amount", amount)
		s.sendTrigger(ctx, false, 0, nil)
		return nil
	}

	userID, err := s.store.UserIDFromSource(ctx, sourceID)
	if err != nil {
		s.logger.Info("verifier: no user for source_id, dropping", "source_id", sourceID, "error", err)
		s.sendTrigger(ctx, false, 0, nil)
		return nil
	}

	matched, err := s.store.HasMatchingBoletoTransaction(ctx, userID, amount)
	if err != nil {
		return fmt.Errorf("verifier: check matching transaction: %w", err)
	}

	if !matched {
		s.logger.Info("verifier: no matching transaction", "source_id", sourceID, "user_id", userID)
		s.sendTrigger(ctx, false, 0, nil)
		return nil
	}

	s.sendTrigger(ctx, true, sourceID, &env.AgentAnalysis)
	s.logger.Info("verifier: recommendation sent", "source_id", sourceID, "user_id", userID)

	s.processBankAndOffer(ctx, env.AgentAnalysis, userID)
	return nil
}

func schemaComplete(a pipeline.AgentAnalysis) bool {
	return a.Company != nil && a.InstallmentCount != nil && a.CurrentInstallmentNumber != nil && a.InstallmentAmount != nil
}

func (s *Stage) sendTrigger(ctx context.Context, recommend bool, sourceID int64, analysis *pipeline.AgentAnalysis) {
	body := map[string]any{"trigger_recommendation": recommend}
	if recommend {
		body["source_id"] = sourceID
		body["agent_analysis"] = analysis
	}

	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("verifier: encode trigger body failed", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ingressURL+"/api/processar", bytes.NewReader(data))
	if err != nil {
		s.logger.Error("verifier: build trigger request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Warn("verifier: trigger request failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("verifier: trigger non-2xx response", "status", resp.StatusCode)
	}
}

// processBankAndOffer resolves the bank behind the extracted company name
// (asking the LLM to match it against known banks) and seeds the scaffold
// offer row the Matcher will later finalize.
func (s *Stage) processBankAndOffer(ctx context.Context, analysis pipeline.AgentAnalysis, userID int64) {
	companyName := ""
	if analysis.Company != nil {
		companyName = *analysis.Company
	}
	if companyName == "" {
		s.logger.Info("verifier: no company name, skipping bank resolution")
		return
	}

	banks, err := s.store.ListBanks(ctx)
	if err != nil {
		s.logger.Error("verifier: list banks failed", "error", err)
		return
	}

	var bankID int64
	found := false
	if len(banks) > 0 {
		if id, ok := s.matchBankWithLLM(ctx, companyName, banks); ok {
			bankID = id
			found = true
		}
	}

	if !found {
		id, err := s.store.InsertBank(ctx, companyName)
		if err != nil {
			s.logger.Error("verifier: insert bank failed", "error", err, "company", companyName)
			return
		}
		bankID = id
	}

	installmentsCount := 0
	if analysis.InstallmentCount != nil {
		installmentsCount = *analysis.InstallmentCount
	}
	currentInstallment := 0
	if analysis.CurrentInstallmentNumber != nil {
		currentInstallment = *analysis.CurrentInstallmentNumber
	}

	month, year := store.MonthYearFromCurrentInstallment(time.Now(), currentInstallment)

	if err := s.store.UpsertOfferScaffold(ctx, store.UpsertOfferScaffoldParams{
		BankID:            bankID,
		UserID:            userID,
		Month:             month,
		Year:              year,
		InstallmentsCount: installmentsCount,
	}); err != nil {
		s.logger.Error("verifier: upsert offer scaffold failed", "error", err)
	}
}

type bankMatchResult struct {
	NewName bool  `json:"new_name"`
	ID      int64 `json:"id"`
}

const bankMatchSystemPrompt = "You are a banking system assistant. Your job is to match company names to existing banks. " +
	"Return ONLY a valid JSON object, nothing else. No markdown, no explanations."

func (s *Stage) matchBankWithLLM(ctx context.Context, companyName string, banks []store.Bank) (int64, bool) {
	if s.llm == nil {
		return 0, false
	}

	var listing string
	for _, b := range banks {
		listing += fmt.Sprintf("- %s (ID: %d)\n", b.Name, b.ID)
	}

	prompt := fmt.Sprintf(`Company name from analysis: %q

Available banks in our database:
%s
Is this company name one of the banks above? If yes, return the ID. If no, it's a new bank.

Return ONLY this JSON format:
{"new_name": false, "id": 123}  (if it matches)
OR
{"new_name": true}  (if it's a new bank)`, companyName, listing)

	text, err := s.llm.Generate(ctx, prompt, bankMatchSystemPrompt)
	if err != nil {
		s.logger.Warn("verifier: bank match llm call failed", "error", err)
		return 0, false
	}

	jsonText, ok := llm.ExtractFirstJSON(text)
	if !ok {
		return 0, false
	}

	var result bankMatchResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		s.logger.Warn("verifier: bank match json decode failed", "error", err)
		return 0, false
	}
	if result.NewName {
		return 0, false
	}
	return result.ID, true
}
