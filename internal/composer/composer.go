// Package composer turns a matched envelope into the chat message the
// Notifier delivers: an LLM-written offer pitch when the Matcher found one,
// a polite no-offer message otherwise, falling back to a deterministic
// template whenever the LLM call fails or returns something unusable.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pedroporto/refi-pipeline/internal/bus"
	"github.com/pedroporto/refi-pipeline/internal/llm"
	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

const systemPrompt = "Você é um copywriter bancário do banco BTG pactual. Escreva mensagens curtas, claras, amigáveis e " +
	"profissionais, em português do Brasil. Evite jargões, use frases curtas. Não inclua markdown, emojis ou listas. " +
	"Você está ajudando clientes a refinanciar ou portar financiamentos vindos de outras instituições. " +
	"Responda sempre apenas com o texto final."

const noOfferMaxChars = 450
const yesOfferMaxChars = 550

// maxComposedChars is the absolute hard cap on the published offer_message,
// applied regardless of which template prompted it — the templates ask the
// LLM for 450/550 chars, but nothing stops a model from ignoring that.
const maxComposedChars = 600

const noOfferTemplate = `Dados do cliente:
- Banco/empresa externa: %s
- Parcela atual: %s de %s
- Valor da parcela: %s

Escreva uma mensagem curta avisando que, por enquanto, não há oferta de refinanciamento/portabilidade disponível.
Mostre-se à disposição para avisar quando surgir oportunidade. Máx. 450 caracteres.`

const yesOfferTemplate = `Dados do cliente:
- Banco/empresa externa: %s
- Parcela atual: %s de %s
- Valor da parcela: %s

Oferta detectada:
- Saldo a financiar (atual): %s
- Taxa mensal atual: %s
- Nova taxa mensal: %s
- Novo valor financiado: %s
- Economia potencial estimada: %s

Escreva uma mensagem curta convidando o cliente a avançar com a proposta.
Mencione com naturalidade a nova taxa e a economia potencial (sem exagero), e ofereça ajuda para simular/contratar.
Máx. 550 caracteres.`

// Stage subscribes to matched and publishes composed. llm may be nil, in
// which case every message is built from the deterministic fallback.
type Stage struct {
	llm       llm.Client
	publisher *bus.Publisher
	logger    *slog.Logger
}

// New builds a Stage.
func New(llmClient llm.Client, publisher *bus.Publisher, logger *slog.Logger) *Stage {
	return &Stage{llm: llmClient, publisher: publisher, logger: logger}
}

// Handle implements bus.Handler for the matched topic.
func (s *Stage) Handle(ctx context.Context, sourceID int64, raw []byte) error {
	var env pipeline.MatchedEnvelope
	if !bus.DecodeOrOpaque(s.logger, raw, &env) {
		return nil
	}

	text := s.compose(ctx, env)

	out := pipeline.ComposedEnvelope{
		SourceID:     sourceID,
		OfferMessage: text,
		Timestamp:    env.Header.Timestamp,
	}
	if err := s.publisher.Publish(ctx, sourceID, out); err != nil {
		return fmt.Errorf("composer: publish composed: %w", err)
	}
	return nil
}

func (s *Stage) compose(ctx context.Context, env pipeline.MatchedEnvelope) string {
	text, err := s.composeWithLLM(ctx, env)
	if err != nil || strings.TrimSpace(text) == "" || strings.TrimSpace(text) == "{}" {
		if err != nil {
			s.logger.Warn("composer: llm compose failed, using fallback", "error", err)
		}
		return truncateRunes(fallbackMessage(env), maxComposedChars)
	}
	return truncateRunes(strings.TrimSpace(text), maxComposedChars)
}

// truncateRunes clips s to at most maxChars runes, leaving multi-byte
// characters intact.
func truncateRunes(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}

func (s *Stage) composeWithLLM(ctx context.Context, env pipeline.MatchedEnvelope) (string, error) {
	if s.llm == nil {
		return "", fmt.Errorf("composer: no llm client configured")
	}

	aa := env.AgentAnalysis
	company := derefStr(aa.Company)
	cur := intOrDash(aa.CurrentInstallmentNumber)
	tot := intOrDash(aa.InstallmentCount)
	amt := fmtBRL(aa.InstallmentAmount)

	var prompt string
	if env.OfferAvailable && env.EligibleOffer != nil {
		eo := env.EligibleOffer
		prompt = fmt.Sprintf(yesOfferTemplate,
			company, cur, tot, amt,
			fmtBRL(&eo.RemainingFinanceAmount),
			fmtPct(&eo.CurrentFinanceMonthTax),
			fmtPct(&eo.NewFinanceMonthTax),
			fmtBRL(&eo.NewFinancingAmount),
			fmtBRL(&eo.PotentialSavings),
		)
	} else {
		prompt = fmt.Sprintf(noOfferTemplate, company, cur, tot, amt)
	}

	return s.llm.Generate(ctx, prompt, systemPrompt)
}

// fallbackMessage is the deterministic three-sentence message used whenever
// the LLM call is unavailable or fails.
func fallbackMessage(env pipeline.MatchedEnvelope) string {
	aa := env.AgentAnalysis
	company := derefStr(aa.Company)
	if company == "-" {
		company = "seu banco"
	}

	var baseInfo []string
	if aa.CurrentInstallmentNumber != nil && aa.InstallmentCount != nil {
		baseInfo = append(baseInfo, fmt.Sprintf("parcela %d de %d", *aa.CurrentInstallmentNumber, *aa.InstallmentCount))
	}
	if aa.InstallmentAmount != nil {
		baseInfo = append(baseInfo, "valor de "+fmtBRL(aa.InstallmentAmount))
	}

	info := ""
	if len(baseInfo) > 0 {
		info = " (" + strings.Join(baseInfo, ", ") + ")"
	}

	if env.OfferAvailable && env.EligibleOffer != nil {
		eo := env.EligibleOffer
		p1 := fmt.Sprintf("Identificamos uma condição melhor para seu financiamento no %s%s.", company, info)
		p2 := fmt.Sprintf("Nova taxa a.m.: %s. Economia estimada: %s.", fmtPct(&eo.NewFinanceMonthTax), fmtBRL(&eo.PotentialSavings))
		p3 := "Podemos avançar com a simulação e contratação agora mesmo. Posso te ajudar?"
		return strings.Join([]string{p1, p2, p3}, " ")
	}

	return fmt.Sprintf("Analisamos seu financiamento no %s%s e, por enquanto, não há uma oferta melhor disponível. "+
		"Fico de olho e te aviso assim que surgir uma oportunidade. Se quiser, posso revisar seus dados ou refazer a simulação.", company, info)
}

func derefStr(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
