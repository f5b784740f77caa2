// Package interpreter implements the Interpreter stage: a hybrid
// extractor with a deterministic regex core and an optional LLM assist
// that may only override company and installment_amount, never the
// installment pair.
package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pedroporto/refi-pipeline/internal/bus"
	"github.com/pedroporto/refi-pipeline/internal/llm"
	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

const systemPrompt = "Você extrai dados de boletos/contratos. Responda apenas JSON válido."

const userPromptTemplate = `Você é um extrator de dados de documentos bancários.

Abaixo está uma lista compacta de campos OCR: cada item tem "label" (título) e "value" (valor).

Extraia APENAS os campos:
{
  "company": string|null,
  "installment_amount": float|null
}

Regras:
- "installment_amount" é o valor da parcela (ex.: "630,62" -> 630.62);
  normalmente vem de labels como "VALOR DO DOCUMENTO", "DOCUMENTO VALOR DO", "VALOR PARCELA".
- Converta vírgula decimal brasileira para ponto.
- "company" é o nome do banco/financeira (ex.: "Banco Votorantim").
- Não invente valores; se não tiver, use null.
- Responda APENAS o JSON pedido, sem texto extra.

Campos OCR:
%s
`

type reducedField struct {
	Label *string `json:"label"`
	Value string  `json:"value"`
}

type llmAssist struct {
	Company           *string  `json:"company"`
	InstallmentAmount *float64 `json:"installment_amount"`
}

// Stage wires parsed -> interpreted.
type Stage struct {
	llm       llm.Client
	publisher *bus.Publisher
	logger    *slog.Logger
}

// New builds a Stage. llmClient may be nil to skip the LLM assist entirely
// (the deterministic core still produces a complete result).
func New(llmClient llm.Client, publisher *bus.Publisher, logger *slog.Logger) *Stage {
	return &Stage{llm: llmClient, publisher: publisher, logger: logger}
}

// Handle implements bus.Handler for the parsed topic.
func (s *Stage) Handle(ctx context.Context, sourceID int64, raw []byte) error {
	var env pipeline.ParsedEnvelope
	if !bus.DecodeOrOpaque(s.logger, raw, &env) {
		return nil
	}

	company, companyOK := findCompany(env.AttachmentParsed)
	amount, amountOK := findAmount(env.AttachmentParsed)
	current, total := findInstallments(env.AttachmentParsed)

	analysis := pipeline.AgentAnalysis{
		InstallmentCount:         total,
		CurrentInstallmentNumber: current,
	}
	if companyOK {
		analysis.Company = &company
	}
	if amountOK {
		analysis.InstallmentAmount = &amount
	}

	if assisted := s.tryLLMAssist(ctx, env); assisted != nil {
		if assisted.Company != nil {
			analysis.Company = assisted.Company
		}
		if assisted.InstallmentAmount != nil {
			analysis.InstallmentAmount = assisted.InstallmentAmount
		}
	}

	out := pipeline.InterpretedEnvelope{
		Header:        env.Header,
		AgentAnalysis: analysis,
	}
	if err := s.publisher.Publish(ctx, sourceID, out); err != nil {
		return fmt.Errorf("interpreter: publish interpreted: %w", err)
	}
	return nil
}

// tryLLMAssist asks the LLM Gateway for company/installment_amount only.
// Any failure (disabled client, timeout, bad JSON) falls back to nil,
// leaving the deterministic result untouched.
func (s *Stage) tryLLMAssist(ctx context.Context, env pipeline.ParsedEnvelope) *llmAssist {
	if s.llm == nil {
		return nil
	}

	reduced := reduceFields(env.AttachmentParsed)
	payload, err := json.MarshalIndent(reduced, "", "  ")
	if err != nil {
		s.logger.Warn("interpreter: encode reduced fields failed", "error", err)
		return nil
	}

	text, err := s.llm.Generate(ctx, fmt.Sprintf(userPromptTemplate, string(payload)), systemPrompt)
	if err != nil {
		s.logger.Warn("interpreter: llm assist failed, using deterministic result", "error", err)
		return nil
	}

	jsonText, ok := llm.ExtractFirstJSON(text)
	if !ok {
		return nil
	}

	var assist llmAssist
	if err := json.Unmarshal([]byte(jsonText), &assist); err != nil {
		s.logger.Warn("interpreter: llm assist json decode failed", "error", err)
		return nil
	}
	return &assist
}

func reduceFields(fields []pipeline.OCRField) []reducedField {
	var out []reducedField
	for _, f := range fields {
		if f.ValueText == nil || *f.ValueText == "" {
			continue
		}
		var label *string
		if f.LabelText != nil {
			normalized := strings.Join(strings.Fields(*f.LabelText), " ")
			label = &normalized
		}
		value := strings.Join(strings.Fields(*f.ValueText), " ")
		out = append(out, reducedField{Label: label, Value: value})
	}
	return out
}
