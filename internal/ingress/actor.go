// Package ingress hosts the webhook sink and the per-chat conversation
// state machine described in the ingress design: a single actor goroutine
// owns every mutation of conversation state, so events for one source_id
// are always serialized while different source_ids may interleave freely.
package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pedroporto/refi-pipeline/internal/chatgw"
	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

// publisher is the narrow slice of *bus.Publisher the actor depends on,
// accepted as an interface so tests can substitute a fake without standing
// up a broker.
type publisher interface {
	Publish(ctx context.Context, sourceID int64, payload any) error
}

// command is the actor's single inbound message type; exactly one of the
// fields is set.
type command struct {
	webhookUpdate *TelegramUpdate
	verifierTrigger *VerifierTriggerRequest

	// done receives the command's outcome, nil on success. HTTP handlers
	// block on it so they can report the right status code.
	done chan error
}

const helpText = "Envie uma foto ou PDF que eu encaminho para análise. \U0001F4CE"
const closureText = "Tudo bem, fico por aqui. Quando quiser, envie /financiamento de novo."
const busyText = "Finalize o fluxo anterior antes de enviar um novo documento."
const invalidAmountText = "Valor inválido. Envie um número, por exemplo: 50000 ou 50.000,00"

// Actor owns the conversation state map and the callback/in-flight dedup
// sets. It is the sole writer of both; every other component enqueues a
// command instead of touching state directly.
type Actor struct {
	chat     *chatgw.Client
	raw      publisher
	verified publisher

	logger *slog.Logger

	commands chan command

	conversations      map[int64]*conversation
	processedCallbacks map[string]struct{}
	inFlightSourceIDs  map[int64]struct{}
}

// NewActor constructs an Actor. Run must be called to start processing.
func NewActor(chat *chatgw.Client, raw, verified publisher, logger *slog.Logger) *Actor {
	return &Actor{
		chat:               chat,
		raw:                raw,
		verified:           verified,
		logger:             logger,
		commands:           make(chan command, 64),
		conversations:      make(map[int64]*conversation),
		processedCallbacks: make(map[string]struct{}),
		inFlightSourceIDs:  make(map[int64]struct{}),
	}
}

// Run processes commands until ctx is canceled. It must run in its own
// goroutine; this is the one place conversation state is mutated.
func (a *Actor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-a.commands:
			err := a.dispatch(ctx, cmd)
			if cmd.done != nil {
				cmd.done <- err
			}
		}
	}
}

// HandleWebhookUpdate enqueues a Telegram update and blocks until it has
// been fully handled.
func (a *Actor) HandleWebhookUpdate(ctx context.Context, update *TelegramUpdate) error {
	return a.submit(ctx, command{webhookUpdate: update})
}

// HandleVerifierTrigger enqueues the Verifier's programmatic trigger and
// blocks until it has been handled.
func (a *Actor) HandleVerifierTrigger(ctx context.Context, req *VerifierTriggerRequest) error {
	return a.submit(ctx, command{verifierTrigger: req})
}

func (a *Actor) submit(ctx context.Context, cmd command) error {
	cmd.done = make(chan error, 1)
	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) dispatch(ctx context.Context, cmd command) error {
	switch {
	case cmd.webhookUpdate != nil:
		return a.handleWebhookUpdate(ctx, cmd.webhookUpdate)
	case cmd.verifierTrigger != nil:
		return a.handleVerifierTrigger(ctx, cmd.verifierTrigger)
	default:
		return fmt.Errorf("ingress: empty command")
	}
}

func (a *Actor) handleWebhookUpdate(ctx context.Context, u *TelegramUpdate) error {
	if u.CallbackQuery != nil {
		return a.handleCallback(ctx, u.CallbackQuery)
	}
	if u.Message != nil {
		return a.handleMessage(ctx, u.Message)
	}
	return nil
}

func (a *Actor) conversationFor(sourceID int64) *conversation {
	conv, ok := a.conversations[sourceID]
	if !ok {
		conv = &conversation{state: StateIdle}
		a.conversations[sourceID] = conv
	}
	return conv
}

func (a *Actor) handleMessage(ctx context.Context, msg *TelegramMessage) error {
	sourceID := msg.Chat.ID
	conv := a.conversationFor(sourceID)

	switch {
	case len(msg.Photo) > 0:
		return a.handleAttachment(ctx, conv, sourceID, msg.Photo[len(msg.Photo)-1].FileID, pipeline.AttachmentImage)
	case msg.Document != nil:
		return a.handleAttachment(ctx, conv, sourceID, msg.Document.FileID, pipeline.AttachmentDocument)
	case msg.Text == "/financiamento" && conv.state == StateIdle:
		conv.state = StateAwaitYesNo
		a.chat.SendTextWithButtons(ctx, sourceID, "Deseja simular um refinanciamento?", chatgw.Keyboard{
			{Text: "Sim", Data: "sim"},
			{Text: "Não", Data: "nao"},
		})
		return nil
	case conv.state == StateAwaitAmount:
		return a.handleAmountText(ctx, conv, sourceID, msg.Text)
	default:
		a.chat.SendText(ctx, sourceID, helpText)
		return nil
	}
}

func (a *Actor) handleAttachment(ctx context.Context, conv *conversation, sourceID int64, fileID string, kind pipeline.AttachmentType) error {
	if conv.state != StateIdle {
		a.chat.SendText(ctx, sourceID, busyText)
		return nil
	}

	blob, err := a.chat.FetchFileBytes(ctx, fileID)
	if err != nil {
		a.logger.Error("ingress: fetch attachment failed", "source_id", sourceID, "error", err)
		a.chat.SendText(ctx, sourceID, "Erro ao baixar o arquivo, tente novamente.")
		return err
	}

	env := pipeline.RawEnvelope{
		Header: pipeline.Header{
			SourceID:  sourceID,
			Timestamp: nowMillis(),
		},
		AttachmentType: kind,
		AttachmentData: encodeBase64(blob),
	}
	if err := a.raw.Publish(ctx, sourceID, env); err != nil {
		a.logger.Error("ingress: publish raw failed", "source_id", sourceID, "error", err)
		return err
	}

	a.chat.SendText(ctx, sourceID, "✅ Recebido e enviado para análise.")
	return nil
}

func (a *Actor) handleAmountText(ctx context.Context, conv *conversation, sourceID int64, text string) error {
	value, err := parseAmount(text)
	if err != nil {
		a.chat.SendText(ctx, sourceID, invalidAmountText)
		return nil
	}

	env := pipeline.VerifiedEnvelope{
		Header: pipeline.Header{
			SourceID:  sourceID,
			Timestamp: nowMillis(),
		},
		AgentAnalysis: conv.pendingAnalysis,
		FinancingInfo: pipeline.FinancingInfo{
			Type:  conv.awaitingType,
			Value: value,
		},
	}
	if err := a.verified.Publish(ctx, sourceID, env); err != nil {
		a.logger.Error("ingress: publish verified failed", "source_id", sourceID, "error", err)
		return err
	}

	conv.state = StateIdle
	conv.pendingAnalysis = pipeline.AgentAnalysis{}
	a.chat.SendText(ctx, sourceID, "Perfeito, estamos calculando sua proposta.")
	return nil
}

func (a *Actor) handleCallback(ctx context.Context, cb *TelegramCallbackQuery) error {
	sourceID := cb.Message.Chat.ID

	if _, seen := a.processedCallbacks[cb.ID]; seen {
		a.chat.AckCallback(ctx, cb.ID)
		return nil
	}
	if _, busy := a.inFlightSourceIDs[sourceID]; busy {
		a.chat.AckCallback(ctx, cb.ID)
		return nil
	}

	a.processedCallbacks[cb.ID] = struct{}{}
	a.inFlightSourceIDs[sourceID] = struct{}{}
	defer func() {
		delete(a.inFlightSourceIDs, sourceID)
		a.chat.AckCallback(ctx, cb.ID)
	}()

	conv := a.conversationFor(sourceID)
	messageID := cb.Message.MessageID

	switch {
	case conv.state == StateAwaitYesNo && cb.Data == "sim":
		a.chat.ClearButtonsImmediately(ctx, sourceID, messageID)
		conv.state = StateAwaitType
		a.chat.SendTextWithButtons(ctx, sourceID, "Qual o tipo de financiamento?", chatgw.Keyboard{
			{Text: "Automóvel", Data: "automovel"},
			{Text: "Imóvel", Data: "imovel"},
		})
	case conv.state == StateAwaitYesNo && cb.Data == "nao":
		a.chat.ClearButtonsImmediately(ctx, sourceID, messageID)
		conv.state = StateIdle
		a.chat.SendText(ctx, sourceID, closureText)
	case conv.state == StateAwaitType && (cb.Data == "automovel" || cb.Data == "imovel"):
		a.chat.ClearButtonsImmediately(ctx, sourceID, messageID)
		if cb.Data == "automovel" {
			conv.awaitingType = pipeline.FinancingAutomobile
		} else {
			conv.awaitingType = pipeline.FinancingProperty
		}
		conv.state = StateAwaitAmount
		a.chat.SendText(ctx, sourceID, "Qual o valor atual financiado? Envie apenas o número.")
	}

	return nil
}

// handleVerifierTrigger starts or cancels the conversational collection of
// financing_info, per the ingress trigger contract.
func (a *Actor) handleVerifierTrigger(ctx context.Context, req *VerifierTriggerRequest) error {
	if !req.TriggerRecommendation {
		return nil
	}

	conv := a.conversationFor(req.SourceID)
	if conv.state != StateIdle {
		a.logger.Warn("ingress: verifier trigger while conversation busy", "source_id", req.SourceID, "state", conv.state)
		return nil
	}

	conv.pendingAnalysis = req.AgentAnalysis
	conv.state = StateAwaitType
	a.chat.SendTextWithButtons(ctx, req.SourceID,
		"Detectamos um boleto compatível. Qual o tipo de financiamento?", chatgw.Keyboard{
			{Text: "Automóvel", Data: "automovel"},
			{Text: "Imóvel", Data: "imovel"},
		})
	return nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
