package ingress

import "github.com/pedroporto/refi-pipeline/internal/pipeline"

// State is a conversation's position in the FSM described in the
// ingress design: IDLE -> AWAIT_YESNO -> AWAIT_TYPE -> AWAIT_AMOUNT -> IDLE.
type State string

const (
	StateIdle        State = "IDLE"
	StateAwaitYesNo  State = "AWAIT_YESNO"
	StateAwaitType   State = "AWAIT_TYPE"
	StateAwaitAmount State = "AWAIT_AMOUNT"
)

// conversation is the per-source_id state the actor owns exclusively.
type conversation struct {
	state State

	// awaitingType is set while in StateAwaitAmount to remember which
	// financing type the user picked.
	awaitingType pipeline.FinancingType

	// pendingAnalysis is the agent_analysis captured when the Verifier's
	// trigger started the flow; carried through to the verified envelope.
	pendingAnalysis pipeline.AgentAnalysis

	// lastMessageID is the most recent message this chat sent with an
	// inline keyboard attached, so a later event can clear it.
	lastMessageID int64
}

// TelegramUpdate is the subset of the chat platform's webhook payload the
// Ingress FSM understands.
type TelegramUpdate struct {
	Message       *TelegramMessage       `json:"message"`
	CallbackQuery *TelegramCallbackQuery `json:"callback_query"`
}

type TelegramMessage struct {
	MessageID int64          `json:"message_id"`
	Chat      TelegramChat   `json:"chat"`
	Text      string         `json:"text"`
	Photo     []TelegramFile `json:"photo"`
	Document  *TelegramFile  `json:"document"`
}

type TelegramChat struct {
	ID int64 `json:"id"`
}

type TelegramFile struct {
	FileID string `json:"file_id"`
}

type TelegramCallbackQuery struct {
	ID      string          `json:"id"`
	Data    string          `json:"data"`
	Message TelegramMessage `json:"message"`
}

// VerifierTriggerRequest is the body the Verifier POSTs to /api/processar.
type VerifierTriggerRequest struct {
	SourceID              int64                  `json:"source_id"`
	AgentAnalysis         pipeline.AgentAnalysis  `json:"agent_analysis"`
	TriggerRecommendation bool                   `json:"trigger_recommendation"`
}

// SendMessageRequest is the body accepted by /api/send_message.
type SendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}
