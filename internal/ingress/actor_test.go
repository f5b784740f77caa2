package ingress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pedroporto/refi-pipeline/internal/chatgw"
	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePublisher is a publisher that never touches the network; it records
// calls and returns whatever err is configured, letting tests exercise both
// the success and failure legs of a publish-gated transition.
type fakePublisher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, sourceID int64, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// newTestActor wires an Actor against an httptest server standing in for
// the chat platform, so SendText/SendTextWithButtons/AckCallback etc. never
// leave the process, and against fake publishers in place of Kafka.
func newTestActor(t *testing.T, raw, verified *fakePublisher) (*Actor, context.Context, context.CancelFunc) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	t.Cleanup(server.Close)

	chat := chatgw.New(server.URL, "test-token", testLogger())
	a := NewActor(chat, raw, verified, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	t.Cleanup(cancel)

	return a, ctx, cancel
}

func update(msg *TelegramMessage, cb *TelegramCallbackQuery) *TelegramUpdate {
	return &TelegramUpdate{Message: msg, CallbackQuery: cb}
}

// TestFSMHappyPath drives the full scenario 1 from the ingress design:
// IDLE -> AWAIT_YESNO -> AWAIT_TYPE -> AWAIT_AMOUNT -> IDLE, all through the
// message/callback entry points, asserting the state after each step.
func TestFSMHappyPath(t *testing.T) {
	raw := &fakePublisher{}
	verified := &fakePublisher{}
	a, ctx, _ := newTestActor(t, raw, verified)

	const chatID = int64(1001)

	if err := a.HandleWebhookUpdate(ctx, update(&TelegramMessage{
		Chat: TelegramChat{ID: chatID}, Text: "/financiamento",
	}, nil)); err != nil {
		t.Fatalf("unexpected error starting flow: %v", err)
	}
	if got := a.conversations[chatID].state; got != StateAwaitYesNo {
		t.Fatalf("after /financiamento: state = %s, want %s", got, StateAwaitYesNo)
	}

	if err := a.HandleWebhookUpdate(ctx, update(nil, &TelegramCallbackQuery{
		ID: "cb-1", Data: "sim", Message: TelegramMessage{Chat: TelegramChat{ID: chatID}},
	})); err != nil {
		t.Fatalf("unexpected error on sim callback: %v", err)
	}
	if got := a.conversations[chatID].state; got != StateAwaitType {
		t.Fatalf("after sim: state = %s, want %s", got, StateAwaitType)
	}

	if err := a.HandleWebhookUpdate(ctx, update(nil, &TelegramCallbackQuery{
		ID: "cb-2", Data: "automovel", Message: TelegramMessage{Chat: TelegramChat{ID: chatID}},
	})); err != nil {
		t.Fatalf("unexpected error on automovel callback: %v", err)
	}
	conv := a.conversations[chatID]
	if conv.state != StateAwaitAmount {
		t.Fatalf("after automovel: state = %s, want %s", conv.state, StateAwaitAmount)
	}
	if conv.awaitingType != pipeline.FinancingAutomobile {
		t.Fatalf("awaitingType = %s, want %s", conv.awaitingType, pipeline.FinancingAutomobile)
	}

	if err := a.HandleWebhookUpdate(ctx, update(&TelegramMessage{
		Chat: TelegramChat{ID: chatID}, Text: "50000",
	}, nil)); err != nil {
		t.Fatalf("unexpected error on amount message: %v", err)
	}
	if got := a.conversations[chatID].state; got != StateIdle {
		t.Fatalf("after amount: state = %s, want %s", got, StateIdle)
	}
	if verified.callCount() != 1 {
		t.Fatalf("verified publish calls = %d, want 1", verified.callCount())
	}
}

// TestFSMDecline covers scenario 2: AWAIT_YESNO -> IDLE on "nao", with no
// publish on either bus.
func TestFSMDecline(t *testing.T) {
	raw := &fakePublisher{}
	verified := &fakePublisher{}
	a, ctx, _ := newTestActor(t, raw, verified)

	const chatID = int64(2002)
	a.conversations[chatID] = &conversation{state: StateAwaitYesNo}

	if err := a.HandleWebhookUpdate(ctx, update(nil, &TelegramCallbackQuery{
		ID: "cb-decline", Data: "nao", Message: TelegramMessage{Chat: TelegramChat{ID: chatID}},
	})); err != nil {
		t.Fatalf("unexpected error on nao callback: %v", err)
	}
	if got := a.conversations[chatID].state; got != StateIdle {
		t.Fatalf("after nao: state = %s, want %s", got, StateIdle)
	}
	if raw.callCount() != 0 || verified.callCount() != 0 {
		t.Fatalf("decline should not publish to either bus: raw=%d verified=%d", raw.callCount(), verified.callCount())
	}
}

// TestFSMVerifierTriggerEntry covers scenario 3: the Verifier's programmatic
// trigger enters the FSM directly at AWAIT_TYPE, bypassing AWAIT_YESNO, and
// the rest of the flow still reaches IDLE.
func TestFSMVerifierTriggerEntry(t *testing.T) {
	raw := &fakePublisher{}
	verified := &fakePublisher{}
	a, ctx, _ := newTestActor(t, raw, verified)

	const chatID = int64(3003)

	if err := a.HandleVerifierTrigger(ctx, &VerifierTriggerRequest{
		SourceID:              chatID,
		TriggerRecommendation: true,
		AgentAnalysis:         pipeline.AgentAnalysis{Company: strPtr("Itaú")},
	}); err != nil {
		t.Fatalf("unexpected error on verifier trigger: %v", err)
	}
	conv := a.conversations[chatID]
	if conv.state != StateAwaitType {
		t.Fatalf("after verifier trigger: state = %s, want %s", conv.state, StateAwaitType)
	}
	if conv.pendingAnalysis.Company == nil || *conv.pendingAnalysis.Company != "Itaú" {
		t.Fatalf("pendingAnalysis not carried from trigger: %+v", conv.pendingAnalysis)
	}

	if err := a.HandleWebhookUpdate(ctx, update(nil, &TelegramCallbackQuery{
		ID: "cb-3", Data: "imovel", Message: TelegramMessage{Chat: TelegramChat{ID: chatID}},
	})); err != nil {
		t.Fatalf("unexpected error on imovel callback: %v", err)
	}
	if got := a.conversations[chatID].state; got != StateAwaitAmount {
		t.Fatalf("after imovel: state = %s, want %s", got, StateAwaitAmount)
	}

	if err := a.HandleWebhookUpdate(ctx, update(&TelegramMessage{
		Chat: TelegramChat{ID: chatID}, Text: "300000",
	}, nil)); err != nil {
		t.Fatalf("unexpected error on amount message: %v", err)
	}
	if got := a.conversations[chatID].state; got != StateIdle {
		t.Fatalf("after amount: state = %s, want %s", got, StateIdle)
	}

	// A trigger while the conversation is already busy must be a no-op.
	a.conversations[chatID].state = StateAwaitYesNo
	if err := a.HandleVerifierTrigger(ctx, &VerifierTriggerRequest{
		SourceID: chatID, TriggerRecommendation: true,
	}); err != nil {
		t.Fatalf("unexpected error on busy verifier trigger: %v", err)
	}
	if got := a.conversations[chatID].state; got != StateAwaitYesNo {
		t.Fatalf("busy verifier trigger must not change state: got %s", got)
	}
}

// TestFSMCallbackDedup covers scenario 4: a duplicate callback ID (the
// platform redelivering a tap) must not be processed twice.
func TestFSMCallbackDedup(t *testing.T) {
	raw := &fakePublisher{}
	verified := &fakePublisher{}
	a, ctx, _ := newTestActor(t, raw, verified)

	const chatID = int64(4004)
	a.conversations[chatID] = &conversation{state: StateAwaitYesNo}

	cb := &TelegramCallbackQuery{ID: "cb-dup", Data: "sim", Message: TelegramMessage{Chat: TelegramChat{ID: chatID}}}

	if err := a.HandleWebhookUpdate(ctx, update(nil, cb)); err != nil {
		t.Fatalf("unexpected error on first delivery: %v", err)
	}
	if got := a.conversations[chatID].state; got != StateAwaitType {
		t.Fatalf("after first delivery: state = %s, want %s", got, StateAwaitType)
	}

	// Redeliver the identical callback; the dedup set must stop it from
	// running the transition a second time.
	a.conversations[chatID].state = StateAwaitType
	if err := a.HandleWebhookUpdate(ctx, update(nil, cb)); err != nil {
		t.Fatalf("unexpected error on redelivery: %v", err)
	}
	if got := a.conversations[chatID].state; got != StateAwaitType {
		t.Fatalf("redelivered callback changed state to %s, want unchanged %s", got, StateAwaitType)
	}
}

// TestAmountPublishFailureDoesNotAdvanceState asserts the invariant that
// AWAIT_AMOUNT only resets to IDLE once the verified envelope is actually
// published; a transport failure must leave the conversation retryable
// instead of silently dropping it to IDLE.
func TestAmountPublishFailureDoesNotAdvanceState(t *testing.T) {
	raw := &fakePublisher{}
	verified := &fakePublisher{err: errors.New("boom")}
	a, ctx, _ := newTestActor(t, raw, verified)

	const chatID = int64(5005)
	a.conversations[chatID] = &conversation{state: StateAwaitAmount, awaitingType: pipeline.FinancingAutomobile}

	if err := a.HandleWebhookUpdate(ctx, update(&TelegramMessage{
		Chat: TelegramChat{ID: chatID}, Text: "50000",
	}, nil)); err == nil {
		t.Fatal("expected error to propagate when publish fails")
	}
	if got := a.conversations[chatID].state; got != StateAwaitAmount {
		t.Fatalf("state advanced to %s despite publish failure, want unchanged %s", got, StateAwaitAmount)
	}
}

// TestAmountInvalidTextKeepsState asserts an unparseable amount re-prompts
// without advancing or resetting the FSM.
func TestAmountInvalidTextKeepsState(t *testing.T) {
	raw := &fakePublisher{}
	verified := &fakePublisher{}
	a, ctx, _ := newTestActor(t, raw, verified)

	const chatID = int64(6006)
	a.conversations[chatID] = &conversation{state: StateAwaitAmount, awaitingType: pipeline.FinancingProperty}

	if err := a.HandleWebhookUpdate(ctx, update(&TelegramMessage{
		Chat: TelegramChat{ID: chatID}, Text: "not a number",
	}, nil)); err != nil {
		t.Fatalf("unexpected error on invalid amount: %v", err)
	}
	if got := a.conversations[chatID].state; got != StateAwaitAmount {
		t.Fatalf("invalid amount changed state to %s, want unchanged %s", got, StateAwaitAmount)
	}
	if verified.callCount() != 0 {
		t.Fatalf("invalid amount must not publish, got %d calls", verified.callCount())
	}
}

func strPtr(s string) *string { return &s }
