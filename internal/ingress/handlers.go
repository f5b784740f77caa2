package ingress

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pedroporto/refi-pipeline/internal/chatgw"
)

// Handlers wires the Actor to the HTTP surface described in the ingress
// design: the Telegram webhook, the Verifier's programmatic trigger and the
// Notifier's send-message endpoint. The health check is mounted separately
// by cmd/ingress.
type Handlers struct {
	actor  *Actor
	chat   *chatgw.Client
	logger *slog.Logger
}

// NewHandlers builds the HTTP handler set for an Actor.
func NewHandlers(actor *Actor, chat *chatgw.Client, logger *slog.Logger) *Handlers {
	return &Handlers{actor: actor, chat: chat, logger: logger}
}

// Register mounts every route on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /telegram-webhook", h.handleTelegramWebhook)
	mux.HandleFunc("POST /api/processar", h.handleProcessar)
	mux.HandleFunc("POST /api/send_message", h.handleSendMessage)
}

// handleTelegramWebhook always answers {success: true}, 200 — the chat
// platform only cares that the webhook acknowledged receipt.
func (h *Handlers) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	var update TelegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("ingress: webhook decode failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	if err := h.actor.HandleWebhookUpdate(r.Context(), &update); err != nil {
		h.logger.Error("ingress: webhook handling failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleProcessar is the Verifier's programmatic trigger into the FSM.
func (h *Handlers) handleProcessar(w http.ResponseWriter, r *http.Request) {
	var req VerifierTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	if req.TriggerRecommendation && req.SourceID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_id is required"})
		return
	}

	if err := h.actor.HandleVerifierTrigger(r.Context(), &req); err != nil {
		h.logger.Error("ingress: verifier trigger failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSendMessage lets the Notifier deliver a composed offer back to its
// originating chat without routing through the FSM (it is not a
// conversation-state transition).
func (h *Handlers) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if req.ChatID == 0 || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chat_id and text are required"})
		return
	}

	h.chat.SendText(r.Context(), req.ChatID, req.Text)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
