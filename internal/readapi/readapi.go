// Package readapi exposes finalized refinancing offers for the
// internal dashboard: a plain JSON listing and a websocket feed that
// pushes each newly finalized offer, found by periodically re-listing the
// finalized offers.
package readapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pedroporto/refi-pipeline/internal/store"
)

// offerView is the JSON shape returned by GET /api/offers and pushed over
// GET /ws/offers.
type offerView struct {
	BankID              int64   `json:"bank_id"`
	BankName            string  `json:"bank_name"`
	UserID              int64   `json:"user_id"`
	AssetValue          float64 `json:"asset_value"`
	MonthlyInterestRate float64 `json:"monthly_interest_rate"`
	InstallmentsCount   int     `json:"installments_count"`
	OfferedInterestRate float64 `json:"offered_interest_rate"`
	Month               int     `json:"month"`
	Year                int     `json:"year"`
}

func toOfferView(f store.FinalizedOffer) offerView {
	return offerView{
		BankID:              f.BankID,
		BankName:            f.BankName,
		UserID:              f.UserID,
		AssetValue:          f.AssetValue,
		MonthlyInterestRate: f.MonthlyInterestRate,
		InstallmentsCount:   f.InstallmentsCount,
		OfferedInterestRate: f.OfferedInterestRate,
		Month:               f.Month,
		Year:                f.Year,
	}
}

// offerKey identifies a finalized offer row for the poller's seen-set; the
// same key the duplicate-suppression rule in store.FinalizeOffer uses.
func offerKey(f store.FinalizedOffer) string {
	return fmt.Sprintf("%d|%d|%g|%g|%d|%g", f.BankID, f.UserID, f.AssetValue, f.MonthlyInterestRate, f.InstallmentsCount, f.OfferedInterestRate)
}

// Handlers serves the Read API's HTTP surface.
type Handlers struct {
	store  *store.Gateway
	hub    *hub
	logger *slog.Logger
}

// New builds Handlers and starts the hub's broadcast loop.
func New(gateway *store.Gateway, logger *slog.Logger) *Handlers {
	h := newHub(logger)
	go h.run()
	return &Handlers{store: gateway, hub: h, logger: logger}
}

// Register mounts every route on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/offers", h.handleListOffers)
	mux.HandleFunc("GET /ws/offers", h.hub.serveWS)
}

func (h *Handlers) handleListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.store.ListFinalizedOffers(r.Context())
	if err != nil {
		h.logger.Error("readapi: list finalized offers failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	views := make([]offerView, 0, len(offers))
	for _, o := range offers {
		views = append(views, toOfferView(o))
	}
	writeJSON(w, http.StatusOK, views)
}

// PollAndBroadcast periodically re-lists finalized offers and pushes any
// row not seen in a prior poll to every connected websocket client. It
// blocks until ctx is canceled.
func (h *Handlers) PollAndBroadcast(ctx context.Context, interval time.Duration) {
	seen := make(map[string]struct{})
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			offers, err := h.store.ListFinalizedOffers(ctx)
			if err != nil {
				h.logger.Error("readapi: poll finalized offers failed", "error", err)
				continue
			}
			for _, o := range offers {
				key := offerKey(o)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				h.hub.broadcastOffer(toOfferView(o))
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
