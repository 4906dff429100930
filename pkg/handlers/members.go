package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lanternhq/lantern/pkg/economy"
)

// RegisterMember creates a member, redeeming an invite code when given.
func (h *ApiHandler) RegisterMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
		InviteCode  string `json:"invite_code"`
	}
	if !decode(w, r, &req) {
		return
	}

	member, err := h.Engine.Register(r.Context(), req.DisplayName, req.InviteCode)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusCreated, member)
}

// GetMember retrieves a member.
func (h *ApiHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.Store.GetMember(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, member)
}

// GetBadges computes the member's earned badges.
func (h *ApiHandler) GetBadges(w http.ResponseWriter, r *http.Request) {
	member, err := h.Store.GetMember(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"member_id": member.ID,
		"badges":    economy.Badges(member.CompletedHelpCount, 0),
	})
}

// ListTransactions returns every ledger entry touching the member.
func (h *ApiHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")
	txs, err := h.Store.ListTransactionsByMember(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, txs)
}

// ListConnections returns the member's trust circle.
func (h *ApiHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.Store.ListConnections(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, conns)
}

// Transfer moves lanterns directly between members.
func (h *ApiHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromID string `json:"from_id"`
		ToID   string `json:"to_id"`
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if !decode(w, r, &req) {
		return
	}

	entry, err := h.Engine.Transfer(r.Context(), req.FromID, req.ToID, req.Amount, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusCreated, entry)
}
