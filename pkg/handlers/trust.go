package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lanternhq/lantern/pkg/models"
)

// RequestConnection opens a trust connection request between two members.
func (h *ApiHandler) RequestConnection(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectionRequest
	if !decode(w, r, &req) {
		return
	}

	created, err := h.Engine.RequestConnection(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusCreated, created)
}

// AcceptConnection accepts a pending connection request. A fresh connection
// starts at trust level one; an existing one strengthens.
func (h *ApiHandler) AcceptConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"member_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	conn, err := h.Engine.RespondToConnection(r.Context(), chi.URLParam(r, "requestID"), req.MemberID, true)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, conn)
}

// DeclineConnection declines a pending connection request.
func (h *ApiHandler) DeclineConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"member_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	if _, err := h.Engine.RespondToConnection(r.Context(), chi.URLParam(r, "requestID"), req.MemberID, false); err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, map[string]string{"status": "declined"})
}

// RemoveConnection severs a trust connection. The first path member is
// treated as the requester.
func (h *ApiHandler) RemoveConnection(w http.ResponseWriter, r *http.Request) {
	memberA := chi.URLParam(r, "memberA")
	memberB := chi.URLParam(r, "memberB")

	if err := h.Engine.RemoveConnection(r.Context(), memberA, memberB); err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, map[string]string{"status": "removed"})
}

// GenerateInvite mints a single-use invite code. Elders only.
func (h *ApiHandler) GenerateInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"member_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	invite, err := h.Engine.GenerateInvite(r.Context(), req.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusCreated, invite)
}

// RedeemInvite marks an invite code as used by a member.
func (h *ApiHandler) RedeemInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string `json:"code"`
		MemberID string `json:"member_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := h.Store.RedeemInvite(r.Context(), req.Code, req.MemberID); err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, map[string]string{"status": "redeemed"})
}
