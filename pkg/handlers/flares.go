package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lanternhq/lantern/pkg/models"
)

// PostFlare raises a new flare.
func (h *ApiHandler) PostFlare(w http.ResponseWriter, r *http.Request) {
	var flare models.Flare
	if !decode(w, r, &flare) {
		return
	}

	created, err := h.Engine.PostFlare(r.Context(), &flare)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusCreated, created)
}

// ListFlares returns the flares visible to the viewer.
func (h *ApiHandler) ListFlares(w http.ResponseWriter, r *http.Request) {
	viewerID := r.URL.Query().Get("viewer_id")
	flares, err := h.Store.ListFlares(r.Context(), viewerID)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, flares)
}

// CancelFlare withdraws a flare that has not been completed.
func (h *ApiHandler) CancelFlare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"member_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := h.Engine.CancelFlare(r.Context(), chi.URLParam(r, "flareID"), req.MemberID); err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// OfferHelp records a member's offer to help with a flare.
func (h *ApiHandler) OfferHelp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HelperID string `json:"helper_id"`
		Message  string `json:"message"`
	}
	if !decode(w, r, &req) {
		return
	}

	offer, err := h.Engine.OfferHelp(r.Context(), chi.URLParam(r, "flareID"), req.HelperID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusCreated, offer)
}

// ListHelpRequests returns every offer made against a flare.
func (h *ApiHandler) ListHelpRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Store.ListHelpRequestsByFlare(r.Context(), chi.URLParam(r, "flareID"))
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, reqs)
}

// CompleteFlare settles a flare, paying the accepted helper when a reward
// is attached.
func (h *ApiHandler) CompleteFlare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"member_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	entry, err := h.Engine.CompleteFlare(r.Context(), chi.URLParam(r, "flareID"), req.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"status":      "completed",
		"transaction": entry,
	})
}

// AcceptHelp accepts one offer on a flare, leaving rivals pending.
func (h *ApiHandler) AcceptHelp(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	var req struct {
		MemberID string `json:"member_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	offer, err := h.Store.GetHelpRequest(r.Context(), requestID)
	if err != nil {
		writeError(w, err)
		return
	}

	accepted, err := h.Engine.AcceptHelp(r.Context(), offer.FlareID, requestID, req.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, accepted)
}

// DenyHelp declines a pending offer.
func (h *ApiHandler) DenyHelp(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	var req struct {
		MemberID string `json:"member_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	offer, err := h.Store.GetHelpRequest(r.Context(), requestID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Engine.DenyHelp(r.Context(), offer.FlareID, requestID, req.MemberID); err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, map[string]string{"status": "denied"})
}
