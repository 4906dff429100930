package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lanternhq/lantern/pkg/models"
)

// PostAnnouncement publishes a community announcement and schedules its
// delivery to every member. Elders only.
func (h *ApiHandler) PostAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		models.Announcement
		MemberID string `json:"member_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	created, err := h.Engine.PostAnnouncement(r.Context(), &req.Announcement, req.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusCreated, created)
}

// ClaimGift claims the lantern gift attached to an announcement. Each
// recipient can claim at most once.
func (h *ApiHandler) ClaimGift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"member_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	entry, err := h.Engine.ClaimGift(r.Context(), chi.URLParam(r, "announcementID"), req.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, entry)
}
