// Package handlers exposes the exchange engine over HTTP. Handlers stay
// thin: decode, call the engine or store, map the error, encode.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lanternhq/lantern/pkg/exchange"
	"github.com/lanternhq/lantern/pkg/storage"
)

// ApiHandler holds the HTTP layer's dependencies.
type ApiHandler struct {
	Engine *exchange.Engine
	Store  storage.ApiStore
}

// NewApiHandler creates a new ApiHandler.
func NewApiHandler(engine *exchange.Engine, store storage.ApiStore) *ApiHandler {
	return &ApiHandler{Engine: engine, Store: store}
}

// Routes mounts every endpoint on a fresh router.
func (h *ApiHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", h.Healthz)

	r.Post("/members", h.RegisterMember)
	r.Get("/members/{memberID}", h.GetMember)
	r.Get("/members/{memberID}/badges", h.GetBadges)
	r.Get("/members/{memberID}/transactions", h.ListTransactions)
	r.Get("/members/{memberID}/connections", h.ListConnections)

	r.Post("/transfers", h.Transfer)

	r.Post("/flares", h.PostFlare)
	r.Get("/flares", h.ListFlares)
	r.Post("/flares/{flareID}/cancel", h.CancelFlare)
	r.Post("/flares/{flareID}/help", h.OfferHelp)
	r.Get("/flares/{flareID}/help-requests", h.ListHelpRequests)
	r.Post("/flares/{flareID}/complete", h.CompleteFlare)

	r.Post("/help-requests/{requestID}/accept", h.AcceptHelp)
	r.Post("/help-requests/{requestID}/deny", h.DenyHelp)

	r.Post("/connections/requests", h.RequestConnection)
	r.Post("/connections/requests/{requestID}/accept", h.AcceptConnection)
	r.Post("/connections/requests/{requestID}/decline", h.DeclineConnection)
	r.Delete("/connections/{memberA}/{memberB}", h.RemoveConnection)

	r.Post("/invites", h.GenerateInvite)
	r.Post("/invites/redeem", h.RedeemInvite)

	r.Post("/announcements", h.PostAnnouncement)
	r.Post("/announcements/{announcementID}/claim", h.ClaimGift)

	return r
}

// Healthz reports liveness.
func (h *ApiHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrForbidden), errors.Is(err, storage.ErrNotElder):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, storage.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, storage.ErrDuplicateOffer),
		errors.Is(err, storage.ErrFlareNotActive),
		errors.Is(err, storage.ErrAlreadyResolved),
		errors.Is(err, storage.ErrNotAccepted),
		errors.Is(err, storage.ErrDuplicateRequest),
		errors.Is(err, storage.ErrAlreadyClaimed),
		errors.Is(err, storage.ErrInviteUsed),
		errors.Is(err, storage.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
