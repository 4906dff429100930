package local

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// CreateHelpRequest creates a pending help request for an active flare.
func (s *Store) CreateHelpRequest(ctx context.Context, req *models.HelpRequest) (*models.HelpRequest, error) {
	if req.FlareID == "" || req.HelperID == "" {
		return nil, fmt.Errorf("%w: flare id and helper id are required", storage.ErrValidation)
	}

	s.mu.Lock()
	flare, ok := s.flares[req.FlareID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("flare %s: %w", req.FlareID, storage.ErrNotFound)
	}
	if flare.Status != models.FlareActive {
		s.mu.Unlock()
		return nil, fmt.Errorf("flare %s in status %s: %w", req.FlareID, flare.Status, storage.ErrFlareNotActive)
	}
	for _, existing := range s.helpRequests {
		if existing.FlareID == req.FlareID && existing.HelperID == req.HelperID {
			s.mu.Unlock()
			return nil, fmt.Errorf("helper %s on flare %s: %w", req.HelperID, req.FlareID, storage.ErrDuplicateOffer)
		}
	}

	r := *req
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.OwnerID = flare.OwnerID
	r.Status = models.HelpPending
	r.CreatedAt = now()
	r.RespondedAt = nil
	s.helpRequests[r.ID] = &r
	out := r
	s.mu.Unlock()

	s.notify(CollectionHelpRequests)
	return &out, nil
}

// GetHelpRequest retrieves a help request by id.
func (s *Store) GetHelpRequest(ctx context.Context, requestID string) (*models.HelpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.helpRequests[requestID]
	if !ok {
		return nil, fmt.Errorf("help request %s: %w", requestID, storage.ErrNotFound)
	}
	out := *r
	return &out, nil
}

// ListHelpRequestsByFlare retrieves all help requests for a flare, oldest
// first.
func (s *Store) ListHelpRequestsByFlare(ctx context.Context, flareID string) ([]models.HelpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := make([]models.HelpRequest, 0)
	for _, r := range s.helpRequests {
		if r.FlareID == flareID {
			requests = append(requests, *r)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.Before(requests[j].CreatedAt) })
	return requests, nil
}

// AcceptHelp marks the help request accepted and the flare accepted in one
// critical section. Competing pending requests stay pending.
func (s *Store) AcceptHelp(ctx context.Context, flareID, requestID string) (*models.HelpRequest, error) {
	s.mu.Lock()
	flare, ok := s.flares[flareID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("flare %s: %w", flareID, storage.ErrNotFound)
	}
	req, ok := s.helpRequests[requestID]
	if !ok || req.FlareID != flareID {
		s.mu.Unlock()
		return nil, fmt.Errorf("help request %s: %w", requestID, storage.ErrNotFound)
	}
	if flare.Status != models.FlareActive {
		s.mu.Unlock()
		return nil, fmt.Errorf("flare %s in status %s: %w", flareID, flare.Status, storage.ErrAlreadyResolved)
	}
	if !req.Status.CanTransitionTo(models.HelpAccepted) {
		s.mu.Unlock()
		return nil, fmt.Errorf("help request %s in status %s: %w", requestID, req.Status, storage.ErrAlreadyResolved)
	}

	ts := now()
	req.Status = models.HelpAccepted
	req.RespondedAt = &ts
	helper := req.HelperID
	flare.Status = models.FlareAccepted
	flare.AcceptedBy = &helper
	flare.UpdatedAt = ts
	flare.Version++
	out := *req
	s.mu.Unlock()

	s.notify(CollectionHelpRequests, CollectionFlares)
	return &out, nil
}

// DenyHelp marks a pending help request denied. The flare is unaffected.
func (s *Store) DenyHelp(ctx context.Context, requestID string) error {
	s.mu.Lock()
	req, ok := s.helpRequests[requestID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("help request %s: %w", requestID, storage.ErrNotFound)
	}
	if !req.Status.CanTransitionTo(models.HelpDenied) {
		s.mu.Unlock()
		return fmt.Errorf("help request %s in status %s: %w", requestID, req.Status, storage.ErrAlreadyResolved)
	}
	ts := now()
	req.Status = models.HelpDenied
	req.RespondedAt = &ts
	s.mu.Unlock()

	s.notify(CollectionHelpRequests)
	return nil
}

// CompleteFlare marks the flare completed and, unless it is free, moves one
// lantern from owner to helper. A single critical section covers the status
// change, the ledger append and both cached balances, so a completed paid
// flare without its transaction is unreachable.
func (s *Store) CompleteFlare(ctx context.Context, flareID, helperID string) (*models.LanternTransaction, error) {
	s.mu.Lock()
	flare, ok := s.flares[flareID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("flare %s: %w", flareID, storage.ErrNotFound)
	}
	if flare.Status != models.FlareAccepted || flare.AcceptedBy == nil || *flare.AcceptedBy != helperID {
		s.mu.Unlock()
		return nil, fmt.Errorf("flare %s in status %s: %w", flareID, flare.Status, storage.ErrNotAccepted)
	}

	var tx *models.LanternTransaction
	ts := now()

	if !flare.IsFree {
		owner, ok := s.members[flare.OwnerID]
		if !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("flare owner %s: %w", flare.OwnerID, storage.ErrNotFound)
		}
		helper, ok := s.members[helperID]
		if !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("helper %s: %w", helperID, storage.ErrNotFound)
		}
		if owner.LanternBalance < 1 {
			s.mu.Unlock()
			return nil, fmt.Errorf("owner %s balance %d: %w", owner.ID, owner.LanternBalance, storage.ErrInsufficientBalance)
		}

		owner.LanternBalance--
		owner.Version++
		helper.LanternBalance++
		helper.Version++
		entry := models.LanternTransaction{
			ID:        uuid.New().String(),
			FromID:    flare.OwnerID,
			ToID:      helperID,
			Amount:    1,
			Reason:    "task completed",
			CreatedAt: ts,
		}
		s.transactions = append(s.transactions, entry)
		tx = &entry
	}

	flare.Status = models.FlareCompleted
	flare.UpdatedAt = ts
	flare.Version++
	s.mu.Unlock()

	if tx != nil {
		s.notify(CollectionFlares, CollectionTransactions, CollectionMembers)
	} else {
		s.notify(CollectionFlares)
	}
	return tx, nil
}
