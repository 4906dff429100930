package local

import (
	"context"
	"fmt"

	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// CreateInvite stores a new unused invite code.
func (s *Store) CreateInvite(ctx context.Context, invite *models.InviteCode) (*models.InviteCode, error) {
	if invite.Code == "" || invite.GeneratedBy == "" {
		return nil, fmt.Errorf("%w: invite code and generator are required", storage.ErrValidation)
	}

	s.mu.Lock()
	if _, exists := s.invites[invite.Code]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: invite code %s already exists", storage.ErrConflict, invite.Code)
	}

	inv := *invite
	inv.UsedBy = nil
	inv.UsedAt = nil
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now()
	}
	s.invites[inv.Code] = &inv
	out := inv
	s.mu.Unlock()

	s.notify(CollectionInviteCodes)
	return &out, nil
}

// GetInvite retrieves an invite code.
func (s *Store) GetInvite(ctx context.Context, code string) (*models.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invites[code]
	if !ok {
		return nil, fmt.Errorf("invite %s: %w", code, storage.ErrNotFound)
	}
	out := *inv
	return &out, nil
}

// RedeemInvite marks the code used by the member. Single-use.
func (s *Store) RedeemInvite(ctx context.Context, code, memberID string) error {
	s.mu.Lock()
	inv, ok := s.invites[code]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("invite %s: %w", code, storage.ErrNotFound)
	}
	if inv.UsedBy != nil {
		s.mu.Unlock()
		return fmt.Errorf("invite %s: %w", code, storage.ErrInviteUsed)
	}
	ts := now()
	inv.UsedBy = &memberID
	inv.UsedAt = &ts
	s.mu.Unlock()

	s.notify(CollectionInviteCodes)
	return nil
}
