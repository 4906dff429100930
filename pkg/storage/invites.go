package storage

import (
	"context"

	"github.com/lanternhq/lantern/pkg/models"
)

// InviteStore defines the interface for single-use invite codes.
type InviteStore interface {
	// GetInvite retrieves an invite code.
	GetInvite(ctx context.Context, code string) (*models.InviteCode, error)

	// CreateInvite stores a new unused invite code.
	CreateInvite(ctx context.Context, invite *models.InviteCode) (*models.InviteCode, error)

	// RedeemInvite atomically marks the code used by the member. Fails with
	// ErrInviteUsed if it was already redeemed.
	RedeemInvite(ctx context.Context, code, memberID string) error
}
