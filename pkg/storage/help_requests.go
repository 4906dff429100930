package storage

import (
	"context"

	"github.com/lanternhq/lantern/pkg/models"
)

// HelpRequestReader defines the interface for reading help request data.
type HelpRequestReader interface {
	// GetHelpRequest retrieves a help request by id.
	GetHelpRequest(ctx context.Context, requestID string) (*models.HelpRequest, error)

	// ListHelpRequestsByFlare retrieves all help requests for a flare.
	ListHelpRequestsByFlare(ctx context.Context, flareID string) ([]models.HelpRequest, error)
}

// HelpRequestManager defines the invariant-bearing mutations of the help
// workflow. Each method is atomic per backend: either every listed effect
// happens, or none does.
type HelpRequestManager interface {
	// CreateHelpRequest creates a pending help request. Fails with
	// ErrDuplicateOffer if one already exists for the (flare, helper) pair,
	// and ErrFlareNotActive if the flare is not active.
	CreateHelpRequest(ctx context.Context, req *models.HelpRequest) (*models.HelpRequest, error)

	// AcceptHelp atomically marks the help request accepted and the flare
	// accepted with accepted_by set to the helper. Fails with
	// ErrAlreadyResolved if the flare is not active or already has an
	// accepted help request. Competing pending requests are left untouched.
	AcceptHelp(ctx context.Context, flareID, requestID string) (*models.HelpRequest, error)

	// DenyHelp marks a pending help request denied. The flare is unaffected.
	DenyHelp(ctx context.Context, requestID string) error

	// CompleteFlare atomically marks the flare completed and, unless the
	// flare is free, records a one-lantern transfer from owner to helper and
	// adjusts both cached balances. Fails with ErrNotAccepted unless the
	// flare is accepted with accepted_by == helperID, and with
	// ErrInsufficientBalance if the owner cannot fund the transfer.
	CompleteFlare(ctx context.Context, flareID, helperID string) (*models.LanternTransaction, error)
}

// HelpRequestStore combines the reader and manager interfaces.
type HelpRequestStore interface {
	HelpRequestReader
	HelpRequestManager
}
