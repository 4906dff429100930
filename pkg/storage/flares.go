package storage

import (
	"context"

	"github.com/lanternhq/lantern/pkg/models"
)

// FlareReader defines the interface for reading flare data.
type FlareReader interface {
	// GetFlare retrieves a flare by id.
	GetFlare(ctx context.Context, flareID string) (*models.Flare, error)

	// ListFlares retrieves flares visible to the viewer: every public flare,
	// plus circle-only flares whose owner is the viewer or one of the
	// viewer's trust connections.
	ListFlares(ctx context.Context, viewerID string) ([]models.Flare, error)
}

// FlareStore defines the interface for managing flares.
type FlareStore interface {
	FlareReader

	// CreateFlare creates a new flare in the active state.
	CreateFlare(ctx context.Context, flare *models.Flare) (*models.Flare, error)

	// CancelFlare moves a flare to cancelled. Permitted from active or
	// accepted; fails with ErrAlreadyResolved from a terminal state.
	CancelFlare(ctx context.Context, flareID string) error
}
