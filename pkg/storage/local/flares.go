package local

import (
	"context"
	"fmt"
	"sort"

	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// CreateFlare creates a new flare in the active state.
func (s *Store) CreateFlare(ctx context.Context, flare *models.Flare) (*models.Flare, error) {
	if flare.ID == "" || flare.OwnerID == "" {
		return nil, fmt.Errorf("%w: flare id and owner are required", storage.ErrValidation)
	}

	s.mu.Lock()
	if _, ok := s.members[flare.OwnerID]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("flare owner %s: %w", flare.OwnerID, storage.ErrNotFound)
	}

	f := *flare
	f.Status = models.FlareActive
	f.AcceptedBy = nil
	f.Version = 1
	ts := now()
	f.CreatedAt = ts
	f.UpdatedAt = ts
	s.flares[f.ID] = &f
	out := f
	s.mu.Unlock()

	s.notify(CollectionFlares)
	return &out, nil
}

// GetFlare retrieves a flare by id.
func (s *Store) GetFlare(ctx context.Context, flareID string) (*models.Flare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flares[flareID]
	if !ok {
		return nil, fmt.Errorf("flare %s: %w", flareID, storage.ErrNotFound)
	}
	out := *f
	return &out, nil
}

// ListFlares retrieves flares visible to the viewer. Circle-only flares are
// returned only when the viewer owns them or is connected to the owner.
func (s *Store) ListFlares(ctx context.Context, viewerID string) ([]models.Flare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flares := make([]models.Flare, 0, len(s.flares))
	for _, f := range s.flares {
		if f.CircleOnly && f.OwnerID != viewerID {
			if _, ok := s.connections[connKey(f.OwnerID, viewerID)]; !ok {
				continue
			}
		}
		flares = append(flares, *f)
	}
	sort.Slice(flares, func(i, j int) bool { return flares[i].CreatedAt.After(flares[j].CreatedAt) })
	return flares, nil
}

// CancelFlare moves a flare to cancelled, from active or accepted only.
func (s *Store) CancelFlare(ctx context.Context, flareID string) error {
	s.mu.Lock()
	f, ok := s.flares[flareID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("flare %s: %w", flareID, storage.ErrNotFound)
	}
	if !f.Status.CanTransitionTo(models.FlareCancelled) {
		s.mu.Unlock()
		return fmt.Errorf("cancel flare %s in status %s: %w", flareID, f.Status, storage.ErrAlreadyResolved)
	}
	f.Status = models.FlareCancelled
	f.UpdatedAt = now()
	f.Version++
	s.mu.Unlock()

	s.notify(CollectionFlares)
	return nil
}
