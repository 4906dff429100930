package local

import (
	"context"
	"fmt"
	"sort"

	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// CreateMember creates a new member record.
func (s *Store) CreateMember(ctx context.Context, member *models.Member) (*models.Member, error) {
	if member.ID == "" || member.DisplayName == "" {
		return nil, fmt.Errorf("%w: member id and display name are required", storage.ErrValidation)
	}

	s.mu.Lock()
	if _, exists := s.members[member.ID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: member %s already exists", storage.ErrConflict, member.ID)
	}

	m := *member
	m.Version = 1
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	s.members[m.ID] = &m
	out := m
	s.mu.Unlock()

	s.notify(CollectionMembers)
	return &out, nil
}

// GetMember retrieves a member by id.
func (s *Store) GetMember(ctx context.Context, memberID string) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", memberID, storage.ErrNotFound)
	}
	out := *m
	return &out, nil
}

// ListMembers retrieves all members, ordered by id for stable output.
func (s *Store) ListMembers(ctx context.Context) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := make([]models.Member, 0, len(s.members))
	for _, m := range s.members {
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

// PromoteToElder sets is_elder=true. Monotonic; promoting an elder again is
// a no-op.
func (s *Store) PromoteToElder(ctx context.Context, memberID string) error {
	s.mu.Lock()
	m, ok := s.members[memberID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("member %s: %w", memberID, storage.ErrNotFound)
	}
	if m.IsElder {
		s.mu.Unlock()
		return nil
	}
	m.IsElder = true
	m.Version++
	s.mu.Unlock()

	s.notify(CollectionMembers)
	return nil
}

// RecordCompletedHelp increments the helper's completed-help count and trust
// score after a completed exchange.
func (s *Store) RecordCompletedHelp(ctx context.Context, helperID string) (*models.Member, error) {
	s.mu.Lock()
	m, ok := s.members[helperID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("member %s: %w", helperID, storage.ErrNotFound)
	}
	m.CompletedHelpCount++
	m.TrustScore++
	m.Version++
	out := *m
	s.mu.Unlock()

	s.notify(CollectionMembers)
	return &out, nil
}
