package local

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// CreateAnnouncement stores a new announcement.
func (s *Store) CreateAnnouncement(ctx context.Context, a *models.Announcement) (*models.Announcement, error) {
	if a.Title == "" {
		return nil, fmt.Errorf("%w: announcement title is required", storage.ErrValidation)
	}
	if a.GiftAmount < 0 {
		return nil, fmt.Errorf("%w: gift amount cannot be negative", storage.ErrValidation)
	}

	s.mu.Lock()
	ann := *a
	if ann.ID == "" {
		ann.ID = uuid.New().String()
	}
	ann.CreatedAt = now()
	s.announcements[ann.ID] = &ann
	out := ann
	s.mu.Unlock()

	s.notify(CollectionAnnouncements)
	return &out, nil
}

// GetAnnouncement retrieves an announcement by id.
func (s *Store) GetAnnouncement(ctx context.Context, announcementID string) (*models.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.announcements[announcementID]
	if !ok {
		return nil, fmt.Errorf("announcement %s: %w", announcementID, storage.ErrNotFound)
	}
	out := *a
	return &out, nil
}

// CreateRecipient stores a recipient row. Idempotent.
func (s *Store) CreateRecipient(ctx context.Context, r *models.AnnouncementRecipient) error {
	s.mu.Lock()
	key := recipientKey(r.AnnouncementID, r.MemberID)
	if _, exists := s.recipients[key]; exists {
		s.mu.Unlock()
		return nil
	}
	rec := *r
	s.recipients[key] = &rec
	s.mu.Unlock()

	s.notify(CollectionAnnouncements)
	return nil
}

// ClaimGift flips gift_claimed and grants the gift amount in one critical
// section, so a claimed flag without its ledger entry is unreachable.
func (s *Store) ClaimGift(ctx context.Context, announcementID, memberID string) (*models.LanternTransaction, error) {
	s.mu.Lock()
	ann, ok := s.announcements[announcementID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("announcement %s: %w", announcementID, storage.ErrNotFound)
	}
	if ann.GiftAmount <= 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: announcement %s carries no gift", storage.ErrValidation, announcementID)
	}
	member, ok := s.members[memberID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("member %s: %w", memberID, storage.ErrNotFound)
	}
	rec, ok := s.recipients[recipientKey(announcementID, memberID)]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("recipient %s of announcement %s: %w", memberID, announcementID, storage.ErrNotFound)
	}
	if rec.GiftClaimed {
		s.mu.Unlock()
		return nil, fmt.Errorf("announcement %s, member %s: %w", announcementID, memberID, storage.ErrAlreadyClaimed)
	}

	rec.GiftClaimed = true
	member.LanternBalance += ann.GiftAmount
	member.Version++
	entry := models.LanternTransaction{
		ID:        uuid.New().String(),
		FromID:    models.SystemAccountID,
		ToID:      memberID,
		Amount:    ann.GiftAmount,
		Reason:    "community gift",
		CreatedAt: now(),
	}
	s.transactions = append(s.transactions, entry)
	out := entry
	s.mu.Unlock()

	s.notify(CollectionAnnouncements, CollectionTransactions, CollectionMembers)
	return &out, nil
}
