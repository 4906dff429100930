package storage

import (
	"context"

	"github.com/lanternhq/lantern/pkg/models"
)

// AnnouncementStore defines the interface for announcements and their
// per-recipient gift claims.
type AnnouncementStore interface {
	// GetAnnouncement retrieves an announcement by id.
	GetAnnouncement(ctx context.Context, announcementID string) (*models.Announcement, error)

	// CreateAnnouncement stores a new announcement.
	CreateAnnouncement(ctx context.Context, a *models.Announcement) (*models.Announcement, error)

	// CreateRecipient stores a recipient row for a member. Idempotent: an
	// existing row is left as is.
	CreateRecipient(ctx context.Context, r *models.AnnouncementRecipient) error

	// ClaimGift atomically flips gift_claimed false -> true and records the
	// gift grant in the ledger. Fails with ErrAlreadyClaimed on a second
	// claim; the balance is left unchanged.
	ClaimGift(ctx context.Context, announcementID, memberID string) (*models.LanternTransaction, error)
}
