package exchange

import (
	"context"
	"fmt"

	"github.com/lanternhq/lantern/pkg/metrics"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// PostAnnouncement publishes a community announcement and schedules its
// fan-out to recipients. Elder only.
func (e *Engine) PostAnnouncement(ctx context.Context, a *models.Announcement, authorID string) (*models.Announcement, error) {
	author, err := e.store.GetMember(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if !author.IsElder {
		return nil, fmt.Errorf("member %s: %w", authorID, storage.ErrNotElder)
	}

	a.AuthorID = authorID
	created, err := e.store.CreateAnnouncement(ctx, a)
	if err != nil {
		return nil, err
	}

	if err := e.deliverer.ScheduleDelivery(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to schedule delivery of announcement %s: %w", created.ID, err)
	}

	e.logger.Info("announcement posted", "announcement_id", created.ID, "gift", created.GiftAmount)
	return created, nil
}

// ClaimGift claims the member's one-time gift attached to an announcement.
func (e *Engine) ClaimGift(ctx context.Context, announcementID, memberID string) (*models.LanternTransaction, error) {
	entry, err := e.store.ClaimGift(ctx, announcementID, memberID)
	if err != nil {
		return nil, err
	}

	metrics.RecordLanternsMoved(entry.Reason, entry.Amount)
	e.logger.Info("gift claimed", "announcement_id", announcementID, "member_id", memberID)
	return entry, nil
}
