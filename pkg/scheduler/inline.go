package scheduler

import (
	"context"
	"fmt"

	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// InlineScheduler fans announcements out synchronously, without a queue.
// Used in local mode where no SQS worker is running.
type InlineScheduler struct {
	Members    storage.MemberReader
	Recipients storage.AnnouncementStore
}

// Make sure we conform to the interface
var _ Scheduler = (*InlineScheduler)(nil)

// ScheduleDelivery creates a recipient row for every current member before
// returning.
func (s *InlineScheduler) ScheduleDelivery(ctx context.Context, a *models.Announcement) error {
	members, err := s.Members.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list members for delivery: %w", err)
	}

	for _, m := range members {
		r := &models.AnnouncementRecipient{AnnouncementID: a.ID, MemberID: m.ID}
		if err := s.Recipients.CreateRecipient(ctx, r); err != nil {
			return fmt.Errorf("failed to create recipient %s: %w", m.ID, err)
		}
	}
	return nil
}
