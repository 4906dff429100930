package scheduler

import (
	"context"

	"github.com/lanternhq/lantern/pkg/models"
)

// DeliveryJob is the message enqueued when an announcement is posted. The
// delivery worker fans the announcement out to recipient rows.
type DeliveryJob struct {
	AnnouncementID string `json:"announcement_id"`
}

// Scheduler defines the interface for a component that schedules announcement
// delivery for later processing.
type Scheduler interface {
	// ScheduleDelivery enqueues an announcement for asynchronous fan-out.
	ScheduleDelivery(ctx context.Context, a *models.Announcement) error
}
