package storage

import (
	"context"

	"github.com/lanternhq/lantern/pkg/models"
)

// MemberReader defines the interface for reading member data.
type MemberReader interface {
	// GetMember retrieves a member by id.
	GetMember(ctx context.Context, memberID string) (*models.Member, error)

	// ListMembers retrieves all members.
	ListMembers(ctx context.Context) ([]models.Member, error)
}

// MemberStore defines the interface for managing members.
type MemberStore interface {
	MemberReader

	// CreateMember creates a new member record. The caller mints the welcome
	// grant separately through the ledger.
	CreateMember(ctx context.Context, member *models.Member) (*models.Member, error)

	// PromoteToElder sets is_elder=true. The transition is monotonic; calling
	// it on an existing elder is a no-op.
	PromoteToElder(ctx context.Context, memberID string) error

	// RecordCompletedHelp increments the helper's completed-help count and
	// trust score after a completed exchange.
	RecordCompletedHelp(ctx context.Context, helperID string) (*models.Member, error)
}
