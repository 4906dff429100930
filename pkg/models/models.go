package models

import (
	"time"
)

// SystemAccountID is the reserved sender id for system-minted lanterns
// (welcome grants, announcement gifts). It has no member record.
const SystemAccountID = "system"

// FlareType distinguishes a request for help from an offer of help.
type FlareType string

const (
	FlareRequest FlareType = "request"
	FlareOffer   FlareType = "offer"
)

// FlareStatus defines the possible states of a flare.
type FlareStatus string

const (
	FlareActive    FlareStatus = "active"
	FlareAccepted  FlareStatus = "accepted"
	FlareCompleted FlareStatus = "completed"
	FlareCancelled FlareStatus = "cancelled"
)

// HelpRequestStatus defines the possible states of a help request.
type HelpRequestStatus string

const (
	HelpPending  HelpRequestStatus = "pending"
	HelpAccepted HelpRequestStatus = "accepted"
	HelpDenied   HelpRequestStatus = "denied"
)

// ConnectionRequestStatus defines the possible states of a connection request.
type ConnectionRequestStatus string

const (
	ConnectionPending  ConnectionRequestStatus = "pending"
	ConnectionAccepted ConnectionRequestStatus = "accepted"
	ConnectionDeclined ConnectionRequestStatus = "declined"
)

// Member represents a neighborhood member. LanternBalance is a cached read
// model; the transaction log is authoritative and the two must agree.
// IsElder only ever transitions false -> true.
type Member struct {
	ID                 string    `json:"id" dynamodbav:"id"`
	DisplayName        string    `json:"display_name" dynamodbav:"display_name"`
	LanternBalance     int64     `json:"lantern_balance" dynamodbav:"lantern_balance"`
	TrustScore         int64     `json:"trust_score" dynamodbav:"trust_score"`
	CompletedHelpCount int64     `json:"completed_help_count" dynamodbav:"completed_help_count"`
	IsElder            bool      `json:"is_elder" dynamodbav:"is_elder"`
	Version            int64     `json:"version" dynamodbav:"version"`
	CreatedAt          time.Time `json:"created_at" dynamodbav:"created_at"`
}

// Flare represents a posted help request or offer.
type Flare struct {
	ID          string      `json:"id" dynamodbav:"id"`
	OwnerID     string      `json:"owner_id" dynamodbav:"owner_id"`
	Category    string      `json:"category" dynamodbav:"category"`
	Description string      `json:"description" dynamodbav:"description"`
	Type        FlareType   `json:"type" dynamodbav:"flare_type"`
	Status      FlareStatus `json:"status" dynamodbav:"status"`
	AcceptedBy  *string     `json:"accepted_by,omitempty" dynamodbav:"accepted_by,omitempty"`
	CircleOnly  bool        `json:"circle_only" dynamodbav:"circle_only"`
	IsFree      bool        `json:"is_free" dynamodbav:"is_free"`
	Version     int64       `json:"version" dynamodbav:"version"`
	CreatedAt   time.Time   `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" dynamodbav:"updated_at"`
}

// HelpRequest represents a would-be helper's response to a flare.
// At most one help request exists per (flare, helper) pair, and at most one
// per flare ever reaches the accepted state.
type HelpRequest struct {
	ID          string            `json:"id" dynamodbav:"id"`
	FlareID     string            `json:"flare_id" dynamodbav:"flare_id"`
	HelperID    string            `json:"helper_id" dynamodbav:"helper_id"`
	OwnerID     string            `json:"owner_id" dynamodbav:"owner_id"`
	Message     string            `json:"message" dynamodbav:"message"`
	Status      HelpRequestStatus `json:"status" dynamodbav:"status"`
	CreatedAt   time.Time         `json:"created_at" dynamodbav:"created_at"`
	RespondedAt *time.Time        `json:"responded_at,omitempty" dynamodbav:"responded_at,omitempty"`
}

// LanternTransaction is a single entry in the append-only lantern ledger.
// Entries are never edited or deleted. FromID is SystemAccountID for grants.
type LanternTransaction struct {
	ID        string    `json:"id" dynamodbav:"id"`
	FromID    string    `json:"from_id" dynamodbav:"from_id"`
	ToID      string    `json:"to_id" dynamodbav:"to_id"`
	Amount    int64     `json:"amount" dynamodbav:"amount"`
	Reason    string    `json:"reason" dynamodbav:"reason"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

// TrustConnection is a mutual trust relationship between two members, stored
// once with the member ids in canonical (lexicographic) order.
type TrustConnection struct {
	MemberA         string    `json:"member_a" dynamodbav:"member_a"`
	MemberB         string    `json:"member_b" dynamodbav:"member_b"`
	TrustLevel      int64     `json:"trust_level" dynamodbav:"trust_level"`
	MetThroughFlare *string   `json:"met_through_flare,omitempty" dynamodbav:"met_through_flare,omitempty"`
	CreatedAt       time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Pair returns the canonical (ordered) id pair for two members.
func Pair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Involves reports whether the connection links the two given members,
// in either order.
func (c *TrustConnection) Involves(a, b string) bool {
	x, y := Pair(a, b)
	return c.MemberA == x && c.MemberB == y
}

// ConnectionRequest is an invitation to form a trust connection.
// Terminal once accepted or declined.
type ConnectionRequest struct {
	ID        string                  `json:"id" dynamodbav:"id"`
	FromID    string                  `json:"from_id" dynamodbav:"from_id"`
	ToID      string                  `json:"to_id" dynamodbav:"to_id"`
	FlareID   *string                 `json:"flare_id,omitempty" dynamodbav:"flare_id,omitempty"`
	Message   string                  `json:"message" dynamodbav:"message"`
	Status    ConnectionRequestStatus `json:"status" dynamodbav:"status"`
	CreatedAt time.Time               `json:"created_at" dynamodbav:"created_at"`
}

// InviteCode is a single-use signup code generated by an elder.
type InviteCode struct {
	Code        string     `json:"code" dynamodbav:"code"`
	GeneratedBy string     `json:"generated_by" dynamodbav:"generated_by"`
	UsedBy      *string    `json:"used_by,omitempty" dynamodbav:"used_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at" dynamodbav:"created_at"`
	UsedAt      *time.Time `json:"used_at,omitempty" dynamodbav:"used_at,omitempty"`
}

// Announcement is a community-wide broadcast, optionally carrying a lantern
// gift each recipient may claim once.
type Announcement struct {
	ID         string    `json:"id" dynamodbav:"id"`
	AuthorID   string    `json:"author_id" dynamodbav:"author_id"`
	Title      string    `json:"title" dynamodbav:"title"`
	Body       string    `json:"body" dynamodbav:"body"`
	GiftAmount int64     `json:"gift_amount" dynamodbav:"gift_amount"`
	CreatedAt  time.Time `json:"created_at" dynamodbav:"created_at"`
}

// AnnouncementRecipient tracks one member's view of an announcement.
// GiftClaimed only ever transitions false -> true.
type AnnouncementRecipient struct {
	AnnouncementID string     `json:"announcement_id" dynamodbav:"announcement_id"`
	MemberID       string     `json:"member_id" dynamodbav:"member_id"`
	ReadAt         *time.Time `json:"read_at,omitempty" dynamodbav:"read_at,omitempty"`
	GiftClaimed    bool       `json:"gift_claimed" dynamodbav:"gift_claimed"`
}
