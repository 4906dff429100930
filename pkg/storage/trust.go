package storage

import (
	"context"

	"github.com/lanternhq/lantern/pkg/models"
)

// TrustGraphReader defines the interface for reading the trust graph.
type TrustGraphReader interface {
	// GetConnection retrieves the connection between two members, if any.
	GetConnection(ctx context.Context, memberA, memberB string) (*models.TrustConnection, error)

	// ListConnections retrieves all connections involving a member.
	ListConnections(ctx context.Context, memberID string) ([]models.TrustConnection, error)

	// GetConnectionRequest retrieves a connection request by id.
	GetConnectionRequest(ctx context.Context, requestID string) (*models.ConnectionRequest, error)
}

// TrustGraphStore defines the interface for managing trust connections and
// the connection requests that create them.
type TrustGraphStore interface {
	TrustGraphReader

	// CreateConnectionRequest creates a pending request. Fails with
	// ErrDuplicateRequest if a pending request or a live connection already
	// exists between the pair, in either direction.
	CreateConnectionRequest(ctx context.Context, req *models.ConnectionRequest) (*models.ConnectionRequest, error)

	// AcceptConnection atomically marks the request accepted and creates the
	// connection at trust level 1, or increments an existing connection's
	// level capped at the configured maximum.
	AcceptConnection(ctx context.Context, requestID string, maxTrustLevel int64) (*models.TrustConnection, error)

	// DeclineConnection marks the request declined. No connection is created.
	DeclineConnection(ctx context.Context, requestID string) error

	// StrengthenConnection increments the trust level between two connected
	// members, capped at maxTrustLevel. A no-op if they are not connected.
	StrengthenConnection(ctx context.Context, memberA, memberB string, maxTrustLevel int64) error

	// RemoveConnection deletes the connection between two members in both
	// read directions. Idempotent.
	RemoveConnection(ctx context.Context, memberA, memberB string) error
}
