package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// newInviteCode mints a short shareable code.
func newInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:12]
}

// RequestConnection creates a pending trust-circle request.
func (e *Engine) RequestConnection(ctx context.Context, req *models.ConnectionRequest) (*models.ConnectionRequest, error) {
	if _, err := e.store.GetMember(ctx, req.ToID); err != nil {
		return nil, err
	}
	created, err := e.store.CreateConnectionRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	e.logger.Info("connection requested", "from", created.FromID, "to", created.ToID)
	return created, nil
}

// RespondToConnection accepts or declines a pending request. Only the member
// the request was sent to may respond.
func (e *Engine) RespondToConnection(ctx context.Context, requestID, responderID string, accept bool) (*models.TrustConnection, error) {
	req, err := e.store.GetConnectionRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToID != responderID {
		return nil, fmt.Errorf("member %s is not the recipient of request %s: %w", responderID, requestID, storage.ErrForbidden)
	}

	if !accept {
		if err := e.store.DeclineConnection(ctx, requestID); err != nil {
			return nil, err
		}
		e.logger.Info("connection declined", "request_id", requestID)
		return nil, nil
	}

	conn, err := e.store.AcceptConnection(ctx, requestID, e.cfg.MaxTrustLevel)
	if err != nil {
		return nil, err
	}

	e.logger.Info("connection accepted", "request_id", requestID, "trust_level", conn.TrustLevel)
	return conn, nil
}

// RemoveConnection severs the connection between the requester and another
// member. Either side may sever; the operation is idempotent.
func (e *Engine) RemoveConnection(ctx context.Context, requesterID, otherID string) error {
	if requesterID == otherID {
		return fmt.Errorf("%w: cannot sever a connection with yourself", storage.ErrValidation)
	}
	if err := e.store.RemoveConnection(ctx, requesterID, otherID); err != nil {
		return err
	}

	e.logger.Info("connection removed", "member_a", requesterID, "member_b", otherID)
	return nil
}

// GenerateInvite mints a single-use invite code. Elder only.
func (e *Engine) GenerateInvite(ctx context.Context, elderID string) (*models.InviteCode, error) {
	elder, err := e.store.GetMember(ctx, elderID)
	if err != nil {
		return nil, err
	}
	if !elder.IsElder {
		return nil, fmt.Errorf("member %s: %w", elderID, storage.ErrNotElder)
	}

	invite := &models.InviteCode{Code: newInviteCode(), GeneratedBy: elderID}
	created, err := e.store.CreateInvite(ctx, invite)
	if err != nil {
		return nil, err
	}

	e.logger.Info("invite generated", "elder_id", elderID)
	return created, nil
}
