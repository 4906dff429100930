package local

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// CreateConnectionRequest creates a pending request between two members.
func (s *Store) CreateConnectionRequest(ctx context.Context, req *models.ConnectionRequest) (*models.ConnectionRequest, error) {
	if req.FromID == "" || req.ToID == "" || req.FromID == req.ToID {
		return nil, fmt.Errorf("%w: a connection request needs two distinct members", storage.ErrValidation)
	}

	s.mu.Lock()
	if _, ok := s.members[req.FromID]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("member %s: %w", req.FromID, storage.ErrNotFound)
	}
	if _, ok := s.members[req.ToID]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("member %s: %w", req.ToID, storage.ErrNotFound)
	}
	if _, ok := s.connections[connKey(req.FromID, req.ToID)]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("members %s and %s: %w", req.FromID, req.ToID, storage.ErrDuplicateRequest)
	}
	for _, existing := range s.connectionRequests {
		if existing.Status == models.ConnectionPending &&
			((existing.FromID == req.FromID && existing.ToID == req.ToID) ||
				(existing.FromID == req.ToID && existing.ToID == req.FromID)) {
			s.mu.Unlock()
			return nil, fmt.Errorf("members %s and %s: %w", req.FromID, req.ToID, storage.ErrDuplicateRequest)
		}
	}

	r := *req
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.Status = models.ConnectionPending
	r.CreatedAt = now()
	s.connectionRequests[r.ID] = &r
	out := r
	s.mu.Unlock()

	s.notify(CollectionConnectionRequests)
	return &out, nil
}

// GetConnectionRequest retrieves a connection request by id.
func (s *Store) GetConnectionRequest(ctx context.Context, requestID string) (*models.ConnectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.connectionRequests[requestID]
	if !ok {
		return nil, fmt.Errorf("connection request %s: %w", requestID, storage.ErrNotFound)
	}
	out := *r
	return &out, nil
}

// AcceptConnection marks the request accepted and creates or strengthens the
// connection, in one critical section.
func (s *Store) AcceptConnection(ctx context.Context, requestID string, maxTrustLevel int64) (*models.TrustConnection, error) {
	s.mu.Lock()
	req, ok := s.connectionRequests[requestID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("connection request %s: %w", requestID, storage.ErrNotFound)
	}
	if !req.Status.CanTransitionTo(models.ConnectionAccepted) {
		s.mu.Unlock()
		return nil, fmt.Errorf("connection request %s in status %s: %w", requestID, req.Status, storage.ErrAlreadyResolved)
	}

	req.Status = models.ConnectionAccepted
	ts := now()
	key := connKey(req.FromID, req.ToID)
	conn, exists := s.connections[key]
	if exists {
		if conn.TrustLevel < maxTrustLevel {
			conn.TrustLevel++
		}
		conn.UpdatedAt = ts
	} else {
		a, b := models.Pair(req.FromID, req.ToID)
		conn = &models.TrustConnection{
			MemberA:         a,
			MemberB:         b,
			TrustLevel:      1,
			MetThroughFlare: req.FlareID,
			CreatedAt:       ts,
			UpdatedAt:       ts,
		}
		s.connections[key] = conn
	}
	out := *conn
	s.mu.Unlock()

	s.notify(CollectionConnectionRequests, CollectionConnections)
	return &out, nil
}

// DeclineConnection marks the request declined.
func (s *Store) DeclineConnection(ctx context.Context, requestID string) error {
	s.mu.Lock()
	req, ok := s.connectionRequests[requestID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("connection request %s: %w", requestID, storage.ErrNotFound)
	}
	if !req.Status.CanTransitionTo(models.ConnectionDeclined) {
		s.mu.Unlock()
		return fmt.Errorf("connection request %s in status %s: %w", requestID, req.Status, storage.ErrAlreadyResolved)
	}
	req.Status = models.ConnectionDeclined
	s.mu.Unlock()

	s.notify(CollectionConnectionRequests)
	return nil
}

// GetConnection retrieves the connection between two members, if any.
func (s *Store) GetConnection(ctx context.Context, memberA, memberB string) (*models.TrustConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[connKey(memberA, memberB)]
	if !ok {
		return nil, fmt.Errorf("connection between %s and %s: %w", memberA, memberB, storage.ErrNotFound)
	}
	out := *conn
	return &out, nil
}

// ListConnections retrieves all connections involving a member.
func (s *Store) ListConnections(ctx context.Context, memberID string) ([]models.TrustConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns := make([]models.TrustConnection, 0)
	for _, c := range s.connections {
		if c.MemberA == memberID || c.MemberB == memberID {
			conns = append(conns, *c)
		}
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].MemberA != conns[j].MemberA {
			return conns[i].MemberA < conns[j].MemberA
		}
		return conns[i].MemberB < conns[j].MemberB
	})
	return conns, nil
}

// StrengthenConnection bumps the trust level between two connected members,
// capped. A no-op for unconnected members.
func (s *Store) StrengthenConnection(ctx context.Context, memberA, memberB string, maxTrustLevel int64) error {
	s.mu.Lock()
	conn, ok := s.connections[connKey(memberA, memberB)]
	if !ok || conn.TrustLevel >= maxTrustLevel {
		s.mu.Unlock()
		return nil
	}
	conn.TrustLevel++
	conn.UpdatedAt = now()
	s.mu.Unlock()

	s.notify(CollectionConnections)
	return nil
}

// RemoveConnection deletes the connection between two members. Idempotent.
func (s *Store) RemoveConnection(ctx context.Context, memberA, memberB string) error {
	s.mu.Lock()
	key := connKey(memberA, memberB)
	_, existed := s.connections[key]
	delete(s.connections, key)
	s.mu.Unlock()

	if existed {
		s.notify(CollectionConnections)
	}
	return nil
}
