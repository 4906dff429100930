package local

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// Grant mints lanterns from the system account to a member.
func (s *Store) Grant(ctx context.Context, toID string, amount int64, reason string) (*models.LanternTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: grant amount must be positive", storage.ErrValidation)
	}

	s.mu.Lock()
	to, ok := s.members[toID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("member %s: %w", toID, storage.ErrNotFound)
	}

	to.LanternBalance += amount
	to.Version++
	entry := models.LanternTransaction{
		ID:        uuid.New().String(),
		FromID:    models.SystemAccountID,
		ToID:      toID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: now(),
	}
	s.transactions = append(s.transactions, entry)
	out := entry
	s.mu.Unlock()

	s.notify(CollectionTransactions, CollectionMembers)
	return &out, nil
}

// Transfer moves lanterns between members, refusing to drive the sender
// below zero.
func (s *Store) Transfer(ctx context.Context, fromID, toID string, amount int64, reason string) (*models.LanternTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: transfer amount must be positive", storage.ErrValidation)
	}
	if fromID == toID {
		return nil, fmt.Errorf("%w: cannot transfer to self", storage.ErrValidation)
	}

	s.mu.Lock()
	from, ok := s.members[fromID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("member %s: %w", fromID, storage.ErrNotFound)
	}
	to, ok := s.members[toID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("member %s: %w", toID, storage.ErrNotFound)
	}
	if from.LanternBalance < amount {
		s.mu.Unlock()
		return nil, fmt.Errorf("member %s balance %d, need %d: %w", fromID, from.LanternBalance, amount, storage.ErrInsufficientBalance)
	}

	from.LanternBalance -= amount
	from.Version++
	to.LanternBalance += amount
	to.Version++
	entry := models.LanternTransaction{
		ID:        uuid.New().String(),
		FromID:    fromID,
		ToID:      toID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: now(),
	}
	s.transactions = append(s.transactions, entry)
	out := entry
	s.mu.Unlock()

	s.notify(CollectionTransactions, CollectionMembers)
	return &out, nil
}

// ListTransactionsByMember retrieves every transaction touching a member,
// newest first.
func (s *Store) ListTransactionsByMember(ctx context.Context, memberID string) ([]models.LanternTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := make([]models.LanternTransaction, 0)
	for _, tx := range s.transactions {
		if tx.FromID == memberID || tx.ToID == memberID {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs, nil
}

// BalanceOf recomputes a member's balance from the transaction log.
func (s *Store) BalanceOf(ctx context.Context, memberID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var balance int64
	for _, tx := range s.transactions {
		if tx.ToID == memberID {
			balance += tx.Amount
		}
		if tx.FromID == memberID {
			balance -= tx.Amount
		}
	}
	return balance, nil
}
