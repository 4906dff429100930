package storage

import (
	"context"

	"github.com/lanternhq/lantern/pkg/models"
)

// LedgerReader defines the interface for reading the lantern ledger.
type LedgerReader interface {
	// ListTransactionsByMember retrieves every transaction touching a member,
	// as sender or recipient, newest first.
	ListTransactionsByMember(ctx context.Context, memberID string) ([]models.LanternTransaction, error)

	// BalanceOf recomputes a member's balance from the transaction log:
	// sum(to == member) - sum(from == member). Must equal the cached
	// lantern_balance field at every observable point.
	BalanceOf(ctx context.Context, memberID string) (int64, error)
}

// LedgerStore defines the append-only lantern ledger. Transactions are
// immutable once written. No hoard ceiling is enforced here; HoardLimit is
// advisory and checked by callers.
type LedgerStore interface {
	LedgerReader

	// Grant mints lanterns from the system account to a member.
	Grant(ctx context.Context, toID string, amount int64, reason string) (*models.LanternTransaction, error)

	// Transfer moves lanterns between members. Fails with
	// ErrInsufficientBalance rather than driving the sender negative.
	Transfer(ctx context.Context, fromID, toID string, amount int64, reason string) (*models.LanternTransaction, error)
}
