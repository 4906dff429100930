package exchange

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/scheduler"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/storage/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *local.Store) {
	t.Helper()
	store := local.New()
	cfg := Config{
		MaxTrustLevel:       5,
		ElderHelpThreshold:  10,
		ElderTrustThreshold: 25,
		WelcomeGrant:        3,
		HoardLimit:          20,
	}
	deliverer := &scheduler.InlineScheduler{Members: store, Recipients: store}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, deliverer, cfg, logger), store
}

func seedMember(t *testing.T, store *local.Store, id string, balance int64) *models.Member {
	t.Helper()
	m, err := store.CreateMember(context.Background(), &models.Member{ID: id, DisplayName: id})
	require.NoError(t, err)
	if balance > 0 {
		_, err = store.Grant(context.Background(), id, balance, "seed")
		require.NoError(t, err)
	}
	m.LanternBalance = balance
	return m
}

func postFlare(t *testing.T, e *Engine, ownerID string, free bool) *models.Flare {
	t.Helper()
	flare, err := e.PostFlare(context.Background(), &models.Flare{
		OwnerID:     ownerID,
		Type:        models.FlareRequest,
		Category:    "errands",
		Description: "need a hand moving boxes",
		IsFree:      free,
	})
	require.NoError(t, err)
	return flare
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Mints Welcome Grant", func(t *testing.T) {
		e, store := newTestEngine(t)

		m, err := e.Register(ctx, "ada", "")

		require.NoError(t, err)
		assert.Equal(t, int64(3), m.LanternBalance)
		balance, err := store.BalanceOf(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), balance)
	})

	t.Run("Invite Is Single Use", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "elder1", 0)
		require.NoError(t, store.PromoteToElder(ctx, "elder1"))
		invite, err := e.GenerateInvite(ctx, "elder1")
		require.NoError(t, err)

		_, err = e.Register(ctx, "first", invite.Code)
		require.NoError(t, err)

		_, err = e.Register(ctx, "second", invite.Code)
		assert.ErrorIs(t, err, storage.ErrInviteUsed)
	})

	t.Run("Unknown Invite", func(t *testing.T) {
		e, _ := newTestEngine(t)

		_, err := e.Register(ctx, "ada", "NOPE")

		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestPostFlare(t *testing.T) {
	ctx := context.Background()

	t.Run("Assigns An ID", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "owner", 0)

		flare, err := e.PostFlare(ctx, &models.Flare{
			OwnerID:     "owner",
			Type:        models.FlareRequest,
			Category:    "errands",
			Description: "need a hand moving boxes",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, flare.ID)
		assert.Equal(t, models.FlareActive, flare.Status)

		got, err := store.GetFlare(ctx, flare.ID)
		require.NoError(t, err)
		assert.Equal(t, "owner", got.OwnerID)
	})

	t.Run("Unknown Type", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "owner", 0)

		_, err := e.PostFlare(ctx, &models.Flare{OwnerID: "owner", Type: "barter"})

		assert.ErrorIs(t, err, storage.ErrValidation)
	})
}

func TestOfferHelp(t *testing.T) {
	ctx := context.Background()

	t.Run("Owner Cannot Offer On Own Flare", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "owner", 3)
		flare := postFlare(t, e, "owner", false)

		_, err := e.OfferHelp(ctx, flare.ID, "owner", "me!")

		assert.ErrorIs(t, err, storage.ErrValidation)
	})

	t.Run("Duplicate Offer Rejected", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "owner", 3)
		seedMember(t, store, "helper", 0)
		flare := postFlare(t, e, "owner", false)

		_, err := e.OfferHelp(ctx, flare.ID, "helper", "first")
		require.NoError(t, err)

		_, err = e.OfferHelp(ctx, flare.ID, "helper", "again")
		assert.ErrorIs(t, err, storage.ErrDuplicateOffer)
	})
}

func TestAcceptHelp(t *testing.T) {
	ctx := context.Background()

	t.Run("Owner Only", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "owner", 3)
		seedMember(t, store, "helper", 0)
		flare := postFlare(t, e, "owner", false)
		req, err := e.OfferHelp(ctx, flare.ID, "helper", "hi")
		require.NoError(t, err)

		_, err = e.AcceptHelp(ctx, flare.ID, req.ID, "helper")
		assert.ErrorIs(t, err, storage.ErrForbidden)

		accepted, err := e.AcceptHelp(ctx, flare.ID, req.ID, "owner")
		require.NoError(t, err)
		assert.Equal(t, models.HelpAccepted, accepted.Status)
	})

	t.Run("Competing Offers Stay Pending", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "owner", 3)
		seedMember(t, store, "h1", 0)
		seedMember(t, store, "h2", 0)
		flare := postFlare(t, e, "owner", false)
		r1, err := e.OfferHelp(ctx, flare.ID, "h1", "")
		require.NoError(t, err)
		r2, err := e.OfferHelp(ctx, flare.ID, "h2", "")
		require.NoError(t, err)

		_, err = e.AcceptHelp(ctx, flare.ID, r1.ID, "owner")
		require.NoError(t, err)

		other, err := store.GetHelpRequest(ctx, r2.ID)
		require.NoError(t, err)
		assert.Equal(t, models.HelpPending, other.Status)

		// A second accept hits the flare's active-only condition.
		_, err = e.AcceptHelp(ctx, flare.ID, r2.ID, "owner")
		assert.ErrorIs(t, err, storage.ErrAlreadyResolved)
	})
}

func TestCompleteFlare(t *testing.T) {
	ctx := context.Background()

	acceptedFlare := func(t *testing.T, e *Engine, free bool) *models.Flare {
		flare := postFlare(t, e, "owner", free)
		req, err := e.OfferHelp(ctx, flare.ID, "helper", "")
		require.NoError(t, err)
		_, err = e.AcceptHelp(ctx, flare.ID, req.ID, "owner")
		require.NoError(t, err)
		return flare
	}

	t.Run("Paid Completion Moves One Lantern", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "owner", 3)
		seedMember(t, store, "helper", 1)
		flare := acceptedFlare(t, e, false)

		entry, err := e.CompleteFlare(ctx, flare.ID, "owner")

		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, int64(1), entry.Amount)

		ownerBal, _ := store.BalanceOf(ctx, "owner")
		helperBal, _ := store.BalanceOf(ctx, "helper")
		assert.Equal(t, int64(2), ownerBal)
		assert.Equal(t, int64(2), helperBal)

		helper, err := store.GetMember(ctx, "helper")
		require.NoError(t, err)
		assert.Equal(t, int64(1), helper.CompletedHelpCount)
	})

	t.Run("Free Completion Skips Ledger", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "owner", 0)
		seedMember(t, store, "helper", 0)
		flare := acceptedFlare(t, e, true)

		entry, err := e.CompleteFlare(ctx, flare.ID, "owner")

		require.NoError(t, err)
		assert.Nil(t, entry)

		helper, err := store.GetMember(ctx, "helper")
		require.NoError(t, err)
		assert.Equal(t, int64(1), helper.CompletedHelpCount)
	})

	t.Run("Owner Only", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "owner", 3)
		seedMember(t, store, "helper", 0)
		flare := acceptedFlare(t, e, false)

		_, err := e.CompleteFlare(ctx, flare.ID, "helper")

		assert.ErrorIs(t, err, storage.ErrForbidden)
	})

	t.Run("Promotes Elder At Threshold", func(t *testing.T) {
		e, store := newTestEngine(t)
		e.cfg.ElderHelpThreshold = 1
		seedMember(t, store, "owner", 3)
		seedMember(t, store, "helper", 0)
		flare := acceptedFlare(t, e, false)

		_, err := e.CompleteFlare(ctx, flare.ID, "owner")
		require.NoError(t, err)

		helper, err := store.GetMember(ctx, "helper")
		require.NoError(t, err)
		assert.True(t, helper.IsElder)
	})

	t.Run("Strengthens Existing Connection", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "owner", 3)
		seedMember(t, store, "helper", 0)

		req, err := e.RequestConnection(ctx, &models.ConnectionRequest{FromID: "owner", ToID: "helper"})
		require.NoError(t, err)
		conn, err := e.RespondToConnection(ctx, req.ID, "helper", true)
		require.NoError(t, err)
		require.Equal(t, int64(1), conn.TrustLevel)

		flare := acceptedFlare(t, e, false)
		_, err = e.CompleteFlare(ctx, flare.ID, "owner")
		require.NoError(t, err)

		after, err := store.GetConnection(ctx, "owner", "helper")
		require.NoError(t, err)
		assert.Equal(t, int64(2), after.TrustLevel)
	})
}

func TestRespondToConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("Recipient Only", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "a", 0)
		seedMember(t, store, "b", 0)
		req, err := e.RequestConnection(ctx, &models.ConnectionRequest{FromID: "a", ToID: "b"})
		require.NoError(t, err)

		_, err = e.RespondToConnection(ctx, req.ID, "a", true)
		assert.ErrorIs(t, err, storage.ErrForbidden)
	})

	t.Run("Decline Leaves No Connection", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "a", 0)
		seedMember(t, store, "b", 0)
		req, err := e.RequestConnection(ctx, &models.ConnectionRequest{FromID: "a", ToID: "b"})
		require.NoError(t, err)

		conn, err := e.RespondToConnection(ctx, req.ID, "b", false)
		require.NoError(t, err)
		assert.Nil(t, conn)

		_, err = store.GetConnection(ctx, "a", "b")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestGenerateInvite(t *testing.T) {
	ctx := context.Background()

	t.Run("Elder Only", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "regular", 0)

		_, err := e.GenerateInvite(ctx, "regular")

		assert.ErrorIs(t, err, storage.ErrNotElder)
	})
}

func TestPostAnnouncement(t *testing.T) {
	ctx := context.Background()

	t.Run("Fans Out And Gift Claims Once", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "elder", 0)
		require.NoError(t, store.PromoteToElder(ctx, "elder"))
		seedMember(t, store, "alice", 0)

		ann, err := e.PostAnnouncement(ctx, &models.Announcement{Title: "solstice", GiftAmount: 2}, "elder")
		require.NoError(t, err)

		entry, err := e.ClaimGift(ctx, ann.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(2), entry.Amount)

		_, err = e.ClaimGift(ctx, ann.ID, "alice")
		assert.ErrorIs(t, err, storage.ErrAlreadyClaimed)

		balance, err := store.BalanceOf(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(2), balance)
	})

	t.Run("Elder Only", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "regular", 0)

		_, err := e.PostAnnouncement(ctx, &models.Announcement{Title: "hi"}, "regular")

		assert.ErrorIs(t, err, storage.ErrNotElder)
	})
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("Moves Lanterns", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "a", 5)
		seedMember(t, store, "b", 0)

		entry, err := e.Transfer(ctx, "a", "b", 2, "")

		require.NoError(t, err)
		assert.Equal(t, "direct gift", entry.Reason)
		aBal, _ := store.BalanceOf(ctx, "a")
		bBal, _ := store.BalanceOf(ctx, "b")
		assert.Equal(t, int64(3), aBal)
		assert.Equal(t, int64(2), bBal)
	})

	t.Run("Insufficient Balance", func(t *testing.T) {
		e, store := newTestEngine(t)
		seedMember(t, store, "a", 1)
		seedMember(t, store, "b", 0)

		_, err := e.Transfer(ctx, "a", "b", 5, "")

		assert.ErrorIs(t, err, storage.ErrInsufficientBalance)
	})
}
