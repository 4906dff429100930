// Package exchange orchestrates the flare lifecycle on top of the storage
// layer: authorization, the post-completion side effects (trust, elder
// promotion) and the economy thresholds live here, while the stores own
// atomicity.
package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lanternhq/lantern/pkg/economy"
	"github.com/lanternhq/lantern/pkg/metrics"
	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/scheduler"
	"github.com/lanternhq/lantern/pkg/storage"
)

// Config holds the economy thresholds the engine enforces.
type Config struct {
	MaxTrustLevel       int64
	ElderHelpThreshold  int64
	ElderTrustThreshold int64
	WelcomeGrant        int64
	HoardLimit          int64
}

// Engine coordinates exchanges between members.
type Engine struct {
	store     storage.Storage
	deliverer scheduler.Scheduler
	cfg       Config
	logger    *slog.Logger
}

// New creates an Engine. The deliverer fans announcements out and may differ
// per storage mode (SQS remote, inline local).
func New(store storage.Storage, deliverer scheduler.Scheduler, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{store: store, deliverer: deliverer, cfg: cfg, logger: logger}
}

// Register creates a member, redeeming the invite code first when one is
// given, and mints the welcome grant.
func (e *Engine) Register(ctx context.Context, displayName, inviteCode string) (*models.Member, error) {
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", storage.ErrValidation)
	}

	memberID := uuid.New().String()

	// Redeeming before creating keeps the code single-use even when two
	// signups race on it; only the winner proceeds.
	if inviteCode != "" {
		if err := e.store.RedeemInvite(ctx, inviteCode, memberID); err != nil {
			return nil, err
		}
	}

	member, err := e.store.CreateMember(ctx, &models.Member{ID: memberID, DisplayName: displayName})
	if err != nil {
		return nil, err
	}

	if e.cfg.WelcomeGrant > 0 {
		if _, err := e.store.Grant(ctx, member.ID, e.cfg.WelcomeGrant, "welcome grant"); err != nil {
			return nil, fmt.Errorf("failed to mint welcome grant: %w", err)
		}
		member.LanternBalance += e.cfg.WelcomeGrant
		metrics.RecordLanternsMoved("welcome grant", e.cfg.WelcomeGrant)
	}

	e.logger.Info("member registered", "member_id", member.ID, "invited", inviteCode != "")
	return member, nil
}

// PostFlare publishes a new flare.
func (e *Engine) PostFlare(ctx context.Context, flare *models.Flare) (*models.Flare, error) {
	if flare.Type != models.FlareRequest && flare.Type != models.FlareOffer {
		return nil, fmt.Errorf("%w: unknown flare type %q", storage.ErrValidation, flare.Type)
	}
	flare.ID = uuid.New().String()

	created, err := e.store.CreateFlare(ctx, flare)
	if err != nil {
		return nil, err
	}

	metrics.RecordFlareTransition(string(models.FlareActive))
	e.logger.Info("flare posted", "flare_id", created.ID, "owner_id", created.OwnerID, "type", created.Type)
	return created, nil
}

// CancelFlare cancels a flare. Owner only.
func (e *Engine) CancelFlare(ctx context.Context, flareID, requesterID string) error {
	flare, err := e.store.GetFlare(ctx, flareID)
	if err != nil {
		return err
	}
	if flare.OwnerID != requesterID {
		return fmt.Errorf("member %s does not own flare %s: %w", requesterID, flareID, storage.ErrForbidden)
	}

	if err := e.store.CancelFlare(ctx, flareID); err != nil {
		return err
	}

	metrics.RecordFlareTransition(string(models.FlareCancelled))
	e.logger.Info("flare cancelled", "flare_id", flareID)
	return nil
}

// OfferHelp records a pending help request on an active flare.
func (e *Engine) OfferHelp(ctx context.Context, flareID, helperID, message string) (*models.HelpRequest, error) {
	flare, err := e.store.GetFlare(ctx, flareID)
	if err != nil {
		return nil, err
	}
	if flare.OwnerID == helperID {
		return nil, fmt.Errorf("%w: cannot offer help on your own flare", storage.ErrValidation)
	}

	req := &models.HelpRequest{FlareID: flareID, HelperID: helperID, Message: message}
	created, err := e.store.CreateHelpRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	e.logger.Info("help offered", "flare_id", flareID, "helper_id", helperID)
	return created, nil
}

// AcceptHelp accepts one pending offer on the flare. Owner only. Other
// pending offers stay pending until the owner responds to them.
func (e *Engine) AcceptHelp(ctx context.Context, flareID, requestID, requesterID string) (*models.HelpRequest, error) {
	flare, err := e.store.GetFlare(ctx, flareID)
	if err != nil {
		return nil, err
	}
	if flare.OwnerID != requesterID {
		return nil, fmt.Errorf("member %s does not own flare %s: %w", requesterID, flareID, storage.ErrForbidden)
	}

	accepted, err := e.store.AcceptHelp(ctx, flareID, requestID)
	if err != nil {
		return nil, err
	}

	metrics.RecordFlareTransition(string(models.FlareAccepted))
	e.logger.Info("help accepted", "flare_id", flareID, "helper_id", accepted.HelperID)
	return accepted, nil
}

// DenyHelp declines a pending offer. Owner only.
func (e *Engine) DenyHelp(ctx context.Context, flareID, requestID, requesterID string) error {
	req, err := e.store.GetHelpRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.FlareID != flareID {
		return fmt.Errorf("help request %s does not belong to flare %s: %w", requestID, flareID, storage.ErrNotFound)
	}
	if req.OwnerID != requesterID {
		return fmt.Errorf("member %s does not own flare %s: %w", requesterID, flareID, storage.ErrForbidden)
	}

	if err := e.store.DenyHelp(ctx, requestID); err != nil {
		return err
	}

	e.logger.Info("help denied", "flare_id", flareID, "helper_id", req.HelperID)
	return nil
}

// CompleteFlare finishes the exchange. Owner only. The lantern movement is
// committed atomically by the store; the social side effects (completed-help
// count, trust strengthening, elder promotion) follow and are logged rather
// than rolled back if they fail, since the exchange itself already happened.
func (e *Engine) CompleteFlare(ctx context.Context, flareID, requesterID string) (*models.LanternTransaction, error) {
	flare, err := e.store.GetFlare(ctx, flareID)
	if err != nil {
		return nil, err
	}
	if flare.OwnerID != requesterID {
		return nil, fmt.Errorf("member %s does not own flare %s: %w", requesterID, flareID, storage.ErrForbidden)
	}
	if flare.AcceptedBy == nil {
		return nil, fmt.Errorf("flare %s has no accepted helper: %w", flareID, storage.ErrNotAccepted)
	}
	helperID := *flare.AcceptedBy

	entry, err := e.store.CompleteFlare(ctx, flareID, helperID)
	if err != nil {
		return nil, err
	}

	metrics.RecordFlareTransition(string(models.FlareCompleted))
	if entry != nil {
		metrics.RecordLanternsMoved(entry.Reason, entry.Amount)
	}

	helper, err := e.store.RecordCompletedHelp(ctx, helperID)
	if err != nil {
		e.logger.Error("failed to record completed help", "helper_id", helperID, "error", err)
	} else {
		e.maybePromote(ctx, helper)
	}

	if err := e.store.StrengthenConnection(ctx, flare.OwnerID, helperID, e.cfg.MaxTrustLevel); err != nil {
		e.logger.Error("failed to strengthen connection", "flare_id", flareID, "error", err)
	}

	e.logger.Info("flare completed", "flare_id", flareID, "helper_id", helperID, "free", flare.IsFree)
	return entry, nil
}

// Transfer moves lanterns directly between members. The hoard limit is
// advisory: the transfer goes through and the breach is logged.
func (e *Engine) Transfer(ctx context.Context, fromID, toID string, amount int64, reason string) (*models.LanternTransaction, error) {
	if reason == "" {
		reason = "direct gift"
	}

	entry, err := e.store.Transfer(ctx, fromID, toID, amount, reason)
	if err != nil {
		return nil, err
	}

	metrics.RecordLanternsMoved(entry.Reason, entry.Amount)

	if recipient, getErr := e.store.GetMember(ctx, toID); getErr == nil {
		if !economy.WithinHoardLimit(recipient.LanternBalance, e.cfg.HoardLimit) {
			e.logger.Warn("hoard limit exceeded", "member_id", toID, "balance", recipient.LanternBalance)
		}
	}

	return entry, nil
}

// maybePromote promotes the member to elder once either threshold is met.
func (e *Engine) maybePromote(ctx context.Context, m *models.Member) {
	if m.IsElder {
		return
	}
	if !economy.IsElderEligible(m.CompletedHelpCount, m.TrustScore, e.cfg.ElderHelpThreshold, e.cfg.ElderTrustThreshold) {
		return
	}
	if err := e.store.PromoteToElder(ctx, m.ID); err != nil {
		e.logger.Error("failed to promote elder", "member_id", m.ID, "error", err)
		return
	}
	e.logger.Info("member promoted to elder", "member_id", m.ID)
}
