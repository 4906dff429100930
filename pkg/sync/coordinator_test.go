package sync

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/storage/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedMember(t *testing.T, store *local.Store, id string) {
	t.Helper()
	_, err := store.CreateMember(context.Background(), &models.Member{ID: id, DisplayName: id})
	require.NoError(t, err)
}

func hasMember(store *local.Store, id string) bool {
	_, err := store.GetMember(context.Background(), id)
	return err == nil
}

func TestCoordinatorConvergence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewMemoryBus()
	storeA := local.New()
	storeB := local.New()
	coordA := NewCoordinator(storeA, bus.Join(), nil, 10*time.Millisecond, testLogger())
	coordB := NewCoordinator(storeB, bus.Join(), nil, 10*time.Millisecond, testLogger())

	go coordA.Run(ctx)
	go coordB.Run(ctx)

	seedMember(t, storeA, "ada")

	assert.Eventually(t, func() bool {
		return hasMember(storeB, "ada")
	}, 2*time.Second, 10*time.Millisecond, "member should replicate to the peer store")
}

func TestLateJoinerRequestsSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewMemoryBus()
	storeA := local.New()
	coordA := NewCoordinator(storeA, bus.Join(), nil, 10*time.Millisecond, testLogger())
	go coordA.Run(ctx)

	seedMember(t, storeA, "ada")
	seedMember(t, storeA, "lin")

	// Give the first coordinator time to drain its dirty set, so the late
	// joiner can only learn the data through the snapshot handshake.
	time.Sleep(50 * time.Millisecond)

	storeB := local.New()
	coordB := NewCoordinator(storeB, bus.Join(), nil, 10*time.Millisecond, testLogger())
	go coordB.Run(ctx)

	assert.Eventually(t, func() bool {
		return hasMember(storeB, "ada") && hasMember(storeB, "lin")
	}, 2*time.Second, 10*time.Millisecond, "late joiner should receive a full snapshot")
}

func TestCompoundStateReplicates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewMemoryBus()
	storeA := local.New()
	storeB := local.New()
	coordA := NewCoordinator(storeA, bus.Join(), nil, 10*time.Millisecond, testLogger())
	coordB := NewCoordinator(storeB, bus.Join(), nil, 10*time.Millisecond, testLogger())
	go coordA.Run(ctx)
	go coordB.Run(ctx)

	seedMember(t, storeA, "owner")
	seedMember(t, storeA, "helper")
	_, err := storeA.Grant(context.Background(), "owner", 3, "seed")
	require.NoError(t, err)

	flare, err := storeA.CreateFlare(context.Background(), &models.Flare{
		ID: "flare-1", OwnerID: "owner", Type: models.FlareRequest, Category: "errands", Description: "boxes",
	})
	require.NoError(t, err)
	req, err := storeA.CreateHelpRequest(context.Background(), &models.HelpRequest{FlareID: flare.ID, HelperID: "helper"})
	require.NoError(t, err)
	_, err = storeA.AcceptHelp(context.Background(), flare.ID, req.ID)
	require.NoError(t, err)
	_, err = storeA.CompleteFlare(context.Background(), flare.ID, "helper")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		replicated, err := storeB.GetFlare(context.Background(), flare.ID)
		if err != nil || replicated.Status != models.FlareCompleted {
			return false
		}
		helperBal, err := storeB.BalanceOf(context.Background(), "helper")
		return err == nil && helperBal == 1
	}, 2*time.Second, 10*time.Millisecond, "completed exchange and ledger should replicate")
}

func TestPollReloadCatchesMissedBroadcasts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Two nodes sharing a data directory but with no transport path between
	// them: every broadcast is effectively dropped, so the only way state can
	// move is the poll reload of the shared snapshot file.
	dir := t.TempDir()
	storeA := local.New()
	storeB := local.New()
	coordA := NewCoordinator(storeA, NewMemoryBus().Join(), &SnapshotStore{Dir: dir}, 10*time.Millisecond, testLogger())
	coordB := NewCoordinator(storeB, NewMemoryBus().Join(), &SnapshotStore{Dir: dir}, 10*time.Millisecond, testLogger())

	go coordA.Run(ctx)
	go coordB.Run(ctx)

	seedMember(t, storeA, "ada")

	assert.Eventually(t, func() bool {
		return hasMember(storeB, "ada")
	}, 2*time.Second, 10*time.Millisecond, "peer should pick the write up from shared storage")
}

func TestReloadSkippedWhileDirty(t *testing.T) {
	// An unflushed local write must survive a reload of an older snapshot.
	dir := t.TempDir()
	files := &SnapshotStore{Dir: dir}
	require.NoError(t, files.Save(local.New().Export()))

	store := local.New()
	coord := NewCoordinator(store, NewMemoryBus().Join(), files, time.Hour, testLogger())

	seedMember(t, store, "ada")
	coord.reload()

	assert.True(t, hasMember(store, "ada"), "pending write should not be wiped by a stale snapshot")
}

func TestSnapshotStorePersistsAcrossRestart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	bus := NewMemoryBus()

	storeA := local.New()
	coordA := NewCoordinator(storeA, bus.Join(), &SnapshotStore{Dir: dir}, 10*time.Millisecond, testLogger())
	done := make(chan struct{})
	runCtx, stop := context.WithCancel(ctx)
	go func() {
		coordA.Run(runCtx)
		close(done)
	}()

	seedMember(t, storeA, "ada")

	assert.Eventually(t, func() bool {
		files := &SnapshotStore{Dir: dir}
		snap, err := files.Load()
		return err == nil && snap != nil && len(snap.Members) == 1
	}, 2*time.Second, 10*time.Millisecond, "snapshot should reach disk")

	stop()
	<-done

	// A fresh store on the same directory restores the saved state.
	storeB := local.New()
	coordB := NewCoordinator(storeB, bus.Join(), &SnapshotStore{Dir: dir}, 10*time.Millisecond, testLogger())
	go coordB.Run(ctx)

	assert.Eventually(t, func() bool {
		return hasMember(storeB, "ada")
	}, 2*time.Second, 10*time.Millisecond, "restart should restore from the snapshot file")
}

func TestSnapshotStoreLoadMissing(t *testing.T) {
	files := &SnapshotStore{Dir: t.TempDir()}

	snap, err := files.Load()

	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestApplyKeepsBalancesConsistent(t *testing.T) {
	// A replicated ledger must agree with the replicated cached balances.
	storeA := local.New()
	seedMember(t, storeA, "ada")
	_, err := storeA.Grant(context.Background(), "ada", 3, "seed")
	require.NoError(t, err)

	storeB := local.New()
	storeB.ApplySnapshot(storeA.Export())

	member, err := storeB.GetMember(context.Background(), "ada")
	require.NoError(t, err)
	balance, err := storeB.BalanceOf(context.Background(), "ada")
	require.NoError(t, err)
	assert.Equal(t, member.LanternBalance, balance)

	_, err = storeB.GetMember(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
