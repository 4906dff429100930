package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/lanternhq/lantern/pkg/metrics"
	"github.com/lanternhq/lantern/pkg/storage/local"
)

// Coordinator keeps one local store convergent with its peers. Local
// mutations are observed through the store's change hook and broadcast on
// the next poll tick; inbound collections replace local ones wholesale, so
// the last writer of a collection wins. The tick also re-reads the snapshot
// file, so nodes sharing a data directory converge even when a broadcast
// frame was dropped.
type Coordinator struct {
	store     *local.Store
	transport Transport
	files     *SnapshotStore
	sessionID string
	interval  time.Duration
	logger    *slog.Logger
	reconcile Reconciler

	mu    gosync.Mutex
	dirty map[string]bool
}

// NewCoordinator wires a coordinator to a local store. The files store may
// be nil when on-disk persistence is not wanted.
func NewCoordinator(store *local.Store, transport Transport, files *SnapshotStore, interval time.Duration, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		store:     store,
		transport: transport,
		files:     files,
		sessionID: uuid.New().String(),
		interval:  interval,
		logger:    logger,
		reconcile: LastWriteWins{},
		dirty:     make(map[string]bool),
	}
	store.SetChangeHook(c.markDirty)
	return c
}

// SessionID identifies this coordinator in outbound messages.
func (c *Coordinator) SessionID() string {
	return c.sessionID
}

func (c *Coordinator) markDirty(collection string) {
	c.mu.Lock()
	c.dirty[collection] = true
	c.mu.Unlock()
}

func (c *Coordinator) takeDirty() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.dirty) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.dirty))
	for name := range c.dirty {
		out = append(out, name)
	}
	c.dirty = make(map[string]bool)
	return out
}

// Run restores persisted state, asks peers for a snapshot and then pumps the
// poll/receive loop until the context is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.files != nil {
		snap, err := c.files.Load()
		if err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		if snap != nil {
			c.store.ApplySnapshot(snap)
			c.logger.Info("restored snapshot from disk")
		}
	}

	if err := c.transport.Send(ctx, Message{
		Type:     TypeRequestSync,
		SenderID: c.sessionID,
		SentAt:   time.Now().UTC(),
	}); err != nil {
		c.logger.Error("failed to request sync", "error", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush(context.Background())
			return ctx.Err()
		case <-ticker.C:
			c.flush(ctx)
			c.reload()
		case msg, ok := <-c.transport.Receive():
			if !ok {
				return fmt.Errorf("sync transport closed")
			}
			c.handle(ctx, msg)
		}
	}
}

// flush broadcasts every collection mutated since the last tick and
// persists the snapshot.
func (c *Coordinator) flush(ctx context.Context) {
	changed := c.takeDirty()
	if len(changed) == 0 {
		return
	}

	start := time.Now()
	result := "ok"
	for _, name := range changed {
		data, err := c.store.ExportCollection(name)
		if err != nil {
			c.logger.Error("failed to export collection", "collection", name, "error", err)
			result = "error"
			continue
		}
		err = c.transport.Send(ctx, Message{
			Type:       TypeCollection,
			SenderID:   c.sessionID,
			Collection: name,
			Data:       data,
			SentAt:     time.Now().UTC(),
		})
		if err != nil {
			c.logger.Error("failed to broadcast collection", "collection", name, "error", err)
			result = "error"
		}
	}

	c.persist()
	metrics.RecordSyncCycle(result, time.Since(start))
}

// reload re-reads the snapshot file on the poll tick, picking up writes from
// peers whose broadcast this node missed. Skipped while local changes are
// still unflushed, so a stale file cannot wipe them.
func (c *Coordinator) reload() {
	if c.files == nil {
		return
	}
	c.mu.Lock()
	pending := len(c.dirty) > 0
	c.mu.Unlock()
	if pending {
		return
	}

	snap, err := c.files.Load()
	if err != nil {
		c.logger.Error("failed to reload snapshot", "error", err)
		return
	}
	if snap == nil {
		return
	}
	c.store.ApplySnapshot(snap)
}

func (c *Coordinator) handle(ctx context.Context, msg Message) {
	if msg.SenderID == c.sessionID {
		return
	}

	switch msg.Type {
	case TypeCollection:
		if err := c.reconcile.Reconcile(c.store, msg.Collection, msg.Data); err != nil {
			c.logger.Error("failed to apply collection", "collection", msg.Collection, "error", err)
			return
		}
		c.persist()
	case TypeSnapshot:
		var snap local.Snapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			c.logger.Error("failed to decode snapshot", "error", err)
			return
		}
		c.store.ApplySnapshot(&snap)
		c.persist()
	case TypeRequestSync:
		c.sendSnapshot(ctx)
	default:
		c.logger.Warn("unknown sync message type", "type", msg.Type)
	}
}

func (c *Coordinator) sendSnapshot(ctx context.Context) {
	data, err := json.Marshal(c.store.Export())
	if err != nil {
		c.logger.Error("failed to encode snapshot", "error", err)
		return
	}
	err = c.transport.Send(ctx, Message{
		Type:     TypeSnapshot,
		SenderID: c.sessionID,
		Data:     data,
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		c.logger.Error("failed to send snapshot", "error", err)
	}
}

func (c *Coordinator) persist() {
	if c.files == nil {
		return
	}
	if err := c.files.Save(c.store.Export()); err != nil {
		c.logger.Error("failed to persist snapshot", "error", err)
	}
}
