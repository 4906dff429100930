package sync

import (
	"context"
	"fmt"
	gosync "sync"
)

// Transport moves messages between coordinators. Implementations broadcast:
// a sent message reaches every connected peer, possibly including the
// sender, which filters by session id.
type Transport interface {
	// Send broadcasts a message to the other peers.
	Send(ctx context.Context, msg Message) error

	// Receive returns the channel of inbound messages. The channel closes
	// when the transport does.
	Receive() <-chan Message

	// Close shuts the transport down.
	Close() error
}

// MemoryBus is an in-process Transport fabric joining several coordinators,
// used in tests and single-process setups.
type MemoryBus struct {
	mu      gosync.Mutex
	members []*memoryTransport
	closed  bool
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Join attaches a new transport to the bus.
func (b *MemoryBus) Join() Transport {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := &memoryTransport{bus: b, inbox: make(chan Message, 64)}
	b.members = append(b.members, t)
	return t
}

func (b *MemoryBus) broadcast(from *memoryTransport, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	for _, m := range b.members {
		if m == from || m.closed {
			continue
		}
		select {
		case m.inbox <- msg:
		default:
			// Slow peer; it recovers on its next poll reload.
		}
	}
	return nil
}

func (b *MemoryBus) leave(t *memoryTransport) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t.closed = true
	for i, m := range b.members {
		if m == t {
			b.members = append(b.members[:i], b.members[i+1:]...)
			break
		}
	}
}

type memoryTransport struct {
	bus    *MemoryBus
	inbox  chan Message
	closed bool
}

func (t *memoryTransport) Send(ctx context.Context, msg Message) error {
	return t.bus.broadcast(t, msg)
}

func (t *memoryTransport) Receive() <-chan Message {
	return t.inbox
}

func (t *memoryTransport) Close() error {
	t.bus.leave(t)
	close(t.inbox)
	return nil
}
