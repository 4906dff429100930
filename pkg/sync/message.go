// Package sync keeps local-fallback stores on different clients convergent.
// Each coordinator broadcasts the collections it has changed and applies
// whatever arrives from peers, last write wins. The protocol is deliberately
// small: a collection payload, a full snapshot, and a snapshot request sent
// on startup.
package sync

import (
	"encoding/json"
	"time"
)

// Message types exchanged between coordinators.
const (
	// TypeCollection carries one collection's full contents.
	TypeCollection = "collection"
	// TypeSnapshot carries the whole store.
	TypeSnapshot = "snapshot"
	// TypeRequestSync asks peers for a full snapshot. Sent on startup.
	TypeRequestSync = "request-sync"
)

// Message is one frame of the sync protocol.
type Message struct {
	Type       string          `json:"type"`
	SenderID   string          `json:"sender_id"`
	Collection string          `json:"collection,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	SentAt     time.Time       `json:"sent_at"`
}
