package sync

import (
	"encoding/json"

	"github.com/lanternhq/lantern/pkg/storage/local"
)

// Reconciler merges an inbound collection into the local store. The default
// policy is last write wins; anything stronger belongs in the remote
// backend, not here.
type Reconciler interface {
	Reconcile(store *local.Store, collection string, data json.RawMessage) error
}

// LastWriteWins replaces the local collection with the inbound one
// wholesale. The most recently observed writer of a collection wins.
type LastWriteWins struct{}

// Make sure we conform to the interface
var _ Reconciler = LastWriteWins{}

func (LastWriteWins) Reconcile(store *local.Store, collection string, data json.RawMessage) error {
	return store.ApplyCollection(collection, data)
}
