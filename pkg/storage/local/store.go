// Package local implements the Storage interface with an in-process store.
// It is the fallback backend used when no authoritative remote store is
// configured. A single mutex serializes all mutations, so every compound
// operation commits or fails under one critical section. Cross-client
// convergence is handled by the sync coordinator, which observes mutations
// through the change hook and replaces whole collections on inbound updates.
package local

import (
	"sync"
	"time"

	"github.com/lanternhq/lantern/pkg/models"
	"github.com/lanternhq/lantern/pkg/storage"
)

// Collection names, shared with the sync protocol.
const (
	CollectionMembers            = "users"
	CollectionFlares             = "flares"
	CollectionHelpRequests       = "helpRequests"
	CollectionTransactions       = "transactions"
	CollectionConnections        = "connections"
	CollectionConnectionRequests = "connectionRequests"
	CollectionInviteCodes        = "inviteCodes"
	CollectionAnnouncements      = "announcements"
)

// ChangeHook is invoked after a mutation commits, once per touched
// collection, outside the store lock.
type ChangeHook func(collection string)

// Store is the in-memory local-fallback backend.
type Store struct {
	mu sync.Mutex

	members            map[string]*models.Member
	flares             map[string]*models.Flare
	helpRequests       map[string]*models.HelpRequest
	transactions       []models.LanternTransaction
	connections        map[string]*models.TrustConnection
	connectionRequests map[string]*models.ConnectionRequest
	invites            map[string]*models.InviteCode
	announcements      map[string]*models.Announcement
	recipients         map[string]*models.AnnouncementRecipient

	onChange ChangeHook
}

// New creates an empty local store.
func New() *Store {
	return &Store{
		members:            make(map[string]*models.Member),
		flares:             make(map[string]*models.Flare),
		helpRequests:       make(map[string]*models.HelpRequest),
		connections:        make(map[string]*models.TrustConnection),
		connectionRequests: make(map[string]*models.ConnectionRequest),
		invites:            make(map[string]*models.InviteCode),
		announcements:      make(map[string]*models.Announcement),
		recipients:         make(map[string]*models.AnnouncementRecipient),
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

// SetChangeHook registers the mutation observer. Must be called before the
// store is shared across goroutines.
func (s *Store) SetChangeHook(hook ChangeHook) {
	s.onChange = hook
}

// notify invokes the change hook for each touched collection. Callers must
// not hold the lock.
func (s *Store) notify(collections ...string) {
	if s.onChange == nil {
		return
	}
	for _, c := range collections {
		s.onChange(c)
	}
}

func connKey(a, b string) string {
	x, y := models.Pair(a, b)
	return x + "|" + y
}

func recipientKey(announcementID, memberID string) string {
	return announcementID + "|" + memberID
}

func now() time.Time {
	return time.Now().UTC()
}
