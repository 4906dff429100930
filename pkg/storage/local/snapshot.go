package local

import (
	"encoding/json"
	"fmt"

	"github.com/lanternhq/lantern/pkg/models"
)

// Snapshot is the full serializable state of the local store, one slice per
// shared collection. The sync coordinator persists and exchanges snapshots;
// applying one replaces collections wholesale (last write observed wins).
type Snapshot struct {
	Members            []models.Member                `json:"users"`
	Flares             []models.Flare                 `json:"flares"`
	HelpRequests       []models.HelpRequest           `json:"helpRequests"`
	Transactions       []models.LanternTransaction    `json:"transactions"`
	Connections        []models.TrustConnection       `json:"connections"`
	ConnectionRequests []models.ConnectionRequest     `json:"connectionRequests"`
	InviteCodes        []models.InviteCode            `json:"inviteCodes"`
	Announcements      []models.Announcement          `json:"announcements"`
	Recipients         []models.AnnouncementRecipient `json:"announcementRecipients"`
}

// Export copies the whole store state.
func (s *Store) Export() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		Transactions: append([]models.LanternTransaction(nil), s.transactions...),
	}
	for _, m := range s.members {
		snap.Members = append(snap.Members, *m)
	}
	for _, f := range s.flares {
		snap.Flares = append(snap.Flares, *f)
	}
	for _, r := range s.helpRequests {
		snap.HelpRequests = append(snap.HelpRequests, *r)
	}
	for _, c := range s.connections {
		snap.Connections = append(snap.Connections, *c)
	}
	for _, r := range s.connectionRequests {
		snap.ConnectionRequests = append(snap.ConnectionRequests, *r)
	}
	for _, i := range s.invites {
		snap.InviteCodes = append(snap.InviteCodes, *i)
	}
	for _, a := range s.announcements {
		snap.Announcements = append(snap.Announcements, *a)
	}
	for _, r := range s.recipients {
		snap.Recipients = append(snap.Recipients, *r)
	}
	return snap
}

// ExportCollection marshals one shared collection.
func (s *Store) ExportCollection(collection string) (json.RawMessage, error) {
	snap := s.Export()

	var v any
	switch collection {
	case CollectionMembers:
		v = snap.Members
	case CollectionFlares:
		v = snap.Flares
	case CollectionHelpRequests:
		v = snap.HelpRequests
	case CollectionTransactions:
		v = snap.Transactions
	case CollectionConnections:
		v = snap.Connections
	case CollectionConnectionRequests:
		v = snap.ConnectionRequests
	case CollectionInviteCodes:
		v = snap.InviteCodes
	case CollectionAnnouncements:
		// Announcements and their recipient rows travel together.
		v = struct {
			Announcements []models.Announcement          `json:"announcements"`
			Recipients    []models.AnnouncementRecipient `json:"announcementRecipients"`
		}{snap.Announcements, snap.Recipients}
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	return json.Marshal(v)
}

// ApplyCollection replaces one shared collection with inbound data. No merge
// is attempted: the inbound copy wins, which is the documented weak
// consistency model of local-fallback mode.
func (s *Store) ApplyCollection(collection string, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch collection {
	case CollectionMembers:
		var members []models.Member
		if err := json.Unmarshal(data, &members); err != nil {
			return fmt.Errorf("unmarshal %s: %w", collection, err)
		}
		s.members = make(map[string]*models.Member, len(members))
		for i := range members {
			s.members[members[i].ID] = &members[i]
		}
	case CollectionFlares:
		var flares []models.Flare
		if err := json.Unmarshal(data, &flares); err != nil {
			return fmt.Errorf("unmarshal %s: %w", collection, err)
		}
		s.flares = make(map[string]*models.Flare, len(flares))
		for i := range flares {
			s.flares[flares[i].ID] = &flares[i]
		}
	case CollectionHelpRequests:
		var requests []models.HelpRequest
		if err := json.Unmarshal(data, &requests); err != nil {
			return fmt.Errorf("unmarshal %s: %w", collection, err)
		}
		s.helpRequests = make(map[string]*models.HelpRequest, len(requests))
		for i := range requests {
			s.helpRequests[requests[i].ID] = &requests[i]
		}
	case CollectionTransactions:
		var txs []models.LanternTransaction
		if err := json.Unmarshal(data, &txs); err != nil {
			return fmt.Errorf("unmarshal %s: %w", collection, err)
		}
		s.transactions = txs
	case CollectionConnections:
		var conns []models.TrustConnection
		if err := json.Unmarshal(data, &conns); err != nil {
			return fmt.Errorf("unmarshal %s: %w", collection, err)
		}
		s.connections = make(map[string]*models.TrustConnection, len(conns))
		for i := range conns {
			s.connections[connKey(conns[i].MemberA, conns[i].MemberB)] = &conns[i]
		}
	case CollectionConnectionRequests:
		var requests []models.ConnectionRequest
		if err := json.Unmarshal(data, &requests); err != nil {
			return fmt.Errorf("unmarshal %s: %w", collection, err)
		}
		s.connectionRequests = make(map[string]*models.ConnectionRequest, len(requests))
		for i := range requests {
			s.connectionRequests[requests[i].ID] = &requests[i]
		}
	case CollectionInviteCodes:
		var invites []models.InviteCode
		if err := json.Unmarshal(data, &invites); err != nil {
			return fmt.Errorf("unmarshal %s: %w", collection, err)
		}
		s.invites = make(map[string]*models.InviteCode, len(invites))
		for i := range invites {
			s.invites[invites[i].Code] = &invites[i]
		}
	case CollectionAnnouncements:
		var payload struct {
			Announcements []models.Announcement          `json:"announcements"`
			Recipients    []models.AnnouncementRecipient `json:"announcementRecipients"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("unmarshal %s: %w", collection, err)
		}
		s.announcements = make(map[string]*models.Announcement, len(payload.Announcements))
		for i := range payload.Announcements {
			s.announcements[payload.Announcements[i].ID] = &payload.Announcements[i]
		}
		s.recipients = make(map[string]*models.AnnouncementRecipient, len(payload.Recipients))
		for i := range payload.Recipients {
			r := &payload.Recipients[i]
			s.recipients[recipientKey(r.AnnouncementID, r.MemberID)] = r
		}
	default:
		return fmt.Errorf("unknown collection %q", collection)
	}
	return nil
}

// ApplySnapshot replaces the whole store state.
func (s *Store) ApplySnapshot(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members = make(map[string]*models.Member, len(snap.Members))
	for i := range snap.Members {
		s.members[snap.Members[i].ID] = &snap.Members[i]
	}
	s.flares = make(map[string]*models.Flare, len(snap.Flares))
	for i := range snap.Flares {
		s.flares[snap.Flares[i].ID] = &snap.Flares[i]
	}
	s.helpRequests = make(map[string]*models.HelpRequest, len(snap.HelpRequests))
	for i := range snap.HelpRequests {
		s.helpRequests[snap.HelpRequests[i].ID] = &snap.HelpRequests[i]
	}
	s.transactions = append([]models.LanternTransaction(nil), snap.Transactions...)
	s.connections = make(map[string]*models.TrustConnection, len(snap.Connections))
	for i := range snap.Connections {
		c := &snap.Connections[i]
		s.connections[connKey(c.MemberA, c.MemberB)] = c
	}
	s.connectionRequests = make(map[string]*models.ConnectionRequest, len(snap.ConnectionRequests))
	for i := range snap.ConnectionRequests {
		s.connectionRequests[snap.ConnectionRequests[i].ID] = &snap.ConnectionRequests[i]
	}
	s.invites = make(map[string]*models.InviteCode, len(snap.InviteCodes))
	for i := range snap.InviteCodes {
		s.invites[snap.InviteCodes[i].Code] = &snap.InviteCodes[i]
	}
	s.announcements = make(map[string]*models.Announcement, len(snap.Announcements))
	for i := range snap.Announcements {
		s.announcements[snap.Announcements[i].ID] = &snap.Announcements[i]
	}
	s.recipients = make(map[string]*models.AnnouncementRecipient, len(snap.Recipients))
	for i := range snap.Recipients {
		r := &snap.Recipients[i]
		s.recipients[recipientKey(r.AnnouncementID, r.MemberID)] = r
	}
}
