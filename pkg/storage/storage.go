package storage

// ApiStore defines the complete set of operations needed by the HTTP API and
// the exchange engine. Components should depend on the more granular
// interfaces (FlareStore, LedgerStore, etc.) instead of this one where they
// can.
type ApiStore interface {
	MemberStore
	FlareStore
	HelpRequestStore
	LedgerStore
	TrustGraphStore
	InviteStore
	AnnouncementStore
}

// Storage defines the root interface for the entire data layer. Both the
// remote-authoritative (DynamoDB) backend and the local-fallback backend
// implement it; the running mode is selected by configuration.
type Storage interface {
	ApiStore
}
