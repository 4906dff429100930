package models

// Status transitions are explicit tables. Anything not listed is rejected,
// so terminal states (completed, cancelled, accepted/denied, accepted/declined)
// have no outgoing edges at all.

var flareTransitions = map[FlareStatus][]FlareStatus{
	FlareActive:   {FlareAccepted, FlareCancelled},
	FlareAccepted: {FlareCompleted, FlareCancelled},
}

// CanTransitionTo reports whether a flare may move from its current status
// to the target status.
func (s FlareStatus) CanTransitionTo(target FlareStatus) bool {
	for _, next := range flareTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Terminal reports whether the flare status has no outgoing transitions.
func (s FlareStatus) Terminal() bool {
	return len(flareTransitions[s]) == 0
}

var helpRequestTransitions = map[HelpRequestStatus][]HelpRequestStatus{
	HelpPending: {HelpAccepted, HelpDenied},
}

// CanTransitionTo reports whether a help request may move from its current
// status to the target status.
func (s HelpRequestStatus) CanTransitionTo(target HelpRequestStatus) bool {
	for _, next := range helpRequestTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Terminal reports whether the help request status has no outgoing transitions.
func (s HelpRequestStatus) Terminal() bool {
	return len(helpRequestTransitions[s]) == 0
}

var connectionRequestTransitions = map[ConnectionRequestStatus][]ConnectionRequestStatus{
	ConnectionPending: {ConnectionAccepted, ConnectionDeclined},
}

// CanTransitionTo reports whether a connection request may move from its
// current status to the target status.
func (s ConnectionRequestStatus) CanTransitionTo(target ConnectionRequestStatus) bool {
	for _, next := range connectionRequestTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Terminal reports whether the connection request status has no outgoing
// transitions.
func (s ConnectionRequestStatus) Terminal() bool {
	return len(connectionRequestTransitions[s]) == 0
}
