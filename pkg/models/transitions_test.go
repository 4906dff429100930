package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlareTransitions(t *testing.T) {
	assert.True(t, FlareActive.CanTransitionTo(FlareAccepted))
	assert.True(t, FlareActive.CanTransitionTo(FlareCancelled))
	assert.True(t, FlareAccepted.CanTransitionTo(FlareCompleted))
	assert.True(t, FlareAccepted.CanTransitionTo(FlareCancelled))

	// Forward-only: no skipping and no edges out of terminal states.
	assert.False(t, FlareActive.CanTransitionTo(FlareCompleted))
	assert.False(t, FlareAccepted.CanTransitionTo(FlareActive))
	assert.False(t, FlareCompleted.CanTransitionTo(FlareCancelled))
	assert.False(t, FlareCancelled.CanTransitionTo(FlareActive))

	assert.True(t, FlareCompleted.Terminal())
	assert.True(t, FlareCancelled.Terminal())
	assert.False(t, FlareActive.Terminal())
}

func TestHelpRequestTransitions(t *testing.T) {
	assert.True(t, HelpPending.CanTransitionTo(HelpAccepted))
	assert.True(t, HelpPending.CanTransitionTo(HelpDenied))
	assert.False(t, HelpAccepted.CanTransitionTo(HelpDenied))
	assert.False(t, HelpDenied.CanTransitionTo(HelpAccepted))
	assert.True(t, HelpAccepted.Terminal())
	assert.True(t, HelpDenied.Terminal())
}

func TestConnectionRequestTransitions(t *testing.T) {
	assert.True(t, ConnectionPending.CanTransitionTo(ConnectionAccepted))
	assert.True(t, ConnectionPending.CanTransitionTo(ConnectionDeclined))
	assert.False(t, ConnectionAccepted.CanTransitionTo(ConnectionDeclined))
	assert.True(t, ConnectionDeclined.Terminal())
}

func TestPair(t *testing.T) {
	a, b := Pair("zoe", "ana")
	assert.Equal(t, "ana", a)
	assert.Equal(t, "zoe", b)

	conn := &TrustConnection{MemberA: "ana", MemberB: "zoe"}
	assert.True(t, conn.Involves("zoe", "ana"))
	assert.True(t, conn.Involves("ana", "zoe"))
	assert.False(t, conn.Involves("ana", "bob"))
}
