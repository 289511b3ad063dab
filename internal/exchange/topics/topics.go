// Package topics defines the event topics owned by the exchange module.
package topics

const (
	// SessionProposed is published when a pending session is created from a
	// request/offer pair.
	SessionProposed = "exchange.session.proposed"

	// SessionAccepted is published when the invited participant accepts.
	SessionAccepted = "exchange.session.accepted"

	// SessionActivated is published when both participants have joined the
	// session room and the session goes live.
	SessionActivated = "exchange.session.activated"

	// SessionClosed is published when a session reaches any terminal state.
	// The payload carries the outcome (completed, rejected, cancelled).
	SessionClosed = "exchange.session.closed"
)

// All returns every topic the exchange module publishes on.
func All() []string {
	return []string{SessionProposed, SessionAccepted, SessionActivated, SessionClosed}
}
