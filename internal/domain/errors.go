package domain

import "errors"

// Sentinel errors for the exchange engine. All are recoverable at the caller
// boundary; the HTTP handlers and the gateway translate them into user-visible
// responses.
var (
	// ErrAlreadyMatched is returned when a propose call loses the race for an
	// offer or request that a concurrent propose already consumed.
	ErrAlreadyMatched = errors.New("offer or request already consumed by another match")

	// ErrInvalidState is returned when a transition is attempted from a state
	// that does not permit it.
	ErrInvalidState = errors.New("transition not permitted from current session state")

	// ErrInvalidParticipant is returned when a lifecycle action is attempted by
	// a user who is not entitled to perform it.
	ErrInvalidParticipant = errors.New("user may not perform this action on the session")

	// ErrNotParticipant is returned when a realtime operation references a
	// session the user is not bound to.
	ErrNotParticipant = errors.New("user is not a participant of the session")

	// ErrSessionClosed is returned when a realtime operation targets a session
	// that is no longer active.
	ErrSessionClosed = errors.New("session is not active")

	// ErrDuplicateConnection is returned when a connection ID is registered twice.
	ErrDuplicateConnection = errors.New("connection already registered")

	// ErrNotFound is returned for unknown sessions, offers, and requests.
	ErrNotFound = errors.New("requested resource not found")
)
