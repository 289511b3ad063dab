package domain

import "time"

// SessionState is the lifecycle state of an ExchangeSession.
type SessionState string

const (
	StatePending   SessionState = "PENDING"
	StateAccepted  SessionState = "ACCEPTED"
	StateActive    SessionState = "ACTIVE"
	StateCompleted SessionState = "COMPLETED"
	StateRejected  SessionState = "REJECTED"
	StateCancelled SessionState = "CANCELLED"
)

// IsTerminal reports whether no further transitions are possible from s.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateRejected, StateCancelled:
		return true
	}
	return false
}

// ExchangeSession owns the pairing between two users for a given skill pair.
// ParticipantA is the requester, ParticipantB the offer owner. Participants
// are immutable once the session leaves PENDING; state is mutated only by the
// exchange manager.
type ExchangeSession struct {
	ID            string       `json:"id"`
	ParticipantA  string       `json:"participantA"`
	ParticipantB  string       `json:"participantB"`
	OfferedSkillA string       `json:"offeredSkillA,omitempty"`
	OfferedSkillB string       `json:"offeredSkillB"`
	RequestID     string       `json:"requestId"`
	OfferID       string       `json:"offerId"`
	State         SessionState `json:"state"`
	Reason        string       `json:"reason,omitempty"`
	ScheduledTime *time.Time   `json:"scheduledTime,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	ClosedAt      *time.Time   `json:"closedAt,omitempty"`
	TranscriptRef string       `json:"transcriptRef,omitempty"`
}

// HasParticipant reports whether userID is one of the two participants.
func (s *ExchangeSession) HasParticipant(userID string) bool {
	return userID == s.ParticipantA || userID == s.ParticipantB
}

// Counterpart returns the other participant, or "" if userID is not one.
func (s *ExchangeSession) Counterpart(userID string) string {
	switch userID {
	case s.ParticipantA:
		return s.ParticipantB
	case s.ParticipantB:
		return s.ParticipantA
	}
	return ""
}
