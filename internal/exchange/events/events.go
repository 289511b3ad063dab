// Package events defines the typed domain events emitted by the exchange
// state machine. Side effects of transitions are observable only through
// these events.
package events

import (
	"time"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/exchange/topics"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/pubsub"
)

// Outcomes carried by SessionClosed.
const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
)

// SessionProposed announces a new pending session to the offer owner.
type SessionProposed struct {
	SessionID    string    `json:"sessionId"`
	RequestID    string    `json:"requestId"`
	OfferID      string    `json:"offerId"`
	RequesterID  string    `json:"requesterId"`
	OfferOwnerID string    `json:"offerOwnerId"`
	SkillName    string    `json:"skillName"`
	ProposedAt   time.Time `json:"proposedAt"`
}

// SessionAccepted announces that the invited participant accepted.
type SessionAccepted struct {
	SessionID    string `json:"sessionId"`
	AcceptedBy   string `json:"acceptedBy"`
	ParticipantA string `json:"participantA"`
	ParticipantB string `json:"participantB"`
}

// SessionActivated announces that the session went live.
type SessionActivated struct {
	SessionID    string `json:"sessionId"`
	ParticipantA string `json:"participantA"`
	ParticipantB string `json:"participantB"`
}

// SessionClosed announces a terminal transition together with its outcome.
type SessionClosed struct {
	SessionID    string `json:"sessionId"`
	Outcome      string `json:"outcome"`
	Reason       string `json:"reason,omitempty"`
	ParticipantA string `json:"participantA"`
	ParticipantB string `json:"participantB"`
}

var (
	Proposed  = pubsub.NewEvent[SessionProposed](topics.SessionProposed, "A pending exchange session was created")
	Accepted  = pubsub.NewEvent[SessionAccepted](topics.SessionAccepted, "The invited participant accepted the session")
	Activated = pubsub.NewEvent[SessionActivated](topics.SessionActivated, "Both participants joined and the session went live")
	Closed    = pubsub.NewEvent[SessionClosed](topics.SessionClosed, "The session reached a terminal state")
)
