package matching

import "github.com/M-Shameel-375/skill-verse-sub001/internal/pubsub"

// Topic names for pool lifecycle events.
const (
	TopicOfferPublished   = "pool.offer.published"
	TopicRequestPublished = "pool.request.published"
	TopicMatchFound       = "pool.match.found"
)

// OfferPublished is emitted when a new skill offer enters the matchable pool.
type OfferPublished struct {
	OfferID   string `json:"offerId"`
	UserID    string `json:"userId"`
	SkillName string `json:"skillName"`
}

// RequestPublished is emitted when a new skill request enters the matchable pool.
type RequestPublished struct {
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`
	SkillName string `json:"skillName"`
}

// MatchFound is emitted when a freshly published request has at least one
// qualifying candidate.
type MatchFound struct {
	RequestID      string `json:"requestId"`
	RequesterID    string `json:"requesterId"`
	SkillName      string `json:"skillName"`
	CandidateCount int    `json:"candidateCount"`
}

var (
	EventOfferPublished   = pubsub.NewEvent[OfferPublished](TopicOfferPublished, "A skill offer entered the matchable pool")
	EventRequestPublished = pubsub.NewEvent[RequestPublished](TopicRequestPublished, "A skill request entered the matchable pool")
	EventMatchFound       = pubsub.NewEvent[MatchFound](TopicMatchFound, "A published request has qualifying candidates")
)
