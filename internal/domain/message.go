package domain

import "time"

// ChatMessage is one entry in a session's append-only message log. The
// sequence number is assigned by the session registry at receipt time and is
// strictly increasing and gapless per session; client clocks never affect
// ordering.
type ChatMessage struct {
	SessionID      string    `json:"sessionId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	SentAt         time.Time `json:"sentAt"`
	SequenceNumber int64     `json:"sequenceNumber"`
}
