package gateway

import (
	"encoding/json"
	"time"
)

// Outbound event types emitted to connected clients.
const (
	EventChatMessage    = "chat.message"
	EventPresenceUpdate = "presence.update"
	EventStateChanged   = "session.stateChanged"
	EventNotification   = "notification"
	EventError          = "error"
)

// Inbound event types accepted from clients. The set is closed; anything else
// is answered with an error envelope.
const (
	InboundJoin     = "join"
	InboundChatSend = "chat.send"
	InboundPing     = "presence.ping"
	InboundLeave    = "leave"
)

// Envelope is the wire-level contract for every event the gateway emits.
type Envelope struct {
	Type           string    `json:"type"`
	SessionID      string    `json:"sessionId,omitempty"`
	SenderID       string    `json:"senderId,omitempty"`
	SequenceNumber int64     `json:"sequenceNumber,omitempty"`
	Payload        any       `json:"payload"`
	EmittedAt      time.Time `json:"emittedAt"`
}

// NewEnvelope stamps an envelope with the emission time in UTC.
func NewEnvelope(eventType, sessionID string, payload any) Envelope {
	return Envelope{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}
}

// Encode marshals the envelope for transport. Marshal failures are programmer
// errors (payloads are engine-built), so a nil slice is returned and the
// caller drops the frame.
func (e Envelope) Encode() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

// inboundEvent is the decoded form of a client frame.
type inboundEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Text      string `json:"text,omitempty"`
}

// errorPayload is the body of an error envelope.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
