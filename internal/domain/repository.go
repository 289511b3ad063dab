package domain

import "context"

// Repository is the narrow persistence contract the engine consumes. The
// engine calls these but does not define storage format; the document store
// behind it owns durability and indexing.
//
// It lives in the domain because it's a requirement OF the domain, not of the
// database implementation.
type Repository interface {
	LoadOpenOffers(ctx context.Context, skillName string) ([]SkillOffer, error)
	LoadOpenRequests(ctx context.Context, skillName string) ([]SkillRequest, error)
	SaveSession(ctx context.Context, session *ExchangeSession) error
	AppendChatLog(ctx context.Context, sessionID string, msg ChatMessage) error
}

// NotificationStore is the external persistent notification queue. Delivery is
// at-least-once; the store is responsible for dedup and read state.
type NotificationStore interface {
	Enqueue(ctx context.Context, userID, eventType string, payload []byte) error
}
