package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
)

// SurrealStore implements domain.Repository and domain.NotificationStore on
// SurrealDB. The engine treats the store as a document repository; schema and
// indexing live on the database side.
type SurrealStore struct {
	db *surrealdb.DB
}

// NewSurrealStore creates a store over an established connection.
func NewSurrealStore(db *surrealdb.DB) *SurrealStore {
	return &SurrealStore{db: db}
}

// LoadOpenOffers returns the open (unconsumed) offers for a skill, oldest first.
func (s *SurrealStore) LoadOpenOffers(ctx context.Context, skillName string) ([]domain.SkillOffer, error) {
	query := "SELECT * FROM offer WHERE skillName = $skill AND consumed = false ORDER BY createdAt ASC"
	params := map[string]any{"skill": skillName}

	offers, err := Query[domain.SkillOffer](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to load open offers: %w", err)
	}
	return offers, nil
}

// LoadOpenRequests returns the open (unconsumed) requests for a skill, oldest first.
func (s *SurrealStore) LoadOpenRequests(ctx context.Context, skillName string) ([]domain.SkillRequest, error) {
	query := "SELECT * FROM request WHERE skillName = $skill AND consumed = false ORDER BY createdAt ASC"
	params := map[string]any{"skill": skillName}

	requests, err := Query[domain.SkillRequest](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to load open requests: %w", err)
	}
	return requests, nil
}

// SaveSession upserts the session snapshot keyed by its engine-assigned ID.
func (s *SurrealStore) SaveSession(ctx context.Context, session *domain.ExchangeSession) error {
	query := "UPSERT type::thing('session', $id) CONTENT $session"
	params := map[string]any{
		"id":      session.ID,
		"session": session,
	}

	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

// AppendChatLog stores one chat message. The transcript is keyed by session
// and sequence number, so arrival order at the store does not matter.
func (s *SurrealStore) AppendChatLog(ctx context.Context, sessionID string, msg domain.ChatMessage) error {
	query := "CREATE chat_message CONTENT $message"
	params := map[string]any{"message": msg}

	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to append chat log for session %s: %w", sessionID, err)
	}
	return nil
}

// Enqueue stores a notification for later delivery. The store owns dedup and
// read state; the engine only appends.
func (s *SurrealStore) Enqueue(ctx context.Context, userID, eventType string, payload []byte) error {
	query := "CREATE notification SET userId = $user, eventType = $event, payload = $payload, enqueuedAt = $at, delivered = false"
	params := map[string]any{
		"user":    userID,
		"event":   eventType,
		"payload": string(payload),
		"at":      time.Now().UTC(),
	}

	if err := Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to enqueue notification for %s: %w", userID, err)
	}
	return nil
}
