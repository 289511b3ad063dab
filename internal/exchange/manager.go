// Package exchange owns the lifecycle of skill-exchange sessions. All state
// transitions go through the Manager; nothing else mutates a session.
package exchange

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/exchange/events"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/matching"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/pubsub"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// session pairs the domain data with the mutex that serializes its
// transitions. Guard checks are re-evaluated after acquiring the lock, so an
// in-flight accept racing a cancel either completes against the pre-cancel
// state or fails its guard; last-writer-wins cannot happen.
type session struct {
	mu   sync.Mutex
	data domain.ExchangeSession
}

// Manager is the exchange session state machine. Cross-session transitions are
// independent and proceed in parallel; transitions on one session are
// serialized by its per-session lock. Persistence and event publishing happen
// after the lock is released, never under it.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session

	pool      *matching.Pool
	repo      domain.Repository
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewManager creates a session manager backed by the given pool, repository
// and event publisher.
func NewManager(pool *matching.Pool, repo domain.Repository, publisher pubsub.Publisher) *Manager {
	return &Manager{
		sessions:  make(map[string]*session),
		pool:      pool,
		repo:      repo,
		publisher: publisher,
		logger:    slog.Default().With("service", "exchange"),
	}
}

// Propose atomically consumes the request/offer pair and creates a session in
// PENDING. Exactly one of two concurrent proposals racing on the same offer
// succeeds; the loser receives ErrAlreadyMatched from the pool.
func (m *Manager) Propose(ctx context.Context, requestID, offerID string) (domain.ExchangeSession, error) {
	req, offer, err := m.pool.ConsumePair(requestID, offerID)
	if err != nil {
		return domain.ExchangeSession{}, err
	}

	data := domain.ExchangeSession{
		ID:            uuid.NewString(),
		ParticipantA:  req.UserID,
		ParticipantB:  offer.UserID,
		OfferedSkillB: offer.SkillName,
		RequestID:     req.ID,
		OfferID:       offer.ID,
		State:         domain.StatePending,
		CreatedAt:     Now(),
	}
	// For a bidirectional exchange, record what the requester teaches back.
	if skill, ok := m.pool.MutualSkill(req.UserID, offer.UserID); ok {
		data.OfferedSkillA = skill
	}

	// At most one open session per user pair and skill. Checked under the map
	// lock together with the insert, so two racing proposals between the same
	// users cannot both pass; the loser's pair goes back to the pool untouched.
	m.mu.Lock()
	if m.openPairingLocked(req.UserID, offer.UserID, offer.SkillName) {
		m.mu.Unlock()
		m.pool.Release(requestID, offerID)
		return domain.ExchangeSession{}, domain.ErrAlreadyMatched
	}
	m.sessions[data.ID] = &session{data: data}
	m.mu.Unlock()

	m.logger.Info("Session proposed",
		"session_id", data.ID,
		"requester", data.ParticipantA,
		"offer_owner", data.ParticipantB,
		"skill", data.OfferedSkillB)

	m.persist(ctx, data)
	emit(ctx, m, events.Proposed, events.SessionProposed{
		SessionID:    data.ID,
		RequestID:    data.RequestID,
		OfferID:      data.OfferID,
		RequesterID:  data.ParticipantA,
		OfferOwnerID: data.ParticipantB,
		SkillName:    data.OfferedSkillB,
		ProposedAt:   data.CreatedAt,
	})
	return data, nil
}

// Accept moves a pending session to ACCEPTED. Only the invited participant
// (the offer owner) may accept.
func (m *Manager) Accept(ctx context.Context, sessionID, byUserID string) error {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.data.State != domain.StatePending {
		sess.mu.Unlock()
		return domain.ErrInvalidState
	}
	if byUserID != sess.data.ParticipantB {
		sess.mu.Unlock()
		return domain.ErrInvalidParticipant
	}
	sess.data.State = domain.StateAccepted
	data := sess.data
	sess.mu.Unlock()

	m.logger.Info("Session accepted", "session_id", sessionID, "by", byUserID)
	m.persist(ctx, data)
	emit(ctx, m, events.Accepted, events.SessionAccepted{
		SessionID:    data.ID,
		AcceptedBy:   byUserID,
		ParticipantA: data.ParticipantA,
		ParticipantB: data.ParticipantB,
	})
	return nil
}

// Reject moves a pending session to REJECTED and releases the consumed
// request/offer pair back to the matchable pool. Only the invited participant
// may reject.
func (m *Manager) Reject(ctx context.Context, sessionID, byUserID string) error {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.data.State != domain.StatePending {
		sess.mu.Unlock()
		return domain.ErrInvalidState
	}
	if byUserID != sess.data.ParticipantB {
		sess.mu.Unlock()
		return domain.ErrInvalidParticipant
	}
	sess.data.State = domain.StateRejected
	now := Now()
	sess.data.ClosedAt = &now
	data := sess.data
	sess.mu.Unlock()

	m.pool.Release(data.RequestID, data.OfferID)

	m.logger.Info("Session rejected", "session_id", sessionID, "by", byUserID)
	m.persist(ctx, data)
	m.emitClosed(ctx, data, events.OutcomeRejected, "")
	return nil
}

// Activate moves an accepted session to ACTIVE. It is idempotent: activating
// an already active session is a no-op and emits nothing.
func (m *Manager) Activate(ctx context.Context, sessionID string) error {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.data.State == domain.StateActive {
		sess.mu.Unlock()
		return nil
	}
	if sess.data.State != domain.StateAccepted {
		sess.mu.Unlock()
		return domain.ErrInvalidState
	}
	sess.data.State = domain.StateActive
	data := sess.data
	sess.mu.Unlock()

	m.logger.Info("Session activated", "session_id", sessionID)
	m.persist(ctx, data)
	emit(ctx, m, events.Activated, events.SessionActivated{
		SessionID:    data.ID,
		ParticipantA: data.ParticipantA,
		ParticipantB: data.ParticipantB,
	})
	return nil
}

// Complete moves an active session to COMPLETED. Rating and certificate hooks
// listen for the closed event; the engine itself does not call them.
func (m *Manager) Complete(ctx context.Context, sessionID string) error {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.data.State != domain.StateActive {
		sess.mu.Unlock()
		return domain.ErrInvalidState
	}
	sess.data.State = domain.StateCompleted
	now := Now()
	sess.data.ClosedAt = &now
	data := sess.data
	sess.mu.Unlock()

	m.pool.Discard(data.RequestID, data.OfferID)

	m.logger.Info("Session completed", "session_id", sessionID)
	m.persist(ctx, data)
	m.emitClosed(ctx, data, events.OutcomeCompleted, "")
	return nil
}

// Cancel moves any non-terminal session to CANCELLED, recording the reason.
// A pending session returns its pair to the pool; otherwise the pair stays
// consumed.
func (m *Manager) Cancel(ctx context.Context, sessionID, reason string) error {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.data.State.IsTerminal() {
		sess.mu.Unlock()
		return domain.ErrInvalidState
	}
	wasPending := sess.data.State == domain.StatePending
	sess.data.State = domain.StateCancelled
	sess.data.Reason = reason
	now := Now()
	sess.data.ClosedAt = &now
	data := sess.data
	sess.mu.Unlock()

	if wasPending {
		m.pool.Release(data.RequestID, data.OfferID)
	} else {
		m.pool.Discard(data.RequestID, data.OfferID)
	}

	m.logger.Info("Session cancelled", "session_id", sessionID, "reason", reason)
	m.persist(ctx, data)
	m.emitClosed(ctx, data, events.OutcomeCancelled, reason)
	return nil
}

// Get returns a copy of the session.
func (m *Manager) Get(sessionID string) (domain.ExchangeSession, error) {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return domain.ExchangeSession{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.data, nil
}

// openPairingLocked reports whether a non-terminal session already pairs the
// two users for the same taught skill. Callers hold m.mu.
func (m *Manager) openPairingLocked(userA, userB, skillName string) bool {
	for _, sess := range m.sessions {
		sess.mu.Lock()
		data := sess.data
		sess.mu.Unlock()

		if data.State.IsTerminal() || data.OfferedSkillB != skillName {
			continue
		}
		if data.HasParticipant(userA) && data.HasParticipant(userB) {
			return true
		}
	}
	return false
}

func (m *Manager) lookup(sessionID string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

// persist writes the session snapshot through the repository. The in-memory
// state is authoritative for the engine; a failed write is logged and retried
// implicitly by the next transition's save.
func (m *Manager) persist(ctx context.Context, data domain.ExchangeSession) {
	if m.repo == nil {
		return
	}
	if err := m.repo.SaveSession(ctx, &data); err != nil {
		m.logger.Error("Failed to persist session", "session_id", data.ID, "error", err)
	}
}

func (m *Manager) emitClosed(ctx context.Context, data domain.ExchangeSession, outcome, reason string) {
	emit(ctx, m, events.Closed, events.SessionClosed{
		SessionID:    data.ID,
		Outcome:      outcome,
		Reason:       reason,
		ParticipantA: data.ParticipantA,
		ParticipantB: data.ParticipantB,
	})
}

// emit is a free function because methods cannot carry type parameters.
func emit[T any](ctx context.Context, m *Manager, event pubsub.Event[T], payload T) {
	if m.publisher == nil {
		return
	}
	if err := pubsub.Publish(ctx, m.publisher, event, payload); err != nil {
		m.logger.Error("Failed to publish session event", "topic", event.Name(), "error", err)
	}
}
