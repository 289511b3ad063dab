// Package registry is the concurrency core of the realtime engine: the
// authoritative in-process index of live connections, session rooms, and
// per-session message sequence numbers.
package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/exchange/topics"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/pubsub"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// SessionDirectory is the slice of the exchange manager the registry needs.
type SessionDirectory interface {
	Get(sessionID string) (domain.ExchangeSession, error)
	Activate(ctx context.Context, sessionID string) error
	Cancel(ctx context.Context, sessionID, reason string) error
}

// ChatDeliverer fans a stored chat message out to a set of connections. It is
// invoked while the room lock is held so that delivery order matches sequence
// order; implementations must only enqueue to in-memory buffers, never block
// on I/O.
type ChatDeliverer interface {
	DeliverChat(connIDs []string, msg domain.ChatMessage)
}

// connection maps a live socket identity to a user and, while its session is
// active, to that session. Connections are ephemeral and never persisted.
type connection struct {
	userID    string
	sessionID string
}

// room is the set of connections currently joined to one session. nextSeq is
// the monotonic per-session message counter; the room mutex serializes both
// sequence assignment and membership changes.
type room struct {
	mu         sync.Mutex
	sessionID  string
	members    map[string]string // connID -> userID
	nextSeq    int64
	emptySince time.Time
}

// Registry tracks connections and session rooms. A session survives a
// transient disconnect; only the background sweep cancels sessions whose
// participants have all been gone longer than the grace window.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
	users map[string]map[string]struct{} // userID -> set of connIDs
	rooms map[string]*room

	sessions  SessionDirectory
	repo      domain.Repository
	deliverer ChatDeliverer
	logger    *slog.Logger

	grace         time.Duration
	sweepInterval time.Duration
	stopSweep     chan struct{}
	stopOnce      sync.Once
}

// Option configures a Registry.
type Option func(*Registry)

// WithGraceWindow overrides the disconnection grace window.
func WithGraceWindow(d time.Duration) Option {
	return func(r *Registry) { r.grace = d }
}

// WithSweepInterval overrides the inactivity sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) { r.sweepInterval = d }
}

// New creates a registry bound to the session directory and repository.
func New(sessions SessionDirectory, repo domain.Repository, opts ...Option) *Registry {
	r := &Registry{
		conns:         make(map[string]*connection),
		users:         make(map[string]map[string]struct{}),
		rooms:         make(map[string]*room),
		sessions:      sessions,
		repo:          repo,
		logger:        slog.Default().With("service", "registry"),
		grace:         5 * time.Minute,
		sweepInterval: 30 * time.Second,
		stopSweep:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetDeliverer wires the gateway in after construction; the registry and the
// gateway reference each other.
func (r *Registry) SetDeliverer(d ChatDeliverer) {
	r.deliverer = d
}

// Start launches the inactivity sweep and subscribes to session closures so
// dangling connection bindings are cleared as soon as a session leaves ACTIVE.
func (r *Registry) Start(ctx context.Context, subscriber pubsub.Subscriber) error {
	if subscriber != nil {
		if err := subscriber.Subscribe(ctx, topics.SessionClosed, r.handleSessionClosed); err != nil {
			return err
		}
	}
	go r.sweepLoop(ctx)
	return nil
}

// Shutdown stops the background sweep.
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() { close(r.stopSweep) })
}

// RegisterConnection binds a new live connection to a verified user identity.
func (r *Registry) RegisterConnection(connID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; ok {
		return domain.ErrDuplicateConnection
	}
	r.conns[connID] = &connection{userID: userID}
	if r.users[userID] == nil {
		r.users[userID] = make(map[string]struct{})
	}
	r.users[userID][connID] = struct{}{}

	r.logger.Info("Connection registered", "conn_id", connID, "user_id", userID)
	return nil
}

// JoinSession adds the connection to the session room after validating that
// the connection's user is a participant of an accepted or active session.
// When the second participant arrives the session is activated; activation is
// idempotent.
func (r *Registry) JoinSession(ctx context.Context, connID, sessionID string) error {
	r.mu.RLock()
	conn, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}

	sess, err := r.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if sess.State.IsTerminal() {
		return domain.ErrSessionClosed
	}
	if sess.State != domain.StateAccepted && sess.State != domain.StateActive {
		return domain.ErrInvalidState
	}
	if !sess.HasParticipant(conn.userID) {
		return domain.ErrNotParticipant
	}

	rm := r.roomFor(sessionID)

	rm.mu.Lock()
	rm.members[connID] = conn.userID
	rm.emptySince = time.Time{}
	bothPresent := rm.hasUser(sess.ParticipantA) && rm.hasUser(sess.ParticipantB)
	rm.mu.Unlock()

	r.logger.Info("Connection joined session", "conn_id", connID, "session_id", sessionID)

	if bothPresent {
		if err := r.sessions.Activate(ctx, sessionID); err != nil {
			r.logger.Error("Failed to activate session", "session_id", sessionID, "error", err)
		}
	}

	// Bind the connection once the session is live; the binding invariant is
	// that a set sessionID always references an ACTIVE session.
	if sess, err := r.sessions.Get(sessionID); err == nil && sess.State == domain.StateActive {
		r.bindRoomMembers(sessionID)
	}
	return nil
}

// AppendMessage assigns the next sequence number for the session, stores the
// message, and hands it to the deliverer for fan-out. Sequence assignment and
// delivery happen under the room lock, so every connection observes strictly
// increasing, gapless numbers. The state guard is re-checked under the lock:
// a message racing a cancel either lands before it or fails with
// ErrSessionClosed.
func (r *Registry) AppendMessage(ctx context.Context, sessionID, senderID, text string) (domain.ChatMessage, error) {
	r.mu.RLock()
	rm, ok := r.rooms[sessionID]
	r.mu.RUnlock()
	if !ok {
		// The room may already be gone for a known session, either dropped on
		// closure or never created; the directory distinguishes unknown from
		// closed.
		sess, err := r.sessions.Get(sessionID)
		if err != nil {
			return domain.ChatMessage{}, err
		}
		if sess.State != domain.StateActive {
			return domain.ChatMessage{}, domain.ErrSessionClosed
		}
		return domain.ChatMessage{}, domain.ErrNotParticipant
	}

	rm.mu.Lock()
	sess, err := r.sessions.Get(sessionID)
	if err != nil {
		rm.mu.Unlock()
		return domain.ChatMessage{}, err
	}
	if sess.State != domain.StateActive {
		rm.mu.Unlock()
		return domain.ChatMessage{}, domain.ErrSessionClosed
	}
	if !rm.hasUser(senderID) {
		rm.mu.Unlock()
		return domain.ChatMessage{}, domain.ErrNotParticipant
	}

	rm.nextSeq++
	msg := domain.ChatMessage{
		SessionID:      sessionID,
		SenderID:       senderID,
		Text:           text,
		SentAt:         Now(),
		SequenceNumber: rm.nextSeq,
	}

	if r.deliverer != nil {
		connIDs := make([]string, 0, len(rm.members))
		for id := range rm.members {
			connIDs = append(connIDs, id)
		}
		r.deliverer.DeliverChat(connIDs, msg)
	}
	rm.mu.Unlock()

	// Persistence is off the hot path; the store keys the log by sequence
	// number, so write order does not affect transcript order.
	if r.repo != nil {
		go func() {
			if err := r.repo.AppendChatLog(context.Background(), sessionID, msg); err != nil {
				r.logger.Error("Failed to append chat log", "session_id", sessionID, "seq", msg.SequenceNumber, "error", err)
			}
		}()
	}
	return msg, nil
}

// LeaveSession removes the connection from its room. It is idempotent and
// never closes the session; the sweep handles abandoned sessions.
func (r *Registry) LeaveSession(connID string) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if ok {
		conn.sessionID = ""
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	r.mu.RLock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	for _, rm := range rooms {
		rm.mu.Lock()
		if _, member := rm.members[connID]; member {
			delete(rm.members, connID)
			if len(rm.members) == 0 {
				rm.emptySince = Now()
			}
			r.logger.Info("Connection left session", "conn_id", connID, "session_id", rm.sessionID)
		}
		rm.mu.Unlock()
	}
}

// UnregisterConnection removes the connection entirely. Idempotent; transport
// disconnects are lifecycle events, not errors.
func (r *Registry) UnregisterConnection(connID string) {
	r.LeaveSession(connID)

	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)
	if set, ok := r.users[conn.userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.users, conn.userID)
		}
	}
	r.logger.Info("Connection unregistered", "conn_id", connID, "user_id", conn.userID)
}

// Session returns the current snapshot of a session from the directory.
func (r *Registry) Session(sessionID string) (domain.ExchangeSession, error) {
	return r.sessions.Get(sessionID)
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// OnlineUsers returns the users with at least one live connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.users))
	for userID, set := range r.users {
		if len(set) > 0 {
			result = append(result, userID)
		}
	}
	return result
}

// ConnectionsForUser returns the connection IDs of a user's live connections.
func (r *Registry) ConnectionsForUser(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users[userID]))
	for id := range r.users[userID] {
		ids = append(ids, id)
	}
	return ids
}

// RoomMembers returns the connection IDs currently joined to the session.
func (r *Registry) RoomMembers(sessionID string) []string {
	r.mu.RLock()
	rm, ok := r.rooms[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	ids := make([]string, 0, len(rm.members))
	for id := range rm.members {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) roomFor(sessionID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[sessionID]
	if !ok {
		rm = &room{
			sessionID: sessionID,
			members:   make(map[string]string),
		}
		r.rooms[sessionID] = rm
	}
	return rm
}

// bindRoomMembers sets each member connection's sessionID once the session is
// active.
func (r *Registry) bindRoomMembers(sessionID string) {
	r.mu.RLock()
	rm, ok := r.rooms[sessionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	members := make([]string, 0, len(rm.members))
	for id := range rm.members {
		members = append(members, id)
	}
	rm.mu.Unlock()

	r.mu.Lock()
	for _, id := range members {
		if conn, ok := r.conns[id]; ok {
			conn.sessionID = sessionID
		}
	}
	r.mu.Unlock()
}

// handleSessionClosed clears connection bindings and drops the room when a
// session leaves ACTIVE. Dangling references are self-healed here, never
// surfaced to users.
func (r *Registry) handleSessionClosed(ctx context.Context, msg pubsub.Message) error {
	var event struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		r.logger.Error("Failed to unmarshal session closed event", "error", err)
		return err
	}
	r.dropRoom(event.SessionID)
	return nil
}

func (r *Registry) dropRoom(sessionID string) {
	r.mu.Lock()
	delete(r.rooms, sessionID)
	for _, conn := range r.conns {
		if conn.sessionID == sessionID {
			conn.sessionID = ""
		}
	}
	r.mu.Unlock()
	r.logger.Info("Room dropped", "session_id", sessionID)
}

// sweepLoop enforces the inactivity policy with a periodic sweep rather than
// per-call timers, bounding the work to O(active sessions) per interval.
func (r *Registry) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-r.stopSweep:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweep cancels sessions whose rooms have been empty longer than the grace
// window and prunes rooms whose sessions are already terminal.
func (r *Registry) sweep(ctx context.Context) {
	r.mu.RLock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	cutoff := Now().Add(-r.grace)
	for _, rm := range rooms {
		rm.mu.Lock()
		abandoned := len(rm.members) == 0 && !rm.emptySince.IsZero() && rm.emptySince.Before(cutoff)
		sessionID := rm.sessionID
		rm.mu.Unlock()

		sess, err := r.sessions.Get(sessionID)
		if err != nil || sess.State.IsTerminal() {
			r.dropRoom(sessionID)
			continue
		}
		if abandoned && (sess.State == domain.StateActive || sess.State == domain.StateAccepted) {
			r.logger.Info("Cancelling abandoned session", "session_id", sessionID)
			if err := r.sessions.Cancel(ctx, sessionID, "timeout"); err != nil {
				r.logger.Error("Failed to cancel abandoned session", "session_id", sessionID, "error", err)
			}
		}
	}
}

func (rm *room) hasUser(userID string) bool {
	for _, u := range rm.members {
		if u == userID {
			return true
		}
	}
	return false
}
