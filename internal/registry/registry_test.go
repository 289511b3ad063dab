package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
)

// fakeDirectory is an in-memory SessionDirectory with controllable state.
type fakeDirectory struct {
	mu        sync.Mutex
	sessions  map[string]domain.ExchangeSession
	activated []string
	cancelled map[string]string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		sessions:  make(map[string]domain.ExchangeSession),
		cancelled: make(map[string]string),
	}
}

func (f *fakeDirectory) put(sess domain.ExchangeSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sess.ID] = sess
}

func (f *fakeDirectory) Get(sessionID string) (domain.ExchangeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionID]
	if !ok {
		return domain.ExchangeSession{}, domain.ErrNotFound
	}
	return sess, nil
}

func (f *fakeDirectory) Activate(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess := f.sessions[sessionID]
	if sess.State == domain.StateActive {
		return nil
	}
	if sess.State != domain.StateAccepted {
		return domain.ErrInvalidState
	}
	sess.State = domain.StateActive
	f.sessions[sessionID] = sess
	f.activated = append(f.activated, sessionID)
	return nil
}

func (f *fakeDirectory) Cancel(ctx context.Context, sessionID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess := f.sessions[sessionID]
	sess.State = domain.StateCancelled
	sess.Reason = reason
	f.sessions[sessionID] = sess
	f.cancelled[sessionID] = reason
	return nil
}

func (f *fakeDirectory) activationCount(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, id := range f.activated {
		if id == sessionID {
			count++
		}
	}
	return count
}

func (f *fakeDirectory) cancelReason(sessionID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reason, ok := f.cancelled[sessionID]
	return reason, ok
}

// mockDeliverer records fan-outs in delivery order.
type mockDeliverer struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
}

func (m *mockDeliverer) DeliverChat(connIDs []string, msg domain.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *mockDeliverer) getMessages() []domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.ChatMessage, len(m.messages))
	copy(result, m.messages)
	return result
}

func acceptedSession(id string) domain.ExchangeSession {
	return domain.ExchangeSession{
		ID:            id,
		ParticipantA:  "alice",
		ParticipantB:  "bob",
		OfferedSkillB: "guitar",
		State:         domain.StateAccepted,
	}
}

func TestRegistry_RegisterConnection(t *testing.T) {
	r := New(newFakeDirectory(), nil)

	require.NoError(t, r.RegisterConnection("conn-1", "alice"))
	assert.ErrorIs(t, r.RegisterConnection("conn-1", "alice"), domain.ErrDuplicateConnection)

	assert.True(t, r.IsOnline("alice"))
	assert.False(t, r.IsOnline("bob"))
}

func TestRegistry_MultipleConnectionsPerUser(t *testing.T) {
	r := New(newFakeDirectory(), nil)

	require.NoError(t, r.RegisterConnection("conn-1", "alice"))
	require.NoError(t, r.RegisterConnection("conn-2", "alice"))

	assert.Len(t, r.ConnectionsForUser("alice"), 2)

	r.UnregisterConnection("conn-1")
	assert.True(t, r.IsOnline("alice"), "user stays online while one connection remains")

	r.UnregisterConnection("conn-2")
	assert.False(t, r.IsOnline("alice"))
	assert.Empty(t, r.OnlineUsers())
}

func TestRegistry_JoinSessionValidation(t *testing.T) {
	dir := newFakeDirectory()
	r := New(dir, nil)
	ctx := context.Background()

	require.NoError(t, r.RegisterConnection("conn-a", "alice"))
	require.NoError(t, r.RegisterConnection("conn-m", "mallory"))

	t.Run("unknown connection", func(t *testing.T) {
		assert.ErrorIs(t, r.JoinSession(ctx, "missing", "sess-1"), domain.ErrNotFound)
	})

	t.Run("unknown session", func(t *testing.T) {
		assert.ErrorIs(t, r.JoinSession(ctx, "conn-a", "missing"), domain.ErrNotFound)
	})

	t.Run("pending session is not joinable", func(t *testing.T) {
		sess := acceptedSession("sess-pending")
		sess.State = domain.StatePending
		dir.put(sess)
		assert.ErrorIs(t, r.JoinSession(ctx, "conn-a", "sess-pending"), domain.ErrInvalidState)
	})

	t.Run("terminal session", func(t *testing.T) {
		sess := acceptedSession("sess-done")
		sess.State = domain.StateCompleted
		dir.put(sess)
		assert.ErrorIs(t, r.JoinSession(ctx, "conn-a", "sess-done"), domain.ErrSessionClosed)
	})

	t.Run("non-participant", func(t *testing.T) {
		dir.put(acceptedSession("sess-1"))
		assert.ErrorIs(t, r.JoinSession(ctx, "conn-m", "sess-1"), domain.ErrNotParticipant)
	})
}

func TestRegistry_SecondJoinActivatesOnce(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(acceptedSession("sess-1"))
	r := New(dir, nil)
	ctx := context.Background()

	require.NoError(t, r.RegisterConnection("conn-a", "alice"))
	require.NoError(t, r.RegisterConnection("conn-b", "bob"))

	require.NoError(t, r.JoinSession(ctx, "conn-a", "sess-1"))
	assert.Equal(t, 0, dir.activationCount("sess-1"), "one participant is not enough")

	require.NoError(t, r.JoinSession(ctx, "conn-b", "sess-1"))
	assert.Equal(t, 1, dir.activationCount("sess-1"))

	sess, err := dir.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, sess.State)

	assert.ElementsMatch(t, []string{"conn-a", "conn-b"}, r.RoomMembers("sess-1"))
}

func TestRegistry_AppendMessageSequencing(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(acceptedSession("sess-1"))
	r := New(dir, nil)
	deliverer := &mockDeliverer{}
	r.SetDeliverer(deliverer)
	ctx := context.Background()

	require.NoError(t, r.RegisterConnection("conn-a", "alice"))
	require.NoError(t, r.RegisterConnection("conn-b", "bob"))
	require.NoError(t, r.JoinSession(ctx, "conn-a", "sess-1"))
	require.NoError(t, r.JoinSession(ctx, "conn-b", "sess-1"))

	// Both participants send concurrently; sequence numbers must come out
	// gapless and delivery order must match assignment order.
	const perSender = 50
	var wg sync.WaitGroup
	for _, sender := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := r.AppendMessage(ctx, "sess-1", sender, "hi")
				assert.NoError(t, err)
			}
		}(sender)
	}
	wg.Wait()

	delivered := deliverer.getMessages()
	require.Len(t, delivered, 2*perSender)
	for i, msg := range delivered {
		assert.Equal(t, int64(i+1), msg.SequenceNumber)
	}
}

func TestRegistry_AppendMessageGuards(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(acceptedSession("sess-1"))
	r := New(dir, nil)
	ctx := context.Background()

	require.NoError(t, r.RegisterConnection("conn-a", "alice"))
	require.NoError(t, r.RegisterConnection("conn-b", "bob"))

	t.Run("unknown session", func(t *testing.T) {
		_, err := r.AppendMessage(ctx, "missing", "alice", "hi")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("no room yet on a known session", func(t *testing.T) {
		_, err := r.AppendMessage(ctx, "sess-1", "alice", "hi")
		assert.ErrorIs(t, err, domain.ErrSessionClosed)
	})

	require.NoError(t, r.JoinSession(ctx, "conn-a", "sess-1"))

	t.Run("session not yet active", func(t *testing.T) {
		_, err := r.AppendMessage(ctx, "sess-1", "alice", "hi")
		assert.ErrorIs(t, err, domain.ErrSessionClosed)
	})

	require.NoError(t, r.JoinSession(ctx, "conn-b", "sess-1"))

	t.Run("sender not in room", func(t *testing.T) {
		_, err := r.AppendMessage(ctx, "sess-1", "mallory", "hi")
		assert.ErrorIs(t, err, domain.ErrNotParticipant)
	})

	t.Run("message after cancel fails", func(t *testing.T) {
		require.NoError(t, dir.Cancel(ctx, "sess-1", "test"))
		_, err := r.AppendMessage(ctx, "sess-1", "alice", "hi")
		assert.ErrorIs(t, err, domain.ErrSessionClosed)
	})

	t.Run("room already dropped for a closed session", func(t *testing.T) {
		r.dropRoom("sess-1")
		_, err := r.AppendMessage(ctx, "sess-1", "alice", "hi")
		assert.ErrorIs(t, err, domain.ErrSessionClosed)
	})
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(acceptedSession("sess-1"))
	r := New(dir, nil)
	ctx := context.Background()

	require.NoError(t, r.RegisterConnection("conn-a", "alice"))
	require.NoError(t, r.JoinSession(ctx, "conn-a", "sess-1"))

	r.LeaveSession("conn-a")
	r.LeaveSession("conn-a")
	r.LeaveSession("never-registered")

	assert.Empty(t, r.RoomMembers("sess-1"))
	assert.True(t, r.IsOnline("alice"), "leaving a session does not drop the connection")
}

func TestRegistry_DisconnectDoesNotCloseSession(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(acceptedSession("sess-1"))
	r := New(dir, nil)
	ctx := context.Background()

	require.NoError(t, r.RegisterConnection("conn-a", "alice"))
	require.NoError(t, r.RegisterConnection("conn-b", "bob"))
	require.NoError(t, r.JoinSession(ctx, "conn-a", "sess-1"))
	require.NoError(t, r.JoinSession(ctx, "conn-b", "sess-1"))

	r.UnregisterConnection("conn-a")
	r.UnregisterConnection("conn-b")

	sess, err := dir.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, sess.State, "session survives disconnects until the grace window expires")
}

func TestRegistry_SweepCancelsAbandonedSession(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(acceptedSession("sess-1"))
	r := New(dir, nil, WithGraceWindow(10*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, r.RegisterConnection("conn-a", "alice"))
	require.NoError(t, r.RegisterConnection("conn-b", "bob"))
	require.NoError(t, r.JoinSession(ctx, "conn-a", "sess-1"))
	require.NoError(t, r.JoinSession(ctx, "conn-b", "sess-1"))

	r.UnregisterConnection("conn-a")
	r.UnregisterConnection("conn-b")

	time.Sleep(20 * time.Millisecond)
	r.sweep(ctx)

	reason, ok := dir.cancelReason("sess-1")
	require.True(t, ok, "abandoned session should be cancelled")
	assert.Equal(t, "timeout", reason)
}

func TestRegistry_SweepCancelsAbandonedAcceptedSession(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(acceptedSession("sess-1"))
	r := New(dir, nil, WithGraceWindow(10*time.Millisecond))
	ctx := context.Background()

	// Only one participant ever joins, so the session never activates.
	require.NoError(t, r.RegisterConnection("conn-a", "alice"))
	require.NoError(t, r.JoinSession(ctx, "conn-a", "sess-1"))
	r.UnregisterConnection("conn-a")

	time.Sleep(20 * time.Millisecond)
	r.sweep(ctx)

	reason, ok := dir.cancelReason("sess-1")
	require.True(t, ok, "abandoned accepted session must not stay open forever")
	assert.Equal(t, "timeout", reason)
}

func TestRegistry_SweepSparesOccupiedRooms(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(acceptedSession("sess-1"))
	r := New(dir, nil, WithGraceWindow(time.Nanosecond))
	ctx := context.Background()

	require.NoError(t, r.RegisterConnection("conn-a", "alice"))
	require.NoError(t, r.RegisterConnection("conn-b", "bob"))
	require.NoError(t, r.JoinSession(ctx, "conn-a", "sess-1"))
	require.NoError(t, r.JoinSession(ctx, "conn-b", "sess-1"))

	r.sweep(ctx)

	_, ok := dir.cancelReason("sess-1")
	assert.False(t, ok, "occupied room must not be swept")
}

func TestRegistry_SweepPrunesTerminalRooms(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(acceptedSession("sess-1"))
	r := New(dir, nil)
	ctx := context.Background()

	require.NoError(t, r.RegisterConnection("conn-a", "alice"))
	require.NoError(t, r.RegisterConnection("conn-b", "bob"))
	require.NoError(t, r.JoinSession(ctx, "conn-a", "sess-1"))
	require.NoError(t, r.JoinSession(ctx, "conn-b", "sess-1"))

	require.NoError(t, dir.Cancel(ctx, "sess-1", "done"))
	r.sweep(ctx)

	assert.Empty(t, r.RoomMembers("sess-1"))
}

func TestRegistry_RejoinWithinGraceClearsTimer(t *testing.T) {
	dir := newFakeDirectory()
	dir.put(acceptedSession("sess-1"))
	r := New(dir, nil, WithGraceWindow(10*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, r.RegisterConnection("conn-a", "alice"))
	require.NoError(t, r.RegisterConnection("conn-b", "bob"))
	require.NoError(t, r.JoinSession(ctx, "conn-a", "sess-1"))
	require.NoError(t, r.JoinSession(ctx, "conn-b", "sess-1"))

	r.LeaveSession("conn-a")
	r.LeaveSession("conn-b")
	time.Sleep(20 * time.Millisecond)

	// Bob reconnects before the sweep fires.
	require.NoError(t, r.JoinSession(ctx, "conn-b", "sess-1"))
	r.sweep(ctx)

	_, ok := dir.cancelReason("sess-1")
	assert.False(t, ok, "rejoin inside the grace window must clear the abandonment clock")
}
