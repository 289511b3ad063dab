// Package gateway is the per-connection protocol layer of the realtime
// engine. It decodes inbound client events, routes them to registry
// operations, and fans resulting events out to the connections joined to a
// session room.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/exchange/events"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/exchange/topics"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/middleware"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/pubsub"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/registry"
)

// Gateway manages all WebSocket connections and routes frames between
// connected clients and the session registry. It never mutates session state
// directly; lifecycle changes always go through the registry and the exchange
// manager behind it.
type Gateway struct {
	registry   *registry.Registry
	publisher  pubsub.Publisher
	logger     *slog.Logger
	sendBuffer int

	mu      sync.RWMutex
	clients map[string]*Client // connID -> client
}

// New creates a gateway bound to the registry. It registers itself as the
// registry's chat deliverer so fan-out order matches sequence order.
func New(reg *registry.Registry, publisher pubsub.Publisher, sendBuffer int) *Gateway {
	g := &Gateway{
		registry:   reg,
		publisher:  publisher,
		logger:     slog.Default().With("service", "gateway"),
		sendBuffer: sendBuffer,
		clients:    make(map[string]*Client),
	}
	reg.SetDeliverer(g)
	return g
}

// Start subscribes to exchange domain events so lifecycle changes reach the
// session room as session.stateChanged envelopes.
func (g *Gateway) Start(ctx context.Context, subscriber pubsub.Subscriber) error {
	if err := subscriber.Subscribe(ctx, topics.SessionAccepted, g.handleAccepted); err != nil {
		return err
	}
	if err := subscriber.Subscribe(ctx, topics.SessionActivated, g.handleActivated); err != nil {
		return err
	}
	return subscriber.Subscribe(ctx, topics.SessionClosed, g.handleClosed)
}

// Handler returns the echo handler that upgrades an authenticated request to
// a WebSocket connection. Identity comes from the auth middleware; the
// gateway performs no credential checks of its own.
func (g *Gateway) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := c.Get(middleware.UserContextKey).(string)
		if !ok || userID == "" {
			g.logger.Error("No verified user on websocket upgrade request")
			return c.String(http.StatusUnauthorized, "User not authenticated")
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // In production, check origin.
		})
		if err != nil {
			g.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		client := &Client{
			ID:      uuid.NewString(),
			UserID:  userID,
			conn:    conn,
			send:    make(chan []byte, g.sendBuffer),
			gateway: g,
		}

		if err := g.registry.RegisterConnection(client.ID, client.UserID); err != nil {
			conn.Close(websocket.StatusInternalError, "registration failed")
			return err
		}

		g.mu.Lock()
		g.clients[client.ID] = client
		g.mu.Unlock()

		g.logger.Info("Client connected", "conn_id", client.ID, "user_id", userID)

		go client.writePump()
		go client.readPump()
		return nil
	}
}

// disconnect tears a client down after its read pump exits.
func (g *Gateway) disconnect(c *Client) {
	g.registry.UnregisterConnection(c.ID)

	g.mu.Lock()
	delete(g.clients, c.ID)
	g.mu.Unlock()

	c.close()
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "Client disconnected")
	}
	g.logger.Info("Client disconnected", "conn_id", c.ID, "user_id", c.UserID)
}

// CloseAll disconnects every client, used during graceful shutdown.
func (g *Gateway) CloseAll() {
	g.mu.Lock()
	clients := make([]*Client, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.clients = make(map[string]*Client)
	g.mu.Unlock()

	for _, c := range clients {
		g.registry.UnregisterConnection(c.ID)
		c.close()
		if c.conn != nil {
			c.conn.Close(websocket.StatusGoingAway, "Server shutting down")
		}
	}
}

// handleInbound dispatches one decoded client frame. The event set is closed;
// unknown types get an error envelope, never a disconnect.
func (g *Gateway) handleInbound(c *Client, frame []byte) {
	var ev inboundEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		g.sendError(c, "", "bad_request", "malformed event")
		return
	}

	ctx := context.Background()
	switch ev.Type {
	case InboundJoin:
		if err := g.registry.JoinSession(ctx, c.ID, ev.SessionID); err != nil {
			g.sendError(c, ev.SessionID, errorCode(err), err.Error())
			return
		}
		if sess, err := g.registry.Session(ev.SessionID); err == nil {
			env := NewEnvelope(EventStateChanged, ev.SessionID, map[string]any{"state": sess.State})
			c.enqueue(env.Encode())
		}

	case InboundChatSend:
		// Fan-out happens inside AppendMessage via DeliverChat, under the
		// room's sequence lock.
		if _, err := g.registry.AppendMessage(ctx, ev.SessionID, c.UserID, ev.Text); err != nil {
			g.sendError(c, ev.SessionID, errorCode(err), err.Error())
		}

	case InboundPing:
		g.fanOutPresence(c, ev.SessionID)

	case InboundLeave:
		g.registry.LeaveSession(c.ID)

	default:
		g.sendError(c, ev.SessionID, "unknown_event", "unknown event type: "+ev.Type)
	}
}

// DeliverChat implements registry.ChatDeliverer. It only enqueues to client
// buffers, so it is safe to call under the room lock; clients that cannot keep
// up with the chat stream are disconnected asynchronously.
func (g *Gateway) DeliverChat(connIDs []string, msg domain.ChatMessage) {
	env := Envelope{
		Type:           EventChatMessage,
		SessionID:      msg.SessionID,
		SenderID:       msg.SenderID,
		SequenceNumber: msg.SequenceNumber,
		Payload:        map[string]any{"text": msg.Text, "sentAt": msg.SentAt},
		EmittedAt:      msg.SentAt,
	}
	frame := env.Encode()

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range connIDs {
		if client, ok := g.clients[id]; ok {
			client.enqueueChat(frame)
		}
	}
}

// SendDirect delivers a payload to every live connection of a user. It
// reports whether at least one connection accepted the frame.
func (g *Gateway) SendDirect(userID, eventType string, payload any) bool {
	connIDs := g.registry.ConnectionsForUser(userID)
	if len(connIDs) == 0 {
		return false
	}
	frame := NewEnvelope(eventType, "", payload).Encode()

	delivered := false
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range connIDs {
		if client, ok := g.clients[id]; ok && client.enqueue(frame) {
			delivered = true
		}
	}
	return delivered
}

// fanOutPresence relays a presence ping to the session room. Presence is
// best-effort: frames may be dropped under backpressure without affecting
// chat ordering.
func (g *Gateway) fanOutPresence(c *Client, sessionID string) {
	members := g.registry.RoomMembers(sessionID)
	if len(members) == 0 {
		return
	}

	env := NewEnvelope(EventPresenceUpdate, sessionID, map[string]any{
		"userId": c.UserID,
		"status": "online",
	})
	env.SenderID = c.UserID
	frame := env.Encode()

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range members {
		if client, ok := g.clients[id]; ok {
			client.enqueue(frame)
		}
	}
}

func (g *Gateway) handleAccepted(ctx context.Context, msg pubsub.Message) error {
	payload, err := pubsub.Decode(events.Accepted, msg)
	if err != nil {
		return err
	}
	g.fanOutStateChange(payload.SessionID, map[string]any{"state": domain.StateAccepted})
	return nil
}

func (g *Gateway) handleActivated(ctx context.Context, msg pubsub.Message) error {
	payload, err := pubsub.Decode(events.Activated, msg)
	if err != nil {
		return err
	}
	g.fanOutStateChange(payload.SessionID, map[string]any{"state": domain.StateActive})
	return nil
}

func (g *Gateway) handleClosed(ctx context.Context, msg pubsub.Message) error {
	payload, err := pubsub.Decode(events.Closed, msg)
	if err != nil {
		return err
	}
	// The registry subscribes to the same topic and may drop the room before
	// this handler runs, so the closing frame goes to the participants'
	// connections rather than the room.
	frame := NewEnvelope(EventStateChanged, payload.SessionID, map[string]any{
		"outcome": payload.Outcome,
		"reason":  payload.Reason,
	}).Encode()
	for _, userID := range []string{payload.ParticipantA, payload.ParticipantB} {
		g.sendToUserConnections(userID, frame)
	}
	return nil
}

// sendToUserConnections enqueues a frame on every live connection of a user.
func (g *Gateway) sendToUserConnections(userID string, frame []byte) {
	connIDs := g.registry.ConnectionsForUser(userID)

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range connIDs {
		if client, ok := g.clients[id]; ok {
			client.enqueue(frame)
		}
	}
}

func (g *Gateway) fanOutStateChange(sessionID string, payload map[string]any) {
	members := g.registry.RoomMembers(sessionID)
	if len(members) == 0 {
		return
	}
	frame := NewEnvelope(EventStateChanged, sessionID, payload).Encode()

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range members {
		if client, ok := g.clients[id]; ok {
			client.enqueue(frame)
		}
	}
}

func (g *Gateway) sendError(c *Client, sessionID, code, message string) {
	env := NewEnvelope(EventError, sessionID, errorPayload{Code: code, Message: message})
	c.enqueue(env.Encode())
}

// errorCode maps engine sentinel errors to wire-level codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, domain.ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrAlreadyMatched):
		return "already_matched"
	case errors.Is(err, domain.ErrInvalidParticipant):
		return "invalid_participant"
	case errors.Is(err, domain.ErrDuplicateConnection):
		return "duplicate_connection"
	}
	return "internal"
}
