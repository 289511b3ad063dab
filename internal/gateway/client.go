package gateway

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Client represents a single connected WebSocket client.
type Client struct {
	ID     string
	UserID string

	conn    *websocket.Conn
	send    chan []byte
	gateway *Gateway
	mu      sync.RWMutex
}

// enqueue safely places a frame on the client's send channel. The send is
// non-blocking: a full buffer means the client is lagging, and the frame is
// dropped rather than stalling the fan-out path.
func (c *Client) enqueue(frame []byte) bool {
	if frame == nil {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.send == nil {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		slog.Warn("Client send channel full, dropping frame", "conn_id", c.ID, "user_id", c.UserID)
		return false
	}
}

// enqueueChat places a chat frame on the send channel. Unlike presence, chat
// may not be silently dropped: every connected participant must observe the
// gapless sequence, so a client too slow to drain its buffer is disconnected
// and resyncs on rejoin instead of seeing a gap.
func (c *Client) enqueueChat(frame []byte) bool {
	if frame == nil {
		return false
	}

	c.mu.RLock()
	if c.send == nil {
		c.mu.RUnlock()
		return false
	}
	select {
	case c.send <- frame:
		c.mu.RUnlock()
		return true
	default:
	}
	c.mu.RUnlock()

	slog.Warn("Client too slow for chat stream, disconnecting", "conn_id", c.ID, "user_id", c.UserID)
	// Chat delivery runs under the room lock and teardown needs that lock, so
	// the disconnect happens on its own goroutine.
	go c.gateway.disconnect(c)
	return false
}

// close shuts the send channel exactly once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// readPump pumps frames from the WebSocket connection into the gateway's
// inbound dispatch. A transport disconnect is a lifecycle event, not an
// error; cleanup runs through unregister.
func (c *Client) readPump() {
	defer c.gateway.disconnect(c)

	for {
		_, frame, err := c.conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				slog.Info("WebSocket closed normally by client", "conn_id", c.ID)
			} else if err != io.EOF {
				slog.Error("WebSocket read error", "conn_id", c.ID, "error", err)
			}
			return
		}
		c.gateway.handleInbound(c, frame)
	}
}

// writePump pumps frames from the send channel to the WebSocket connection.
func (c *Client) writePump() {
	defer c.conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")

	for frame := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			slog.Error("WebSocket write error", "conn_id", c.ID, "error", err)
			return
		}
	}
}
