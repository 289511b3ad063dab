// Package notify fans exchange and pool events out to users: through a live
// connection when the user is online, otherwise into the external persistent
// notification store. Delivery is at-least-once; dedup and read state belong
// to the store.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/exchange/events"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/exchange/topics"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/matching"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/pubsub"
)

// OnlineChecker reports whether a user currently has a live connection.
type OnlineChecker interface {
	IsOnline(userID string) bool
}

// DirectSender pushes a payload through a user's live connections. It reports
// whether at least one connection accepted it.
type DirectSender interface {
	SendDirect(userID, eventType string, payload any) bool
}

// Dispatcher subscribes to domain events and routes each to its target users.
type Dispatcher struct {
	store  domain.NotificationStore
	online OnlineChecker
	sender DirectSender
	logger *slog.Logger
}

// NewDispatcher wires the dispatcher to the notification store and the
// gateway-backed online/direct interfaces.
func NewDispatcher(store domain.NotificationStore, online OnlineChecker, sender DirectSender) *Dispatcher {
	return &Dispatcher{
		store:  store,
		online: online,
		sender: sender,
		logger: slog.Default().With("service", "notify"),
	}
}

// Start subscribes to every event the dispatcher routes.
func (d *Dispatcher) Start(ctx context.Context, subscriber pubsub.Subscriber) error {
	subscriptions := map[string]pubsub.Handler{
		topics.SessionProposed:   d.handleProposed,
		topics.SessionAccepted:   d.handleAccepted,
		topics.SessionActivated:  d.handleActivated,
		topics.SessionClosed:     d.handleClosed,
		matching.TopicMatchFound: d.handleMatchFound,
	}
	for topic, handler := range subscriptions {
		if err := subscriber.Subscribe(ctx, topic, handler); err != nil {
			return err
		}
	}
	return nil
}

// handleProposed notifies the offer owner that someone wants to exchange.
func (d *Dispatcher) handleProposed(ctx context.Context, msg pubsub.Message) error {
	payload, err := pubsub.Decode(events.Proposed, msg)
	if err != nil {
		return err
	}
	d.dispatch(ctx, payload.OfferOwnerID, msg.Topic, msg.Payload)
	return nil
}

// handleAccepted notifies the requester that the counterpart accepted.
func (d *Dispatcher) handleAccepted(ctx context.Context, msg pubsub.Message) error {
	payload, err := pubsub.Decode(events.Accepted, msg)
	if err != nil {
		return err
	}
	d.dispatch(ctx, payload.ParticipantA, msg.Topic, msg.Payload)
	return nil
}

// handleActivated tells both participants the session is live.
func (d *Dispatcher) handleActivated(ctx context.Context, msg pubsub.Message) error {
	payload, err := pubsub.Decode(events.Activated, msg)
	if err != nil {
		return err
	}
	d.dispatch(ctx, payload.ParticipantA, msg.Topic, msg.Payload)
	d.dispatch(ctx, payload.ParticipantB, msg.Topic, msg.Payload)
	return nil
}

// handleClosed tells both participants how the session ended, exactly one
// event per participant per closure.
func (d *Dispatcher) handleClosed(ctx context.Context, msg pubsub.Message) error {
	payload, err := pubsub.Decode(events.Closed, msg)
	if err != nil {
		return err
	}
	d.dispatch(ctx, payload.ParticipantA, msg.Topic, msg.Payload)
	d.dispatch(ctx, payload.ParticipantB, msg.Topic, msg.Payload)
	return nil
}

// handleMatchFound notifies the requester that candidates exist for a freshly
// published request.
func (d *Dispatcher) handleMatchFound(ctx context.Context, msg pubsub.Message) error {
	payload, err := pubsub.Decode(matching.EventMatchFound, msg)
	if err != nil {
		return err
	}
	d.dispatch(ctx, payload.RequesterID, msg.Topic, msg.Payload)
	return nil
}

// dispatch pushes online, falling back to the persistent store when the user
// is offline or every live connection refused the frame.
func (d *Dispatcher) dispatch(ctx context.Context, userID, eventType string, payload []byte) {
	if userID == "" {
		return
	}

	if d.online.IsOnline(userID) {
		var body json.RawMessage = payload
		if d.sender.SendDirect(userID, eventType, body) {
			d.logger.Debug("Notification delivered online", "user_id", userID, "event", eventType)
			return
		}
	}

	if err := d.store.Enqueue(ctx, userID, eventType, payload); err != nil {
		d.logger.Error("Failed to enqueue notification", "user_id", userID, "event", eventType, "error", err)
		return
	}
	d.logger.Debug("Notification enqueued for offline delivery", "user_id", userID, "event", eventType)
}
