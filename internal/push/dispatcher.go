package push

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/observability"
)

type PresenceChecker interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

type TokenSource interface {
	DeviceToken(ctx context.Context, userID string) (string, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, taskID string, n Notification) (string, error)
}

// Dispatcher turns message.created events into push tasks for recipients
// without a live connection.
type Dispatcher struct {
	presence PresenceChecker
	tokens   TokenSource
	queue    Enqueuer
}

func NewDispatcher(presence PresenceChecker, tokens TokenSource, queue Enqueuer) *Dispatcher {
	return &Dispatcher{presence: presence, tokens: tokens, queue: queue}
}

func (d *Dispatcher) Handle(ctx context.Context, record []byte) {
	log := observability.GetLogger(ctx)

	var evt domain.MessageCreatedEvent
	if err := json.Unmarshal(record, &evt); err != nil {
		log.Error("dispatcher: error unmarshaling event", zap.Error(err))
		return
	}
	if evt.MessageID == "" || evt.ConversationID == "" {
		log.Warn("dispatcher: event without message or conversation id")
		return
	}

	for _, userID := range evt.RecipientIDs {
		outcome := d.notify(ctx, userID, &evt)
		observability.PushNotificationsTotal.WithLabelValues(outcome).Inc()
		log.Debug("dispatcher: recipient handled",
			zap.String("user_id", userID),
			zap.String("message_id", evt.MessageID),
			zap.String("outcome", outcome),
		)
	}
}

func (d *Dispatcher) notify(ctx context.Context, userID string, evt *domain.MessageCreatedEvent) string {
	log := observability.GetLogger(ctx)

	// A presence failure falls through to push; a duplicate is better than a miss.
	online, err := d.presence.IsOnline(ctx, userID)
	if err != nil {
		log.Warn("dispatcher: presence lookup failed", zap.String("user_id", userID), zap.Error(err))
	}
	if online {
		return "online"
	}

	token, err := d.tokens.DeviceToken(ctx, userID)
	if err != nil {
		log.Error("dispatcher: token lookup failed", zap.String("user_id", userID), zap.Error(err))
		return "error"
	}
	if token == "" {
		return "no_token"
	}

	_, err = d.queue.Enqueue(ctx, TaskID(evt.MessageID, userID), BuildNotification(token, evt))
	switch {
	case errors.Is(err, ErrAlreadyQueued):
		return "duplicate"
	case err != nil:
		log.Error("dispatcher: enqueue failed", zap.String("user_id", userID), zap.Error(err))
		return "error"
	}
	return "queued"
}

// BuildNotification renders the push shown for a new message.
func BuildNotification(token string, evt *domain.MessageCreatedEvent) Notification {
	title := evt.SenderName
	if title == "" {
		title = "New message"
	}

	data := map[string]string{
		"type":           domain.EventMessageCreated,
		"conversationId": evt.ConversationID,
		"messageId":      evt.MessageID,
		"senderId":       evt.SenderID,
	}
	if evt.PropertyID != "" {
		data["propertyId"] = evt.PropertyID
	}

	return Notification{
		Token: token,
		Title: title,
		Body:  evt.Preview,
		Data:  data,
	}
}
