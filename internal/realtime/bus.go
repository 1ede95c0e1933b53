package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/observability"
)

// Bus carries events between server instances.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, handler func(Event))
}

const channelPrefix = "realtime:"

// RedisBus fans events out through Redis pub/sub, one channel per room.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	observability.GetLogger(ctx).Debug("publishing to room", zap.String("room", ev.Room), zap.String("type", ev.Type))
	return b.client.Publish(ctx, channelPrefix+ev.Room, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, handler func(Event)) {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")

	go func() {
		log := observability.GetLogger(ctx)
		log.Info("bus: subscribed", zap.String("pattern", channelPrefix+"*"))
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				log.Info("bus: subscription loop stopping: context canceled")
				return
			case msg, ok := <-ch:
				if !ok {
					log.Warn("bus: pubsub channel closed")
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Error("bus: bad payload", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				if ev.Room == "" {
					ev.Room = strings.TrimPrefix(msg.Channel, channelPrefix)
				}
				handler(ev)
			}
		}
	}()
}

// LocalBus delivers in-process only. It serves single-instance deployments
// without Redis.
type LocalBus struct {
	handler func(Event)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	if b.handler != nil {
		b.handler(ev)
	}
	return nil
}

// Subscribe must be called before the first Publish.
func (b *LocalBus) Subscribe(_ context.Context, handler func(Event)) {
	b.handler = handler
}

// Publisher turns application events into bus events.
type Publisher struct {
	bus Bus
	now func() time.Time
}

func NewPublisher(bus Bus) *Publisher {
	return &Publisher{bus: bus, now: func() time.Time { return time.Now().UTC() }}
}

func (p *Publisher) Publish(ctx context.Context, room, eventType, conversationID string, data interface{}) error {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = b
	}
	return p.bus.Publish(ctx, Event{
		Type:           eventType,
		Room:           room,
		ConversationID: conversationID,
		OccurredAt:     p.now(),
		Data:           raw,
	})
}
