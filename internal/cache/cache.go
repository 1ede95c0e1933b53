package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rdemo143/RenTO/internal/domain"
)

const (
	defaultConversationTTL = 10 * time.Minute
	defaultUserTTL         = time.Hour
)

// Cache stores the immutable parts of conversations and user display
// profiles. Misses return (nil, nil).
type Cache struct {
	Client          *redis.Client
	ConversationTTL time.Duration
	UserTTL         time.Duration
}

func New(addr, password string) *Cache {
	return &Cache{
		Client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ConversationTTL: defaultConversationTTL,
		UserTTL:         defaultUserTTL,
	}
}

// PingContext adapts the client to the readiness check.
func (c *Cache) PingContext(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func convKey(id string) string { return "conv:" + id }
func userKey(id string) string { return "user:" + id }

// cachedConversation drops the mutable fields so entries never go stale.
type cachedConversation struct {
	ID           string    `json:"id"`
	Participants [2]string `json:"participants"`
	PropertyID   string    `json:"propertyId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (c *Cache) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	val, err := c.Client.Get(ctx, convKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cc cachedConversation
	if err := json.Unmarshal(val, &cc); err != nil {
		return nil, err
	}
	return &domain.Conversation{
		ID:           cc.ID,
		Participants: cc.Participants,
		PropertyID:   cc.PropertyID,
		CreatedAt:    cc.CreatedAt,
	}, nil
}

func (c *Cache) SetConversation(ctx context.Context, conv *domain.Conversation) error {
	val, err := json.Marshal(cachedConversation{
		ID:           conv.ID,
		Participants: conv.Participants,
		PropertyID:   conv.PropertyID,
		CreatedAt:    conv.CreatedAt,
	})
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, convKey(conv.ID), val, ttl(c.ConversationTTL, defaultConversationTTL)).Err()
}

func (c *Cache) GetUser(ctx context.Context, id string) (*domain.UserSummary, error) {
	val, err := c.Client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var u domain.UserSummary
	if err := json.Unmarshal(val, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Cache) SetUser(ctx context.Context, u *domain.UserSummary) error {
	val, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, userKey(u.ID), val, ttl(c.UserTTL, defaultUserTTL)).Err()
}

func (c *Cache) DeleteUser(ctx context.Context, id string) error {
	return c.Client.Del(ctx, userKey(id)).Err()
}

func ttl(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
