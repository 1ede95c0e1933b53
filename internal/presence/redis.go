package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/observability"
)

const (
	TTL               = 60 * time.Second
	HeartbeatInterval = 20 * time.Second
)

// Presence tracks live websocket sessions per user across instances. A user
// is online while at least one session key is unexpired.
type Presence struct {
	client     *redis.Client
	instanceID string
}

func New(client *redis.Client, instanceID string) *Presence {
	return &Presence{client: client, instanceID: instanceID}
}

func sessionKey(userID, sessionID string) string {
	return "presence:session:" + userID + ":" + sessionID
}

func userSessionsSetKey(userID string) string {
	return "presence:user:" + userID + ":sessions"
}

func (p *Presence) Register(ctx context.Context, userID, sessionID string) error {
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, sessionKey(userID, sessionID), p.instanceID, TTL)
	pipe.SAdd(ctx, userSessionsSetKey(userID), sessionID)
	pipe.Expire(ctx, userSessionsSetKey(userID), TTL+time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Presence) Unregister(ctx context.Context, userID, sessionID string) error {
	pipe := p.client.TxPipeline()
	pipe.Del(ctx, sessionKey(userID, sessionID))
	pipe.SRem(ctx, userSessionsSetKey(userID), sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Presence) Refresh(ctx context.Context, userID, sessionID string) error {
	pipe := p.client.TxPipeline()
	pipe.Expire(ctx, sessionKey(userID, sessionID), TTL)
	pipe.Expire(ctx, userSessionsSetKey(userID), TTL+time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// Sessions maps live session ids to the instance holding them. Expired
// entries are pruned from the set in the background.
func (p *Presence) Sessions(ctx context.Context, userID string) (map[string]string, error) {
	ids, err := p.client.SMembers(ctx, userSessionsSetKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(userID, id)
	}

	instances, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string]string)
	var stale []interface{}
	for i, inst := range instances {
		if inst == nil {
			stale = append(stale, ids[i])
			continue
		}
		if s, ok := inst.(string); ok {
			result[ids[i]] = s
		}
	}

	if len(stale) > 0 {
		log := observability.GetLogger(ctx)
		go func() {
			if err := p.client.SRem(context.Background(), userSessionsSetKey(userID), stale...).Err(); err != nil {
				log.Error("presence: failed to prune stale sessions", zap.String("user_id", userID), zap.Error(err))
			}
		}()
	}
	return result, nil
}

func (p *Presence) IsOnline(ctx context.Context, userID string) (bool, error) {
	sessions, err := p.Sessions(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(sessions) > 0, nil
}

// Heartbeat keeps a session alive until done is closed.
func (p *Presence) Heartbeat(userID, sessionID string, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := p.Refresh(ctx, userID, sessionID); err != nil {
					observability.Log.Debug("presence refresh failed", zap.String("user_id", userID), zap.Error(err))
				}
				cancel()
			case <-done:
				return
			}
		}
	}()
}
