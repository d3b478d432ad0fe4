package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pwa-notify-go/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	historyTTL = 30 * 24 * time.Hour // 30 days
)

// SubscriptionStore is the server-side registry of device push
// subscriptions. The server's copy is keyed by user identity + endpoint and
// mirrors, not owns, the device-local records.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub models.ServerSubscription) (models.ServerSubscription, error)
	Subscriptions(ctx context.Context, userID, typ string, activeOnly bool) ([]models.ServerSubscription, error)
	DeactivateSubscription(ctx context.Context, endpoint, typ string) (int, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	CountActive(ctx context.Context) (int, error)
}

// HistoryStore records sent notification broadcasts.
type HistoryStore interface {
	AddEvent(ctx context.Context, event models.NotificationEvent) (models.NotificationEvent, error)
	Events(ctx context.Context, typ string) ([]models.NotificationEvent, error)
	PurgeEvents(ctx context.Context) error
}

// RedisHistory keeps notification history in Redis with a TTL per event, a
// timeline sorted set for ordering, and per-type index sets for filtering.
type RedisHistory struct {
	client *redis.Client
}

func NewRedisHistory(opts *redis.Options) *RedisHistory {
	rdb := redis.NewClient(opts)
	return &RedisHistory{client: rdb}
}

func (s *RedisHistory) AddEvent(ctx context.Context, event models.NotificationEvent) (models.NotificationEvent, error) {
	// Generate ID
	id, err := s.client.Incr(ctx, "notification:next_id").Result()
	if err != nil {
		return models.NotificationEvent{}, err
	}

	event.ID = int(id)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return models.NotificationEvent{}, err
	}

	key := fmt.Sprintf("notification:%d", event.ID)

	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, historyTTL)

	// Add to timeline sorted set (score = timestamp)
	pipe.ZAdd(ctx, "notifications:timeline", redis.Z{
		Score:  float64(event.CreatedAt.Unix()),
		Member: key,
	})

	// Add to per-type index
	if event.Type != "" {
		typeKey := fmt.Sprintf("notifications:type:%s", strings.ToLower(event.Type))
		pipe.SAdd(ctx, typeKey, key)
		pipe.Expire(ctx, typeKey, historyTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return models.NotificationEvent{}, err
	}

	return event, nil
}

func (s *RedisHistory) Events(ctx context.Context, typ string) ([]models.NotificationEvent, error) {
	var keys []string
	var err error

	if typ != "" {
		keys, err = s.client.SMembers(ctx, fmt.Sprintf("notifications:type:%s", strings.ToLower(typ))).Result()
	} else {
		// Newest first from the timeline
		keys, err = s.client.ZRevRange(ctx, "notifications:timeline", 0, -1).Result()
	}
	if err != nil {
		return nil, err
	}

	var events []models.NotificationEvent
	for _, key := range keys {
		val, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			// Event expired, drop it from the timeline
			s.client.ZRem(ctx, "notifications:timeline", key)
			continue
		} else if err != nil {
			continue
		}

		var event models.NotificationEvent
		if err := json.Unmarshal([]byte(val), &event); err == nil {
			events = append(events, event)
		}
	}
	return events, nil
}

func (s *RedisHistory) PurgeEvents(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, "notification:*", 0).Iterator()
	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		s.client.Del(ctx, keys...)
	}

	s.client.Del(ctx, "notifications:timeline")

	iter = s.client.Scan(ctx, 0, "notifications:type:*", 0).Iterator()
	indexKeys := []string{}
	for iter.Next(ctx) {
		indexKeys = append(indexKeys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(indexKeys) > 0 {
		s.client.Del(ctx, indexKeys...)
	}

	return nil
}
