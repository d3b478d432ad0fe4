package store

import (
	"context"
	"sync"
	"time"

	"pwa-notify-go/internal/models"
)

// MemorySubscriptions is the default server registry: everything lives in
// process memory and is lost on restart. Good enough for the demo server;
// set DATABASE_URL to get the Postgres-backed registry instead.
type MemorySubscriptions struct {
	mu     sync.Mutex
	nextID int64
	subs   []models.ServerSubscription
}

func NewMemorySubscriptions() *MemorySubscriptions {
	return &MemorySubscriptions{}
}

// SaveSubscription upserts by (endpoint, type): an existing record is
// reactivated and its config refreshed rather than duplicated.
func (s *MemorySubscriptions) SaveSubscription(ctx context.Context, sub models.ServerSubscription) (models.ServerSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for i := range s.subs {
		if s.subs[i].Endpoint == sub.Endpoint && s.subs[i].Type == sub.Type {
			s.subs[i].P256dh = sub.P256dh
			s.subs[i].Auth = sub.Auth
			s.subs[i].Config = sub.Config
			if sub.UserID != "" {
				s.subs[i].UserID = sub.UserID
			}
			s.subs[i].Active = true
			s.subs[i].UpdatedAt = now
			return s.subs[i], nil
		}
	}

	s.nextID++
	sub.ID = s.nextID
	sub.Active = true
	sub.CreatedAt = now
	sub.UpdatedAt = now
	s.subs = append(s.subs, sub)
	return sub, nil
}

func (s *MemorySubscriptions) Subscriptions(ctx context.Context, userID, typ string, activeOnly bool) ([]models.ServerSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ServerSubscription
	for _, sub := range s.subs {
		if userID != "" && sub.UserID != userID {
			continue
		}
		if typ != "" && sub.Type != typ {
			continue
		}
		if activeOnly && !sub.Active {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *MemorySubscriptions) DeactivateSubscription(ctx context.Context, endpoint, typ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deactivated := 0
	now := time.Now().UTC()
	for i := range s.subs {
		if s.subs[i].Endpoint != endpoint {
			continue
		}
		if typ != "" && s.subs[i].Type != typ {
			continue
		}
		if s.subs[i].Active {
			s.subs[i].Active = false
			s.subs[i].UpdatedAt = now
			deactivated++
		}
	}
	return deactivated, nil
}

// DeleteSubscription removes every record for an endpoint. Used when the
// push service reports the channel gone (410).
func (s *MemorySubscriptions) DeleteSubscription(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.Endpoint != endpoint {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
	return nil
}

func (s *MemorySubscriptions) CountActive(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sub := range s.subs {
		if sub.Active {
			n++
		}
	}
	return n, nil
}

// MemoryHistory is a bounded in-memory notification history, used when no
// Redis address is configured.
type MemoryHistory struct {
	mu     sync.Mutex
	nextID int
	max    int
	events []models.NotificationEvent
}

func NewMemoryHistory(max int) *MemoryHistory {
	if max <= 0 {
		max = 200
	}
	return &MemoryHistory{max: max}
}

func (s *MemoryHistory) AddEvent(ctx context.Context, event models.NotificationEvent) (models.NotificationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	event.ID = s.nextID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, event)
	if len(s.events) > s.max {
		s.events = s.events[len(s.events)-s.max:]
	}
	return event, nil
}

func (s *MemoryHistory) Events(ctx context.Context, typ string) ([]models.NotificationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Newest first, matching the Redis timeline ordering
	var out []models.NotificationEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if typ != "" && s.events[i].Type != typ {
			continue
		}
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *MemoryHistory) PurgeEvents(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	return nil
}
