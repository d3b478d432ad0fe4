package store

import (
	"context"
	"testing"

	"pwa-notify-go/internal/models"
)

func TestMemorySubscriptionsUpsert(t *testing.T) {
	s := NewMemorySubscriptions()
	ctx := context.Background()

	first, err := s.SaveSubscription(ctx, models.ServerSubscription{
		UserID: "123456789", Type: "alerts", Endpoint: "https://push/1", P256dh: "k1", Auth: "a1",
	})
	if err != nil {
		t.Fatalf("SaveSubscription: %v", err)
	}
	if first.ID == 0 || !first.Active {
		t.Fatalf("new subscription not activated: %+v", first)
	}

	// Same endpoint+type again: same record, refreshed keys, no duplicate.
	again, err := s.SaveSubscription(ctx, models.ServerSubscription{
		Type: "alerts", Endpoint: "https://push/1", P256dh: "k2", Auth: "a2",
	})
	if err != nil {
		t.Fatalf("SaveSubscription (repeat): %v", err)
	}
	if again.ID != first.ID || again.P256dh != "k2" {
		t.Fatalf("upsert created a new record: first=%+v again=%+v", first, again)
	}
	if again.UserID != "123456789" {
		t.Fatalf("empty userId overwrote existing owner: %+v", again)
	}

	// Same endpoint but a different type is a distinct registration.
	other, err := s.SaveSubscription(ctx, models.ServerSubscription{
		Type: "messages", Endpoint: "https://push/1",
	})
	if err != nil {
		t.Fatalf("SaveSubscription (other type): %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("different type collapsed into the same record")
	}

	if n, _ := s.CountActive(ctx); n != 2 {
		t.Fatalf("got %d active, want 2", n)
	}
}

func TestMemorySubscriptionsDeactivate(t *testing.T) {
	s := NewMemorySubscriptions()
	ctx := context.Background()

	s.SaveSubscription(ctx, models.ServerSubscription{Type: "alerts", Endpoint: "https://push/1"})
	s.SaveSubscription(ctx, models.ServerSubscription{Type: "messages", Endpoint: "https://push/1"})

	n, err := s.DeactivateSubscription(ctx, "https://push/1", "alerts")
	if err != nil {
		t.Fatalf("DeactivateSubscription: %v", err)
	}
	if n != 1 {
		t.Fatalf("deactivated %d, want 1", n)
	}

	// Empty type means all registrations for the endpoint.
	n, err = s.DeactivateSubscription(ctx, "https://push/1", "")
	if err != nil {
		t.Fatalf("DeactivateSubscription: %v", err)
	}
	if n != 1 {
		t.Fatalf("deactivated %d on second pass, want 1", n)
	}

	if n, _ := s.CountActive(ctx); n != 0 {
		t.Fatalf("got %d active after deactivation, want 0", n)
	}
	all, _ := s.Subscriptions(ctx, "", "", false)
	if len(all) != 2 {
		t.Fatalf("deactivate dropped records: got %d, want 2", len(all))
	}
}

func TestMemorySubscriptionsDelete(t *testing.T) {
	s := NewMemorySubscriptions()
	ctx := context.Background()

	s.SaveSubscription(ctx, models.ServerSubscription{Type: "alerts", Endpoint: "https://push/gone"})
	s.SaveSubscription(ctx, models.ServerSubscription{Type: "messages", Endpoint: "https://push/gone"})
	s.SaveSubscription(ctx, models.ServerSubscription{Type: "alerts", Endpoint: "https://push/stays"})

	if err := s.DeleteSubscription(ctx, "https://push/gone"); err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}
	all, _ := s.Subscriptions(ctx, "", "", false)
	if len(all) != 1 || all[0].Endpoint != "https://push/stays" {
		t.Fatalf("hard delete left wrong records: %+v", all)
	}
}

func TestMemoryHistoryOrderAndBound(t *testing.T) {
	s := NewMemoryHistory(3)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three", "four"} {
		if _, err := s.AddEvent(ctx, models.NotificationEvent{Type: "alerts", Title: title}); err != nil {
			t.Fatalf("AddEvent: %v", err)
		}
	}

	events, err := s.Events(ctx, "")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("bound not enforced: got %d events", len(events))
	}
	if events[0].Title != "four" || events[2].Title != "two" {
		t.Fatalf("events not newest-first: %+v", events)
	}

	if err := s.PurgeEvents(ctx); err != nil {
		t.Fatalf("PurgeEvents: %v", err)
	}
	if events, _ := s.Events(ctx, ""); len(events) != 0 {
		t.Fatalf("purge left %d events", len(events))
	}
}
