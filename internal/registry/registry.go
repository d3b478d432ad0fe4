package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"pwa-notify-go/internal/models"
	"pwa-notify-go/internal/queue"
)

// ErrNotSubscribed is returned by Unsubscribe when neither the device nor
// the server knows an active subscription of the requested type.
var ErrNotSubscribed = errors.New("not subscribed")

// SubscriptionStore is the slice of the local store the registry owns.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, rec *models.SubscriptionRecord) (int64, error)
	Subscriptions(ctx context.Context, typ string, activeOnly bool) ([]models.SubscriptionRecord, error)
	DeactivateSubscription(ctx context.Context, id int64) error
}

// Sender delivers server notifications through the offline queue so an
// unreachable server defers the call instead of failing it.
type Sender interface {
	SendReliably(ctx context.Context, url, method string, headers map[string]string, body []byte) (*queue.Outcome, error)
}

// Registry reconciles the set of notification types the user wants between
// the local store and the remote server. The local store owns the records;
// the server mirrors them. Writes win locally until the server acknowledges;
// on unsubscribe the server is consulted as the authoritative endpoint list.
type Registry struct {
	store     SubscriptionStore
	provider  ChannelProvider
	sender    Sender
	serverURL string
	userID    string
	client    *http.Client

	mu        sync.Mutex
	typeLocks map[string]*sync.Mutex
}

func New(store SubscriptionStore, provider ChannelProvider, sender Sender, serverURL, userID string) *Registry {
	return &Registry{
		store:     store,
		provider:  provider,
		sender:    sender,
		serverURL: serverURL,
		userID:    userID,
		client:    &http.Client{Timeout: 10 * time.Second},
		typeLocks: make(map[string]*sync.Mutex),
	}
}

// lockType returns the mutex guarding one subscription type. The store has
// no transactional isolation across the existence check and the insert, so
// concurrent subscribes to the same type must serialize here.
func (r *Registry) lockType(typ string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.typeLocks[typ]
	if !ok {
		m = &sync.Mutex{}
		r.typeLocks[typ] = m
	}
	return m
}

// Subscribe makes the device subscribed to a notification type. Calling it
// again for an already-subscribed type returns the existing record without
// creating a duplicate. The local record is committed before the server is
// told; a dead server queues the notify instead of failing the subscribe.
func (r *Registry) Subscribe(ctx context.Context, typ string, config models.NotificationConfig) (*models.SubscriptionRecord, error) {
	lock := r.lockType(typ)
	lock.Lock()
	defer lock.Unlock()

	existing, err := r.store.Subscriptions(ctx, typ, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}

	channel, err := r.provider.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	if zeroConfig(config) {
		config = models.ConfigForType(typ)
	}

	active := true
	rec := &models.SubscriptionRecord{
		Type:     typ,
		Endpoint: channel.Endpoint,
		P256dh:   channel.Keys.P256dh,
		Auth:     channel.Keys.Auth,
		Config:   config,
		Active:   &active,
	}
	if _, err := r.store.SaveSubscription(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist subscription: %w", err)
	}

	if r.userID == "" {
		log.Printf("No user identity, subscription %q is local-only until login", typ)
		return rec, nil
	}

	body, err := json.Marshal(map[string]any{
		"subscription": channel,
		"type":         typ,
		"config":       config,
		"userId":       r.userID,
	})
	if err != nil {
		return nil, err
	}

	outcome, err := r.sender.SendReliably(ctx, r.serverURL+"/api/subscribe", http.MethodPost, nil, body)
	if err != nil {
		// Permanent server rejection or local storage failure. The local
		// subscription stays valid either way.
		log.Printf("Server rejected subscription %q: %v", typ, err)
		return rec, nil
	}
	if outcome.Queued {
		log.Printf("Server unreachable, subscription %q queued for sync (record %d)", typ, outcome.PendingID)
	}
	return rec, nil
}

// Unsubscribe deactivates every record of the type, locally and (best
// effort) on the server. Records are soft-deleted only; history stays. When
// the server is reachable its endpoint list is authoritative, since other
// devices may have deactivated some of ours.
func (r *Registry) Unsubscribe(ctx context.Context, typ string) error {
	lock := r.lockType(typ)
	lock.Lock()
	defer lock.Unlock()

	locals, err := r.store.Subscriptions(ctx, typ, false)
	if err != nil {
		return fmt.Errorf("failed to read subscriptions: %w", err)
	}

	localActive := false
	endpoints := map[string]bool{}
	for _, rec := range locals {
		if rec.IsActive() {
			localActive = true
		}
		endpoints[rec.Endpoint] = true
	}

	serverEndpoints, serverReachable := r.serverEndpoints(ctx, typ)
	for _, ep := range serverEndpoints {
		endpoints[ep] = true
	}

	if !localActive && serverReachable && len(serverEndpoints) == 0 {
		return ErrNotSubscribed
	}

	for _, rec := range locals {
		if err := r.store.DeactivateSubscription(ctx, rec.ID); err != nil {
			return fmt.Errorf("failed to deactivate subscription %d: %w", rec.ID, err)
		}
	}

	for ep := range endpoints {
		if err := r.provider.Unsubscribe(ctx, ep); err != nil {
			log.Printf("Push manager unsubscribe failed for %s: %v", ep, err)
		}

		body, err := json.Marshal(map[string]any{
			"endpoint": ep,
			"type":     typ,
			"userId":   r.userID,
		})
		if err != nil {
			continue
		}
		if _, err := r.sender.SendReliably(ctx, r.serverURL+"/api/unsubscribe", http.MethodPost, nil, body); err != nil {
			log.Printf("Server unsubscribe failed for %s: %v", ep, err)
		}
	}

	return nil
}

// ListActive returns the active subscriptions, optionally filtered by type.
// A record without an active flag counts as active; only an explicit false
// excludes it.
func (r *Registry) ListActive(ctx context.Context, typ string) ([]models.SubscriptionRecord, error) {
	return r.store.Subscriptions(ctx, typ, true)
}

func zeroConfig(c models.NotificationConfig) bool {
	return c.Title == "" && c.Icon == "" && c.Badge == "" && len(c.Vibrate) == 0 && !c.RequireInteraction
}

// serverEndpoints asks the server which endpoints it holds for this user and
// type. The second result is false when the server could not be reached.
func (r *Registry) serverEndpoints(ctx context.Context, typ string) ([]string, bool) {
	if r.userID == "" {
		return nil, false
	}

	u := fmt.Sprintf("%s/api/subscriptions?user=%s&type=%s",
		r.serverURL, url.QueryEscape(r.userID), url.QueryEscape(typ))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var payload struct {
		Subscriptions []struct {
			Endpoint string `json:"endpoint"`
		} `json:"subscriptions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false
	}

	var endpoints []string
	for _, sub := range payload.Subscriptions {
		if sub.Endpoint != "" {
			endpoints = append(endpoints, sub.Endpoint)
		}
	}
	return endpoints, true
}
