package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"pwa-notify-go/internal/models"
)

// SubscribeHandler registers a device push subscription. Posting the same
// endpoint+type again upserts instead of duplicating.
func (h *Handler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Subscription models.PushChannel        `json:"subscription"`
		Type         string                    `json:"type"`
		Config       models.NotificationConfig `json:"config"`
		UserID       string                    `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Subscription.Endpoint == "" {
		http.Error(w, "Missing subscription endpoint", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		req.Type = models.TypeDefault
	}

	sub, err := h.Subs.SaveSubscription(r.Context(), models.ServerSubscription{
		UserID:   req.UserID,
		Type:     req.Type,
		Endpoint: req.Subscription.Endpoint,
		P256dh:   req.Subscription.Keys.P256dh,
		Auth:     req.Subscription.Keys.Auth,
		Config:   req.Config,
	})
	if err != nil {
		log.Printf("Failed to save subscription: %v", err)
		http.Error(w, "Failed to save subscription", http.StatusInternalServerError)
		return
	}
	log.Printf("Subscription registered: %s (%s)", sub.Endpoint, sub.Type)
	h.updateSubscriptionGauge(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Subscription registered",
		"id":      sub.ID,
	})
}

// UnsubscribeHandler deactivates a subscription by endpoint and type. The
// record is kept; only the active flag flips.
func (h *Handler) UnsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
		Type     string `json:"type"`
		UserID   string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Endpoint == "" {
		http.Error(w, "Missing endpoint", http.StatusBadRequest)
		return
	}

	n, err := h.Subs.DeactivateSubscription(r.Context(), req.Endpoint, req.Type)
	if err != nil {
		log.Printf("Failed to deactivate subscription: %v", err)
		http.Error(w, "Failed to deactivate subscription", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if n == 0 {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Subscription not found"})
		return
	}
	h.updateSubscriptionGauge(r.Context())
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"deactivated": n,
	})
}

// GetSubscriptionsHandler lists active subscriptions, optionally filtered by
// user and type. Keys are reported as presence only, never echoed back.
func (h *Handler) GetSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	typ := r.URL.Query().Get("type")

	subs, err := h.Subs.Subscriptions(r.Context(), userID, typ, true)
	if err != nil {
		http.Error(w, "Failed to read subscriptions", http.StatusInternalServerError)
		return
	}

	type item struct {
		Endpoint string `json:"endpoint"`
		Type     string `json:"type"`
		UserID   string `json:"user_id,omitempty"`
		Keys     bool   `json:"keys"`
	}
	items := make([]item, 0, len(subs))
	for _, sub := range subs {
		items = append(items, item{
			Endpoint: sub.Endpoint,
			Type:     sub.Type,
			UserID:   sub.UserID,
			Keys:     sub.P256dh != "" && sub.Auth != "",
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"totalSubscriptions": len(items),
		"subscriptions":      items,
	})
}

// CleanupSubscriptionsHandler probes every active subscription with a test
// send and removes the ones the push service no longer accepts.
func (h *Handler) CleanupSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Subs.Subscriptions(r.Context(), "", "", true)
	if err != nil {
		http.Error(w, "Failed to read subscriptions", http.StatusInternalServerError)
		return
	}

	payload := notificationPayload("", "Test", "Verifying subscription", "", "/", "cleanup-probe")
	valid := 0
	for _, sub := range subs {
		if err := h.sendPush(r.Context(), sub, payload); err != nil {
			log.Printf("Invalid subscription found: %s", sub.Endpoint)
			if err := h.Subs.DeleteSubscription(r.Context(), sub.Endpoint); err != nil {
				log.Printf("Failed to delete subscription %s: %v", sub.Endpoint, err)
			}
			continue
		}
		valid++
	}
	h.updateSubscriptionGauge(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message":            "Subscriptions cleaned",
		"validSubscriptions": valid,
	})
}
