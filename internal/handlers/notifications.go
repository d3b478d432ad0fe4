package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// NotificationsHandler returns the notification history, newest first,
// optionally filtered by type.
func (h *Handler) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.History.Events(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		log.Printf("Failed to get notification history: %v", err)
		http.Error(w, "Failed to get notifications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"notifications": events,
		"total":         len(events),
	})
}

// SendByTypeHandler broadcasts to one subscription type. Used by the admin
// notifications panel.
func (h *Handler) SendByTypeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Type  string `json:"type"`
		Title string `json:"title"`
		Body  string `json:"body"`
		Icon  string `json:"icon"`
		URL   string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		http.Error(w, "Missing subscription type", http.StatusBadRequest)
		return
	}

	payload := notificationPayload(req.Type, req.Title, req.Body, req.Icon, req.URL, "")
	sent, failed, err := h.broadcast(r.Context(), req.Type, req.Title, req.Body, payload)
	if err != nil {
		http.Error(w, "Failed to send notifications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"type":   req.Type,
		"sentTo": sent,
		"failed": failed,
	})
}

// SubscriptionStatsHandler reports active subscription counts per type for
// the admin panel.
func (h *Handler) SubscriptionStatsHandler(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Subs.Subscriptions(r.Context(), "", "", true)
	if err != nil {
		http.Error(w, "Failed to read subscriptions", http.StatusInternalServerError)
		return
	}

	byType := map[string]int{}
	for _, sub := range subs {
		byType[sub.Type]++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total":  len(subs),
		"byType": byType,
	})
}

// PurgeNotificationsHandler clears the notification history.
func (h *Handler) PurgeNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.History.PurgeEvents(r.Context()); err != nil {
		log.Printf("Failed to purge notifications: %v", err)
		http.Error(w, "Failed to purge notifications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
