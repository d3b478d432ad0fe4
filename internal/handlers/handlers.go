package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"pwa-notify-go/internal/models"
	"pwa-notify-go/internal/store"
)

type Handler struct {
	Subs      store.SubscriptionStore
	History   store.HistoryStore
	Users     []models.User
	StartedAt time.Time
}

func NewHandler(subs store.SubscriptionStore, history store.HistoryStore, users []models.User) *Handler {
	return &Handler{
		Subs:      subs,
		History:   history,
		Users:     users,
		StartedAt: time.Now(),
	}
}

// StatsHandler returns the dashboard numbers
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.History.Events(r.Context(), "")
	if err != nil {
		log.Printf("Failed to get notification history: %v", err)
	}
	active, err := h.Subs.CountActive(r.Context())
	if err != nil {
		log.Printf("Failed to count subscriptions: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"totalNotifications":  len(events),
		"lastLogin":           time.Now().Format(time.RFC3339),
		"appVersion":          "1.0.0",
		"totalUsers":          len(h.Users),
		"activeSubscriptions": active,
		"uptimeSeconds":       int(time.Since(h.StartedAt).Seconds()),
	})
}

// ProfileHandler accepts profile updates. The demo server has nowhere to put
// them, but the endpoint must accept queued replays from offline clients.
func (h *Handler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		User     string          `json:"user"`
		Settings json.RawMessage `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	log.Printf("Updating profile for user: %s", req.User)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "Profile updated",
	})
}

// SettingsHandler accepts app settings updates, same contract as ProfileHandler.
func (h *Handler) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		User     string          `json:"user"`
		Settings json.RawMessage `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	log.Printf("Updating settings for user: %s", req.User)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "Settings saved",
	})
}
