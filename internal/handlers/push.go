package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"pwa-notify-go/internal/models"

	"github.com/SherClockHolmes/webpush-go"
)

var (
	vapidPrivateKey string
	vapidPublicKey  string
)

func init() {
	// Check for VAPID keys in env, or generate them
	vapidPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")
	vapidPublicKey = os.Getenv("VAPID_PUBLIC_KEY")

	if vapidPrivateKey == "" || vapidPublicKey == "" {
		log.Println("VAPID keys not found in environment. Generating new keys...")
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			log.Fatal("Failed to generate VAPID keys:", err)
		}
		vapidPrivateKey = privateKey
		vapidPublicKey = publicKey
		log.Printf("Generated VAPID Keys:\nVAPID_PRIVATE_KEY=%s\nVAPID_PUBLIC_KEY=%s\n(Add these to your .env file to persist them)", privateKey, publicKey)
	}
}

func vapidSubscriber() string {
	if s := os.Getenv("VAPID_SUBSCRIBER"); s != "" {
		return s
	}
	return "mailto:admin@example.com"
}

// GetVAPIDKeyHandler returns the public VAPID key
func (h *Handler) GetVAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"publicKey": vapidPublicKey,
	})
}

// sendPush delivers one payload to one subscription. A 410 from the push
// service means the channel is gone and the subscription is removed.
func (h *Handler) sendPush(ctx context.Context, sub models.ServerSubscription, payload []byte) error {
	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	resp, err := webpush.SendNotification(payload, s, &webpush.Options{
		Subscriber:      vapidSubscriber(),
		VAPIDPublicKey:  vapidPublicKey,
		VAPIDPrivateKey: vapidPrivateKey,
		TTL:             30,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		if err := h.Subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to remove gone subscription %s: %v", sub.Endpoint, err)
		} else {
			log.Printf("Removed gone subscription: %s", sub.Endpoint)
		}
		return fmt.Errorf("subscription gone")
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// notificationPayload builds the JSON the service worker displays.
func notificationPayload(typ, title, body, icon, targetURL, tag string) []byte {
	config := models.ConfigForType(typ)
	if title == "" {
		if config.Title != "" {
			title = config.Title
		} else {
			title = "New notification"
		}
	}
	if body == "" {
		body = "You have a new message"
	}
	if icon == "" {
		if config.Icon != "" {
			icon = config.Icon
		} else {
			icon = "/icons/ico1.ico"
		}
	}
	if tag == "" {
		if typ != "" {
			tag = typ + "-notification"
		} else {
			tag = "default-notification"
		}
	}
	if targetURL == "" {
		targetURL = "/"
	}

	payload := map[string]any{
		"title":              title,
		"body":               body,
		"icon":               icon,
		"badge":              "/icons/ico2.ico",
		"tag":                tag,
		"requireInteraction": config.RequireInteraction,
		"actions": []map[string]string{
			{"action": "open", "title": "Open", "icon": "/icons/ico3.ico"},
			{"action": "close", "title": "Close", "icon": "/icons/ico4.ico"},
		},
		"data": map[string]any{
			"url":       targetURL,
			"timestamp": time.Now().UnixMilli(),
		},
	}
	if len(config.Vibrate) > 0 {
		payload["vibrate"] = config.Vibrate
	}

	data, _ := json.Marshal(payload)
	return data
}

// broadcast sends a payload to every matching active subscription and
// records the event in the history store.
func (h *Handler) broadcast(ctx context.Context, typ, title, body string, payload []byte) (sent, failed int, err error) {
	subs, err := h.Subs.Subscriptions(ctx, "", typ, true)
	if err != nil {
		return 0, 0, err
	}

	for _, sub := range subs {
		if err := h.sendPush(ctx, sub, payload); err != nil {
			log.Printf("Failed to send push to %s: %v", sub.Endpoint, err)
			pushFailed.Inc()
			failed++
			continue
		}
		pushSent.Inc()
		sent++
	}

	if _, err := h.History.AddEvent(ctx, models.NotificationEvent{
		Type:   typ,
		Title:  title,
		Body:   body,
		SentTo: sent,
		Failed: failed,
	}); err != nil {
		log.Printf("Failed to record notification event: %v", err)
	}

	return sent, failed, nil
}

// SendNotificationHandler broadcasts a push notification, optionally limited
// to one subscription type.
func (h *Handler) SendNotificationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !validateSharedSecret(r) {
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		Icon  string `json:"icon"`
		URL   string `json:"url"`
		Tag   string `json:"tag"`
		Type  string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	active, err := h.Subs.CountActive(r.Context())
	if err != nil {
		http.Error(w, "Failed to read subscriptions", http.StatusInternalServerError)
		return
	}
	if active == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "No subscriptions registered"})
		return
	}

	payload := notificationPayload(req.Type, req.Title, req.Body, req.Icon, req.URL, req.Tag)
	sent, failed, err := h.broadcast(r.Context(), req.Type, req.Title, req.Body, payload)
	if err != nil {
		http.Error(w, "Failed to send notifications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": fmt.Sprintf("Notification sent to %d devices", sent),
		"sentTo":  sent,
		"failed":  failed,
	})
}

// TestNotificationHandler sends a canned notification and reports the
// per-subscription outcome.
func (h *Handler) TestNotificationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	subs, err := h.Subs.Subscriptions(r.Context(), "", "", true)
	if err != nil {
		http.Error(w, "Failed to read subscriptions", http.StatusInternalServerError)
		return
	}

	payload := notificationPayload("", "Test Notification", "This is a test notification from the server", "", "/", "test-notification")

	type result struct {
		Endpoint string `json:"endpoint"`
		Success  bool   `json:"success"`
		Error    string `json:"error,omitempty"`
	}
	results := make([]result, 0, len(subs))
	successful := 0
	for _, sub := range subs {
		if err := h.sendPush(r.Context(), sub, payload); err != nil {
			results = append(results, result{Endpoint: sub.Endpoint, Error: err.Error()})
			continue
		}
		results = append(results, result{Endpoint: sub.Endpoint, Success: true})
		successful++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message":    "Test notification sent",
		"total":      len(subs),
		"successful": successful,
		"failed":     len(subs) - successful,
		"results":    results,
	})
}
