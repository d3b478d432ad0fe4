package models

import "time"

// ServerSubscription is the server's authoritative copy of a device push
// subscription, keyed by user identity + endpoint.
type ServerSubscription struct {
	ID        int64              `json:"id"`
	UserID    string             `json:"user_id"`
	Type      string             `json:"type"`
	Endpoint  string             `json:"endpoint"`
	P256dh    string             `json:"keys_p256dh"`
	Auth      string             `json:"keys_auth"`
	Config    NotificationConfig `json:"config"`
	Active    bool               `json:"active"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
