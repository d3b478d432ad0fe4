package models

import "time"

// Predefined subscription types. Free-form types are accepted everywhere a
// type is taken; these are just the ones the UI knows how to present.
const (
	TypeDefault    = "default"
	TypeAlerts     = "alerts"
	TypeMessages   = "messages"
	TypeUpdates    = "updates"
	TypePromotions = "promotions"
)

// NotificationConfig is the per-type display configuration attached to a
// subscription and echoed back in delivered notifications.
type NotificationConfig struct {
	Title              string `json:"title,omitempty"`
	Icon               string `json:"icon,omitempty"`
	Badge              string `json:"badge,omitempty"`
	Vibrate            []int  `json:"vibrate,omitempty"`
	RequireInteraction bool   `json:"requireInteraction,omitempty"`
}

// DefaultConfigs maps each predefined type to its stock presentation.
var DefaultConfigs = map[string]NotificationConfig{
	TypeDefault: {
		Title: "General Notification",
		Icon:  "/icons/ico1.ico",
		Badge: "/icons/ico2.ico",
	},
	TypeAlerts: {
		Title:              "Important Alert",
		Icon:               "/icons/ico3.ico",
		Badge:              "/icons/ico2.ico",
		RequireInteraction: true,
		Vibrate:            []int{200, 100, 200, 100, 200},
	},
	TypeMessages: {
		Title: "New Message",
		Icon:  "/icons/ico4.ico",
		Badge: "/icons/ico2.ico",
	},
	TypeUpdates: {
		Title: "Update",
		Icon:  "/icons/ico5.ico",
		Badge: "/icons/ico2.ico",
	},
	TypePromotions: {
		Title: "Special Offer",
		Icon:  "/icons/ico1.ico",
		Badge: "/icons/ico2.ico",
	},
}

// ConfigForType returns the stock config for a predefined type, or a zero
// config for free-form types.
func ConfigForType(typ string) NotificationConfig {
	return DefaultConfigs[typ]
}

// PushChannel is the platform-issued delivery address for one installed app
// instance: the endpoint URL plus the client keys the push service encrypts
// against.
type PushChannel struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// SubscriptionRecord is a device-local push subscription of a given type.
//
// Active is tri-state: nil means the record predates the flag and counts as
// active, false means soft-deleted, true means active. Only an explicit
// false excludes a record from active listings.
type SubscriptionRecord struct {
	ID        int64              `json:"id"`
	Type      string             `json:"type"`
	Endpoint  string             `json:"endpoint"`
	P256dh    string             `json:"keys_p256dh"`
	Auth      string             `json:"keys_auth"`
	Config    NotificationConfig `json:"config"`
	Active    *bool              `json:"active,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// IsActive reports whether the record counts as active under the tri-state
// rule: anything but an explicit false is active.
func (s *SubscriptionRecord) IsActive() bool {
	return s.Active == nil || *s.Active
}

// Channel rebuilds the push channel descriptor stored with the record.
func (s *SubscriptionRecord) Channel() PushChannel {
	var ch PushChannel
	ch.Endpoint = s.Endpoint
	ch.Keys.P256dh = s.P256dh
	ch.Keys.Auth = s.Auth
	return ch
}
