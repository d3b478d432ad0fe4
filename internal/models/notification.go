package models

import "time"

// NotificationEvent is one broadcast recorded in the history store.
type NotificationEvent struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	SentTo    int       `json:"sent_to"`
	Failed    int       `json:"failed"`
}
