package models

import (
	"strings"
	"time"
)

// PendingRequest is an outbound write that failed and is waiting to be
// replayed. A record exists exactly as long as the server has not
// acknowledged the request with a 2xx.
type PendingRequest struct {
	ID        int64             `json:"id"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Body      []byte            `json:"body"`
	Endpoint  string            `json:"endpoint"`
	RequestID string            `json:"request_id"`
	Attempts  int               `json:"attempts"`
	CreatedAt time.Time         `json:"created_at"`
}

// ShortEndpoint derives the diagnostic label stored alongside a pending
// request: the path after /api/, or the full URL when it has no API path.
func ShortEndpoint(url string) string {
	if i := strings.Index(url, "/api/"); i >= 0 {
		if ep := url[i+len("/api/"):]; ep != "" {
			return ep
		}
	}
	return url
}
