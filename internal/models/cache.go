package models

import "time"

// CacheWindow is how long a cached API response counts as fresh.
const CacheWindow = 5 * time.Minute

// ApiCacheEntry is the last successful response for a GET URL. Stale entries
// stay in the store; staleness only disqualifies them as cache hits.
type ApiCacheEntry struct {
	URL       string    `json:"url"`
	Data      []byte    `json:"data"`
	Endpoint  string    `json:"endpoint"`
	FetchedAt time.Time `json:"timestamp"`
}

// Fresh reports whether the entry is within the validity window as of now.
func (e *ApiCacheEntry) Fresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < CacheWindow
}
