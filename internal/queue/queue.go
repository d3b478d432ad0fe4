package queue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"pwa-notify-go/internal/models"

	"github.com/google/uuid"
)

// SyncTag is the background-retry registration tag for queued writes.
const SyncTag = "sync-posts"

// PendingStore is the slice of the local store the queue needs: queued
// writes and the GET response cache.
type PendingStore interface {
	AddPending(ctx context.Context, req models.PendingRequest) (int64, error)
	PutCache(ctx context.Context, entry models.ApiCacheEntry) error
	GetCache(ctx context.Context, url string) (models.ApiCacheEntry, bool, error)
}

// RetryScheduler asks the platform to wake the app and retry queued work
// once connectivity returns. Registration is best-effort: an unsupported
// scheduler is not an error, it just means retries wait for an explicit
// online event.
type RetryScheduler interface {
	Schedule(ctx context.Context, tag string) error
}

// NoopScheduler is used where no background-retry facility exists.
type NoopScheduler struct{}

func (NoopScheduler) Schedule(ctx context.Context, tag string) error { return nil }

// PermanentError is a client-side rejection (4xx). Retrying would repeat the
// same rejection, so these requests are never queued.
type PermanentError struct {
	Status int
	Body   string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("request rejected: %d %s", e.Status, http.StatusText(e.Status))
}

// Outcome is the result of a reliable send. Queued distinguishes
// "accepted but deferred" from a completed request so callers can tell the
// user which one happened.
type Outcome struct {
	Queued    bool
	PendingID int64
	RequestID string
	Status    int
	Body      []byte
}

// Queue wraps outbound mutating requests: failures that look transient are
// persisted for replay instead of being dropped.
type Queue struct {
	store     PendingStore
	client    *http.Client
	scheduler RetryScheduler
}

func NewQueue(store PendingStore, client *http.Client, scheduler RetryScheduler) *Queue {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if scheduler == nil {
		scheduler = NoopScheduler{}
	}
	return &Queue{store: store, client: client, scheduler: scheduler}
}

// SendReliably attempts the request once. A 2xx returns immediately; a 4xx
// surfaces as a PermanentError; a network failure or 5xx persists the
// request for the synchronizer and reports a queued outcome.
func (q *Queue) SendReliably(ctx context.Context, url, method string, headers map[string]string, body []byte) (*Outcome, error) {
	if method == "" {
		method = http.MethodPost
	}

	// Detach the body and headers now: the record outlives the caller and
	// is replayed verbatim, possibly minutes later.
	payload := append([]byte(nil), body...)
	sendHeaders := map[string]string{}
	for k, v := range headers {
		sendHeaders[k] = v
	}
	if _, ok := sendHeaders["Content-Type"]; !ok && len(payload) > 0 {
		sendHeaders["Content-Type"] = "application/json"
	}
	// The correlation ID travels with the record so replays of the same
	// logical request are server-side deduplicatable.
	if _, ok := sendHeaders["X-Request-ID"]; !ok {
		sendHeaders["X-Request-ID"] = uuid.NewString()
	}
	requestID := sendHeaders["X-Request-ID"]

	resp, err := q.do(ctx, url, method, sendHeaders, payload)
	if err != nil {
		return q.enqueue(ctx, url, method, sendHeaders, payload, requestID)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Outcome{RequestID: requestID, Status: resp.StatusCode, Body: respBody}, nil
	case resp.StatusCode >= 500:
		return q.enqueue(ctx, url, method, sendHeaders, payload, requestID)
	default:
		return nil, &PermanentError{Status: resp.StatusCode, Body: string(respBody)}
	}
}

func (q *Queue) do(ctx context.Context, url, method string, headers map[string]string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return q.client.Do(req)
}

func (q *Queue) enqueue(ctx context.Context, url, method string, headers map[string]string, body []byte, requestID string) (*Outcome, error) {
	id, err := q.store.AddPending(ctx, models.PendingRequest{
		URL:       url,
		Method:    method,
		Headers:   headers,
		Body:      body,
		Endpoint:  models.ShortEndpoint(url),
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		// Local storage failure: nothing to retry until the user frees
		// space, so this one is terminal.
		return nil, fmt.Errorf("failed to persist pending request: %w", err)
	}

	if err := q.scheduler.Schedule(ctx, SyncTag); err != nil {
		log.Printf("Background retry registration failed (request %d stays queued): %v", id, err)
	}

	return &Outcome{Queued: true, PendingID: id, RequestID: requestID}, nil
}

// FetchWithCache performs a GET, caching successful responses. On failure it
// falls back to the cached entry when one exists and is still fresh; the
// second return reports whether the bytes came from the cache.
func (q *Queue) FetchWithCache(ctx context.Context, url string) ([]byte, bool, error) {
	resp, err := q.do(ctx, url, http.MethodGet, nil, nil)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			data, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return nil, false, readErr
			}
			if putErr := q.store.PutCache(ctx, models.ApiCacheEntry{
				URL:       url,
				Data:      data,
				Endpoint:  models.ShortEndpoint(url),
				FetchedAt: time.Now().UTC(),
			}); putErr != nil {
				log.Printf("Failed to cache response for %s: %v", url, putErr)
			}
			return data, false, nil
		}
		err = fmt.Errorf("request failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	entry, ok, cacheErr := q.store.GetCache(ctx, url)
	if cacheErr == nil && ok && entry.Fresh(time.Now()) {
		return entry.Data, true, nil
	}
	return nil, false, err
}
