package syncer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"pwa-notify-go/internal/models"
)

// PendingStore is the slice of the local store the synchronizer drains.
type PendingStore interface {
	ListPending(ctx context.Context) ([]models.PendingRequest, error)
	DeletePending(ctx context.Context, id int64) error
	SetPendingAttempts(ctx context.Context, id int64, attempts int) error
}

// Result aggregates one drain cycle. A partial batch is a normal outcome,
// not an error.
type Result struct {
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Dropped int `json:"dropped"`
	Total   int `json:"total"`
}

// Synchronizer replays queued requests against the server whenever
// connectivity is plausible again.
type Synchronizer struct {
	mu          sync.Mutex
	store       PendingStore
	client      *http.Client
	maxAttempts int
}

// New builds a synchronizer. maxAttempts caps how many drain cycles a record
// survives before being dropped; 0 retries forever.
func New(store PendingStore, client *http.Client, maxAttempts int) *Synchronizer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Synchronizer{store: store, client: client, maxAttempts: maxAttempts}
}

// Sync drains the queue oldest-first. Each record is reissued verbatim; a
// 2xx deletes it, anything else leaves it for the next cycle. One record's
// failure never aborts the batch. Concurrent invocations (an online event
// racing a background callback) are serialized.
func (s *Synchronizer) Sync(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.ListPending(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read pending requests: %w", err)
	}

	res := Result{Total: len(records)}
	for _, rec := range records {
		if s.replay(ctx, rec) {
			if err := s.store.DeletePending(ctx, rec.ID); err != nil {
				log.Printf("Failed to delete synced record %d: %v", rec.ID, err)
				res.Failed++
				continue
			}
			res.Synced++
			continue
		}

		attempts := rec.Attempts + 1
		if s.maxAttempts > 0 && attempts >= s.maxAttempts {
			if err := s.store.DeletePending(ctx, rec.ID); err != nil {
				log.Printf("Failed to drop record %d: %v", rec.ID, err)
			}
			log.Printf("Record %d dropped after %d attempts: %s", rec.ID, attempts, rec.Endpoint)
			res.Dropped++
			continue
		}
		if err := s.store.SetPendingAttempts(ctx, rec.ID, attempts); err != nil {
			log.Printf("Failed to update attempts for record %d: %v", rec.ID, err)
		}
		res.Failed++
	}

	return res, nil
}

func (s *Synchronizer) replay(ctx context.Context, rec models.PendingRequest) bool {
	method := rec.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, rec.URL, bytes.NewReader(rec.Body))
	if err != nil {
		return false
	}
	for k, v := range rec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
