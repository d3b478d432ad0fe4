package syncer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pwa-notify-go/internal/models"
	"pwa-notify-go/internal/store"
)

func newTestSyncer(t *testing.T, maxAttempts int) (*Synchronizer, *store.LocalStore) {
	t.Helper()
	ls, err := store.OpenLocalStore(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("OpenLocalStore: %v", err)
	}
	t.Cleanup(func() { ls.Close() })
	return New(ls, nil, maxAttempts), ls
}

func addPending(t *testing.T, ls *store.LocalStore, req models.PendingRequest) int64 {
	t.Helper()
	id, err := ls.AddPending(context.Background(), req)
	if err != nil {
		t.Fatalf("AddPending: %v", err)
	}
	return id
}

func TestSyncReplaysVerbatim(t *testing.T) {
	type seen struct {
		method, path, body, custom, reqID string
	}
	var got seen
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = seen{
			method: r.Method,
			path:   r.URL.Path,
			body:   string(body),
			custom: r.Header.Get("X-Custom"),
			reqID:  r.Header.Get("X-Request-ID"),
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	s, ls := newTestSyncer(t, 0)
	addPending(t, ls, models.PendingRequest{
		URL:       ts.URL + "/api/datos",
		Method:    "PUT",
		Headers:   map[string]string{"X-Custom": "yes", "X-Request-ID": "req-1"},
		Body:      []byte(`{"texto":"hola"}`),
		RequestID: "req-1",
	})

	res, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Synced != 1 || res.Failed != 0 || res.Total != 1 {
		t.Fatalf("result: %+v", res)
	}
	want := seen{method: "PUT", path: "/api/datos", body: `{"texto":"hola"}`, custom: "yes", reqID: "req-1"}
	if got != want {
		t.Fatalf("replayed request mangled:\n got %+v\nwant %+v", got, want)
	}
	if n, _ := ls.CountPending(context.Background()); n != 0 {
		t.Fatalf("synced record not deleted: %d pending", n)
	}
}

func TestSyncPartialBatch(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/api/broken" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	s, ls := newTestSyncer(t, 0)
	addPending(t, ls, models.PendingRequest{URL: ts.URL + "/api/first"})
	brokenID := addPending(t, ls, models.PendingRequest{URL: ts.URL + "/api/broken"})
	addPending(t, ls, models.PendingRequest{URL: ts.URL + "/api/third"})

	res, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Synced != 2 || res.Failed != 1 || res.Dropped != 0 || res.Total != 3 {
		t.Fatalf("result: %+v", res)
	}
	// Oldest first, and the failure in the middle does not stop the batch.
	wantOrder := []string{"/api/first", "/api/broken", "/api/third"}
	if len(paths) != 3 || paths[0] != wantOrder[0] || paths[1] != wantOrder[1] || paths[2] != wantOrder[2] {
		t.Fatalf("replay order: %v", paths)
	}

	pending, _ := ls.ListPending(context.Background())
	if len(pending) != 1 || pending[0].ID != brokenID {
		t.Fatalf("wrong survivor: %+v", pending)
	}
	if pending[0].Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", pending[0].Attempts)
	}
}

func TestSyncFailedRecordSurvivesForever(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	s, ls := newTestSyncer(t, 0)
	addPending(t, ls, models.PendingRequest{URL: ts.URL + "/api/datos"})

	for i := 0; i < 3; i++ {
		if _, err := s.Sync(context.Background()); err != nil {
			t.Fatalf("Sync: %v", err)
		}
	}
	pending, _ := ls.ListPending(context.Background())
	if len(pending) != 1 || pending[0].Attempts != 3 {
		t.Fatalf("unbounded retry lost the record: %+v", pending)
	}
}

func TestSyncDropsAtMaxAttempts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	s, ls := newTestSyncer(t, 2)
	addPending(t, ls, models.PendingRequest{URL: ts.URL + "/api/datos"})

	res, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Failed != 1 || res.Dropped != 0 {
		t.Fatalf("first cycle: %+v", res)
	}

	res, err = s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Dropped != 1 || res.Failed != 0 {
		t.Fatalf("second cycle: %+v", res)
	}
	if n, _ := ls.CountPending(context.Background()); n != 0 {
		t.Fatalf("dropped record still stored: %d pending", n)
	}
}

func TestSyncConcurrentCallsDeliverOnce(t *testing.T) {
	var mu sync.Mutex
	deliveries := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		deliveries++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	s, ls := newTestSyncer(t, 0)
	addPending(t, ls, models.PendingRequest{URL: ts.URL + "/api/datos"})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Sync(context.Background()); err != nil {
				t.Errorf("Sync: %v", err)
			}
		}()
	}
	wg.Wait()

	if deliveries != 1 {
		t.Fatalf("record delivered %d times, want 1", deliveries)
	}
}

func TestWatcherNotifyTriggersDrain(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	s, ls := newTestSyncer(t, 0)
	addPending(t, ls, models.PendingRequest{URL: ts.URL + "/api/datos"})

	results := make(chan Result, 4)
	w := NewWatcher(s, ts.URL+"/api/health", time.Hour, func(r Result) { results <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// The startup probe succeeds, so the first drain happens unprompted.
	select {
	case res := <-results:
		if res.Synced != 1 {
			t.Fatalf("startup drain: %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no drain after startup probe")
	}

	addPending(t, ls, models.PendingRequest{URL: ts.URL + "/api/perfil"})
	w.Notify()
	select {
	case res := <-results:
		if res.Synced != 1 {
			t.Fatalf("notify drain: %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no drain after Notify")
	}

	if n, _ := ls.CountPending(context.Background()); n != 0 {
		t.Fatalf("%d pending after drains", n)
	}
}
