package syncer

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Watcher monitors connectivity and drains the queue when it looks restored:
// on an offline-to-online transition seen by the probe, on an explicit
// Notify (the app's own "online" signal or a background-sync callback), and
// once at startup when the probe already succeeds.
type Watcher struct {
	syncer   *Synchronizer
	probeURL string
	interval time.Duration
	client   *http.Client
	notify   chan struct{}
	onResult func(Result)
}

func NewWatcher(s *Synchronizer, probeURL string, interval time.Duration, onResult func(Result)) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		syncer:   s,
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		notify:   make(chan struct{}, 1),
		onResult: onResult,
	}
}

// Notify requests a drain without waiting for the next probe. Safe from any
// goroutine; a drain already requested is not queued twice.
func (w *Watcher) Notify() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled. An in-flight drain runs to completion;
// only the wait between cycles is interruptible.
func (w *Watcher) Run(ctx context.Context) {
	online := w.probe(ctx)
	if online {
		w.drain(ctx)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.notify:
			online = true
			w.drain(ctx)
		case <-ticker.C:
			now := w.probe(ctx)
			if now && !online {
				log.Println("Connectivity restored, syncing pending requests")
				w.drain(ctx)
			}
			online = now
		}
	}
}

func (w *Watcher) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (w *Watcher) drain(ctx context.Context) {
	res, err := w.syncer.Sync(ctx)
	if err != nil {
		log.Printf("Sync failed: %v", err)
		return
	}
	if res.Total > 0 {
		log.Printf("Sync finished: %d synced, %d failed, %d total", res.Synced, res.Failed, res.Total)
	}
	if w.onResult != nil {
		w.onResult(res)
	}
}
