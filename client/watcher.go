package client

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Probe reports whether the device currently has connectivity.
type Probe func(ctx context.Context) bool

// HTTPProbe checks connectivity with a cheap HEAD request.
func HTTPProbe(url string, client *http.Client) Probe {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode < 500
	}
}

// Watcher drains the queue once eagerly at start and again on every
// offline → online transition.
type Watcher struct {
	Queue    *Queue
	Deliver  Deliverer
	Probe    Probe
	Interval time.Duration
}

func (w *Watcher) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	online := w.Probe(ctx)
	if online {
		w.drain(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := w.Probe(ctx)
			if now && !online {
				log.Println("📶 Connectivity regained, draining submission queue")
				w.drain(ctx)
			}
			online = now
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) drain(ctx context.Context) {
	if err := w.Queue.Drain(ctx, w.Deliver); err != nil {
		log.Printf("❌ Queue storage error during drain: %v", err)
	}
}
