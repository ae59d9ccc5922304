package main

import (
	"net/http"
	"sync"
	"time"

	"leadinbox/internal/httputil"
)

// rateLimiter is a fixed-window per-client limiter for the webhook
// endpoint. Windows are tracked per client IP and swept periodically so an
// abusive scan does not grow the map without bound.
type rateLimiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

type window struct {
	count int
	start time.Time
}

func newRateLimiter(limit int, interval time.Duration) *rateLimiter {
	rl := &rateLimiter{
		windows:  make(map[string]*window),
		limit:    limit,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.interval {
		rl.windows[key] = &window{count: 1, start: now}
		return true
	}

	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, w := range rl.windows {
				if now.Sub(w.start) >= rl.interval {
					delete(rl.windows, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func clientKey(r *http.Request) string {
	return httputil.GetClientIP(r)
}
