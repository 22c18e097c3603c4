package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// Write endpoints are rate limited per client IP. Series reads are exempt:
// once memoized they are cheap, and chart consumers poll them freely.
const (
	writeBudgetPerWindow = 60
	rateWindow           = time.Minute
	staleClientAfter     = 10 * time.Minute
	cleanupEvery         = 5 * time.Minute
)

type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*writeWindow
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// writeWindow tracks one client's writes inside the current window.
type writeWindow struct {
	windowStart time.Time
	writes      int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*writeWindow),
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.dropStaleClients()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) dropStaleClients() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-staleClientAfter)
	for ip, win := range rl.clients {
		if win.windowStart.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop shuts down the cleanup goroutine.
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// ActiveClients returns the number of currently tracked clients.
func (rl *rateLimiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// allow reports whether a write from the given IP fits the current window.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	win, ok := rl.clients[clientIP]
	if !ok || now.Sub(win.windowStart) > rateWindow {
		rl.clients[clientIP] = &writeWindow{windowStart: now, writes: 1}
		return true
	}

	win.writes++
	if win.writes > writeBudgetPerWindow {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}
