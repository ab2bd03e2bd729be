package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter enforces a per-address request budget over a fixed window.
// Expired windows are garbage-collected in the background. A zero or
// negative limit disables enforcement entirely.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	width   time.Duration
}

type window struct {
	count int
	start time.Time
}

func NewRateLimiter(limit int, width time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		width:   width,
	}
	if limit > 0 {
		go rl.janitor()
	}
	return rl
}

// Allow reports whether one more request from key fits its current window.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) > rl.width {
		rl.windows[key] = &window{count: 1, start: now}
		return true
	}
	w.count++
	return w.count <= rl.limit
}

// Middleware answers 429 once an address exhausts its budget.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)
		if !rl.Allow(ip) {
			log.WithField("ip", ip).Debug("rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.width/time.Second)))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(rl.width)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-2 * rl.width)
		rl.mu.Lock()
		for key, w := range rl.windows {
			if w.start.Before(cutoff) {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}
