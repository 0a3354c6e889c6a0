package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// callerWindow tracks one caller's request count inside the current fixed
// window.
type callerWindow struct {
	count   int
	startAt time.Time
}

// RateLimiter caps requests per caller over a fixed window. Authenticated
// requests are counted per wallet address so a user cannot reset the budget
// by hopping IPs; unauthenticated requests (login, refresh) fall back to the
// remote address. Place it after the JWT middleware wherever wallet keying
// should apply.
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string]*callerWindow
	limit   int
	window  time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		callers: make(map[string]*callerWindow),
		limit:   limit,
		window:  window,
	}

	// Expired windows are garbage; sweep them once per window.
	go func() {
		ticker := time.NewTicker(window)
		for range ticker.C {
			cutoff := time.Now().Add(-window)
			rl.mu.Lock()
			for key, c := range rl.callers {
				if c.startAt.Before(cutoff) {
					delete(rl.callers, key)
				}
			}
			rl.mu.Unlock()
		}
	}()

	return rl
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(callerKey(r)) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if wallet := GetWalletAddress(r.Context()); wallet != "" {
		return "wallet:" + wallet
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

func (rl *RateLimiter) allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.callers[key]
	if !ok || now.Sub(c.startAt) > rl.window {
		rl.callers[key] = &callerWindow{count: 1, startAt: now}
		return true
	}
	c.count++
	return c.count <= rl.limit
}
