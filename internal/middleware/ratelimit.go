package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds the per-client token bucket settings.
type RateLimitConfig struct {
	// PerMinute is the sustained number of requests allowed per client.
	PerMinute int
	// Burst is the maximum burst size.
	Burst int
	// IdleTTL drops limiters for clients not seen for this long.
	IdleTTL time.Duration
}

// RateLimiter throttles requests per client address with a token bucket each.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter. Non-positive settings fall back to 6 per minute,
// burst 3.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 6
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 3
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{cfg: cfg, now: time.Now, clients: make(map[string]*clientLimiter)}
}

// Allow reports whether key may issue a request now.
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.cfg.PerMinute)), l.cfg.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()
	return c.limiter.AllowN(now, 1)
}

// Sweep drops limiters idle for longer than IdleTTL and returns how many were removed.
func (l *RateLimiter) Sweep() int {
	cutoff := l.now().Add(-l.cfg.IdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// Middleware rejects requests over the limit with 429 and a Retry-After hint.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(1, int((time.Minute / time.Duration(l.cfg.PerMinute)).Seconds())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			w.Header().Set("Retry-After", retryAfter)
			WriteError(w, r, http.StatusTooManyRequests, "muitas tentativas, aguarde um momento")
			return
		}
		next.ServeHTTP(w, r)
	})
}
