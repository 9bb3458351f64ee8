package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/imemory/server/internal/apperr"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// IPThrottle is a per-IP token bucket applied to every request.
type IPThrottle struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	rps     rate.Limit
	burst   int
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

// NewIPThrottle allows rps requests per second per IP with the given burst.
// Idle entries are swept every few minutes.
func NewIPThrottle(rps float64, burst int) *IPThrottle {
	t := &IPThrottle{
		entries: make(map[string]*limiterEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		ttl:     30 * time.Minute,
		stop:    make(chan struct{}),
	}
	go t.cleanupLoop(5 * time.Minute)
	return t
}

func (t *IPThrottle) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.entries[ip] = e
	}
	e.lastUse = time.Now()
	return e.limiter.Allow()
}

func (t *IPThrottle) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case now := <-ticker.C:
			t.mu.Lock()
			for ip, e := range t.entries {
				if now.Sub(e.lastUse) > t.ttl {
					delete(t.entries, ip)
				}
			}
			t.mu.Unlock()
		}
	}
}

// Close stops the cleanup loop.
func (t *IPThrottle) Close() {
	t.once.Do(func() { close(t.stop) })
}

// Middleware returns 429 once an IP has spent its bucket.
func (t *IPThrottle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			respondWithError(w, apperr.CodeRateLimited, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
