package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/imemory/server/internal/apperr"
	"github.com/imemory/server/internal/ratelimit"
)

// RateLimit rejects requests from a client IP once limiter's window is full.
// It runs before any handler logic, so rejected requests never reach the
// CAPTCHA check or a notification provider.
func RateLimit(limiter *ratelimit.Limiter, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := limiter.Allow(r.Context(), ClientIP(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				respondWithError(w, apperr.CodeRateLimited, fmt.Sprintf("%s Please try again in %s.", message, humanDuration(secs)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func humanDuration(secs int) string {
	switch {
	case secs >= 3600:
		h := (secs + 3599) / 3600
		return plural(h, "hour")
	case secs >= 60:
		m := (secs + 59) / 60
		return plural(m, "minute")
	default:
		return plural(secs, "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
