package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New("imemory")

	m.AuthEvent("login", "success")
	m.AuthEvent("login", "success")
	m.OTPDelivery("email", "failure")
	m.RateLimited("signup")
	m.ObserveHTTP("/api/auth/login", "POST", 200, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthEvents.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OTPDeliveries.WithLabelValues("email", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedHits.WithLabelValues("signup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/auth/login", "POST", "200")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New("imemory")
	m.RateLimited("otp")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `imemory_rate_limited_total{scope="otp"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
