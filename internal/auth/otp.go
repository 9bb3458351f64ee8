package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/imemory/server/internal/model"
)

const (
	otpMin = 100000
	otpMax = 999999

	// DefaultOTPTTL is how long an issued code stays valid.
	DefaultOTPTTL = 10 * time.Minute
)

var otpSpan = big.NewInt(otpMax - otpMin + 1)

// OTPIssuer generates six-digit one-time codes. It has no side effects; the
// caller persists the code and arranges delivery.
type OTPIssuer struct {
	ttl time.Duration
	now func() time.Time
}

// NewOTPIssuer creates an issuer whose codes expire after ttl.
func NewOTPIssuer(ttl time.Duration) *OTPIssuer {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPIssuer{ttl: ttl, now: time.Now}
}

// Issue returns a code drawn uniformly from 100000-999999 and its expiry.
func (o *OTPIssuer) Issue(purpose model.Purpose) (string, time.Time, error) {
	if !purpose.Valid() {
		return "", time.Time{}, fmt.Errorf("unknown otp purpose %q", purpose)
	}
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64()+otpMin)
	return code, o.now().UTC().Add(o.ttl), nil
}

// TTL reports how long issued codes stay valid.
func (o *OTPIssuer) TTL() time.Duration {
	return o.ttl
}

// codeMatches reports whether submitted equals the stored code and the code
// has not expired at now. A nil stored code never matches.
func codeMatches(stored *string, expiresAt *time.Time, submitted string, now time.Time) bool {
	if stored == nil || expiresAt == nil || submitted == "" {
		return false
	}
	if now.After(*expiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(submitted)) == 1
}
