package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_IssueAndVerify(t *testing.T) {
	svc := NewJWTService("test-secret-0123456789")

	token, exp, err := svc.Issue("user-1", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
}

func TestJWTService_RejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret-0123456789")
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.Issue("user-1", time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTService("secret-a-0123456789").Issue("user-1", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTService("secret-b-0123456789").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsMalformed(t *testing.T) {
	svc := NewJWTService("test-secret-0123456789")
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := svc.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, tok)
	}
}

func TestJWTService_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTService("test-secret-0123456789").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RequiresExpiry(t *testing.T) {
	secret := "test-secret-0123456789"
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = NewJWTService(secret).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
