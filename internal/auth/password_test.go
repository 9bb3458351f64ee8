package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	ok, err := h.Matches(hash, "secret123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Matches(hash, "secret124")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Matches("not-a-bcrypt-hash", "secret123")
	assert.Error(t, err)
}

func TestNewPasswordHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(1).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).cost)
}
