package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_SetAndClearCodes(t *testing.T) {
	exp := time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC)
	var id Identity

	id.SetCode(PurposeEmail, "111111", exp)
	id.SetCode(PurposePhone, "222222", exp)
	id.SetCode(PurposeReset, "333333", exp)

	code, e := id.PendingCode(PurposeEmail)
	require.NotNil(t, code)
	assert.Equal(t, "111111", *code)
	assert.Equal(t, exp, *e)

	id.ClearCode(PurposeEmail)
	code, e = id.PendingCode(PurposeEmail)
	assert.Nil(t, code)
	assert.NotNil(t, e, "shared expiry stays while the phone code is pending")

	id.ClearCode(PurposePhone)
	assert.Nil(t, id.VerificationCodeExpiry)

	code, _ = id.PendingCode(PurposeReset)
	require.NotNil(t, code)
	id.ClearCode(PurposeReset)
	assert.Nil(t, id.PasswordResetCode)
	assert.Nil(t, id.PasswordResetCodeExpiry)
}

func TestIdentity_SetCodeOverwrites(t *testing.T) {
	var id Identity
	id.SetCode(PurposeEmail, "111111", time.Now())
	id.SetCode(PurposeEmail, "999999", time.Now())
	code, _ := id.PendingCode(PurposeEmail)
	assert.Equal(t, "999999", *code)
}

func TestIdentity_ResendExtendsOtherVerificationCode(t *testing.T) {
	first := time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC)
	later := first.Add(5 * time.Minute)
	var id Identity

	id.SetCode(PurposeEmail, "111111", first)
	id.SetCode(PurposeReset, "333333", first)
	id.SetCode(PurposePhone, "222222", later)

	code, e := id.PendingCode(PurposeEmail)
	require.NotNil(t, code)
	assert.Equal(t, "111111", *code)
	assert.Equal(t, later, *e, "email code now expires with the resent phone code")

	_, e = id.PendingCode(PurposeReset)
	assert.Equal(t, first, *e)
}

func TestIdentity_ProfileHidesSecrets(t *testing.T) {
	id := Identity{ID: "u1", Name: "Alice", Email: "a@x.com", PasswordHash: "$2a$10$hash"}
	id.SetCode(PurposeEmail, "123456", time.Now())

	raw, err := json.Marshal(id.Profile())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hash")
	assert.NotContains(t, string(raw), "123456")
	assert.Contains(t, string(raw), `"email":"a@x.com"`)
}

func TestPurposeValid(t *testing.T) {
	assert.True(t, PurposeReset.Valid())
	assert.False(t, Purpose("sms").Valid())
}
