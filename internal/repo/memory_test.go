package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imemory/server/internal/model"
)

func TestMemoryUserRepo_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepo()

	u := &model.Identity{Name: "Alice", Email: "  Alice@Example.COM ", PhoneNumber: "+15550001111"}
	require.NoError(t, r.Create(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)

	byEmail, err := r.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byPhone, err := r.GetByPhone(ctx, "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byPhone.ID)

	_, err = r.GetByPhone(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUserRepo_Duplicates(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepo()
	require.NoError(t, r.Create(ctx, &model.Identity{Email: "a@x.com", PhoneNumber: "+1"}))

	assert.ErrorIs(t, r.Create(ctx, &model.Identity{Email: "A@X.com"}), ErrDuplicate)
	assert.ErrorIs(t, r.Create(ctx, &model.Identity{Email: "b@x.com", PhoneNumber: "+1"}), ErrDuplicate)
	// users without a phone never collide on it
	require.NoError(t, r.Create(ctx, &model.Identity{Email: "c@x.com"}))
	require.NoError(t, r.Create(ctx, &model.Identity{Email: "d@x.com"}))
}

func TestMemoryUserRepo_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepo()
	u := &model.Identity{Email: "a@x.com"}
	require.NoError(t, r.Create(ctx, u))

	u.SetCode(model.PurposeEmail, "123456", time.Now().Add(time.Minute))
	require.NoError(t, r.Save(ctx, u))

	got, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EmailVerificationCode)
	assert.Equal(t, "123456", *got.EmailVerificationCode)

	assert.ErrorIs(t, r.Save(ctx, &model.Identity{ID: "nope"}), ErrNotFound)
}

func TestMemoryNoteRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryNoteRepo()
	base := time.Now().UTC()

	first := &model.Note{UserID: "u1", Title: "first", Date: base}
	second := &model.Note{UserID: "u1", Title: "second", Date: base.Add(time.Second)}
	other := &model.Note{UserID: "u2", Title: "other"}
	require.NoError(t, r.Create(ctx, second))
	require.NoError(t, r.Create(ctx, first))
	require.NoError(t, r.Create(ctx, other))

	notes, err := r.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first", notes[0].Title)

	first.Title = "renamed"
	require.NoError(t, r.Update(ctx, first))
	got, err := r.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	require.NoError(t, r.Delete(ctx, first.ID))
	assert.ErrorIs(t, r.Delete(ctx, first.ID), ErrNotFound)

	empty, err := r.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
