package notes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imemory/server/internal/apperr"
	"github.com/imemory/server/internal/imagehost"
	"github.com/imemory/server/internal/repo"
)

type mockHost struct {
	mock.Mock
	mu      sync.Mutex
	deleted []string
}

func (m *mockHost) Upload(ctx context.Context, u imagehost.Upload) (imagehost.Image, error) {
	args := m.Called(ctx, u.Filename)
	return args.Get(0).(imagehost.Image), args.Error(1)
}

func (m *mockHost) Delete(_ context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, publicID)
	return nil
}

func (m *mockHost) deletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

func png(name string) *imagehost.Upload {
	return &imagehost.Upload{Filename: name, ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
}

func newTestService(host imagehost.Host) *Service {
	return NewService(repo.NewMemoryNoteRepo(), host, zap.NewNop())
}

func waitCleanups(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestCreate_DefaultsAndValidation(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()

	n, err := s.Create(ctx, "u1", Input{Title: "Groceries", Description: "milk and eggs"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "General", n.Tag)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Date.IsZero())

	_, err = s.Create(ctx, "u1", Input{Title: "ab", Description: "abc"}, nil)
	appErr := apperr.As(err)
	assert.Equal(t, apperr.CodeValidation, appErr.Code)
	assert.Len(t, appErr.Fields, 2)
}

func TestCreate_WithImage(t *testing.T) {
	host := &mockHost{}
	host.On("Upload", mock.Anything, "cat.png").Return(imagehost.Image{URL: "https://img/cat.png", PublicID: "notes/cat"}, nil)
	s := newTestService(host)

	n, err := s.Create(context.Background(), "u1", Input{Title: "Pets", Description: "my cat"}, png("cat.png"))
	require.NoError(t, err)
	assert.Equal(t, "https://img/cat.png", n.ImageURL)
	assert.Equal(t, "notes/cat", n.ImagePublicID)
	host.AssertExpectations(t)
}

func TestCreate_ImageErrors(t *testing.T) {
	ctx := context.Background()
	in := Input{Title: "Pets", Description: "my cat"}

	host := &mockHost{}
	host.On("Upload", mock.Anything, "cat.png").Return(imagehost.Image{}, errors.New("cloud down"))
	_, err := newTestService(host).Create(ctx, "u1", in, png("cat.png"))
	assert.ErrorIs(t, err, apperr.ErrUpstreamDelivery)

	pdf := &imagehost.Upload{Filename: "x.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF")}
	_, err = newTestService(host).Create(ctx, "u1", in, pdf)
	assert.Equal(t, apperr.CodeValidation, apperr.As(err).Code)

	_, err = newTestService(nil).Create(ctx, "u1", in, png("cat.png"))
	assert.Equal(t, apperr.CodeValidation, apperr.As(err).Code, "uploads disabled")
}

func TestUpdate_OwnershipAndNotFound(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()
	n, err := s.Create(ctx, "alice", Input{Title: "Secret", Description: "alice only"}, nil)
	require.NoError(t, err)

	_, err = s.Update(ctx, "bob", n.ID, Input{Title: "Hacked"}, nil)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = s.Delete(ctx, "bob", n.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = s.Update(ctx, "alice", "missing", Input{Title: "Whatever"}, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Secret", list[0].Title)
}

func TestUpdate_PartialFields(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()
	n, err := s.Create(ctx, "alice", Input{Title: "Todo", Description: "write tests", Tag: "work"}, nil)
	require.NoError(t, err)

	updated, err := s.Update(ctx, "alice", n.ID, Input{Description: "write more tests"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Todo", updated.Title)
	assert.Equal(t, "write more tests", updated.Description)
	assert.Equal(t, "work", updated.Tag)

	_, err = s.Update(ctx, "alice", n.ID, Input{Title: "no"}, nil)
	assert.Equal(t, apperr.CodeValidation, apperr.As(err).Code)
}

func TestUpdate_ReplacesImageAndCleansUpOld(t *testing.T) {
	host := &mockHost{}
	host.On("Upload", mock.Anything, "v1.png").Return(imagehost.Image{URL: "https://img/v1", PublicID: "notes/v1"}, nil)
	host.On("Upload", mock.Anything, "v2.png").Return(imagehost.Image{URL: "https://img/v2", PublicID: "notes/v2"}, nil)
	s := newTestService(host)
	ctx := context.Background()

	n, err := s.Create(ctx, "alice", Input{Title: "Photo", Description: "holiday"}, png("v1.png"))
	require.NoError(t, err)

	updated, err := s.Update(ctx, "alice", n.ID, Input{}, png("v2.png"))
	require.NoError(t, err)
	assert.Equal(t, "https://img/v2", updated.ImageURL)

	waitCleanups(t, s)
	assert.Equal(t, []string{"notes/v1"}, host.deletedIDs())
}

func TestDelete_RemovesNoteAndImage(t *testing.T) {
	host := &mockHost{}
	host.On("Upload", mock.Anything, "v1.png").Return(imagehost.Image{URL: "https://img/v1", PublicID: "notes/v1"}, nil)
	s := newTestService(host)
	ctx := context.Background()

	n, err := s.Create(ctx, "alice", Input{Title: "Photo", Description: "holiday"}, png("v1.png"))
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, "alice", n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, deleted.ID)

	_, err = s.Delete(ctx, "alice", n.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	waitCleanups(t, s)
	assert.Equal(t, []string{"notes/v1"}, host.deletedIDs())
}
