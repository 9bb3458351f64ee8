package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReCaptcha_PostsFormAndReadsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		assert.Equal(t, "10.0.0.1", r.PostForm.Get("remoteip"))
		ok := r.PostForm.Get("response") == "good-token"
		w.Header().Set("Content-Type", "application/json")
		if ok {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer srv.Close()

	v := NewReCaptcha("s3cret", srv.URL, time.Second, zap.NewNop())

	ok, err := v.Verify(context.Background(), "good-token", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(context.Background(), "bad-token", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReCaptcha_EmptyTokenSkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	ok, err := NewReCaptcha("s", srv.URL, time.Second, zap.NewNop()).Verify(context.Background(), "  ", "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, called)
}

func TestReCaptcha_TimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewReCaptcha("s", srv.URL, 50*time.Millisecond, zap.NewNop()).Verify(context.Background(), "t", "")
	assert.Error(t, err)
}

func TestReCaptcha_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewReCaptcha("s", srv.URL, time.Second, zap.NewNop()).Verify(context.Background(), "t", "")
	assert.Error(t, err)
}

func TestAllowAll(t *testing.T) {
	ok, err := AllowAll{}.Verify(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, ok)
}
