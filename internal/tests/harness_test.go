package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imemory/server/internal/auth"
	"github.com/imemory/server/internal/captcha"
	httphandler "github.com/imemory/server/internal/http"
	"github.com/imemory/server/internal/http/handlers"
	"github.com/imemory/server/internal/imagehost"
	"github.com/imemory/server/internal/metrics"
	"github.com/imemory/server/internal/notes"
	"github.com/imemory/server/internal/ratelimit"
	"github.com/imemory/server/internal/repo"
)

const testJWTSecret = "test-jwt-secret-at-least-32-characters-long"

var sixDigits = regexp.MustCompile(`\b\d{6}\b`)

type sentMessage struct {
	channel, to, body string
}

// captureDispatcher records outgoing messages so tests can read the codes.
type captureDispatcher struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (d *captureDispatcher) SendEmail(_ context.Context, to, _, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMessage{"email", to, body})
	return nil
}

func (d *captureDispatcher) SendSMS(_ context.Context, phone, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMessage{"sms", phone, body})
	return nil
}

func (d *captureDispatcher) lastCode(t *testing.T, channel, to string) string {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.sent) - 1; i >= 0; i-- {
		if m := d.sent[i]; m.channel == channel && m.to == to {
			code := sixDigits.FindString(m.body)
			require.NotEmpty(t, code, "message must carry a code")
			return code
		}
	}
	t.Fatalf("no %s message sent to %s", channel, to)
	return ""
}

type memoryHost struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (h *memoryHost) Upload(_ context.Context, u imagehost.Upload) (imagehost.Image, error) {
	data, err := io.ReadAll(u.Body)
	if err != nil {
		return imagehost.Image{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	key := imagehost.ObjectKey(u.Filename)
	h.objects[key] = data
	return imagehost.Image{URL: "https://images.test/" + key, PublicID: key}, nil
}

func (h *memoryHost) Delete(_ context.Context, publicID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.objects, publicID)
	return nil
}

func (h *memoryHost) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}

type serverOptions struct {
	users   repo.UserRepo
	notes   repo.NoteRepo
	captcha captcha.Verifier

	trustProxy bool
}

// testServer holds the running router and the fakes behind it
type testServer struct {
	Server  *httptest.Server
	Mail    *captureDispatcher
	Images  *memoryHost
	Notes   *notes.Service
	Metrics *metrics.Metrics
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	if opts.users == nil {
		opts.users = repo.NewMemoryUserRepo()
	}
	if opts.notes == nil {
		opts.notes = repo.NewMemoryNoteRepo()
	}
	if opts.captcha == nil {
		opts.captcha = captcha.AllowAll{}
	}

	logger := zap.NewNop()
	mail := &captureDispatcher{}
	images := &memoryHost{objects: make(map[string][]byte)}
	m := metrics.New("imemory_test")

	store := ratelimit.NewMemoryStore(time.Hour)
	t.Cleanup(store.Close)
	signup := ratelimit.New(store, "signup", 5, time.Hour, logger).OnReject(m.RateLimited)
	otp := ratelimit.New(store, "otp", 5, 15*time.Minute, logger).OnReject(m.RateLimited)

	authService := auth.NewService(auth.Deps{
		Users:       opts.users,
		OTP:         auth.NewOTPIssuer(10 * time.Minute),
		Tokens:      auth.NewJWTService(testJWTSecret),
		Passwords:   auth.NewPasswordHasher(4),
		Notifier:    mail,
		Recorder:    m,
		Logger:      logger,
		TokenTTL:    time.Hour,
		RememberTTL: 7 * 24 * time.Hour,
	})
	notesService := notes.NewService(opts.notes, images, logger)

	router := httphandler.NewRouter(httphandler.RouterDeps{
		Auth:           handlers.NewAuthHandler(authService, opts.captcha, logger),
		Notes:          handlers.NewNotesHandler(notesService, 1<<20, logger),
		Authenticator:  authService,
		SignupLimiter:  signup,
		OTPLimiter:     otp,
		TrustProxy:     opts.trustProxy,
		Metrics:        m,
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         logger,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, Mail: mail, Images: images, Notes: notesService, Metrics: m}
}

// call sends a JSON request and returns the status and raw body.
func (s *testServer) call(t *testing.T, method, path, token string, payload any) (int, []byte) {
	t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.Server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("auth-token", token)
	}
	return s.do(t, req)
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := s.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

type apiError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), "body: %s", raw)
	return v
}

type loginResult struct {
	Success   bool      `json:"success"`
	AuthToken string    `json:"authToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// signupAndLogin registers, verifies the email and logs in, returning the session token.
func (s *testServer) signupAndLogin(t *testing.T, name, email, password string) string {
	t.Helper()
	status, raw := s.call(t, http.MethodPost, "/api/auth/createuser", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, status, "createuser body: %s", raw)

	code := s.Mail.lastCode(t, "email", email)
	status, raw = s.call(t, http.MethodPost, "/api/auth/verify-email", "", map[string]string{"email": email, "otp": code})
	require.Equal(t, http.StatusOK, status, "verify-email body: %s", raw)

	status, raw = s.call(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, "login body: %s", raw)
	res := decode[loginResult](t, raw)
	require.NotEmpty(t, res.AuthToken)
	return res.AuthToken
}
