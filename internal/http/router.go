package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/imemory/server/internal/http/handlers"
	"github.com/imemory/server/internal/metrics"
	"github.com/imemory/server/internal/middleware"
	"github.com/imemory/server/internal/ratelimit"
)

// RouterDeps collects everything the router mounts.
type RouterDeps struct {
	Auth          *handlers.AuthHandler
	Notes         *handlers.NotesHandler
	Authenticator middleware.Authenticator

	// SignupLimiter guards account creation; OTPLimiter is one counter
	// shared by every endpoint that checks or sends a one-time code.
	SignupLimiter *ratelimit.Limiter
	OTPLimiter    *ratelimit.Limiter

	// Throttle and security headers are applied only when Production is set.
	Throttle   *middleware.IPThrottle
	Production bool

	// TrustProxy makes forwarding headers decide the client address that
	// rate limits and the captcha see.
	TrustProxy bool

	// Metrics is optional; /metrics is served only when it is set.
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	var obs middleware.HTTPObserver
	if d.Metrics != nil {
		obs = d.Metrics
	}

	r.Use(chimw.RequestID)
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(d.Logger, obs))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", middleware.TokenHeader},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if d.Production {
		r.Use(middleware.SecurityHeaders)
		if d.Throttle != nil {
			r.Use(d.Throttle.Middleware)
		}
	}

	r.Get("/health", handlers.Health)
	if d.Metrics != nil {
		r.Method("GET", "/metrics", d.Metrics.Handler())
	}

	signupGuard := middleware.RateLimit(d.SignupLimiter, "Too many accounts created from this IP.")
	otpGuard := middleware.RateLimit(d.OTPLimiter, "Too many verification attempts from this IP.")
	requireAuth := middleware.Auth(d.Authenticator)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(signupGuard).Post("/createuser", d.Auth.HandleCreateUser)
		r.With(otpGuard).Post("/verify-email", d.Auth.HandleVerifyEmail)
		r.With(otpGuard).Post("/verify-phone", d.Auth.HandleVerifyPhone)
		r.Post("/login", d.Auth.HandleLogin)
		r.With(otpGuard).Post("/forgot-password", d.Auth.HandleForgotPassword)
		r.Post("/reset-password", d.Auth.HandleResetPassword)
		r.With(otpGuard).Post("/resend-otp", d.Auth.HandleResendOTP)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/opt-out-sms", d.Auth.HandleOptOutSMS)
			r.Get("/getuser", d.Auth.HandleGetUser)
			r.Post("/getuser", d.Auth.HandleGetUser)
		})
	})

	r.Route("/api/notes", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/fetchallnotes", d.Notes.HandleFetchAll)
		r.Post("/addnotes", d.Notes.HandleAdd)
		r.Put("/updatenote/{id}", d.Notes.HandleUpdate)
		r.Delete("/deletenote/{id}", d.Notes.HandleDelete)
	})

	return r
}
