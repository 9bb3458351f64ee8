// Package ratelimit implements the sliding-window abuse guard placed in front
// of sign-up and one-time-code endpoints.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Store records hits in a sliding window and decides whether another is allowed.
type Store interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error)
}

// Limiter applies one limit (limit hits per window) to a named scope.
type Limiter struct {
	scope    string
	limit    int
	window   time.Duration
	store    Store
	log      *zap.Logger
	now      func() time.Time
	onReject func(scope string)
}

// New creates a limiter for scope backed by store.
func New(store Store, scope string, limit int, window time.Duration, log *zap.Logger) *Limiter {
	return &Limiter{
		scope:  scope,
		limit:  limit,
		window: window,
		store:  store,
		log:    log.Named("ratelimit").With(zap.String("scope", scope)),
		now:    time.Now,
	}
}

// OnReject registers a callback run for every rejected hit.
func (l *Limiter) OnReject(fn func(scope string)) *Limiter {
	l.onReject = fn
	return l
}

// Scope returns the limiter's scope name.
func (l *Limiter) Scope() string { return l.scope }

// Window returns the sliding window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records a hit for key. Store failures are logged and the hit is
// allowed.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	d, err := l.store.Hit(ctx, l.scope+":"+key, l.limit, l.window, l.now())
	if err != nil {
		l.log.Warn("rate limit store failed, allowing request", zap.Error(err))
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}
	}
	if !d.Allowed && l.onReject != nil {
		l.onReject(l.scope)
	}
	return d
}
