// Package notify delivers one-time codes and account messages by email and SMS.
package notify

import (
	"context"
	"errors"
)

// ErrChannelUnavailable is returned when no sender is configured for a channel.
var ErrChannelUnavailable = errors.New("notification channel not configured")

// Dispatcher sends messages to a user over email or SMS.
type Dispatcher interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	SendSMS(ctx context.Context, phone, body string) error
}

// EmailSender delivers a single plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, body string) error
}

// Composite joins independent email and SMS senders into a Dispatcher.
// A nil sender makes its channel report ErrChannelUnavailable.
type Composite struct {
	Email EmailSender
	SMS   SMSSender
}

func (c Composite) SendEmail(ctx context.Context, to, subject, body string) error {
	if c.Email == nil {
		return ErrChannelUnavailable
	}
	return c.Email.SendEmail(ctx, to, subject, body)
}

func (c Composite) SendSMS(ctx context.Context, phone, body string) error {
	if c.SMS == nil {
		return ErrChannelUnavailable
	}
	return c.SMS.SendSMS(ctx, phone, body)
}

// CanSendSMS reports whether an SMS sender is configured.
func (c Composite) CanSendSMS() bool {
	return c.SMS != nil
}

// SMSAvailable reports whether d can deliver text messages. Dispatchers
// that do not say otherwise are assumed to support SMS.
func SMSAvailable(d Dispatcher) bool {
	if c, ok := d.(interface{ CanSendSMS() bool }); ok {
		return c.CanSendSMS()
	}
	return true
}
