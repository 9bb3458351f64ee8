package model

import (
	"time"
)

// Purpose identifies what a one-time code was issued for.
type Purpose string

const (
	PurposeEmail Purpose = "email"
	PurposePhone Purpose = "phone"
	PurposeReset Purpose = "reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeEmail, PurposePhone, PurposeReset:
		return true
	}
	return false
}

// Identity is a registered user's authentication record.
//
// Email and phone verification codes share VerificationCodeExpiry; the reset
// code has its own expiry so a pending signup verification and a pending
// password reset never invalidate each other. Issuing either verification
// code moves the shared expiry, so resending one channel's code also extends
// the other channel's pending code.
type Identity struct {
	ID           string
	Name         string
	Email        string
	PhoneNumber  string
	PasswordHash string

	IsEmailVerified bool
	IsPhoneVerified bool

	EmailVerificationCode  *string
	PhoneVerificationCode  *string
	VerificationCodeExpiry *time.Time

	PasswordResetCode       *string
	PasswordResetCodeExpiry *time.Time

	SMSNotificationsEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether every required channel is verified. Only email is
// required; phone verification is optional.
func (i *Identity) IsActive() bool {
	return i.IsEmailVerified
}

// PendingCode returns the stored code and its expiry for the given purpose.
func (i *Identity) PendingCode(p Purpose) (*string, *time.Time) {
	switch p {
	case PurposeEmail:
		return i.EmailVerificationCode, i.VerificationCodeExpiry
	case PurposePhone:
		return i.PhoneVerificationCode, i.VerificationCodeExpiry
	case PurposeReset:
		return i.PasswordResetCode, i.PasswordResetCodeExpiry
	}
	return nil, nil
}

// SetCode stores a freshly issued code, replacing any pending one for the same purpose.
func (i *Identity) SetCode(p Purpose, code string, expiresAt time.Time) {
	c, e := code, expiresAt
	switch p {
	case PurposeEmail:
		i.EmailVerificationCode = &c
		i.VerificationCodeExpiry = &e
	case PurposePhone:
		i.PhoneVerificationCode = &c
		i.VerificationCodeExpiry = &e
	case PurposeReset:
		i.PasswordResetCode = &c
		i.PasswordResetCodeExpiry = &e
	}
}

// ClearCode drops the code for the given purpose. The shared verification
// expiry is dropped only once neither verification code is pending.
func (i *Identity) ClearCode(p Purpose) {
	switch p {
	case PurposeEmail:
		i.EmailVerificationCode = nil
	case PurposePhone:
		i.PhoneVerificationCode = nil
	case PurposeReset:
		i.PasswordResetCode = nil
		i.PasswordResetCodeExpiry = nil
		return
	}
	if i.EmailVerificationCode == nil && i.PhoneVerificationCode == nil {
		i.VerificationCodeExpiry = nil
	}
}

// Profile is the identity as returned to its owner, without secret fields.
type Profile struct {
	ID                      string    `json:"_id"`
	Name                    string    `json:"name"`
	Email                   string    `json:"email"`
	PhoneNumber             string    `json:"phoneNumber,omitempty"`
	IsEmailVerified         bool      `json:"isEmailVerified"`
	IsPhoneVerified         bool      `json:"isPhoneVerified"`
	SMSNotificationsEnabled bool      `json:"smsNotificationsEnabled"`
	Date                    time.Time `json:"date"`
}

// Profile strips the password hash and every pending code.
func (i *Identity) Profile() Profile {
	return Profile{
		ID:                      i.ID,
		Name:                    i.Name,
		Email:                   i.Email,
		PhoneNumber:             i.PhoneNumber,
		IsEmailVerified:         i.IsEmailVerified,
		IsPhoneVerified:         i.IsPhoneVerified,
		SMSNotificationsEnabled: i.SMSNotificationsEnabled,
		Date:                    i.CreatedAt,
	}
}

// Note is a user-owned document, optionally carrying an externally hosted image.
type Note struct {
	ID            string    `json:"_id"`
	UserID        string    `json:"user"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Tag           string    `json:"tag"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	ImagePublicID string    `json:"-"`
	Date          time.Time `json:"date"`
}

// DefaultTag is applied to notes created without a tag.
const DefaultTag = "General"
