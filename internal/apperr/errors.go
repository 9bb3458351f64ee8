// Package apperr defines the error taxonomy shared by services and HTTP handlers.
package apperr

import (
	"errors"
	"net/http"
)

// Code is the machine-readable error identifier returned to clients.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeDuplicate          Code = "duplicate"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeNotVerified        Code = "not_verified"
	CodeInvalidCode        Code = "invalid_or_expired_code"
	CodeNotFound           Code = "not_found"
	CodeUnauthorized       Code = "unauthorized"
	CodeRateLimited        Code = "rate_limited"
	CodeCaptchaFailed      Code = "captcha_failed"
	CodeUpstreamDelivery   Code = "upstream_delivery"
	CodeInternal           Code = "internal"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is an application error with a client-facing code and message.
type Error struct {
	Code    Code
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrDuplicate          = &Error{Code: CodeDuplicate, Message: "an account with this email or phone number already exists"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "please try to login with correct credentials"}
	ErrNotVerified        = &Error{Code: CodeNotVerified, Message: "please verify your email before logging in"}
	ErrInvalidCode        = &Error{Code: CodeInvalidCode, Message: "invalid or expired code"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "please authenticate using a valid token"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "too many requests"}
	ErrCaptchaFailed      = &Error{Code: CodeCaptchaFailed, Message: "captcha verification failed"}
	ErrUpstreamDelivery   = &Error{Code: CodeUpstreamDelivery, Message: "upstream provider failed"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal server error"}
)

// New returns an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap returns an error with the given code and message that wraps cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// Validation builds a validation error from a list of field problems.
func Validation(fields ...FieldError) *Error {
	return &Error{Code: CodeValidation, Message: "invalid input", Fields: fields}
}

// Upstream wraps a provider failure (email, SMS, image host).
func Upstream(message string, cause error) *Error {
	return Wrap(CodeUpstreamDelivery, message, cause)
}

// As extracts an *Error from err. Errors outside the taxonomy come back as
// CodeInternal with the original error wrapped.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(CodeInternal, ErrInternal.Message, err)
}

// HTTPStatus maps a code to the response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeCaptchaFailed, CodeInvalidCode:
		return http.StatusBadRequest
	case CodeInvalidCredentials, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotVerified:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicate:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUpstreamDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
