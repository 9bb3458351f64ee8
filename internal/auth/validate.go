package auth

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/imemory/server/internal/apperr"
)

const (
	minNameLen     = 3
	minPasswordLen = 5
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

type fieldChecker struct {
	fields []apperr.FieldError
}

func (c *fieldChecker) check(ok bool, field, message string) {
	if !ok {
		c.fields = append(c.fields, apperr.FieldError{Field: field, Message: message})
	}
}

func (c *fieldChecker) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return apperr.Validation(c.fields...)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validPhone(phone string) bool {
	return e164.MatchString(phone)
}

func longEnough(s string, n int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= n
}
