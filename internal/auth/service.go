package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imemory/server/internal/apperr"
	"github.com/imemory/server/internal/logging"
	"github.com/imemory/server/internal/model"
	"github.com/imemory/server/internal/notify"
	"github.com/imemory/server/internal/repo"
)

// Recorder receives auth outcomes for metrics.
type Recorder interface {
	AuthEvent(event, outcome string)
	OTPDelivery(channel, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) AuthEvent(string, string)   {}
func (nopRecorder) OTPDelivery(string, string) {}

// Deps are the collaborators of Service.
type Deps struct {
	Users       repo.UserRepo
	OTP         *OTPIssuer
	Tokens      *JWTService
	Passwords   *PasswordHasher
	Notifier    notify.Dispatcher
	Recorder    Recorder
	Logger      *zap.Logger
	TokenTTL    time.Duration
	RememberTTL time.Duration
}

// Service drives registration, channel verification, login and password
// reset over the identity record.
//
// Every operation loads the identity, mutates it and saves it back without
// locking. Two requests racing on the same identity (a resend against a
// verify, for instance) interleave and the last save wins.
type Service struct {
	users       repo.UserRepo
	otp         *OTPIssuer
	tokens      *JWTService
	passwords   *PasswordHasher
	notifier    notify.Dispatcher
	smsReady    bool
	rec         Recorder
	log         *zap.Logger
	tokenTTL    time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

// NewService creates a new auth service
func NewService(d Deps) *Service {
	rec := d.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:       d.Users,
		otp:         d.OTP,
		tokens:      d.Tokens,
		passwords:   d.Passwords,
		notifier:    d.Notifier,
		smsReady:    d.Notifier != nil && notify.SMSAvailable(d.Notifier),
		rec:         rec,
		log:         log.Named("auth"),
		tokenTTL:    d.TokenTTL,
		rememberTTL: d.RememberTTL,
		now:         time.Now,
	}
}

// RegisterInput is the data accepted at sign-up.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	PhoneNumber string
}

// Session is a freshly issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
}

// Register creates an unverified identity, then issues and sends an email
// code, plus a phone code when a number was given. Codes are persisted
// before delivery, so a delivery failure still leaves the identity created
// with a pending code that can be resent. A phone number is rejected up
// front when no SMS channel is configured.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.Identity, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = repo.NormalizeEmail(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	var v fieldChecker
	v.check(longEnough(in.Name, minNameLen), "name", "Enter a valid name")
	v.check(validEmail(in.Email), "email", "Enter a valid email")
	v.check(longEnough(in.Password, minPasswordLen), "password", "Password must be at least 5 characters")
	if in.PhoneNumber != "" {
		v.check(validPhone(in.PhoneNumber), "phoneNumber", "Enter a phone number in international format")
		v.check(s.smsReady, "phoneNumber", "SMS verification is not available")
	}
	if err := v.err(); err != nil {
		return model.Identity{}, err
	}

	if err := s.ensureUnique(ctx, in.Email, in.PhoneNumber); err != nil {
		s.rec.AuthEvent("register", "duplicate")
		return model.Identity{}, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return model.Identity{}, err
	}

	u := model.Identity{
		Name:                    in.Name,
		Email:                   in.Email,
		PhoneNumber:             in.PhoneNumber,
		PasswordHash:            hash,
		SMSNotificationsEnabled: in.PhoneNumber != "",
	}

	emailCode, err := s.issueInto(&u, model.PurposeEmail)
	if err != nil {
		return model.Identity{}, err
	}
	var phoneCode string
	if u.PhoneNumber != "" {
		if phoneCode, err = s.issueInto(&u, model.PurposePhone); err != nil {
			return model.Identity{}, err
		}
	}

	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			s.rec.AuthEvent("register", "duplicate")
			return model.Identity{}, apperr.ErrDuplicate
		}
		return model.Identity{}, fmt.Errorf("create identity: %w", err)
	}
	s.log.Info("identity registered", zap.String("user_id", u.ID), logging.Email(u.Email))
	s.rec.AuthEvent("register", "success")

	if err := s.sendCode(ctx, &u, model.PurposeEmail, emailCode); err != nil {
		return u, err
	}
	if phoneCode != "" {
		if err := s.sendCode(ctx, &u, model.PurposePhone, phoneCode); err != nil {
			return u, err
		}
	}
	return u, nil
}

func (s *Service) ensureUnique(ctx context.Context, email, phone string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return apperr.New(apperr.CodeDuplicate, "an account with this email already exists")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}
	if phone == "" {
		return nil
	}
	if _, err := s.users.GetByPhone(ctx, phone); err == nil {
		return apperr.New(apperr.CodeDuplicate, "an account with this phone number already exists")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("lookup phone: %w", err)
	}
	return nil
}

// VerifyEmail consumes the pending email code of the identity registered
// under email.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return s.verifyLookupErr(err)
	}
	return s.consume(ctx, &u, model.PurposeEmail, code)
}

// VerifyPhone consumes the pending phone code of the identity registered
// under phone.
func (s *Service) VerifyPhone(ctx context.Context, phone, code string) error {
	u, err := s.users.GetByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		return s.verifyLookupErr(err)
	}
	return s.consume(ctx, &u, model.PurposePhone, code)
}

// Unknown identities look the same as a bad code to the caller.
func (s *Service) verifyLookupErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.ErrInvalidCode
	}
	return fmt.Errorf("lookup identity: %w", err)
}

func (s *Service) consume(ctx context.Context, u *model.Identity, p model.Purpose, submitted string) error {
	event := "verify_" + string(p)
	stored, expiresAt := u.PendingCode(p)
	if !codeMatches(stored, expiresAt, strings.TrimSpace(submitted), s.now().UTC()) {
		s.rec.AuthEvent(event, "invalid_code")
		return apperr.ErrInvalidCode
	}

	u.ClearCode(p)
	switch p {
	case model.PurposeEmail:
		u.IsEmailVerified = true
	case model.PurposePhone:
		u.IsPhoneVerified = true
	}
	if err := s.users.Save(ctx, u); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}

	s.log.Info("channel verified", zap.String("user_id", u.ID), zap.String("channel", string(p)))
	s.rec.AuthEvent(event, "success")
	return nil
}

// Login checks credentials and issues a session token. The lifetime is the
// remember-me TTL when remember is set and the default TTL otherwise.
func (s *Service) Login(ctx context.Context, email, password string, remember bool) (Session, error) {
	var v fieldChecker
	v.check(validEmail(repo.NormalizeEmail(email)), "email", "Enter a valid email")
	v.check(password != "", "password", "Password cannot be blank")
	if err := v.err(); err != nil {
		return Session{}, err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.rec.AuthEvent("login", "invalid_credentials")
			return Session{}, apperr.ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup identity: %w", err)
	}

	ok, err := s.passwords.Matches(u.PasswordHash, password)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		s.rec.AuthEvent("login", "invalid_credentials")
		return Session{}, apperr.ErrInvalidCredentials
	}
	if !u.IsActive() {
		s.rec.AuthEvent("login", "not_verified")
		return Session{}, apperr.ErrNotVerified
	}

	ttl := s.tokenTTL
	if remember {
		ttl = s.rememberTTL
	}
	token, expiresAt, err := s.tokens.Issue(u.ID, ttl)
	if err != nil {
		return Session{}, err
	}

	s.log.Info("login", zap.String("user_id", u.ID), zap.Bool("remember", remember))
	s.rec.AuthEvent("login", "success")
	return Session{Token: token, ExpiresAt: expiresAt, UserID: u.ID}, nil
}

// ForgotPassword issues a reset code and sends it by email, and by SMS as
// well when the identity has SMS notifications enabled.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.New(apperr.CodeNotFound, "no account found with this email")
		}
		return fmt.Errorf("lookup identity: %w", err)
	}
	return s.reissue(ctx, &u, model.PurposeReset)
}

// ResetPassword consumes the reset code and replaces the password hash.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	var v fieldChecker
	v.check(longEnough(newPassword, minPasswordLen), "newPassword", "Password must be at least 5 characters")
	if err := v.err(); err != nil {
		return err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return s.verifyLookupErr(err)
	}

	stored, expiresAt := u.PendingCode(model.PurposeReset)
	if !codeMatches(stored, expiresAt, strings.TrimSpace(code), s.now().UTC()) {
		s.rec.AuthEvent("reset_password", "invalid_code")
		return apperr.ErrInvalidCode
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.ClearCode(model.PurposeReset)
	if err := s.users.Save(ctx, &u); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}

	s.log.Info("password reset", zap.String("user_id", u.ID))
	s.rec.AuthEvent("reset_password", "success")
	return nil
}

// ResendOTP issues a fresh code for purpose, overwriting the pending one.
// Verification codes cannot be resent for a channel that is already verified.
func (s *Service) ResendOTP(ctx context.Context, email string, purpose model.Purpose) error {
	if !purpose.Valid() {
		return apperr.Validation(apperr.FieldError{Field: "type", Message: "type must be email, phone or reset"})
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.New(apperr.CodeNotFound, "no account found with this email")
		}
		return fmt.Errorf("lookup identity: %w", err)
	}

	switch purpose {
	case model.PurposeEmail:
		if u.IsEmailVerified {
			return apperr.Validation(apperr.FieldError{Field: "type", Message: "email is already verified"})
		}
	case model.PurposePhone:
		if u.PhoneNumber == "" {
			return apperr.Validation(apperr.FieldError{Field: "type", Message: "no phone number on this account"})
		}
		if u.IsPhoneVerified {
			return apperr.Validation(apperr.FieldError{Field: "type", Message: "phone number is already verified"})
		}
		if !s.smsReady {
			return apperr.Validation(apperr.FieldError{Field: "type", Message: "SMS verification is not available"})
		}
	}
	return s.reissue(ctx, &u, purpose)
}

func (s *Service) reissue(ctx context.Context, u *model.Identity, p model.Purpose) error {
	code, err := s.issueInto(u, p)
	if err != nil {
		return err
	}
	if err := s.users.Save(ctx, u); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	s.rec.AuthEvent("issue_"+string(p), "success")
	return s.sendCode(ctx, u, p, code)
}

// OptOutSMS disables SMS notifications for the identity.
func (s *Service) OptOutSMS(ctx context.Context, userID string) (model.Profile, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	u.SMSNotificationsEnabled = false
	if err := s.users.Save(ctx, &u); err != nil {
		return model.Profile{}, fmt.Errorf("save identity: %w", err)
	}
	s.log.Info("sms opt-out", zap.String("user_id", u.ID))
	return u.Profile(), nil
}

// Profile returns the identity without secret fields.
func (s *Service) Profile(ctx context.Context, userID string) (model.Profile, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	return u.Profile(), nil
}

// Authenticate verifies a session token and returns its identity id.
func (s *Service) Authenticate(token string) (string, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeUnauthorized, apperr.ErrUnauthorized.Message, err)
	}
	return claims.UserID(), nil
}

func (s *Service) load(ctx context.Context, userID string) (model.Identity, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Identity{}, apperr.New(apperr.CodeNotFound, "user not found")
		}
		return model.Identity{}, fmt.Errorf("lookup identity: %w", err)
	}
	return u, nil
}

func (s *Service) issueInto(u *model.Identity, p model.Purpose) (string, error) {
	code, expiresAt, err := s.otp.Issue(p)
	if err != nil {
		return "", err
	}
	u.SetCode(p, code, expiresAt)
	return code, nil
}

func (s *Service) sendCode(ctx context.Context, u *model.Identity, p model.Purpose, code string) error {
	minutes := int(s.otp.TTL().Minutes())
	var err error
	switch p {
	case model.PurposeEmail:
		err = s.deliver("email", func() error {
			return s.notifier.SendEmail(ctx, u.Email, "Verify your I-Memory email",
				fmt.Sprintf("Hi %s,\n\nYour email verification code is %s. It expires in %d minutes.", u.Name, code, minutes))
		})
	case model.PurposePhone:
		err = s.deliver("sms", func() error {
			return s.notifier.SendSMS(ctx, u.PhoneNumber,
				fmt.Sprintf("Your I-Memory verification code is %s. It expires in %d minutes.", code, minutes))
		})
	case model.PurposeReset:
		err = s.deliver("email", func() error {
			return s.notifier.SendEmail(ctx, u.Email, "Reset your I-Memory password",
				fmt.Sprintf("Hi %s,\n\nYour password reset code is %s. It expires in %d minutes. If you did not ask for a reset, ignore this email.", u.Name, code, minutes))
		})
		if err == nil && s.smsReady && u.SMSNotificationsEnabled && u.PhoneNumber != "" {
			err = s.deliver("sms", func() error {
				return s.notifier.SendSMS(ctx, u.PhoneNumber,
					fmt.Sprintf("Your I-Memory password reset code is %s. It expires in %d minutes.", code, minutes))
			})
		}
	}
	if err != nil {
		s.log.Warn("code delivery failed", zap.String("user_id", u.ID), zap.String("purpose", string(p)), zap.Error(err))
		return apperr.Upstream("could not deliver the verification code, please request a new one", err)
	}
	return nil
}

func (s *Service) deliver(channel string, send func() error) error {
	if err := send(); err != nil {
		s.rec.OTPDelivery(channel, "failure")
		return err
	}
	s.rec.OTPDelivery(channel, "success")
	return nil
}
