package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imemory/server/internal/apperr"
	"github.com/imemory/server/internal/auth"
	"github.com/imemory/server/internal/captcha"
	"github.com/imemory/server/internal/logging"
	"github.com/imemory/server/internal/middleware"
	"github.com/imemory/server/internal/model"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth    *auth.Service
	captcha captcha.Verifier
	log     *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *auth.Service, verifier captcha.Verifier, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    svc,
		captcha: verifier,
		log:     log.Named("auth_handler"),
	}
}

type createUserRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	PhoneNumber  string `json:"phoneNumber"`
	CaptchaToken string `json:"captchaToken"`
}

type createUserResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type verifyPhoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captchaToken"`
	RememberMe   bool   `json:"rememberMe"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	AuthToken string    `json:"authToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type forgotPasswordRequest struct {
	Email        string `json:"email"`
	CaptchaToken string `json:"captchaToken"`
}

type resetPasswordRequest struct {
	Email        string `json:"email"`
	OTP          string `json:"otp"`
	NewPassword  string `json:"newPassword"`
	CaptchaToken string `json:"captchaToken"`
}

type resendOTPRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleCreateUser handles POST /api/auth/createuser
func (h *AuthHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	if err := h.checkCaptcha(r, req.CaptchaToken); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}

	u, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}

	msg := "Account created. Check your email for a verification code."
	if u.PhoneNumber != "" {
		msg = "Account created. Check your email and phone for verification codes."
	}
	respondJSON(w, h.log, http.StatusCreated, createUserResponse{Success: true, Message: msg, UserID: u.ID})
}

// HandleVerifyEmail handles POST /api/auth/verify-email
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	if err := requireFields(map[string]string{"email": req.Email, "otp": req.OTP}); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	if err := h.auth.VerifyEmail(r.Context(), req.Email, strings.TrimSpace(req.OTP)); err != nil {
		h.log.Info("email verification failed", logging.Email(req.Email), zap.Error(err))
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, messageResponse{Success: true, Message: "Email verified"})
}

// HandleVerifyPhone handles POST /api/auth/verify-phone
func (h *AuthHandler) HandleVerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req verifyPhoneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	if err := requireFields(map[string]string{"phoneNumber": req.PhoneNumber, "otp": req.OTP}); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	if err := h.auth.VerifyPhone(r.Context(), strings.TrimSpace(req.PhoneNumber), strings.TrimSpace(req.OTP)); err != nil {
		h.log.Info("phone verification failed", logging.Phone(req.PhoneNumber), zap.Error(err))
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, messageResponse{Success: true, Message: "Phone number verified"})
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	if err := h.checkCaptcha(r, req.CaptchaToken); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, loginResponse{Success: true, AuthToken: sess.Token, ExpiresAt: sess.ExpiresAt})
}

// HandleForgotPassword handles POST /api/auth/forgot-password
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	if err := h.checkCaptcha(r, req.CaptchaToken); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, messageResponse{Success: true, Message: "A password reset code has been sent to your email"})
}

// HandleResetPassword handles POST /api/auth/reset-password
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	if err := h.checkCaptcha(r, req.CaptchaToken); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Email, strings.TrimSpace(req.OTP), req.NewPassword); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, messageResponse{Success: true, Message: "Password has been reset"})
}

// HandleResendOTP handles POST /api/auth/resend-otp
func (h *AuthHandler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	if err := requireFields(map[string]string{"email": req.Email}); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	purpose := model.Purpose(strings.ToLower(strings.TrimSpace(req.Type)))
	if err := h.auth.ResendOTP(r.Context(), req.Email, purpose); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, messageResponse{Success: true, Message: "A new code has been sent"})
}

// HandleOptOutSMS handles POST /api/auth/opt-out-sms (protected)
func (h *AuthHandler) HandleOptOutSMS(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondWithError(w, r, h.log, apperr.ErrUnauthorized)
		return
	}
	profile, err := h.auth.OptOutSMS(r.Context(), userID)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, profile)
}

// HandleGetUser handles GET|POST /api/auth/getuser (protected)
func (h *AuthHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondWithError(w, r, h.log, apperr.ErrUnauthorized)
		return
	}
	profile, err := h.auth.Profile(r.Context(), userID)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, profile)
}

func (h *AuthHandler) checkCaptcha(r *http.Request, token string) error {
	ok, err := h.captcha.Verify(r.Context(), strings.TrimSpace(token), middleware.ClientIP(r))
	if err != nil {
		h.log.Warn("captcha verification error", zap.Error(err))
		return apperr.ErrCaptchaFailed
	}
	if !ok {
		return apperr.ErrCaptchaFailed
	}
	return nil
}

func requireFields(fields map[string]string) error {
	var errs []apperr.FieldError
	for _, name := range []string{"email", "phoneNumber", "otp"} {
		v, present := fields[name]
		if present && strings.TrimSpace(v) == "" {
			errs = append(errs, apperr.FieldError{Field: name, Message: name + " is required"})
		}
	}
	if len(errs) > 0 {
		return apperr.Validation(errs...)
	}
	return nil
}
