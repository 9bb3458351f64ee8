// Package captcha checks client CAPTCHA tokens against a verification service.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// Verifier reports whether a CAPTCHA token is valid.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// AllowAll accepts every token. Dev mode only.
type AllowAll struct{}

func (AllowAll) Verify(context.Context, string, string) (bool, error) { return true, nil }

// ReCaptcha verifies tokens with Google reCAPTCHA's siteverify endpoint.
type ReCaptcha struct {
	secret    string
	verifyURL string
	client    *http.Client
	logger    *zap.Logger
}

// NewReCaptcha creates a verifier with an explicit request timeout.
func NewReCaptcha(secret, verifyURL string, timeout time.Duration, logger *zap.Logger) *ReCaptcha {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ReCaptcha{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.Named("captcha"),
	}
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify returns false without a network call when token is empty.
func (r *ReCaptcha) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", r.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to create captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("captcha verify request failed", zap.Error(err))
		return false, fmt.Errorf("failed to reach captcha service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Error("captcha verify returned non-200", zap.Int("statusCode", resp.StatusCode))
		return false, fmt.Errorf("captcha service returned status %d", resp.StatusCode)
	}

	var out siteVerifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode captcha response: %w", err)
	}
	if !out.Success {
		r.logger.Debug("captcha rejected", zap.Strings("errorCodes", out.ErrorCodes))
	}
	return out.Success, nil
}
