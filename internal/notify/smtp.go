package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/imemory/server/internal/logging"
)

// SMTPConfig holds the settings for SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender sends email through an SMTP relay using gomail.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
	log    *zap.Logger
}

// NewSMTPSender validates cfg and prepares a dialer. Port 465 uses implicit
// TLS; other ports negotiate STARTTLS.
func NewSMTPSender(cfg SMTPConfig, log *zap.Logger) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port == 0 || cfg.From == "" {
		return nil, fmt.Errorf("SMTP host, port and sender address must be configured")
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	dialer.SSL = cfg.Port == 465

	from := cfg.From
	if cfg.FromName != "" {
		from = gomail.NewMessage().FormatAddress(cfg.From, cfg.FromName)
	}

	return &SMTPSender{from: from, dialer: dialer, log: log.Named("smtp")}, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("no recipient provided for email")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		s.log.Warn("email send cancelled", logging.Email(to), zap.Error(ctx.Err()))
		return fmt.Errorf("email sending cancelled or timed out: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			s.log.Error("email send failed", logging.Email(to), zap.String("subject", subject), zap.Error(err))
			return fmt.Errorf("failed to send email: %w", err)
		}
	}

	s.log.Info("email sent", logging.Email(to), zap.String("subject", subject))
	return nil
}
