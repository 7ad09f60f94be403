// Package mailer delivers verification codes by email.
package mailer

import (
	"context"
	"fmt"

	"github.com/diewo77/go-crm/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const otpSubject = "Verify your email"

// Mailer sends one-time codes.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string) error
}

// New returns an SMTP mailer, or a Log mailer when cfg carries no credentials.
func New(cfg config.MailConfig, log *logrus.Logger) Mailer {
	if cfg.Simulated() {
		return &Log{Logger: log}
	}
	return NewSMTP(cfg)
}

func otpBody(code string) (text, html string) {
	text = fmt.Sprintf("Your verification code is %s. Enter it to activate your account.", code)
	html = fmt.Sprintf(`<p>Your verification code is:</p><h2 style="letter-spacing:4px">%s</h2><p>Enter it to activate your account.</p>`, code)
	return text, html
}

// SMTP sends mail through an SMTP relay.
type SMTP struct {
	from string
	send func(...*gomail.Message) error
}

func NewSMTP(cfg config.MailConfig) *SMTP {
	dialer := gomail.NewDialer(cfg.Server, cfg.Port, cfg.Username, cfg.Password)
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTP{
		from: fmt.Sprintf("%s <%s>", cfg.FromName, from),
		send: dialer.DialAndSend,
	}
}

func (s *SMTP) SendOTP(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text, html := otpBody(code)
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", otpSubject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)
	if err := s.send(msg); err != nil {
		return fmt.Errorf("send otp to %s: %w", email, err)
	}
	return nil
}

// Log prints mails instead of sending them, for development.
type Log struct {
	Logger *logrus.Logger
}

func (l *Log) SendOTP(_ context.Context, email, code string) error {
	text, _ := otpBody(code)
	log := l.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"to":      email,
		"subject": otpSubject,
	}).Info("email simulation: " + text)
	return nil
}
