package mailer

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Config holds the link bases and lifetimes shown in emails.
type Config struct {
	ActivationURL string
	ResetURL      string
	ActivationTTL time.Duration
	ResetTTL      time.Duration
}

// Mailer renders the account emails and hands them to the queue.
type Mailer struct {
	queue     *Queue
	templates *Templates
	cfg       Config
}

// New creates a Mailer.
func New(queue *Queue, templates *Templates, cfg Config) *Mailer {
	return &Mailer{queue: queue, templates: templates, cfg: cfg}
}

// SendActivationEmail queues the activation code email. An error means the
// message was never queued.
func (m *Mailer) SendActivationEmail(ctx context.Context, to, name, code string) error {
	msg, err := m.templates.Activation(to, ActivationData{
		Name:     name,
		Code:     code,
		Link:     m.cfg.ActivationURL,
		ValidFor: humanDuration(m.cfg.ActivationTTL),
	})
	if err != nil {
		return err
	}
	return m.queue.Enqueue(ctx, msg)
}

// SendPasswordResetEmail queues the reset email carrying a link with the token.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	link, err := ResetLink(m.cfg.ResetURL, token)
	if err != nil {
		return err
	}
	msg, err := m.templates.PasswordReset(to, ResetData{
		Name:     name,
		Link:     link,
		Token:    token,
		ValidFor: humanDuration(m.cfg.ResetTTL),
	})
	if err != nil {
		return err
	}
	return m.queue.Enqueue(ctx, msg)
}

// SendAdminNotification queues the new-registration notice.
func (m *Mailer) SendAdminNotification(ctx context.Context, to string, data AdminData) error {
	msg, err := m.templates.AdminNotification(to, data)
	if err != nil {
		return err
	}
	return m.queue.Enqueue(ctx, msg)
}

// ResetLink appends token as the "token" query parameter of base.
func ResetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse reset url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short time"
	case d%time.Hour == 0:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	default:
		if m := int(d.Round(time.Minute) / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	}
}
