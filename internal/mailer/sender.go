package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/utafrali/petcare-user/pkg/logger"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers a single message over some transport.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

// SMTPConfig holds SMTP transport settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	TLSPolicy string // "mandatory", "opportunistic" or "none"
	Timeout   time.Duration
}

// SMTPSender sends mail through an SMTP relay using go-mail.
type SMTPSender struct {
	client *mail.Client
	from   string
}

// NewSMTPSender builds the client. No connection is opened until Send.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

// Name returns the transport name used in logs and metrics.
func (s *SMTPSender) Name() string { return "smtp" }

// Send dials the relay and delivers msg.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	m, err := buildMsg(s.from, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func buildMsg(from string, msg *Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("set to address: %w", err)
	}
	m.Subject(msg.Subject)

	switch {
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
		if msg.TextBody != "" {
			m.AddAlternativeString(mail.TypeTextPlain, msg.TextBody)
		}
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}
	return m, nil
}

func tlsPolicy(s string) mail.TLSPolicy {
	switch s {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

// LogSender logs messages instead of delivering them. It is used when no SMTP
// host is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(l *slog.Logger) *LogSender {
	return &LogSender{logger: l}
}

// Name returns the transport name.
func (s *LogSender) Name() string { return "log" }

// Send logs the envelope. Bodies are not logged since they carry codes and
// reset links.
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	s.logger.InfoContext(ctx, "mail not delivered, no SMTP host configured",
		slog.String("to", logger.MaskEmail(msg.To)),
		slog.String("subject", msg.Subject),
	)
	return nil
}
