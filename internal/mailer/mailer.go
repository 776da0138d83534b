// Package mailer composes and delivers ticket emails.
package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/pkg/queue"
)

// Sender delivers a single HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPConfig holds outbound SMTP settings.
type SMTPConfig struct {
	Host        string
	Port        int
	User        string
	Pass        string
	FromAddress string
	FromName    string
}

// SMTP sends mail through an SMTP relay.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
	name   string
}

// NewSMTP creates an SMTP sender.
func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		from:   cfg.FromAddress,
		name:   cfg.FromName,
	}
}

// Send dials the relay and sends one message.
func (s *SMTP) Send(_ context.Context, to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.name)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Log is a Sender that only logs; used when SMTP is not configured.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging sender.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(_ context.Context, to, subject, _ string) error {
	l.logger.Info("email not sent (smtp disabled)", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// Notifier tells an applicant that their ticket is ready.
type Notifier interface {
	SendTicket(ctx context.Context, reg *models.Registration) error
}

// Enqueuer is the slice of the job queue the notifier needs.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// QueuedNotifier hands ticket emails to the background worker.
type QueuedNotifier struct {
	queue    Enqueuer
	template *TicketTemplate
}

// NewQueuedNotifier creates a notifier backed by the job queue.
func NewQueuedNotifier(q Enqueuer, tmpl *TicketTemplate) *QueuedNotifier {
	return &QueuedNotifier{queue: q, template: tmpl}
}

// SendTicket renders the email and enqueues it.
func (n *QueuedNotifier) SendTicket(ctx context.Context, reg *models.Registration) error {
	if reg.Email == "" {
		return fmt.Errorf("registration %s has no email", reg.ID)
	}
	subject, body, err := n.template.Render(reg)
	if err != nil {
		return err
	}
	return n.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      models.EmailTypeTicket,
		RegistrationID: reg.ID,
		RecipientEmail: reg.Email,
		Subject:        subject,
		BodyHTML:       body,
	})
}

// DirectNotifier sends ticket emails inline.
type DirectNotifier struct {
	sender   Sender
	template *TicketTemplate
}

// NewDirectNotifier creates a notifier that sends synchronously.
func NewDirectNotifier(sender Sender, tmpl *TicketTemplate) *DirectNotifier {
	return &DirectNotifier{sender: sender, template: tmpl}
}

func (n *DirectNotifier) SendTicket(ctx context.Context, reg *models.Registration) error {
	if reg.Email == "" {
		return fmt.Errorf("registration %s has no email", reg.ID)
	}
	subject, body, err := n.template.Render(reg)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, reg.Email, subject, body)
}
