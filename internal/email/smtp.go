package email

import (
	"context"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// =============================================================================
// SMTP Notifier Implementation
// =============================================================================

// sender is the part of *gomail.Dialer used for delivery.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier sends the notification over SMTP using gomail.
//
// This implementation works with:
// - Mailhog (development): No authentication required
// - Any SMTP relay that accepts PLAIN auth over STARTTLS
type SMTPNotifier struct {
	config SMTPConfig
	dialer sender
	logger *slog.Logger
}

// NewSMTPNotifier creates an SMTP notifier. Missing host or sender address
// is reported when a message is sent, not here.
func NewSMTPNotifier(config SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}
	return &SMTPNotifier{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
		logger: logger,
	}
}

// Name returns "smtp".
func (s *SMTPNotifier) Name() string {
	return "smtp"
}

// SendReportNotification renders the message and sends it in one attempt.
func (s *SMTPNotifier) SendReportNotification(ctx context.Context, n Notification) error {
	if s.config.Host == "" || s.config.From == "" {
		return configMissing("SMTP", "SMTP_HOST and SMTP_FROM_EMAIL")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	email, err := BuildEmail(n, s.config.FromName)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.config.From, s.config.FromName)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetBody("text/plain", email.TextBody)
	m.AddAlternative("text/html", email.HTMLBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("failed to send email",
			"provider", s.Name(),
			"report_id", n.ReportID,
			"error", err,
		)
		return &DeliveryError{Provider: "SMTP", Cause: err}
	}

	s.logger.Info("email sent",
		"provider", s.Name(),
		"report_id", n.ReportID,
		"subject", email.Subject,
	)
	return nil
}

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ Notifier = (*SMTPNotifier)(nil)
