package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// EmailJSEndpoint is the EmailJS REST send endpoint.
const EmailJSEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// EmailJSNotifier sends the notification through an EmailJS template.
type EmailJSNotifier struct {
	config EmailJSConfig
	client *http.Client
	logger *slog.Logger
}

// NewEmailJSNotifier creates an EmailJS notifier.
func NewEmailJSNotifier(config EmailJSConfig, logger *slog.Logger) *EmailJSNotifier {
	if config.Endpoint == "" {
		config.Endpoint = EmailJSEndpoint
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}
	return &EmailJSNotifier{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// Name returns "emailjs".
func (s *EmailJSNotifier) Name() string {
	return "emailjs"
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// SendReportNotification posts the template parameters to EmailJS.
// Only HTTP 200 counts as delivered.
func (s *EmailJSNotifier) SendReportNotification(ctx context.Context, n Notification) error {
	if s.config.ServiceID == "" || s.config.TemplateID == "" || s.config.PublicKey == "" {
		return configMissing("EmailJS", "EMAILJS_SERVICE_ID, EMAILJS_TEMPLATE_ID and EMAILJS_PUBLIC_KEY")
	}

	body, err := json.Marshal(emailJSRequest{
		ServiceID:      s.config.ServiceID,
		TemplateID:     s.config.TemplateID,
		UserID:         s.config.PublicKey,
		AccessToken:    s.config.PrivateKey,
		TemplateParams: TemplateParams(n, s.config.FromName),
	})
	if err != nil {
		return fmt.Errorf("marshal emailjs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create emailjs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error("failed to send email", "provider", s.Name(), "report_id", n.ReportID, "error", err)
		return &DeliveryError{Provider: "EmailJS", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text := readErrorBody(resp.Body)
		s.logger.Error("email rejected",
			"provider", s.Name(),
			"report_id", n.ReportID,
			"status", resp.StatusCode,
			"body", text,
		)
		return &DeliveryError{Provider: "EmailJS", StatusCode: resp.StatusCode, Cause: errors.New(text)}
	}

	s.logger.Info("email sent", "provider", s.Name(), "report_id", n.ReportID)
	return nil
}

// readErrorBody returns a trimmed, bounded provider error message.
func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "empty response"
	}
	return text
}

var _ Notifier = (*EmailJSNotifier)(nil)
