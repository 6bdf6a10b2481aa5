package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ResendEndpoint is the Resend send-email endpoint.
const ResendEndpoint = "https://api.resend.com/emails"

// ResendNotifier sends the notification through the Resend API.
type ResendNotifier struct {
	config ResendConfig
	client *http.Client
	logger *slog.Logger
}

// NewResendNotifier creates a Resend notifier.
func NewResendNotifier(config ResendConfig, logger *slog.Logger) *ResendNotifier {
	if config.Endpoint == "" {
		config.Endpoint = ResendEndpoint
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}
	return &ResendNotifier{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// Name returns "resend".
func (s *ResendNotifier) Name() string {
	return "resend"
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// SendReportNotification sends the rendered message. Any 2xx is delivered.
func (s *ResendNotifier) SendReportNotification(ctx context.Context, n Notification) error {
	if s.config.APIKey == "" || s.config.From == "" {
		return configMissing("Resend", "RESEND_API_KEY and RESEND_FROM")
	}

	email, err := BuildEmail(n, s.config.FromName)
	if err != nil {
		return err
	}

	body, err := json.Marshal(resendRequest{
		From:    fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From),
		To:      []string{email.To},
		Subject: email.Subject,
		HTML:    email.HTMLBody,
		Text:    email.TextBody,
	})
	if err != nil {
		return fmt.Errorf("marshal resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error("failed to send email", "provider", s.Name(), "report_id", n.ReportID, "error", err)
		return &DeliveryError{Provider: "Resend", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := readErrorBody(resp.Body)
		s.logger.Error("email rejected",
			"provider", s.Name(),
			"report_id", n.ReportID,
			"status", resp.StatusCode,
			"body", text,
		)
		return &DeliveryError{Provider: "Resend", StatusCode: resp.StatusCode, Cause: errors.New(text)}
	}

	s.logger.Info("email sent", "provider", s.Name(), "report_id", n.ReportID)
	return nil
}

var _ Notifier = (*ResendNotifier)(nil)
