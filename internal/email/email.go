// Package email delivers the patient "report ready" notification.
//
// This package defines a Notifier interface with implementations for:
// - EmailJS (template-based REST API)
// - Resend (transactional email REST API)
// - SMTP via gomail (Mailhog in development, any relay in production)
//
// Every implementation makes exactly one delivery attempt per call and checks
// its configuration before touching the network.
package email

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Notifier sends the report notification to a patient.
type Notifier interface {
	// SendReportNotification delivers one message. It returns an error
	// wrapping ErrConfigMissing when the provider is not configured, or a
	// *DeliveryError when the provider rejected or failed the send.
	SendReportNotification(ctx context.Context, n Notification) error

	// Name returns the provider identifier used in logs and metrics.
	Name() string
}

// =============================================================================
// Email Data Types
// =============================================================================

// Notification holds the values embedded in the patient message.
type Notification struct {
	PatientEmail string
	PatientName  string
	Impression   string
	ReportID     string
	Date         time.Time // Zero means now
}

func (n Notification) date() time.Time {
	if n.Date.IsZero() {
		return time.Now()
	}
	return n.Date
}

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// =============================================================================
// Errors
// =============================================================================

// ErrConfigMissing is wrapped by errors returned when a provider lacks a
// required credential or identifier.
var ErrConfigMissing = errors.New("email configuration missing")

func configMissing(provider, fields string) error {
	return fmt.Errorf("%w: %s requires %s", ErrConfigMissing, provider, fields)
}

// DeliveryError reports a failed or rejected send.
type DeliveryError struct {
	Provider   string
	StatusCode int   // Zero when the request never got a response
	Cause      error // Provider message or transport error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: email sending failed with status: %d: %v", e.Provider, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// IsConfigMissing reports whether err came from a missing configuration value.
func IsConfigMissing(err error) bool {
	return errors.Is(err, ErrConfigMissing)
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Sender email address
	FromName string // Sender display name
}

// EmailJSConfig holds the three EmailJS identifiers plus an optional
// private key for server-side calls.
type EmailJSConfig struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
	FromName   string
	Endpoint   string        // Defaults to EmailJSEndpoint
	Timeout    time.Duration // Zero keeps the transport default
}

// ResendConfig holds Resend API configuration.
type ResendConfig struct {
	APIKey   string
	From     string
	FromName string
	Endpoint string        // Defaults to ResendEndpoint
	Timeout  time.Duration // Zero keeps the transport default
}

// =============================================================================
// Common Constants
// =============================================================================

const (
	// DefaultFromName is the default sender display name.
	DefaultFromName = "RadAI Orchestrator"

	// ReportReadySubject is the subject line for SMTP and Resend messages.
	ReportReadySubject = "Your Radiology Report is Ready"

	// maxErrorBody limits how much of a provider error response is kept.
	maxErrorBody = 1024
)
