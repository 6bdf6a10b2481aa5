package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testNotification() Notification {
	return Notification{
		PatientEmail: "jane@example.com",
		PatientName:  "Jane Doe",
		Impression:   "Cardiomegaly with small effusion.",
		ReportID:     "1741944600000_k3j9x0p2q",
		Date:         time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

// countingServer records how many requests reach it.
func countingServer(t *testing.T, status int, body string, inspect func(*http.Request)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if inspect != nil {
			inspect(r)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// =============================================================================
// Message
// =============================================================================

func TestTemplateParams(t *testing.T) {
	params := TemplateParams(testNotification(), DefaultFromName)

	assert.Equal(t, "jane@example.com", params["to_email"])
	assert.Equal(t, "Jane Doe", params["patient_name"])
	assert.Equal(t, "Cardiomegaly with small effusion.", params["impression"])
	assert.Equal(t, "1741944600000_k3j9x0p2q", params["report_id"])
	assert.Equal(t, "March 14, 2025", params["date"])
	assert.Equal(t, "RadAI Orchestrator", params["from_name"])
	assert.Len(t, params, 7)
}

func TestMessageBody(t *testing.T) {
	body := MessageBody(testNotification(), DefaultFromName)

	assert.True(t, strings.HasPrefix(body, "Dear Jane Doe,\n\n"))
	assert.Contains(t, body, "Report ID: 1741944600000_k3j9x0p2q\n")
	assert.Contains(t, body, "Date: March 14, 2025\n")
	assert.Contains(t, body, "Clinical Impression:\nCardiomegaly with small effusion.\n")
	assert.Contains(t, body, "Next Steps:\n- Please schedule an appointment")
	assert.Contains(t, body, Disclaimer)
}

func TestBuildEmail(t *testing.T) {
	n := testNotification()
	n.PatientName = "<script>alert(1)</script>"

	email, err := BuildEmail(n, DefaultFromName)
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", email.To)
	assert.Equal(t, ReportReadySubject, email.Subject)
	assert.Contains(t, email.HTMLBody, "Cardiomegaly with small effusion.")
	assert.Contains(t, email.HTMLBody, "&copy; 2025 RadAI Orchestrator")
	assert.NotContains(t, email.HTMLBody, "<script>")
	assert.Contains(t, email.TextBody, "Dear <script>alert(1)</script>,")
}

// =============================================================================
// EmailJS
// =============================================================================

func newEmailJS(endpoint string) *EmailJSNotifier {
	return NewEmailJSNotifier(EmailJSConfig{
		ServiceID:  "service_1",
		TemplateID: "template_1",
		PublicKey:  "public_1",
		Endpoint:   endpoint,
	}, testLogger())
}

func TestEmailJS_Success(t *testing.T) {
	var got emailJSRequest
	srv, calls := countingServer(t, http.StatusOK, "OK", func(r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	err := newEmailJS(srv.URL).SendReportNotification(context.Background(), testNotification())
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, "service_1", got.ServiceID)
	assert.Equal(t, "template_1", got.TemplateID)
	assert.Equal(t, "public_1", got.UserID)
	assert.Empty(t, got.AccessToken)
	assert.Equal(t, "Jane Doe", got.TemplateParams["patient_name"])
}

func TestEmailJS_Rejected(t *testing.T) {
	srv, calls := countingServer(t, http.StatusBadRequest, "The template ID is invalid", nil)

	err := newEmailJS(srv.URL).SendReportNotification(context.Background(), testNotification())

	var de *DeliveryError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, de.StatusCode)
	assert.Contains(t, err.Error(), "The template ID is invalid")
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestEmailJS_NonOKSuccessStatusIsFailure(t *testing.T) {
	srv, _ := countingServer(t, http.StatusAccepted, "", nil)

	err := newEmailJS(srv.URL).SendReportNotification(context.Background(), testNotification())

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusAccepted, de.StatusCode)
}

func TestHTTPNotifiers_Timeout(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.Zero(t, NewEmailJSNotifier(EmailJSConfig{}, logger).client.Timeout, "no timeout unless configured")
	assert.Zero(t, NewResendNotifier(ResendConfig{}, logger).client.Timeout)

	assert.Equal(t, 5*time.Second, NewEmailJSNotifier(EmailJSConfig{Timeout: 5 * time.Second}, logger).client.Timeout)
	assert.Equal(t, 5*time.Second, NewResendNotifier(ResendConfig{Timeout: 5 * time.Second}, logger).client.Timeout)
}

func TestEmailJS_ConfigMissing(t *testing.T) {
	srv, calls := countingServer(t, http.StatusOK, "OK", nil)

	configs := map[string]EmailJSConfig{
		"service id":  {TemplateID: "t", PublicKey: "p", Endpoint: srv.URL},
		"template id": {ServiceID: "s", PublicKey: "p", Endpoint: srv.URL},
		"public key":  {ServiceID: "s", TemplateID: "t", Endpoint: srv.URL},
	}
	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			err := NewEmailJSNotifier(cfg, testLogger()).SendReportNotification(context.Background(), testNotification())
			assert.True(t, IsConfigMissing(err), "got %v", err)
		})
	}

	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestEmailJS_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	err := newEmailJS(srv.URL).SendReportNotification(context.Background(), testNotification())

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Zero(t, de.StatusCode)
}

// =============================================================================
// Resend
// =============================================================================

func TestResend_Success(t *testing.T) {
	var got resendRequest
	srv, calls := countingServer(t, http.StatusOK, `{"id":"abc"}`, func(r *http.Request) {
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	n := NewResendNotifier(ResendConfig{APIKey: "re_test", From: "reports@example.com", Endpoint: srv.URL}, testLogger())
	require.NoError(t, n.SendReportNotification(context.Background(), testNotification()))

	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, "RadAI Orchestrator <reports@example.com>", got.From)
	assert.Equal(t, []string{"jane@example.com"}, got.To)
	assert.Equal(t, ReportReadySubject, got.Subject)
	assert.Contains(t, got.HTML, "1741944600000_k3j9x0p2q")
}

func TestResend_Rejected(t *testing.T) {
	srv, _ := countingServer(t, http.StatusUnprocessableEntity, `{"message":"invalid to"}`, nil)

	n := NewResendNotifier(ResendConfig{APIKey: "re_test", From: "reports@example.com", Endpoint: srv.URL}, testLogger())
	err := n.SendReportNotification(context.Background(), testNotification())

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusUnprocessableEntity, de.StatusCode)
	assert.Equal(t, "Resend", de.Provider)
}

func TestResend_ConfigMissing(t *testing.T) {
	srv, calls := countingServer(t, http.StatusOK, "", nil)

	n := NewResendNotifier(ResendConfig{From: "reports@example.com", Endpoint: srv.URL}, testLogger())
	err := n.SendReportNotification(context.Background(), testNotification())

	assert.True(t, IsConfigMissing(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

// =============================================================================
// SMTP
// =============================================================================

type fakeSender struct {
	err      error
	messages []*gomail.Message
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.messages = append(f.messages, m...)
	return f.err
}

func TestSMTP_Success(t *testing.T) {
	fake := &fakeSender{}
	n := NewSMTPNotifier(SMTPConfig{Host: "localhost", Port: 1025, From: "reports@example.com"}, testLogger())
	n.dialer = fake

	require.NoError(t, n.SendReportNotification(context.Background(), testNotification()))

	require.Len(t, fake.messages, 1)
	m := fake.messages[0]
	assert.Equal(t, []string{"jane@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{ReportReadySubject}, m.GetHeader("Subject"))
	require.Len(t, m.GetHeader("From"), 1)
	assert.Contains(t, m.GetHeader("From")[0], "reports@example.com")
}

func TestSMTP_Failure(t *testing.T) {
	fake := &fakeSender{err: errors.New("connection refused")}
	n := NewSMTPNotifier(SMTPConfig{Host: "localhost", Port: 1025, From: "reports@example.com"}, testLogger())
	n.dialer = fake

	err := n.SendReportNotification(context.Background(), testNotification())

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Len(t, fake.messages, 1)
}

func TestSMTP_ConfigMissing(t *testing.T) {
	fake := &fakeSender{}
	n := NewSMTPNotifier(SMTPConfig{Port: 587, From: "reports@example.com"}, testLogger())
	n.dialer = fake

	err := n.SendReportNotification(context.Background(), testNotification())

	assert.True(t, IsConfigMissing(err))
	assert.Empty(t, fake.messages)
}
