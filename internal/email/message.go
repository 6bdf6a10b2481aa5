package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("email").ParseFS(templateFS, "templates/*.html"))

// Disclaimer closes every patient message.
const Disclaimer = "This is an AI-assisted analysis for decision support only. It is not intended for sole diagnosis. " +
	"Always consult with qualified medical professionals for proper medical advice and treatment."

var nextSteps = []string{
	"Please schedule an appointment with your doctor to discuss the results",
	"Bring this report notification with you to your appointment",
	"If you have any urgent concerns, contact your healthcare provider immediately",
}

// FormatDate renders a notification date in long US English form.
func FormatDate(n Notification) string {
	return n.date().Format("January 2, 2006")
}

// MessageBody returns the plain-text message sent to the patient.
func MessageBody(n Notification, fromName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", n.PatientName)
	b.WriteString("Your X-ray analysis has been completed and reviewed by our medical team.\n\n")
	b.WriteString("Report Summary:\n")
	fmt.Fprintf(&b, "Report ID: %s\n", n.ReportID)
	fmt.Fprintf(&b, "Date: %s\n\n", FormatDate(n))
	b.WriteString("Clinical Impression:\n")
	b.WriteString(n.Impression + "\n\n")
	b.WriteString("Next Steps:\n")
	for _, step := range nextSteps {
		b.WriteString("- " + step + "\n")
	}
	b.WriteString("\nImportant Medical Disclaimer:\n")
	b.WriteString(Disclaimer + "\n\n")
	fmt.Fprintf(&b, "%s - Medical Analysis System", fromName)
	return b.String()
}

// TemplateParams returns the variables passed to a provider-side template.
func TemplateParams(n Notification, fromName string) map[string]string {
	return map[string]string{
		"to_email":     n.PatientEmail,
		"patient_name": n.PatientName,
		"impression":   n.Impression,
		"report_id":    n.ReportID,
		"date":         FormatDate(n),
		"from_name":    fromName,
		"message":      MessageBody(n, fromName),
	}
}

// BuildEmail renders the HTML and text bodies for providers that send full
// messages rather than template parameters.
func BuildEmail(n Notification, fromName string) (Email, error) {
	data := map[string]interface{}{
		"PatientName": n.PatientName,
		"Impression":  n.Impression,
		"ReportID":    n.ReportID,
		"Date":        FormatDate(n),
		"NextSteps":   nextSteps,
		"Disclaimer":  Disclaimer,
		"FromName":    fromName,
		"Year":        n.date().Year(),
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "report_ready.html", data); err != nil {
		return Email{}, fmt.Errorf("failed to render report ready email template: %w", err)
	}

	return Email{
		To:       n.PatientEmail,
		Subject:  ReportReadySubject,
		HTMLBody: buf.String(),
		TextBody: MessageBody(n, fromName),
	}, nil
}
