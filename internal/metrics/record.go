package metrics

import "time"

// AnalysisCompleted records the outcome of one analysis.
// outcome is "parsed", "fallback" or "error".
func AnalysisCompleted(outcome string) {
	AnalysesTotal.WithLabelValues(outcome).Inc()
}

// AIRequest records one provider call and its latency.
func AIRequest(provider, status string, duration time.Duration) {
	AIRequestsTotal.WithLabelValues(provider, status).Inc()
	AIRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// AITokens records token usage reported by a provider.
func AITokens(input, output int) {
	if input > 0 {
		AITokensTotal.WithLabelValues("input").Add(float64(input))
	}
	if output > 0 {
		AITokensTotal.WithLabelValues("output").Add(float64(output))
	}
}

// FindingDetected records one finding. An empty severity is counted as
// "unspecified".
func FindingDetected(severity string) {
	if severity == "" {
		severity = "unspecified"
	}
	FindingsTotal.WithLabelValues(severity).Inc()
}

// NotificationSent records one delivery attempt.
func NotificationSent(provider string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	NotificationsTotal.WithLabelValues(provider, status).Inc()
}

// ExportGenerated records one rendered document.
func ExportGenerated(variant string) {
	ExportsTotal.WithLabelValues(variant).Inc()
}

// StatusTransition records a report moving to a new status.
func StatusTransition(to string) {
	StatusTransitionsTotal.WithLabelValues(to).Inc()
}
