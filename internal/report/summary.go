package report

import (
	"strings"

	"github.com/DukeRupert/radai/internal/domain"
)

const (
	// SummaryImpressionLimit is the number of impression characters kept in
	// a summary before "..." is appended.
	SummaryImpressionLimit = 200

	summaryFindingCount = 3
)

// Summary renders a record as a short plain-text block suitable for
// clipboard sharing. It performs no I/O.
func Summary(record *domain.ReportRecord) string {
	var b strings.Builder
	b.WriteString("RADIOLOGY REPORT SUMMARY\n")
	b.WriteString("Patient: " + record.PatientName + "\n")
	b.WriteString("Date: " + FormatDate(record.CreatedAt) + "\n")
	b.WriteString("Main Findings: " + strings.Join(record.PathologyLabels(summaryFindingCount), ", ") + "\n")
	b.WriteString("Impression: " + TruncateText(record.Impression, SummaryImpressionLimit) + "\n")
	b.WriteString("AI Confidence: " + record.AIConfidence.String() + "\n")
	b.WriteString("Report ID: " + record.ID)
	return b.String()
}
