// Package domain contains core business types and interfaces.
//
// This file defines the Report Record, the persisted outcome of one chest
// X-ray analysis for one patient, and its status lifecycle.
package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Report Status
// =============================================================================

// ReportStatus represents the lifecycle state of a report.
type ReportStatus string

const (
	// ReportStatusAnalyzed indicates the model returned a result and the
	// record was created. Nothing has been reviewed yet.
	ReportStatusAnalyzed ReportStatus = "analyzed"

	// ReportStatusApproved indicates a clinician approved the findings.
	ReportStatusApproved ReportStatus = "approved"

	// ReportStatusNotified indicates the patient email was delivered.
	ReportStatusNotified ReportStatus = "notified"
)

// String returns the string representation of the status.
func (s ReportStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportStatusAnalyzed, ReportStatusApproved, ReportStatusNotified:
		return true
	}
	return false
}

// CanTransitionTo checks if a report can move to the target status.
//
// Valid transitions:
// - analyzed -> approved
// - approved -> notified
//
// Status never moves backwards.
func (s ReportStatus) CanTransitionTo(target ReportStatus) bool {
	switch s {
	case ReportStatusAnalyzed:
		return target == ReportStatusApproved
	case ReportStatusApproved:
		return target == ReportStatusNotified
	}
	return false
}

// =============================================================================
// Report Record
// =============================================================================

// ReportRecord is the persisted outcome of one analysis session.
//
// Findings and AIConfidence are fixed at creation. Only Status changes.
type ReportRecord struct {
	ID                    string         `json:"id"`
	PatientName           string         `json:"patient_name"`
	PatientEmail          string         `json:"patient_email"`
	Findings              []Finding      `json:"findings"`
	Impression            string         `json:"impression"`
	Recommendations       []string       `json:"recommendations"`
	DifferentialDiagnosis []string       `json:"differential_diagnosis"`
	UrgencyLevel          Urgency        `json:"urgency_level,omitempty"`
	AIConfidence          ConfidenceBand `json:"ai_confidence"`
	Status                ReportStatus   `json:"status"`
	CreatedAt             time.Time      `json:"created_at"`
}

// TransitionTo moves the record to the target status, or returns an error
// without modifying it.
func (r *ReportRecord) TransitionTo(target ReportStatus) error {
	if !r.Status.CanTransitionTo(target) {
		return fmt.Errorf("cannot transition report from %s to %s", r.Status, target)
	}
	r.Status = target
	return nil
}

// Urgency returns the urgency used for rendering, defaulting to routine.
func (r *ReportRecord) Urgency() Urgency {
	return r.UrgencyLevel.OrDefault()
}

// HasDifferential returns true if a differential diagnosis is present.
func (r *ReportRecord) HasDifferential() bool {
	return len(r.DifferentialDiagnosis) > 0
}

// PathologyLabels returns up to n pathology labels in finding order.
func (r *ReportRecord) PathologyLabels(n int) []string {
	labels := make([]string, 0, n)
	for _, f := range r.Findings {
		if len(labels) == n {
			break
		}
		labels = append(labels, f.Pathology)
	}
	return labels
}

// =============================================================================
// Construction
// =============================================================================

// NewReportParams contains the inputs for creating a report record.
type NewReportParams struct {
	ID                    string // Optional: generated when empty
	PatientName           string
	PatientEmail          string
	Findings              []Finding
	Impression            string
	Recommendations       []string
	DifferentialDiagnosis []string
	UrgencyLevel          Urgency
	CreatedAt             time.Time
}

// NewReportRecord builds an analyzed record and computes its confidence band.
func NewReportRecord(p NewReportParams) *ReportRecord {
	id := p.ID
	if id == "" {
		id = NewReportID(p.CreatedAt)
	}
	findings := p.Findings
	if findings == nil {
		findings = []Finding{}
	}
	return &ReportRecord{
		ID:                    id,
		PatientName:           p.PatientName,
		PatientEmail:          p.PatientEmail,
		Findings:              findings,
		Impression:            p.Impression,
		Recommendations:       nonNil(p.Recommendations),
		DifferentialDiagnosis: nonNil(p.DifferentialDiagnosis),
		UrgencyLevel:          p.UrgencyLevel,
		AIConfidence:          ConfidenceBandFor(findings),
		Status:                ReportStatusAnalyzed,
		CreatedAt:             p.CreatedAt,
	}
}

// ValidatePatient checks the operator-entered patient fields. Both are
// required and the email must parse as an address.
func ValidatePatient(op, name, email string) error {
	fields := make(map[string]string)
	if strings.TrimSpace(name) == "" {
		fields["patient_name"] = "Patient name is required"
	}
	if strings.TrimSpace(email) == "" {
		fields["patient_email"] = "Patient email is required"
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields["patient_email"] = "Patient email is not a valid address"
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Op: op, Fields: fields}
}

// reportIDSuffixLen is the length of the random part of a report ID.
const reportIDSuffixLen = 9

// NewReportID returns "<unix-ms>_<9 random lowercase alphanumerics>".
func NewReportID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:reportIDSuffixLen]
	return fmt.Sprintf("%d_%s", now.UnixMilli(), suffix)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
