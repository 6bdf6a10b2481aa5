package domain

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRecord_TransitionTo(t *testing.T) {
	tests := []struct {
		name      string
		from      ReportStatus
		to        ReportStatus
		wantErr   bool
		wantState ReportStatus
	}{
		{"analyzed to approved", ReportStatusAnalyzed, ReportStatusApproved, false, ReportStatusApproved},
		{"approved to notified", ReportStatusApproved, ReportStatusNotified, false, ReportStatusNotified},

		{"analyzed to notified", ReportStatusAnalyzed, ReportStatusNotified, true, ReportStatusAnalyzed},
		{"approved to analyzed", ReportStatusApproved, ReportStatusAnalyzed, true, ReportStatusApproved},
		{"notified to approved", ReportStatusNotified, ReportStatusApproved, true, ReportStatusNotified},
		{"notified to notified", ReportStatusNotified, ReportStatusNotified, true, ReportStatusNotified},
		{"approved to approved", ReportStatusApproved, ReportStatusApproved, true, ReportStatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &ReportRecord{Status: tt.from}
			err := record.TransitionTo(tt.to)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "cannot transition")
				assert.Equal(t, tt.from, record.Status)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantState, record.Status)
			}
		})
	}
}

func TestNewReportRecord(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	record := NewReportRecord(NewReportParams{
		PatientName:  "Jane Doe",
		PatientEmail: "jane@example.com",
		Findings: []Finding{
			{Pathology: "Cardiomegaly", Confidence: 0.92},
			{Pathology: "Effusion", Confidence: 0.71},
		},
		Impression: "Enlarged cardiac silhouette.",
		CreatedAt:  now,
	})

	assert.Equal(t, ConfidenceHigh, record.AIConfidence)
	assert.Equal(t, ReportStatusAnalyzed, record.Status)
	assert.Equal(t, now, record.CreatedAt)
	assert.NotNil(t, record.Recommendations)
	assert.NotNil(t, record.DifferentialDiagnosis)
	assert.Equal(t, UrgencyRoutine, record.Urgency())
	assert.Regexp(t, `^1741944600000_[0-9a-f]{9}$`, record.ID)
}

func TestNewReportRecord_EmptyFindings(t *testing.T) {
	record := NewReportRecord(NewReportParams{ID: "fixed", CreatedAt: time.Now()})

	assert.Equal(t, "fixed", record.ID)
	assert.Equal(t, ConfidenceLow, record.AIConfidence)
	assert.NotNil(t, record.Findings)
	assert.Empty(t, record.Findings)
}

func TestNewReportID_Unique(t *testing.T) {
	now := time.Now()
	pattern := regexp.MustCompile(`^\d+_[0-9a-z]{9}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewReportID(now)
		require.True(t, pattern.MatchString(id), id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestReportRecord_PathologyLabels(t *testing.T) {
	record := &ReportRecord{Findings: []Finding{
		{Pathology: "A"}, {Pathology: "B"}, {Pathology: "C"}, {Pathology: "D"},
	}}
	assert.Equal(t, []string{"A", "B", "C"}, record.PathologyLabels(3))

	record.Findings = record.Findings[:1]
	assert.Equal(t, []string{"A"}, record.PathologyLabels(3))
}

func TestValidatePatient(t *testing.T) {
	tests := []struct {
		name       string
		patient    string
		email      string
		wantFields []string
	}{
		{"valid", "Jane Doe", "jane@example.com", nil},
		{"missing name", "  ", "jane@example.com", []string{"patient_name"}},
		{"missing email", "Jane Doe", "", []string{"patient_email"}},
		{"bad email", "Jane Doe", "not-an-email", []string{"patient_email"}},
		{"both missing", "", "", []string{"patient_name", "patient_email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatient("test", tt.patient, tt.email)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Len(t, ve.Fields, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, ve.Fields, f)
			}
			assert.Equal(t, EINVALID, ErrorCode(err))
		})
	}
}
