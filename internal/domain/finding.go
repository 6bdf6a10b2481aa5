// Package domain contains core business types and interfaces.
//
// This file defines the Finding type returned by chest X-ray analysis and the
// confidence band derived from a set of findings.
package domain

import "math"

// =============================================================================
// Severity
// =============================================================================

// Severity is the model-assigned severity of a single finding.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid returns true if the severity is a recognized value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityNormal, SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

// =============================================================================
// Urgency
// =============================================================================

// Urgency is the overall clinical urgency of a report.
type Urgency string

const (
	UrgencyRoutine  Urgency = "routine"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyEmergent Urgency = "emergent"
)

// String returns the string representation of the urgency.
func (u Urgency) String() string {
	return string(u)
}

// IsValid returns true if the urgency is a recognized value.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyRoutine, UrgencyUrgent, UrgencyEmergent:
		return true
	}
	return false
}

// OrDefault returns the urgency, or routine when it is empty or unrecognized.
func (u Urgency) OrDefault() Urgency {
	if u.IsValid() {
		return u
	}
	return UrgencyRoutine
}

// =============================================================================
// Finding
// =============================================================================

// Finding is one discrete observation returned by the analysis model.
//
// Confidence is expected in [0.0, 1.0] but is stored exactly as received.
type Finding struct {
	Pathology          string   `json:"pathology"`
	Confidence         float64  `json:"confidence"`
	Description        string   `json:"description"`
	Severity           Severity `json:"severity,omitempty"`
	AnatomicalLocation string   `json:"anatomical_location,omitempty"`
}

// ConfidenceInRange reports whether Confidence lies within [0, 1].
func (f Finding) ConfidenceInRange() bool {
	return f.Confidence >= 0 && f.Confidence <= 1
}

// ConfidencePercent returns the confidence as a whole percentage, rounded to
// the nearest integer.
func (f Finding) ConfidencePercent() int {
	return int(math.Round(f.Confidence * 100))
}

// =============================================================================
// Confidence Band
// =============================================================================

// ConfidenceBand is the High/Medium/Low label derived from mean confidence.
type ConfidenceBand string

const (
	ConfidenceHigh   ConfidenceBand = "High"
	ConfidenceMedium ConfidenceBand = "Medium"
	ConfidenceLow    ConfidenceBand = "Low"
)

// String returns the string representation of the band.
func (b ConfidenceBand) String() string {
	return string(b)
}

// Confidence band thresholds, applied to the mean finding confidence.
const (
	HighConfidenceThreshold   = 0.8
	MediumConfidenceThreshold = 0.6
)

// MeanConfidence returns the arithmetic mean of the findings' confidence.
// The second return value is false when there are no findings.
func MeanConfidence(findings []Finding) (float64, bool) {
	if len(findings) == 0 {
		return 0, false
	}
	var sum float64
	for _, f := range findings {
		sum += f.Confidence
	}
	return sum / float64(len(findings)), true
}

// ConfidenceBandFor derives the band for a set of findings.
// An empty set is Low.
func ConfidenceBandFor(findings []Finding) ConfidenceBand {
	avg, ok := MeanConfidence(findings)
	if !ok {
		return ConfidenceLow
	}
	return BandForMean(avg)
}

// BandForMean maps a mean confidence to its band.
func BandForMean(avg float64) ConfidenceBand {
	switch {
	case avg >= HighConfidenceThreshold:
		return ConfidenceHigh
	case avg >= MediumConfidenceThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
