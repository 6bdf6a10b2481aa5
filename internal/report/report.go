// Package report renders report records into PDF documents and short
// plain-text summaries.
//
// One PDFGenerator serves both layouts. VariantFull is the clinician
// document with color-coded summary, differential diagnosis and disclaimer.
// VariantSimple is the compact patient copy.
package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/DukeRupert/radai/internal/domain"
)

// =============================================================================
// Variant
// =============================================================================

// Variant selects which sections a rendered document contains.
type Variant string

const (
	VariantFull   Variant = "full"
	VariantSimple Variant = "simple"
)

// String returns the string representation of the variant.
func (v Variant) String() string {
	return string(v)
}

// ParseVariant converts a query or flag value to a Variant.
// An empty string selects VariantFull.
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case "", VariantFull:
		return VariantFull, nil
	case VariantSimple:
		return VariantSimple, nil
	}
	return "", domain.Invalid("report.variant", fmt.Sprintf("unknown report variant %q (want full or simple)", s))
}

// =============================================================================
// Colors
// =============================================================================

// RGB is a display color.
type RGB struct {
	R, G, B int
}

var (
	ColorGreen  = RGB{0, 128, 0}
	ColorOrange = RGB{255, 165, 0}
	ColorRed    = RGB{255, 0, 0}
	ColorBlack  = RGB{0, 0, 0}
	ColorGray   = RGB{128, 128, 128}
)

// ConfidenceColor returns green, orange or red for High, Medium or Low.
func ConfidenceColor(band domain.ConfidenceBand) RGB {
	switch band {
	case domain.ConfidenceHigh:
		return ColorGreen
	case domain.ConfidenceMedium:
		return ColorOrange
	default:
		return ColorRed
	}
}

// UrgencyColor returns green, orange or red for routine, urgent or emergent.
func UrgencyColor(u domain.Urgency) RGB {
	switch u.OrDefault() {
	case domain.UrgencyRoutine:
		return ColorGreen
	case domain.UrgencyUrgent:
		return ColorOrange
	default:
		return ColorRed
	}
}

// =============================================================================
// Text Formatting Helpers
// =============================================================================

// TruncateText shortens text to maxLen runes and appends "..." when cut.
func TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

// FormatDate formats a date for display in reports.
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

// FormatDateTime formats a datetime for display in reports.
func FormatDateTime(t time.Time) string {
	return t.Format("January 2, 2006 at 03:04 PM")
}

// =============================================================================
// File Naming
// =============================================================================

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	unsafeFileChars = regexp.MustCompile(`[/\\:*?"<>|]`)
)

// SanitizeName turns a patient name into a file name fragment.
func SanitizeName(name string) string {
	name = unsafeFileChars.ReplaceAllString(strings.TrimSpace(name), "")
	name = whitespaceRun.ReplaceAllString(name, "_")
	if name == "" {
		return "Patient"
	}
	return name
}

// FileName returns the download name for a rendered document.
//
//	full:   Radiology_Report_<name>_<first 8 chars of id>.pdf
//	simple: Report_<name>_<epoch-ms>.pdf
func FileName(record *domain.ReportRecord, variant Variant, now time.Time) string {
	name := SanitizeName(record.PatientName)
	if variant == VariantSimple {
		return fmt.Sprintf("Report_%s_%d.pdf", name, now.UnixMilli())
	}
	id := record.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("Radiology_Report_%s_%s.pdf", name, id)
}

// =============================================================================
// Image Data
// =============================================================================

// ImageData holds image bytes for embedding in a document.
type ImageData struct {
	Data        []byte
	ContentType string
}
