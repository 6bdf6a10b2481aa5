package report

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/DukeRupert/radai/internal/domain"
	"github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Vertical positions (mm from the top of an A4 page) past which a section
// starts on a new page.
const (
	findingBreakY        = 250.0
	impressionBreakY     = 220.0
	differentialBreakY   = 200.0
	recommendationBreakY = 200.0
	disclaimerBreakY     = 220.0
	listItemBreakY       = 250.0
)

// Disclaimer is printed at the end of every full report.
const Disclaimer = "This report contains AI-assisted analysis for decision support purposes only. " +
	"It is not intended for sole diagnosis or treatment decisions. " +
	"The findings and recommendations provided should be reviewed and validated by qualified medical professionals. " +
	"Always consult with licensed healthcare providers for proper medical advice, diagnosis, and treatment."

// Options controls a single render.
type Options struct {
	Variant Variant

	// Xray is appended on its own page when set. Full variant only.
	Xray *ImageData

	// GeneratedAt is printed in the footer. Zero means time.Now.
	GeneratedAt time.Time
}

// =============================================================================
// PDF Generator
// =============================================================================

// PDFGenerator generates PDF documents from report records.
type PDFGenerator struct {
	// Page dimensions (A4 in mm)
	pageWidth  float64
	pageHeight float64
	margin     float64

	// Content area
	contentWidth float64
}

// NewPDFGenerator creates a new PDF generator with default settings.
func NewPDFGenerator() *PDFGenerator {
	margin := 20.0
	pageWidth := 210.0 // A4 width in mm
	return &PDFGenerator{
		pageWidth:    pageWidth,
		pageHeight:   297.0, // A4 height in mm
		margin:       margin,
		contentWidth: pageWidth - (2 * margin),
	}
}

// render carries per-document state. A Caser must not be shared between
// goroutines, so each render gets its own.
type render struct {
	*PDFGenerator
	pdf   *fpdf.Fpdf
	tr    func(string) string
	upper cases.Caser
}

// Generate renders the record and writes the PDF to w.
// Returns the number of bytes written.
func (g *PDFGenerator) Generate(ctx context.Context, record *domain.ReportRecord, opts Options, w io.Writer) (int64, error) {
	if record == nil {
		return 0, domain.Invalid("report.generate", "report record is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if opts.Variant == "" {
		opts.Variant = VariantFull
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(g.margin, g.margin, g.margin)
	pdf.SetAutoPageBreak(true, g.margin)
	pdf.SetCreationDate(opts.GeneratedAt)

	r := &render{
		PDFGenerator: g,
		pdf:          pdf,
		tr:           pdf.UnicodeTranslatorFromDescriptor(""),
		upper:        cases.Upper(language.English),
	}

	pdf.SetTitle("Radiology Report - "+record.PatientName, true)
	pdf.SetCreator("RadAI Orchestrator", true)

	switch opts.Variant {
	case VariantSimple:
		r.simple(record)
	default:
		pdf.SetFooterFunc(func() {
			r.addFooter(opts.GeneratedAt)
		})
		r.full(record)
		if opts.Xray != nil {
			r.addXrayPage(opts.Xray)
		}
	}

	// Check for errors during generation
	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("pdf generation error: %w", err)
	}

	// Write to buffer to count bytes
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return 0, fmt.Errorf("pdf output error: %w", err)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// =============================================================================
// Full Variant
// =============================================================================

func (r *render) full(record *domain.ReportRecord) {
	pdf := r.pdf
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 24)
	pdf.CellFormat(0, 12, "RADIOLOGY REPORT", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, "RadAI Orchestrator - AI-Powered Medical Analysis", "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetLineWidth(0.5)
	pdf.Line(r.margin, pdf.GetY(), r.pageWidth-r.margin, pdf.GetY())
	pdf.Ln(10)

	r.addSectionHeader("PATIENT INFORMATION")
	pdf.SetFont("Helvetica", "", 11)
	r.line(7, "Patient Name: "+record.PatientName)
	r.line(7, "Patient Email: "+record.PatientEmail)
	r.line(7, "Report ID: "+record.ID)
	r.line(7, "Date of Analysis: "+FormatDateTime(record.CreatedAt))
	pdf.Ln(8)

	r.addSectionHeader("ANALYSIS SUMMARY")
	pdf.SetFont("Helvetica", "", 11)
	r.colored(ConfidenceColor(record.AIConfidence), 7, "AI Confidence Level: "+record.AIConfidence.String())
	r.colored(UrgencyColor(record.UrgencyLevel), 7, "Clinical Urgency: "+r.upper.String(record.Urgency().String()))
	pdf.Ln(8)

	r.addSectionHeader("CLINICAL FINDINGS")
	for i, f := range record.Findings {
		r.breakAfter(findingBreakY)
		r.addFinding(f, i+1)
	}
	pdf.Ln(10)

	r.breakAfter(impressionBreakY)
	r.addSectionHeader("CLINICAL IMPRESSION")
	pdf.SetFont("Helvetica", "", 11)
	r.wrapped(0, 6, record.Impression)
	pdf.Ln(10)

	if record.HasDifferential() {
		r.breakAfter(differentialBreakY)
		r.addSectionHeader("DIFFERENTIAL DIAGNOSIS")
		r.numberedList(record.DifferentialDiagnosis)
		pdf.Ln(10)
	}

	r.breakAfter(recommendationBreakY)
	r.addSectionHeader("RECOMMENDATIONS")
	r.numberedList(record.Recommendations)
	pdf.Ln(10)

	r.breakAfter(disclaimerBreakY)
	pdf.SetFont("Helvetica", "B", 14)
	r.colored(ColorRed, 10, "IMPORTANT MEDICAL DISCLAIMER")
	pdf.SetFont("Helvetica", "", 10)
	r.wrapped(0, 5, Disclaimer)
}

func (r *render) addFinding(f domain.Finding, number int) {
	pdf := r.pdf

	pdf.SetFont("Helvetica", "B", 12)
	r.line(7, fmt.Sprintf("%d. %s", number, f.Pathology))

	pdf.SetFont("Helvetica", "", 10)
	r.indented(5, fmt.Sprintf("Confidence: %d%%", f.ConfidencePercent()))
	if f.AnatomicalLocation != "" {
		r.indented(5, "Location: "+f.AnatomicalLocation)
	}
	if f.Severity != "" {
		r.indented(5, "Severity: "+r.upper.String(f.Severity.String()))
	}
	pdf.Ln(2)
	r.wrapped(10, 5, f.Description)
	pdf.Ln(5)
}

func (r *render) addXrayPage(img *ImageData) {
	pdf := r.pdf
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "X-RAY IMAGE", "", 1, "C", false, 0, "")
	pdf.Ln(10)

	imageType, width, height, ok := inspectImage(img)
	if !ok {
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 10, "X-ray image could not be embedded", "", 1, "C", false, 0, "")
		return
	}

	// Fit inside a 150mm square, keeping the aspect ratio.
	const box = 150.0
	w, h := box, box
	if width > height {
		h = box * float64(height) / float64(width)
	} else {
		w = box * float64(width) / float64(height)
	}

	imgOpts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("xray", imgOpts, bytes.NewReader(img.Data))
	pdf.ImageOptions("xray", (r.pageWidth-w)/2, pdf.GetY(), w, h, false, imgOpts, 0, "")
}

// inspectImage reports the fpdf image type and pixel dimensions, or false
// when the data cannot be embedded.
func inspectImage(img *ImageData) (string, int, int, bool) {
	if img == nil || len(img.Data) == 0 {
		return "", 0, 0, false
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return "", 0, 0, false
	}
	switch format {
	case "jpeg":
		return "JPG", cfg.Width, cfg.Height, true
	case "png":
		return "PNG", cfg.Width, cfg.Height, true
	case "gif":
		return "GIF", cfg.Width, cfg.Height, true
	}
	return "", 0, 0, false
}

func (r *render) addFooter(generatedAt time.Time) {
	pdf := r.pdf
	pdf.SetY(-15)

	pdf.SetFont("Helvetica", "", 8)
	r.setColor(ColorGray)
	pdf.CellFormat(0, 4, "Generated by RadAI Orchestrator", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 4, "Report generated on: "+FormatDateTime(generatedAt), "", 0, "C", false, 0, "")

	pdf.SetX(-r.margin - 30)
	pdf.CellFormat(30, 4, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	r.setColor(ColorBlack)
}

// =============================================================================
// Simple Variant
// =============================================================================

func (r *render) simple(record *domain.ReportRecord) {
	pdf := r.pdf
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "RADIOLOGY REPORT", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 12)
	r.line(10, "Patient: "+record.PatientName)
	r.line(10, "Email: "+record.PatientEmail)
	r.line(10, "Report ID: "+record.ID)
	r.line(10, "Date: "+FormatDate(record.CreatedAt))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 14)
	r.line(10, "FINDINGS:")
	pdf.SetFont("Helvetica", "", 10)
	if len(record.Findings) == 0 {
		r.line(10, "No findings available")
	}
	for i, f := range record.Findings {
		r.breakAfter(findingBreakY)
		r.line(6, fmt.Sprintf("%d. %s", i+1, f.Pathology))
		r.line(6, fmt.Sprintf("   Confidence: %d%%", f.ConfidencePercent()))
		r.wrapped(0, 6, f.Description)
		pdf.Ln(5)
	}
	pdf.Ln(10)

	r.breakAfter(impressionBreakY)
	pdf.SetFont("Helvetica", "B", 14)
	r.line(10, "IMPRESSION:")
	pdf.SetFont("Helvetica", "", 10)
	r.wrapped(0, 6, record.Impression)
	pdf.Ln(15)

	r.breakAfter(impressionBreakY)
	pdf.SetFont("Helvetica", "B", 14)
	r.line(10, "RECOMMENDATIONS:")
	if len(record.Recommendations) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		r.line(6, "No recommendations available")
		return
	}
	r.numberedList(record.Recommendations)
}

// =============================================================================
// Helper Methods
// =============================================================================

// breakAfter starts a new page when the cursor is below y. Text that still
// overflows after the check is carried over by fpdf's automatic page break.
func (r *render) breakAfter(y float64) {
	if r.pdf.GetY() > y {
		r.pdf.AddPage()
	}
}

func (r *render) addSectionHeader(title string) {
	r.pdf.SetFont("Helvetica", "B", 16)
	r.line(10, title)
}

func (r *render) line(h float64, text string) {
	r.pdf.CellFormat(0, h, r.tr(text), "", 1, "L", false, 0, "")
}

func (r *render) indented(h float64, text string) {
	r.pdf.SetX(r.margin + 10)
	r.line(h, text)
}

// wrapped writes word-wrapped text starting indent mm from the left margin.
func (r *render) wrapped(indent, h float64, text string) {
	r.pdf.SetX(r.margin + indent)
	r.pdf.MultiCell(r.contentWidth-indent, h, r.tr(text), "", "L", false)
}

// colored writes one line in c and resets the text color afterwards.
func (r *render) colored(c RGB, h float64, text string) {
	r.setColor(c)
	r.line(h, text)
	r.setColor(ColorBlack)
}

func (r *render) setColor(c RGB) {
	r.pdf.SetTextColor(c.R, c.G, c.B)
}

func (r *render) numberedList(items []string) {
	r.pdf.SetFont("Helvetica", "", 11)
	for i, item := range items {
		r.breakAfter(listItemBreakY)
		r.wrapped(0, 6, fmt.Sprintf("%d. %s", i+1, item))
		r.pdf.Ln(3)
	}
}
