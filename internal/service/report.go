// Package service contains the business logic layer.
//
// This file implements the report service: analysis, approval, patient
// notification and export of chest X-ray reports.
package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/DukeRupert/radai/internal/ai"
	"github.com/DukeRupert/radai/internal/domain"
	"github.com/DukeRupert/radai/internal/email"
	"github.com/DukeRupert/radai/internal/metrics"
	"github.com/DukeRupert/radai/internal/report"
	"github.com/DukeRupert/radai/internal/storage"
	"github.com/DukeRupert/radai/internal/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ReportService defines operations on chest X-ray reports.
type ReportService interface {
	// Analyze sends the X-ray to the model and persists a new analyzed
	// record. No record is created when the model call fails.
	// Returns domain.EINVALID for bad input, domain.ECONFIG when the AI
	// provider is not configured, and domain.ERATELIMIT, domain.EUNAUTHORIZED
	// or domain.EUPSTREAM for transport failures.
	Analyze(ctx context.Context, params AnalyzeParams) (*domain.ReportRecord, error)

	// Get reads a record.
	// Returns domain.ENOTFOUND if the record doesn't exist.
	Get(ctx context.Context, id string) (*domain.ReportRecord, error)

	// Approve moves an analyzed record to approved.
	// Returns domain.ECONFLICT when the record is not analyzed.
	Approve(ctx context.Context, id string) (*domain.ReportRecord, error)

	// Notify emails the patient and moves an approved record to notified.
	// On failure the record stays approved.
	// Returns domain.ECONFIG or domain.EDELIVERY for notification failures.
	Notify(ctx context.Context, id string) (*domain.ReportRecord, error)

	// Export renders the record as a PDF.
	Export(ctx context.Context, id string, variant report.Variant) (*Export, error)

	// Summary renders the record as plain text.
	Summary(ctx context.Context, id string) (string, error)

	// Delete removes the record and its stored X-ray.
	// Returns domain.ENOTFOUND if the record doesn't exist.
	Delete(ctx context.Context, id string) error
}

// AnalyzeParams contains the inputs for a new analysis.
type AnalyzeParams struct {
	ImageDataURI string
	PatientName  string
	PatientEmail string
}

// Export is a rendered document ready for download.
type Export struct {
	FileName    string
	ContentType string
	Variant     report.Variant
	Data        []byte
}

// =============================================================================
// Implementation
// =============================================================================

type reportService struct {
	analyzer   ai.Analyzer
	notifier   email.Notifier
	reports    *store.ReportStore
	storage    storage.Storage
	normalizer ImageNormalizer
	pdf        *report.PDFGenerator
	logger     *slog.Logger
	now        func() time.Time
}

// NewReportService creates a new ReportService.
func NewReportService(
	analyzer ai.Analyzer,
	notifier email.Notifier,
	reports *store.ReportStore,
	storage storage.Storage,
	normalizer ImageNormalizer,
	logger *slog.Logger,
) ReportService {
	return &reportService{
		analyzer:   analyzer,
		notifier:   notifier,
		reports:    reports,
		storage:    storage,
		normalizer: normalizer,
		pdf:        report.NewPDFGenerator(),
		logger:     logger,
		now:        time.Now,
	}
}

// =============================================================================
// Analyze
// =============================================================================

func (s *reportService) Analyze(ctx context.Context, params AnalyzeParams) (*domain.ReportRecord, error) {
	const op = "report.analyze"

	if err := domain.ValidatePatient(op, params.PatientName, params.PatientEmail); err != nil {
		return nil, err
	}

	img, err := ai.ParseDataURI(params.ImageDataURI)
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, invalidImageMessage(err))
	}

	img, err = s.normalizer.Normalize(img)
	if err != nil {
		return nil, err
	}

	createdAt := s.now()
	id := domain.NewReportID(createdAt)

	start := time.Now()
	outcome, err := s.analyzer.Analyze(ctx, ai.AnalyzeParams{Image: img, ReportID: id})
	metrics.AIRequest(s.analyzer.Name(), aiStatus(err), time.Since(start))
	if err != nil {
		metrics.AnalysisCompleted("error")
		s.logger.Warn("analysis failed",
			"provider", s.analyzer.Name(),
			"report_id", id,
			"error", err,
		)
		return nil, mapAIError(err, op)
	}

	result := outcome.Result
	record := domain.NewReportRecord(domain.NewReportParams{
		ID:                    id,
		PatientName:           params.PatientName,
		PatientEmail:          params.PatientEmail,
		Findings:              result.Findings,
		Impression:            result.Impression,
		Recommendations:       result.Recommendations,
		DifferentialDiagnosis: result.DifferentialDiagnosis,
		UrgencyLevel:          result.UrgencyLevel,
		CreatedAt:             createdAt,
	})

	for _, f := range record.Findings {
		if !f.ConfidenceInRange() {
			s.logger.Warn("finding confidence outside [0,1]",
				"report_id", id,
				"pathology", f.Pathology,
				"confidence", f.Confidence,
			)
		}
		metrics.FindingDetected(f.Severity.String())
	}

	if err := s.reports.Create(ctx, record); err != nil {
		metrics.AnalysisCompleted("error")
		if errors.Is(err, store.ErrReportExists) {
			return nil, domain.Wrap(err, domain.ECONFLICT, op, "A report with this ID already exists")
		}
		return nil, domain.Internal(err, op, "failed to save report")
	}

	s.storeXray(ctx, id, img)

	outcomeLabel := "parsed"
	if outcome.Fallback {
		outcomeLabel = "fallback"
	}
	metrics.AnalysisCompleted(outcomeLabel)
	metrics.AITokens(outcome.Usage.InputTokens, outcome.Usage.OutputTokens)

	s.logger.Info("report created",
		"report_id", id,
		"provider", s.analyzer.Name(),
		"outcome", outcomeLabel,
		"findings", len(record.Findings),
		"ai_confidence", record.AIConfidence,
	)
	return record, nil
}

// storeXray saves the analyzed image next to the record for PDF export.
// Failure is logged and does not fail the analysis.
func (s *reportService) storeXray(ctx context.Context, id string, img *ai.Image) {
	data, err := s.normalizer.JPEG(img)
	if err == nil {
		err = s.storage.Put(ctx, storage.XrayKey(id), bytes.NewReader(data), storage.PutOptions{
			ContentType: storage.ContentTypeJPEG,
			MaxSize:     ai.MaxImageSize,
			Overwrite:   true,
		})
	}
	if err != nil {
		s.logger.Warn("failed to store x-ray image", "report_id", id, "error", err)
	}
}

func aiStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ai.EAIRateLimit):
		return "rate_limited"
	case errors.Is(err, ai.EAIUnauthorized):
		return "unauthorized"
	case errors.Is(err, ai.EAIConfigMissing):
		return "config_missing"
	default:
		return "error"
	}
}

// mapAIError converts a provider error into an application error.
func mapAIError(err error, op string) error {
	var svcErr *ai.ServiceError
	switch {
	case errors.Is(err, ai.EAIConfigMissing):
		return domain.ConfigMissing(err, op, "AI provider API key is not configured. Set the API key for AI_PROVIDER.")
	case errors.Is(err, ai.EAIRateLimit):
		e := domain.RateLimit(op)
		e.Message = "Rate limit exceeded. Please try again in a moment."
		e.Err = err
		return e
	case errors.Is(err, ai.EAIUnauthorized):
		return domain.Unauthorized(err, op, "Invalid API key or quota exceeded.")
	case errors.Is(err, ai.EAIInvalidImage):
		return domain.Wrap(err, domain.EINVALID, op, invalidImageMessage(err))
	case errors.Is(err, ai.EAINoResponse):
		return domain.Upstream(err, op, "No response from AI service.")
	case errors.As(err, &svcErr):
		return domain.Upstream(err, op, svcErr.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Upstream(err, op, "Analysis was canceled or timed out.")
	default:
		return domain.Upstream(err, op, "AI analysis failed.")
	}
}

func invalidImageMessage(err error) string {
	return "Invalid image: " + err.Error()
}

// =============================================================================
// Get / Approve / Notify
// =============================================================================

func (s *reportService) Get(ctx context.Context, id string) (*domain.ReportRecord, error) {
	const op = "report.get"
	record, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, op, id)
	}
	return record, nil
}

func (s *reportService) Approve(ctx context.Context, id string) (*domain.ReportRecord, error) {
	const op = "report.approve"
	record, err := s.reports.Advance(ctx, id, domain.ReportStatusApproved)
	if err != nil {
		return nil, mapStoreError(err, op, id)
	}
	metrics.StatusTransition(record.Status.String())
	return record, nil
}

func (s *reportService) Notify(ctx context.Context, id string) (*domain.ReportRecord, error) {
	const op = "report.notify"

	// Re-read so a stale caller cannot notify an unapproved report.
	record, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, op, id)
	}
	switch record.Status {
	case domain.ReportStatusApproved:
	case domain.ReportStatusNotified:
		return nil, domain.Conflict(op, "Patient has already been notified")
	default:
		return nil, domain.Conflict(op, "Report must be approved before notifying the patient")
	}

	err = s.notifier.SendReportNotification(ctx, email.Notification{
		PatientEmail: record.PatientEmail,
		PatientName:  record.PatientName,
		Impression:   record.Impression,
		ReportID:     record.ID,
		Date:         s.now(),
	})
	metrics.NotificationSent(s.notifier.Name(), err)
	if err != nil {
		if email.IsConfigMissing(err) {
			return nil, domain.ConfigMissing(err, op, "Email configuration missing. Please set the "+s.notifier.Name()+" settings.")
		}
		return nil, domain.DeliveryFailed(err, op)
	}

	record, err = s.reports.Advance(ctx, id, domain.ReportStatusNotified)
	if err != nil {
		return nil, mapStoreError(err, op, id)
	}
	metrics.StatusTransition(record.Status.String())
	return record, nil
}

func mapStoreError(err error, op, id string) error {
	switch {
	case errors.Is(err, store.ErrReportNotFound):
		return domain.NotFound(op, "report", id)
	case errors.Is(err, store.ErrInvalidTransition):
		return domain.Wrap(err, domain.ECONFLICT, op, "Report is not in a state that allows this action")
	case domain.ErrorCode(err) != domain.EINTERNAL:
		return err
	default:
		return domain.Internal(err, op, "failed to access report")
	}
}

// =============================================================================
// Export / Summary
// =============================================================================

func (s *reportService) Export(ctx context.Context, id string, variant report.Variant) (*Export, error) {
	const op = "report.export"

	record, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, op, id)
	}

	opts := report.Options{Variant: variant, GeneratedAt: s.now()}
	if variant != report.VariantSimple {
		opts.Xray = s.loadXray(ctx, id)
	}

	var buf bytes.Buffer
	if _, err := s.pdf.Generate(ctx, record, opts, &buf); err != nil {
		return nil, domain.Internal(err, op, "failed to generate PDF")
	}

	if variant == "" {
		variant = report.VariantFull
	}
	metrics.ExportGenerated(variant.String())

	return &Export{
		FileName:    report.FileName(record, variant, s.now()),
		ContentType: storage.ContentTypePDF,
		Variant:     variant,
		Data:        buf.Bytes(),
	}, nil
}

// loadXray returns the stored image, or nil when there is none.
func (s *reportService) loadXray(ctx context.Context, id string) *report.ImageData {
	rc, info, err := s.storage.Get(ctx, storage.XrayKey(id))
	if err != nil {
		if !storage.IsNotFound(err) {
			s.logger.Warn("failed to load x-ray image", "report_id", id, "error", err)
		}
		return nil
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, ai.MaxImageSize))
	if err != nil {
		s.logger.Warn("failed to read x-ray image", "report_id", id, "error", err)
		return nil
	}
	return &report.ImageData{Data: data, ContentType: info.ContentType}
}

func (s *reportService) Summary(ctx context.Context, id string) (string, error) {
	const op = "report.summary"
	record, err := s.reports.Get(ctx, id)
	if err != nil {
		return "", mapStoreError(err, op, id)
	}
	return report.Summary(record), nil
}

// =============================================================================
// Delete
// =============================================================================

func (s *reportService) Delete(ctx context.Context, id string) error {
	const op = "report.delete"

	if _, err := s.reports.Get(ctx, id); err != nil {
		return mapStoreError(err, op, id)
	}
	if err := s.reports.Delete(ctx, id); err != nil {
		return domain.Internal(err, op, "failed to delete report")
	}
	if err := s.storage.Delete(ctx, storage.XrayKey(id)); err != nil {
		s.logger.Warn("failed to delete x-ray image", "report_id", id, "error", err)
	}

	s.logger.Info("report deleted", "report_id", id)
	return nil
}
