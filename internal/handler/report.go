// Package handler contains the JSON HTTP API for the RadAI application.
//
// This file implements report handlers for reading and downloading
// analyzed reports.
package handler

import (
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/DukeRupert/radai/internal/report"
	"github.com/DukeRupert/radai/internal/service"
)

// ReportHandler handles HTTP requests related to stored reports.
type ReportHandler struct {
	reports service.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  logger,
	}
}

// RegisterRoutes registers all report routes with the provided mux.
//
// Routes:
// - GET /api/reports/{id}         -> Show
// - GET /api/reports/{id}/pdf     -> Download
// - GET /api/reports/{id}/summary -> Summary
func (h *ReportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/reports/{id}", h.Show)
	mux.HandleFunc("GET /api/reports/{id}/pdf", h.Download)
	mux.HandleFunc("GET /api/reports/{id}/summary", h.Summary)
}

// Show returns the stored record.
func (h *ReportHandler) Show(w http.ResponseWriter, r *http.Request) {
	rec, err := h.reports.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Download renders the report as a PDF attachment.
// GET /api/reports/{id}/pdf?variant=full|simple
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	variant, err := report.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	export, err := h.reports.Export(r.Context(), id, variant)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeExport(w, export)

	h.logger.Info("report downloaded",
		"report_id", id,
		"variant", variant,
		"size", len(export.Data),
	)
}

// Summary returns the plain-text summary of the report.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	text, err := h.reports.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// writeExport streams a rendered document as an attachment.
func writeExport(w http.ResponseWriter, export *service.Export) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.FileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}
