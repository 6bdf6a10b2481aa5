package handler

import (
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/DukeRupert/radai/internal/ai"
	"github.com/DukeRupert/radai/internal/domain"
	"github.com/DukeRupert/radai/internal/flow"
	"github.com/DukeRupert/radai/internal/report"
	"github.com/DukeRupert/radai/internal/storage"
)

// =============================================================================
// Handler Configuration
// =============================================================================

// SessionHandler exposes the operator flow over JSON.
type SessionHandler struct {
	flow   *flow.Manager
	logger *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(manager *flow.Manager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		flow:   manager,
		logger: logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers all session routes with the provided mux.
//
// Routes:
// - POST /api/sessions                -> Create
// - GET  /api/sessions/{id}           -> Show
// - PUT  /api/sessions/{id}/image     -> SetImage
// - PUT  /api/sessions/{id}/patient   -> SetPatient
// - POST /api/sessions/{id}/analyze   -> Analyze (wrapped by analyzeLimit)
// - POST /api/sessions/{id}/approve   -> Approve
// - POST /api/sessions/{id}/notify    -> Notify
// - GET  /api/sessions/{id}/pdf       -> Export
// - POST /api/sessions/{id}/reset     -> Reset
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux, analyzeLimit func(http.Handler) http.Handler) {
	if analyzeLimit == nil {
		analyzeLimit = func(next http.Handler) http.Handler { return next }
	}
	mux.HandleFunc("POST /api/sessions", h.Create)
	mux.HandleFunc("GET /api/sessions/{id}", h.Show)
	mux.HandleFunc("PUT /api/sessions/{id}/image", h.SetImage)
	mux.HandleFunc("PUT /api/sessions/{id}/patient", h.SetPatient)
	mux.Handle("POST /api/sessions/{id}/analyze", analyzeLimit(http.HandlerFunc(h.Analyze)))
	mux.HandleFunc("POST /api/sessions/{id}/approve", h.Approve)
	mux.HandleFunc("POST /api/sessions/{id}/notify", h.Notify)
	mux.HandleFunc("GET /api/sessions/{id}/pdf", h.Export)
	mux.HandleFunc("POST /api/sessions/{id}/reset", h.Reset)
}

// =============================================================================
// Handlers
// =============================================================================

// Create starts a new empty session.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := h.flow.Create()
	writeJSON(w, http.StatusCreated, sess)
}

// Show returns the current session snapshot.
func (h *SessionHandler) Show(w http.ResponseWriter, r *http.Request) {
	sess, err := h.flow.Get(r.PathValue("id"))
	h.respond(w, r, sess, err)
}

type imageRequest struct {
	Image string `json:"image"`
}

// SetImage attaches the X-ray. It accepts a multipart form with an "image"
// file field or a JSON body carrying a base64 data URI.
func (h *SessionHandler) SetImage(w http.ResponseWriter, r *http.Request) {
	const op = "handler.SetImage"

	var dataURI string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		uri, err := h.readImageUpload(w, r, op)
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		dataURI = uri
	} else {
		var req imageRequest
		if err := decodeJSON(w, r, op, &req); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		dataURI = req.Image
	}

	sess, err := h.flow.SetImage(r.PathValue("id"), dataURI)
	h.respond(w, r, sess, err)
}

// readImageUpload converts an uploaded image file into a data URI.
func (h *SessionHandler) readImageUpload(w http.ResponseWriter, r *http.Request, op string) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, ai.MaxImageSize+1<<20)

	// Parse multipart form (32MB memory limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.logger.Info("failed to parse multipart form", "error", err)
		return "", domain.Invalid(op, "Failed to read the uploaded image")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return "", domain.Invalid(op, "No image uploaded")
	}
	defer file.Close()

	if header.Size > ai.MaxImageSize {
		return "", domain.Errorf(domain.ETOOLARGE, op, "Image exceeds the 20MB limit")
	}

	data, err := io.ReadAll(io.LimitReader(file, ai.MaxImageSize+1))
	if err != nil {
		return "", domain.Internal(err, op, "Failed to read the uploaded image")
	}
	if len(data) > ai.MaxImageSize {
		return "", domain.Errorf(domain.ETOOLARGE, op, "Image exceeds the 20MB limit")
	}

	contentType := storage.SniffContentType(data)
	if !storage.IsAllowedImageType(contentType) {
		return "", domain.Invalid(op, "Please select a JPEG, PNG, GIF or WebP image")
	}

	h.logger.Debug("image uploaded",
		"filename", header.Filename,
		"content_type", contentType,
		"size", len(data),
	)
	return ai.NewImage(contentType, data).DataURI(), nil
}

type patientRequest struct {
	Name  string `json:"patient_name"`
	Email string `json:"patient_email"`
}

// SetPatient records the patient's name and email.
func (h *SessionHandler) SetPatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := decodeJSON(w, r, "handler.SetPatient", &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	sess, err := h.flow.SetPatient(r.PathValue("id"), req.Name, req.Email)
	h.respond(w, r, sess, err)
}

// Analyze runs the X-ray analysis for the session.
func (h *SessionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	sess, err := h.flow.Analyze(r.Context(), r.PathValue("id"))
	h.respond(w, r, sess, err)
}

// Approve marks the session's report as reviewed.
func (h *SessionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	sess, err := h.flow.Approve(r.Context(), r.PathValue("id"))
	h.respond(w, r, sess, err)
}

// Notify emails the patient.
func (h *SessionHandler) Notify(w http.ResponseWriter, r *http.Request) {
	sess, err := h.flow.Notify(r.Context(), r.PathValue("id"))
	h.respond(w, r, sess, err)
}

// Export downloads the session's report as a PDF.
// GET /api/sessions/{id}/pdf?variant=full|simple
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	variant, err := report.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	export, err := h.flow.Export(r.Context(), r.PathValue("id"), variant)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeExport(w, export)
}

// Reset clears the session for the next patient.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess, err := h.flow.Reset(r.PathValue("id"))
	h.respond(w, r, sess, err)
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, sess flow.Session, err error) {
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
