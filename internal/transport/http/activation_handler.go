// Package http exposes the activation engine to the local UI collaborator.
// Results carry RFC 7807 problem documents with a stable error_kind, so the
// dialog can show the precise reason an attempt failed.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"beirutpos/internal/activation"
	apperrors "beirutpos/internal/errors"
	"beirutpos/internal/infrastructure"
)

// ActivationHandler handles the activation API.
type ActivationHandler struct {
	manager  *activation.Manager
	logger   *slog.Logger
	validate *validator.Validate
}

// NewActivationHandler creates the handler.
func NewActivationHandler(manager *activation.Manager, logger *slog.Logger) *ActivationHandler {
	return &ActivationHandler{
		manager:  manager,
		logger:   logger.With(slog.String("handler", "activation")),
		validate: validator.New(),
	}
}

// VoucherRequest is the voucher activation payload.
type VoucherRequest struct {
	Code string `json:"code" validate:"required,min=13,max=64"`
}

// Bind implements render.Binder.
func (v *VoucherRequest) Bind(r *http.Request) error { return nil }

// LicenseRequest is the license activation payload.
type LicenseRequest struct {
	Blob string `json:"blob" validate:"required,min=16,max=4096"`
}

// Bind implements render.Binder.
func (l *LicenseRequest) Bind(r *http.Request) error { return nil }

// StatusResponse wraps the engine status snapshot for the UI.
type StatusResponse struct {
	*activation.Status
	Timestamp time.Time `json:"timestamp"`
}

// Render implements render.Renderer.
func (s *StatusResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// ActivationResponse acknowledges a successful mutation.
type ActivationResponse struct {
	Success bool               `json:"success"`
	Status  *activation.Status `json:"status"`
	TraceID string             `json:"trace_id,omitempty"`
}

// Render implements render.Renderer.
func (a *ActivationResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// FingerprintResponse carries the device fingerprint the UI shows when a
// customer requests a license.
type FingerprintResponse struct {
	Fingerprint string `json:"fingerprint"`
}

// Render implements render.Renderer.
func (f *FingerprintResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// Routes returns the chi router for the activation API.
func (h *ActivationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.GetStatus)
	r.Get("/fingerprint", h.GetFingerprint)
	r.Post("/voucher", h.ActivateVoucher)
	r.Post("/license", h.ActivateLicense)
	r.Post("/deactivate", h.Deactivate)
	return r
}

// GetStatus handles GET /api/activation/status.
func (h *ActivationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.manager.Status(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Render(w, r, &StatusResponse{Status: status, Timestamp: time.Now().UTC()})
}

// GetFingerprint handles GET /api/activation/fingerprint.
func (h *ActivationHandler) GetFingerprint(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, &FingerprintResponse{Fingerprint: h.manager.Fingerprint()})
}

// ActivateVoucher handles POST /api/activation/voucher.
func (h *ActivationHandler) ActivateVoucher(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req VoucherRequest
	if err := render.Bind(r, &req); err != nil {
		h.renderBindError(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.renderBindError(w, r, err)
		return
	}

	if err := h.manager.ActivateWithVoucher(ctx, req.Code); err != nil {
		h.renderError(w, r, err)
		return
	}
	h.renderActivated(w, r)
}

// ActivateLicense handles POST /api/activation/license.
func (h *ActivationHandler) ActivateLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LicenseRequest
	if err := render.Bind(r, &req); err != nil {
		h.renderBindError(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.renderBindError(w, r, err)
		return
	}

	if err := h.manager.ActivateWithLicense(ctx, req.Blob); err != nil {
		h.renderError(w, r, err)
		return
	}
	h.renderActivated(w, r)
}

// Deactivate handles POST /api/activation/deactivate. Administrator action;
// idempotent by design.
func (h *ActivationHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.manager.Deactivate(ctx); err != nil {
		h.renderError(w, r, err)
		return
	}
	h.renderActivated(w, r)
}

func (h *ActivationHandler) renderActivated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.manager.Status(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Render(w, r, &ActivationResponse{
		Success: true,
		Status:  status,
		TraceID: infrastructure.TraceID(ctx),
	})
}

func (h *ActivationHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, "activation request failed",
		slog.String("path", r.URL.Path),
		slog.String("error_kind", apperrors.Kind(err)),
		slog.String("error", err.Error()))
	render.Render(w, r, apperrors.Problem(err, r.URL.Path, infrastructure.TraceID(ctx)))
}

func (h *ActivationHandler) renderBindError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	problem := apperrors.NewProblemDetails(
		http.StatusBadRequest,
		"/errors/invalid_request",
		"Invalid Request",
		err.Error(),
		r.URL.Path,
	)
	problem.WithExtension("error_kind", "invalid_request")
	if traceID := infrastructure.TraceID(ctx); traceID != "" {
		problem.WithExtension("trace_id", traceID)
	}
	render.Render(w, r, problem)
}
