package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	licenseErrors "signet/internal/errors"
	"signet/internal/infrastructure"
	"signet/internal/license"
	"signet/internal/middleware"
	"signet/internal/services"
	v1 "signet/pkg/contracts/api/v1"
	"signet/pkg/contracts/domain"
)

// LicenseHandler handles license-related HTTP requests
type LicenseHandler struct {
	service services.LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// Request aliases to the canonical contract types.
type (
	SignLicenseRequest     = v1.SignLicenseRequest
	VerifyLicenseRequest   = v1.VerifyLicenseRequest
	ValidateLicenseRequest = v1.ValidateLicenseRequest
)

// SignLicenseResponse carries the issued token and the license it encodes.
type SignLicenseResponse struct {
	Token   string                `json:"token"`
	License domain.LicenseDetails `json:"license"`
}

// VerifyLicenseResponse carries the authenticated license and its
// canonical serialized form.
type VerifyLicenseResponse struct {
	License    domain.LicenseDetails `json:"license"`
	Serialized string                `json:"serialized"`
}

// ValidateLicenseResponse reports the temporal state of an authentic
// license against the server clock.
type ValidateLicenseResponse struct {
	License          domain.LicenseDetails `json:"license"`
	Status           domain.LicenseStatus  `json:"status"`
	RemainingSeconds int64                 `json:"remaining_seconds"`
}

// licenseDetails converts the internal license into its contract shape.
func licenseDetails(l *license.License) domain.LicenseDetails {
	return domain.LicenseDetails{
		Identifier: l.ID,
		Plan:       l.Plan,
		ValidFrom:  l.ValidFrom,
		ValidUntil: l.ValidUntil,
	}
}

// Routes returns a chi router for license endpoints
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Timeout(15 * time.Second))

	r.Post("/sign", h.Sign)
	r.Post("/verify", h.Verify)
	r.Post("/validate", h.Validate)
	r.Get("/status", h.GetStatus)
	return r
}

// Sign handles POST /api/license/sign
func (h *LicenseHandler) Sign(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "license_handler.sign", "/api/license/sign")
	defer span.End()
	r = r.WithContext(ctx)

	data := &SignLicenseRequest{}
	if err := render.Decode(r, data); err != nil {
		h.renderDecodeError(w, r, err)
		return
	}

	token, lic, err := h.service.Sign(ctx, data.Identifier, data.Plan, data.ValidFrom, data.ValidUntil)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error_code", string(license.CodeOf(err))))
		h.renderLicenseError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("license.id", lic.ID),
		attribute.String("license.plan", lic.Plan),
	)
	render.JSON(w, r, SignLicenseResponse{
		Token:   token,
		License: licenseDetails(lic),
	})
}

// Verify handles POST /api/license/verify
func (h *LicenseHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "license_handler.verify", "/api/license/verify")
	defer span.End()
	r = r.WithContext(ctx)

	data := &VerifyLicenseRequest{}
	if err := render.Decode(r, data); err != nil {
		h.renderDecodeError(w, r, err)
		return
	}

	lic, serialized, err := h.service.Verify(ctx, data.Token)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error_code", string(license.CodeOf(err))))
		h.renderLicenseError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("license.id", lic.ID))
	render.JSON(w, r, VerifyLicenseResponse{
		License:    licenseDetails(lic),
		Serialized: serialized,
	})
}

// Validate handles POST /api/license/validate
func (h *LicenseHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "license_handler.validate", "/api/license/validate")
	defer span.End()
	r = r.WithContext(ctx)

	data := &ValidateLicenseRequest{}
	if err := render.Decode(r, data); err != nil {
		h.renderDecodeError(w, r, err)
		return
	}

	report, err := h.service.Validate(ctx, data.Token)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error_code", string(license.CodeOf(err))))
		h.renderLicenseError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("license.id", report.License.ID),
		attribute.String("license.status", string(report.Status)),
		attribute.Int64("license.remaining_seconds", report.Remaining),
	)
	render.JSON(w, r, ValidateLicenseResponse{
		License:          licenseDetails(report.License),
		Status:           domain.LicenseStatus(report.Status),
		RemainingSeconds: report.Remaining,
	})
}

// GetStatus handles GET /api/license/status
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "license_handler.status", "/api/license/status")
	defer span.End()
	r = r.WithContext(ctx)

	status := h.service.Status(ctx)
	span.SetAttributes(
		attribute.String("license.service_status", status.Status),
		attribute.Bool("license.sign_enabled", status.SignEnabled),
	)
	render.JSON(w, r, status)
}

// startSpan opens the handler span with the shared request attributes.
func (h *LicenseHandler) startSpan(r *http.Request, name, route string) (ctx context.Context, span trace.Span) {
	tracer := otel.Tracer("license-handler")
	return tracer.Start(r.Context(), name,
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("request_id", middleware.GetRequestID(r.Context())),
			attribute.String("component", "license_handler"),
		),
	)
}

// renderDecodeError reports a body that could not be decoded at all.
// Field-level failures carry license error codes and go through
// renderLicenseError instead.
func (h *LicenseHandler) renderDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := h.traceID(r)

	h.logger.WarnContext(r.Context(), "failed to decode request body",
		slog.String("error", err.Error()),
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
	)

	problem := licenseErrors.NewProblemDetails(
		http.StatusBadRequest,
		licenseErrors.TypeValidation,
		"Invalid Request",
		err.Error(),
		licenseErrors.LicenseInstance(r.URL.Path, traceID),
	).WithExtension("trace_id", traceID)

	render.Render(w, r, problem)
}

// renderLicenseError maps a license failure onto its problem response.
func (h *LicenseHandler) renderLicenseError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := h.traceID(r)
	code := license.CodeOf(err)

	logFn := h.logger.WarnContext
	if licenseErrors.LicenseHTTPStatus(code) >= http.StatusInternalServerError {
		logFn = h.logger.ErrorContext
	}
	logFn(r.Context(), "license operation refused",
		slog.String("error_code", string(code)),
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
	)

	render.Render(w, r, licenseErrors.MapLicenseError(err, traceID,
		licenseErrors.LicenseInstance(r.URL.Path, traceID)))
}

func (h *LicenseHandler) traceID(r *http.Request) string {
	if id := infrastructure.GetTraceID(r.Context()); id != "" {
		return id
	}
	return infrastructure.TraceIDFromContext(r.Context())
}
