package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	licenseErrors "signet/internal/errors"
	"signet/internal/middleware"
	"signet/pkg/contracts/domain"
)

// ClaimsHandler exposes the license claims admitted by the gate. It is the
// reference consumer for gated routes: anything it serves was verified by
// the middleware in front of it.
type ClaimsHandler struct {
	logger *slog.Logger
}

// NewClaimsHandler creates a new claims handler
func NewClaimsHandler(logger *slog.Logger) *ClaimsHandler {
	return &ClaimsHandler{
		logger: logger.With(slog.String("handler", "claims")),
	}
}

// ClaimsResponse echoes the verified license from the request context.
type ClaimsResponse struct {
	License          domain.LicenseDetails `json:"license"`
	RemainingSeconds int64                 `json:"remaining_seconds"`
	Cached           bool                  `json:"cached"`
}

// Claims handles GET /api/gated/claims
func (h *ClaimsHandler) Claims(w http.ResponseWriter, r *http.Request) {
	grant, ok := middleware.GrantFromContext(r.Context())
	if !ok {
		// No grant means the route was mounted outside the gate.
		h.logger.ErrorContext(r.Context(), "claims route reached without a license grant",
			slog.String("path", r.URL.Path),
		)
		problem := licenseErrors.NewProblemDetails(
			http.StatusInternalServerError,
			licenseErrors.TypeInternal,
			"Internal Server Error",
			"The request reached a gated handler without passing the license gate.",
			r.URL.Path,
		)
		render.Render(w, r, problem)
		return
	}

	render.JSON(w, r, ClaimsResponse{
		License:          licenseDetails(grant.License),
		RemainingSeconds: grant.Remaining,
		Cached:           grant.Cached,
	})
}
