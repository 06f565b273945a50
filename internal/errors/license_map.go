package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"signet/internal/license"
)

// LicenseHTTPStatus maps a license error code to the HTTP status it should
// produce. Malformed input is the caller's fault, tampering is an
// authentication failure, a window violation is a refusal for an otherwise
// authentic token, and unusable key material means the service itself is
// misconfigured.
func LicenseHTTPStatus(code license.ErrorCode) int {
	switch code {
	case license.CodeLicenseTampered:
		return http.StatusUnauthorized
	case license.CodeLicensePredated, license.CodeLicenseExpired:
		return http.StatusForbidden
	case license.CodeSecretKeyNotConfigured, license.CodePublicKeyNotConfigured,
		license.CodeInvalidSecretKeyType, license.CodeInvalidPublicKeyType,
		license.CodeInvalidSecretKeySize, license.CodeInvalidPublicKeySize,
		license.CodeSecretKeyUndecodable, license.CodePublicKeyUndecodable:
		return http.StatusServiceUnavailable
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// FromLicense converts a license failure into an APIError carrying the
// license error code and message verbatim.
func FromLicense(err error) *APIError {
	var lerr *license.Error
	if !errors.As(err, &lerr) {
		return NewWithDetails(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", err.Error())
	}
	return New(LicenseHTTPStatus(lerr.Code), string(lerr.Code), lerr.Error())
}

// licenseProblemType returns the RFC 7807 type URI for a license error code.
func licenseProblemType(code license.ErrorCode) string {
	switch code {
	case license.CodeEmptySignedLicense:
		return TypeLicenseMissing
	case license.CodeLicenseTampered:
		return TypeLicenseTampered
	case license.CodeLicensePredated:
		return TypeLicensePredated
	case license.CodeLicenseExpired:
		return TypeLicenseExpired
	case license.CodeSecretKeyNotConfigured, license.CodePublicKeyNotConfigured,
		license.CodeInvalidSecretKeyType, license.CodeInvalidPublicKeyType,
		license.CodeInvalidSecretKeySize, license.CodeInvalidPublicKeySize,
		license.CodeSecretKeyUndecodable, license.CodePublicKeyUndecodable:
		return TypeKeysNotConfigured
	default:
		return TypeLicenseMalformed
	}
}

// licenseProblemTitle returns the human title for a license error code.
func licenseProblemTitle(code license.ErrorCode) string {
	switch code {
	case license.CodeEmptySignedLicense:
		return "License Token Missing"
	case license.CodeLicenseTampered:
		return "License Tampered"
	case license.CodeLicensePredated:
		return "License Not Yet Valid"
	case license.CodeLicenseExpired:
		return "License Expired"
	case license.CodeSecretKeyNotConfigured, license.CodePublicKeyNotConfigured,
		license.CodeInvalidSecretKeyType, license.CodeInvalidPublicKeyType,
		license.CodeInvalidSecretKeySize, license.CodeInvalidPublicKeySize,
		license.CodeSecretKeyUndecodable, license.CodePublicKeyUndecodable:
		return "License Keys Not Configured"
	default:
		return "License Token Invalid"
	}
}

// MapLicenseError maps a license failure to an RFC 7807 problem response.
// The trace ID ties the response to the request log lines; the instance
// records which endpoint refused the request.
func MapLicenseError(err error, traceID, instance string) render.Renderer {
	var lerr *license.Error
	if !errors.As(err, &lerr) {
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request.",
			instance,
		).WithExtension("trace_id", traceID)
	}

	status := LicenseHTTPStatus(lerr.Code)
	detail := lerr.Error()
	if status == http.StatusServiceUnavailable {
		// Key configuration details stay server-side; the client only
		// learns the service cannot currently serve it.
		detail = "License operations are temporarily unavailable."
	}

	return NewProblemDetails(
		status,
		licenseProblemType(lerr.Code),
		licenseProblemTitle(lerr.Code),
		detail,
		instance,
	).WithExtension("trace_id", traceID).
		WithExtension("error_code", string(lerr.Code))
}

// LicenseInstance formats the RFC 7807 instance URI for a license refusal.
func LicenseInstance(path, traceID string) string {
	return fmt.Sprintf("%s#trace-%s", path, traceID)
}
