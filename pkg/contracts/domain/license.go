// Package domain contains the client-facing domain models for the signet
// license service. These types are the single source of truth for the
// shapes and constants that cross the API boundary; server internals and
// external consumers both build against them.
package domain

import (
	"time"
)

// LicenseDetails is the structured form of a license as it appears in API
// responses. Timestamps render as RFC 3339 UTC instants.
type LicenseDetails struct {
	Identifier string    `json:"identifier"`
	Plan       string    `json:"plan"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
}

// LicenseStatus is the temporal state of a license relative to the server
// clock. The validity window is inclusive on both ends.
type LicenseStatus string

const (
	LicenseStatusPredated LicenseStatus = "predated"
	LicenseStatusActive   LicenseStatus = "active"
	LicenseStatusExpired  LicenseStatus = "expired"
)

// Wire format facts. A serialized license joins its four fields with the
// separator; a signed token is the Ed25519 signature followed by the
// serialized record, base64url encoded without padding.
const (
	// FieldSeparator joins license fields in serialized form, which is why
	// identifiers and plans must never contain it.
	FieldSeparator = "|"

	// SignatureSize is the length in bytes of the Ed25519 signature prefix
	// inside a decoded token.
	SignatureSize = 64

	// PublicKeySize and SecretKeySize are the raw key lengths in bytes.
	// Keys travel base64url encoded without padding.
	PublicKeySize = 32
	SecretKeySize = 64
)

// Error codes reported by the license API. Problem responses carry the
// code in their error_code extension; CLI tools print it on stderr.
const (
	ErrCodeInvalidLicenseType   = "INVALID_LICENSE_TYPE"
	ErrCodeInvalidFieldType     = "INVALID_FIELD_TYPE"
	ErrCodeEmptyIdentifier      = "EMPTY_IDENTIFIER"
	ErrCodeEmptyPlan            = "EMPTY_PLAN"
	ErrCodeReservedCharacter    = "RESERVED_CHARACTER"
	ErrCodeInvalidTimestamp     = "INVALID_TIMESTAMP"
	ErrCodeInvalidTimeRange     = "INVALID_TIME_RANGE"
	ErrCodeInvalidLicenseFormat = "INVALID_LICENSE_FORMAT"

	ErrCodeSecretKeyNotConfigured = "SECRET_KEY_NOT_CONFIGURED"
	ErrCodePublicKeyNotConfigured = "PUBLIC_KEY_NOT_CONFIGURED"
	ErrCodeInvalidSecretKeyType   = "INVALID_SECRET_KEY_TYPE"
	ErrCodeInvalidPublicKeyType   = "INVALID_PUBLIC_KEY_TYPE"
	ErrCodeInvalidSecretKeySize   = "INVALID_SECRET_KEY_SIZE"
	ErrCodeInvalidPublicKeySize   = "INVALID_PUBLIC_KEY_SIZE"
	ErrCodeSecretKeyUndecodable   = "SECRET_KEY_UNDECODABLE"
	ErrCodePublicKeyUndecodable   = "PUBLIC_KEY_UNDECODABLE"

	ErrCodeEmptySignedLicense       = "EMPTY_SIGNED_LICENSE"
	ErrCodeInvalidSignedLicenseType = "INVALID_SIGNED_LICENSE_TYPE"
	ErrCodeEncodingFailed           = "ENCODING_FAILED"
	ErrCodeDecodingFailed           = "DECODING_FAILED"
	ErrCodeSignatureNotFound        = "SIGNATURE_NOT_FOUND"

	ErrCodeLicenseTampered = "LICENSE_TAMPERED"

	ErrCodeLicensePredated = "LICENSE_PREDATED"
	ErrCodeLicenseExpired  = "LICENSE_EXPIRED"
)
