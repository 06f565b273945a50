package license

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable machine-readable identifier attached to every
// failure produced by this package. Codes are part of the protocol: callers
// and HTTP layers dispatch on them, never on message text.
type ErrorCode string

// The closed set of error codes. Codes never change once issued; new ones
// may be appended.
const (
	// License record shape.
	CodeInvalidLicenseType   ErrorCode = "INVALID_LICENSE_TYPE"
	CodeInvalidFieldType     ErrorCode = "INVALID_FIELD_TYPE"
	CodeEmptyIdentifier      ErrorCode = "EMPTY_IDENTIFIER"
	CodeEmptyPlan            ErrorCode = "EMPTY_PLAN"
	CodeReservedCharacter    ErrorCode = "RESERVED_CHARACTER"
	CodeInvalidTimestamp     ErrorCode = "INVALID_TIMESTAMP"
	CodeInvalidTimeRange     ErrorCode = "INVALID_TIME_RANGE"
	CodeInvalidLicenseFormat ErrorCode = "INVALID_LICENSE_FORMAT"

	// Key configuration and shape.
	CodeSecretKeyNotConfigured ErrorCode = "SECRET_KEY_NOT_CONFIGURED"
	CodePublicKeyNotConfigured ErrorCode = "PUBLIC_KEY_NOT_CONFIGURED"
	CodeInvalidSecretKeyType   ErrorCode = "INVALID_SECRET_KEY_TYPE"
	CodeInvalidPublicKeyType   ErrorCode = "INVALID_PUBLIC_KEY_TYPE"
	CodeInvalidSecretKeySize   ErrorCode = "INVALID_SECRET_KEY_SIZE"
	CodeInvalidPublicKeySize   ErrorCode = "INVALID_PUBLIC_KEY_SIZE"
	CodeSecretKeyUndecodable   ErrorCode = "SECRET_KEY_UNDECODABLE"
	CodePublicKeyUndecodable   ErrorCode = "PUBLIC_KEY_UNDECODABLE"

	// Token envelope shape.
	CodeEmptySignedLicense       ErrorCode = "EMPTY_SIGNED_LICENSE"
	CodeInvalidSignedLicenseType ErrorCode = "INVALID_SIGNED_LICENSE_TYPE"
	CodeEncodingFailed           ErrorCode = "ENCODING_FAILED"
	CodeDecodingFailed           ErrorCode = "DECODING_FAILED"
	CodeSignatureNotFound        ErrorCode = "SIGNATURE_NOT_FOUND"

	// Authenticity.
	CodeLicenseTampered ErrorCode = "LICENSE_TAMPERED"

	// Temporal state.
	CodeLicensePredated ErrorCode = "LICENSE_PREDATED"
	CodeLicenseExpired  ErrorCode = "LICENSE_EXPIRED"
)

// defaultMessages holds the human-readable text used when an Error carries
// no message override.
var defaultMessages = map[ErrorCode]string{
	CodeInvalidLicenseType:   "license must be a license record",
	CodeInvalidFieldType:     "license field has an unsupported type",
	CodeEmptyIdentifier:      "license identifier must not be empty",
	CodeEmptyPlan:            "license plan must not be empty",
	CodeReservedCharacter:    "license field contains the reserved separator character",
	CodeInvalidTimestamp:     "license timestamp is not a valid instant",
	CodeInvalidTimeRange:     "license valid_from must not be after valid_until",
	CodeInvalidLicenseFormat: "serialized license must contain exactly four fields",

	CodeSecretKeyNotConfigured: "no secret key is configured",
	CodePublicKeyNotConfigured: "no public key is configured",
	CodeInvalidSecretKeyType:   "secret key must be raw bytes",
	CodeInvalidPublicKeyType:   "public key must be raw bytes",
	CodeInvalidSecretKeySize:   "secret key must be exactly 64 bytes",
	CodeInvalidPublicKeySize:   "public key must be exactly 32 bytes",
	CodeSecretKeyUndecodable:   "secret key is not valid base64url text",
	CodePublicKeyUndecodable:   "public key is not valid base64url text",

	CodeEmptySignedLicense:       "signed license must not be empty",
	CodeInvalidSignedLicenseType: "signed license must be text",
	CodeEncodingFailed:           "failed to encode signed license",
	CodeDecodingFailed:           "signed license is not valid base64url text",
	CodeSignatureNotFound:        "signed license is too short to contain a signature",

	CodeLicenseTampered: "license signature verification failed",

	CodeLicensePredated: "license is not valid yet",
	CodeLicenseExpired:  "license has expired",
}

// Error is the typed failure value returned by every operation in this
// package. Code identifies the failure kind; Message optionally overrides
// the default human-readable text for that code.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if msg, ok := defaultMessages[e.Code]; ok {
		return msg
	}
	return string(e.Code)
}

// Is reports whether target is a license Error with the same code, so that
// errors.Is(err, ErrLicenseExpired) matches regardless of message overrides.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// newError returns the bare Error for code with its default message.
func newError(code ErrorCode) *Error {
	return &Error{Code: code}
}

// newErrorf returns an Error for code with a formatted message override.
func newErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinel errors for errors.Is dispatch. Operations may return richer
// instances of the same code with contextual messages.
var (
	ErrInvalidLicenseType   = newError(CodeInvalidLicenseType)
	ErrInvalidFieldType     = newError(CodeInvalidFieldType)
	ErrEmptyIdentifier      = newError(CodeEmptyIdentifier)
	ErrEmptyPlan            = newError(CodeEmptyPlan)
	ErrReservedCharacter    = newError(CodeReservedCharacter)
	ErrInvalidTimestamp     = newError(CodeInvalidTimestamp)
	ErrInvalidTimeRange     = newError(CodeInvalidTimeRange)
	ErrInvalidLicenseFormat = newError(CodeInvalidLicenseFormat)

	ErrSecretKeyNotConfigured = newError(CodeSecretKeyNotConfigured)
	ErrPublicKeyNotConfigured = newError(CodePublicKeyNotConfigured)
	ErrInvalidSecretKeyType   = newError(CodeInvalidSecretKeyType)
	ErrInvalidPublicKeyType   = newError(CodeInvalidPublicKeyType)
	ErrInvalidSecretKeySize   = newError(CodeInvalidSecretKeySize)
	ErrInvalidPublicKeySize   = newError(CodeInvalidPublicKeySize)
	ErrSecretKeyUndecodable   = newError(CodeSecretKeyUndecodable)
	ErrPublicKeyUndecodable   = newError(CodePublicKeyUndecodable)

	ErrEmptySignedLicense = newError(CodeEmptySignedLicense)
	ErrDecodingFailed     = newError(CodeDecodingFailed)
	ErrSignatureNotFound  = newError(CodeSignatureNotFound)
	ErrLicenseTampered    = newError(CodeLicenseTampered)

	ErrLicensePredated = newError(CodeLicensePredated)
	ErrLicenseExpired  = newError(CodeLicenseExpired)
)

// CodeOf extracts the ErrorCode from err, unwrapping as needed. It returns
// the empty code when err is nil or not a license Error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Code
	}
	return ""
}
