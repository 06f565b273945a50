// Package v1 defines the request payloads accepted by the signet HTTP API.
// Response shapes live with their handlers; these types exist so that
// external clients can marshal requests without hand-writing JSON.
package v1

// SignLicenseRequest asks the server to issue a signed token for a license
// record. Identifier and plan accept any value with a canonical text form
// (text, booleans, numbers); the timestamps accept RFC 3339 text, integer
// or fractional epoch seconds, and integer epoch text. Leaving identifier
// unset makes the server mint a random one.
type SignLicenseRequest struct {
	Identifier any `json:"identifier,omitempty"`
	Plan       any `json:"plan"`
	ValidFrom  any `json:"valid_from"`
	ValidUntil any `json:"valid_until"`
}

// VerifyLicenseRequest asks the server to check a token's authenticity and
// return the license it carries. Verification ignores the validity window.
type VerifyLicenseRequest struct {
	Token string `json:"token"`
}

// ValidateLicenseRequest asks the server to check a token's authenticity
// and its validity window against the server clock.
type ValidateLicenseRequest struct {
	Token string `json:"token"`
}
