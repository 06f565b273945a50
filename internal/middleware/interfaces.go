package middleware

import "signet/internal/license"

// TokenValidator verifies and validates signed license tokens.
// Satisfied by license.Service; declared here so tests can substitute
// their own implementation.
type TokenValidator interface {
	ValidateSigned(token string) (*license.License, int64, error)
}
