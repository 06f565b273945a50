package license

import "time"

// ValidateAt checks the license window against the given instant and
// returns the number of whole seconds until expiry. Both window bounds are
// inclusive, so a license checked exactly at valid_until is still valid
// with zero seconds remaining. A license outside its window fails with
// LICENSE_PREDATED or LICENSE_EXPIRED.
func ValidateAt(l *License, now time.Time) (int64, error) {
	if l == nil {
		return 0, ErrInvalidLicenseType
	}
	switch l.StatusAt(now) {
	case StatusPredated:
		return 0, newErrorf(CodeLicensePredated, "license is not valid until %s", l.ValidFrom.UTC().Format(time.RFC3339))
	case StatusExpired:
		return 0, newErrorf(CodeLicenseExpired, "license expired at %s", l.ValidUntil.UTC().Format(time.RFC3339))
	}
	return l.ValidUntil.Unix() - now.Unix(), nil
}

// Validate checks the license window against the system clock.
func Validate(l *License) (int64, error) {
	return ValidateAt(l, SystemClock.Now())
}

// ValidateSigned verifies the token and then checks the embedded license
// window against the system clock. On success it returns the license and
// the seconds remaining; authenticity failures surface before temporal
// ones, so an expired-but-tampered token reports LICENSE_TAMPERED.
func ValidateSigned(token string, key PublicKey) (*License, int64, error) {
	l, err := Verify(token, key)
	if err != nil {
		return nil, 0, err
	}
	remaining, err := Validate(l)
	if err != nil {
		return l, 0, err
	}
	return l, remaining, nil
}

// IsValid reports whether the license window contains the current instant.
// It collapses every failure to false; callers that need the reason use
// Validate.
func IsValid(l *License) bool {
	_, err := Validate(l)
	return err == nil
}

// IsValidSigned reports whether the token is authentic and currently
// within its validity window. Every failure, cryptographic or temporal,
// collapses to false; callers that need the reason use ValidateSigned.
func IsValidSigned(token string, key PublicKey) bool {
	_, _, err := ValidateSigned(token, key)
	return err == nil
}
