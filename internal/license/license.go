package license

import (
	"time"
)

// License is the structured access grant prior to any encoding. Both
// timestamps are held in UTC; the validity window is inclusive on both ends.
type License struct {
	ID         string    `json:"identifier"`
	Plan       string    `json:"plan"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
}

// New builds a License from loosely typed inputs, resolving each value
// through the per-field conversion rules: identifiers and plans accept text
// and scalar values with a canonical text form, timestamps accept instants,
// integer or fractional epoch seconds, and integer epoch text. It is the
// construction path for callers sitting at a dynamic boundary (JSON bodies,
// CLI flags); code holding typed values may build the struct directly and
// rely on Serialize to enforce the same invariants.
func New(id, plan, validFrom, validUntil any) (*License, error) {
	idText, err := coerceSubject(id, fieldIdentifier)
	if err != nil {
		return nil, err
	}
	planText, err := coerceSubject(plan, fieldPlan)
	if err != nil {
		return nil, err
	}
	from, err := coerceInstant(validFrom)
	if err != nil {
		return nil, err
	}
	until, err := coerceInstant(validUntil)
	if err != nil {
		return nil, err
	}
	if from.After(until) {
		return nil, ErrInvalidTimeRange
	}
	return &License{
		ID:         idText,
		Plan:       planText,
		ValidFrom:  from,
		ValidUntil: until,
	}, nil
}

// Equal reports whether two licenses describe the same grant. Timestamps
// are compared at second granularity, matching the wire encoding.
func (l *License) Equal(other *License) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.ID == other.ID &&
		l.Plan == other.Plan &&
		l.ValidFrom.Unix() == other.ValidFrom.Unix() &&
		l.ValidUntil.Unix() == other.ValidUntil.Unix()
}

// Status is the temporal state of a license relative to some instant.
// A license only ever moves forward: predated, then active, then expired.
type Status string

const (
	StatusPredated Status = "predated"
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
)

// StatusAt returns the temporal state of the license at the given instant.
// The window is inclusive on both ends.
func (l *License) StatusAt(now time.Time) Status {
	now = now.UTC()
	if now.Before(l.ValidFrom.UTC()) {
		return StatusPredated
	}
	if now.After(l.ValidUntil.UTC()) {
		return StatusExpired
	}
	return StatusActive
}
