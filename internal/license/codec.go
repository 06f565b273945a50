package license

import (
	"strconv"
	"strings"
)

// Separator joins the four license fields on the wire. It is reserved: no
// identifier or plan may contain it.
const Separator = "|"

// Serialize renders the license in its canonical wire form:
//
//	identifier|plan|valid_from|valid_until
//
// with both instants as base-10 Unix seconds. Serialization re-validates
// the field constraints so that a License assembled by hand cannot produce
// a record Deserialize would refuse.
func Serialize(l *License) (string, error) {
	if l == nil {
		return "", newError(CodeInvalidLicenseType)
	}
	id, err := validateSubject(l.ID, fieldIdentifier)
	if err != nil {
		return "", err
	}
	plan, err := validateSubject(l.Plan, fieldPlan)
	if err != nil {
		return "", err
	}
	from, err := instantFromTime(l.ValidFrom)
	if err != nil {
		return "", err
	}
	until, err := instantFromTime(l.ValidUntil)
	if err != nil {
		return "", err
	}
	if from.After(until) {
		return "", ErrInvalidTimeRange
	}
	fields := []string{
		id,
		plan,
		strconv.FormatInt(from.Unix(), 10),
		strconv.FormatInt(until.Unix(), 10),
	}
	return strings.Join(fields, Separator), nil
}

// Deserialize parses a canonical wire record back into a License. Leading
// and trailing separators are tolerated, interior empty fragments are not:
// after stripping boundary empties the record must hold exactly four
// fragments in field order.
func Deserialize(data string) (*License, error) {
	fragments := strings.Split(data, Separator)
	// A leading or trailing separator yields an empty boundary fragment;
	// strip those before counting.
	if len(fragments) > 0 && fragments[0] == "" {
		fragments = fragments[1:]
	}
	if len(fragments) > 0 && fragments[len(fragments)-1] == "" {
		fragments = fragments[:len(fragments)-1]
	}
	if len(fragments) != 4 {
		return nil, newErrorf(CodeInvalidLicenseFormat, "expected 4 fields, found %d", len(fragments))
	}
	id, err := validateSubject(fragments[0], fieldIdentifier)
	if err != nil {
		return nil, err
	}
	plan, err := validateSubject(fragments[1], fieldPlan)
	if err != nil {
		return nil, err
	}
	from, err := instantFromText(fragments[2])
	if err != nil {
		return nil, err
	}
	until, err := instantFromText(fragments[3])
	if err != nil {
		return nil, err
	}
	if from.After(until) {
		return nil, ErrInvalidTimeRange
	}
	return &License{ID: id, Plan: plan, ValidFrom: from, ValidUntil: until}, nil
}
