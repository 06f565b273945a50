package license

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Epoch bounds for the representable instant range. Timestamps are limited
// to the four-digit ISO 8601 calendar (years -9999 through 9999) so that
// every encodable instant survives a round trip through any conforming
// implementation of the wire format.
const (
	minUnixSeconds = -377705116800 // -9999-01-01T00:00:00Z
	maxUnixSeconds = 253402300799  // 9999-12-31T23:59:59Z
)

// field names the license field being coerced, selecting the error code and
// message wording for its failures.
type field int

const (
	fieldIdentifier field = iota
	fieldPlan
)

func (f field) String() string {
	if f == fieldPlan {
		return "plan"
	}
	return "identifier"
}

func (f field) emptyError() *Error {
	if f == fieldPlan {
		return ErrEmptyPlan
	}
	return ErrEmptyIdentifier
}

// coerceSubject resolves one of the accepted source variants for the
// identifier and plan fields into its canonical text form. Text passes
// through as-is; scalar values convert to their natural representation;
// nil converts to the empty string and is then rejected by the emptiness
// check. Composite values are refused outright.
func coerceSubject(v any, f field) (string, error) {
	var text string
	switch v := v.(type) {
	case string:
		text = v
	case bool:
		text = strconv.FormatBool(v)
	case int:
		text = strconv.FormatInt(int64(v), 10)
	case int8:
		text = strconv.FormatInt(int64(v), 10)
	case int16:
		text = strconv.FormatInt(int64(v), 10)
	case int32:
		text = strconv.FormatInt(int64(v), 10)
	case int64:
		text = strconv.FormatInt(v, 10)
	case uint:
		text = strconv.FormatUint(uint64(v), 10)
	case uint8:
		text = strconv.FormatUint(uint64(v), 10)
	case uint16:
		text = strconv.FormatUint(uint64(v), 10)
	case uint32:
		text = strconv.FormatUint(uint64(v), 10)
	case uint64:
		text = strconv.FormatUint(v, 10)
	case float32:
		text = strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		text = strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		text = v.String()
	case nil:
		text = ""
	default:
		return "", newErrorf(CodeInvalidFieldType, "license %s has unsupported type %T", f, v)
	}
	return validateSubject(text, f)
}

// validateSubject applies the post-conversion rules shared by serialization
// and deserialization: surrounding whitespace is trimmed, the result must be
// non-empty and must not contain the field separator.
func validateSubject(text string, f field) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", f.emptyError()
	}
	if strings.Contains(text, Separator) {
		return "", newErrorf(CodeReservedCharacter, "license %s must not contain %q", f, Separator)
	}
	return text, nil
}

// coerceInstant resolves one of the accepted source variants for the
// validity timestamps into a UTC instant: native instants pass through,
// integers are epoch seconds, floats are epoch seconds truncated toward
// zero, and text must parse as an integer epoch value. Values outside the
// representable instant range are rejected.
func coerceInstant(v any) (time.Time, error) {
	switch v := v.(type) {
	case time.Time:
		return instantFromTime(v)
	case *time.Time:
		if v == nil {
			return time.Time{}, newError(CodeInvalidTimestamp)
		}
		return instantFromTime(*v)
	case int:
		return instantFromUnix(int64(v))
	case int8:
		return instantFromUnix(int64(v))
	case int16:
		return instantFromUnix(int64(v))
	case int32:
		return instantFromUnix(int64(v))
	case int64:
		return instantFromUnix(v)
	case uint:
		return instantFromUint(uint64(v))
	case uint8:
		return instantFromUnix(int64(v))
	case uint16:
		return instantFromUnix(int64(v))
	case uint32:
		return instantFromUnix(int64(v))
	case uint64:
		return instantFromUint(v)
	case float32:
		return instantFromFloat(float64(v))
	case float64:
		return instantFromFloat(v)
	case json.Number:
		return instantFromNumber(v)
	case string:
		return instantFromText(v)
	default:
		return time.Time{}, newErrorf(CodeInvalidTimestamp, "license timestamp has unsupported type %T", v)
	}
}

func instantFromTime(t time.Time) (time.Time, error) {
	if t.Unix() < minUnixSeconds || t.Unix() > maxUnixSeconds {
		return time.Time{}, newErrorf(CodeInvalidTimestamp, "instant %d is outside the representable range", t.Unix())
	}
	return t.UTC(), nil
}

func instantFromUnix(sec int64) (time.Time, error) {
	if sec < minUnixSeconds || sec > maxUnixSeconds {
		return time.Time{}, newErrorf(CodeInvalidTimestamp, "epoch value %d is outside the representable range", sec)
	}
	return time.Unix(sec, 0).UTC(), nil
}

func instantFromUint(sec uint64) (time.Time, error) {
	if sec > maxUnixSeconds {
		return time.Time{}, newErrorf(CodeInvalidTimestamp, "epoch value %d is outside the representable range", sec)
	}
	return time.Unix(int64(sec), 0).UTC(), nil
}

func instantFromFloat(sec float64) (time.Time, error) {
	// NaN fails both bound comparisons below only with an explicit check.
	if sec != sec || sec < minUnixSeconds || sec > maxUnixSeconds {
		return time.Time{}, newErrorf(CodeInvalidTimestamp, "epoch value %v is outside the representable range", sec)
	}
	return time.Unix(int64(sec), 0).UTC(), nil
}

// instantFromNumber handles json.Number, which may carry a fractional part;
// fractional epochs truncate toward zero like floats.
func instantFromNumber(n json.Number) (time.Time, error) {
	if sec, err := n.Int64(); err == nil {
		return instantFromUnix(sec)
	}
	f, err := n.Float64()
	if err != nil {
		return time.Time{}, newErrorf(CodeInvalidTimestamp, "timestamp %q is not an epoch value", n.String())
	}
	return instantFromFloat(f)
}

// instantFromText handles plain text, which must be integer epoch seconds;
// this is also the parse applied to wire-format timestamp fragments.
func instantFromText(text string) (time.Time, error) {
	sec, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return time.Time{}, newErrorf(CodeInvalidTimestamp, "timestamp text %q is not an integer epoch value", text)
	}
	return instantFromUnix(sec)
}
