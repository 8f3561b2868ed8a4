package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind discriminates the three states a cell value can be in.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindText
)

// MissingMarker is the canonical textual form of an absent cell value.
const MissingMarker = "NA"

// Value is a tagged variant for a single cell: a number, a text, or the
// missing marker. The zero Value is Missing.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Missing is the canonical absent cell value.
var Missing = Value{}

// Number returns a numeric Value.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Text returns a textual Value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Coerce converts a raw ingested field into a Value. The empty string and
// the missing marker become Missing; anything that parses as a finite
// number becomes a Number; everything else stays Text with its original
// spacing intact (TRIM exists for cleanup).
func Coerce(raw string) Value {
	if raw == "" || raw == MissingMarker {
		return Missing
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		if !math.IsNaN(n) && !math.IsInf(n, 0) {
			return Number(n)
		}
	}
	return Text(raw)
}

// FromAny converts a decoded JSON scalar into a Value. JSON strings keep
// their textual kind (the source typed them); only the missing forms are
// normalized.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Missing
	case float64:
		return Number(t)
	case string:
		if t == "" || t == MissingMarker {
			return Missing
		}
		return Text(t)
	case bool:
		return Text(strconv.FormatBool(t))
	default:
		return Text(fmt.Sprint(t))
	}
}

// Kind reports the value's state.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the value is the missing marker.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Numeric is the single coercion point for comparisons and aggregation.
// Numbers pass through; text is parsed after trimming; missing never
// coerces.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// String renders the value for display, CSV cells, and sort keys.
// Missing renders as the canonical marker.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return MissingMarker
	}
}

// MarshalJSON writes numbers as JSON numbers, text as JSON strings, and
// missing as the canonical marker so snapshots and exports round-trip.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	default:
		return json.Marshal(MissingMarker)
	}
}

// UnmarshalJSON accepts numbers, strings (missing forms normalized), null,
// and booleans. Aggregates are rejected; a cell holds a scalar.
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.(type) {
	case nil, float64, string, bool:
		*v = FromAny(raw)
		return nil
	default:
		return fmt.Errorf("cell value must be a scalar, got %T", raw)
	}
}
