package design

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ChangeKind discriminates the two shapes a parameter change can take.
type ChangeKind int

const (
	// Absolute is a literal value already normalized to the field's base
	// unit, e.g. {"trainHeadLength": 11000}.
	Absolute ChangeKind = iota
	// RelativeOffset is a signed adjustment expressed against a named
	// field, e.g. {"trainHeadLength": "trainHeadLength + 1000"}.
	RelativeOffset
)

// ChangeValue is one entry of the interpreter's output, decided into an
// explicit variant at decode time. Values that match neither shape are
// rejected with a ResolutionError rather than carried along as raw strings.
type ChangeValue struct {
	Kind   ChangeKind
	Value  int    // Absolute only
	Field  string // RelativeOffset only: the field the offset is bound to
	Offset int    // RelativeOffset only: signed offset
}

// ResolutionError reports an interpreter change value that cannot be turned
// into a literal numeric delta.
type ResolutionError struct {
	Field string
	Raw   string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve change for %q: %s", e.Field, e.Raw)
}

var relativeExpr = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9]*)\s*([+-])\s*(\d+)\s*$`)

// UnmarshalJSON accepts either a JSON number or a relative-offset string of
// the form "field + 1000" / "field - 500". Anything else fails.
func (v *ChangeValue) UnmarshalJSON(data []byte) error {
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		f, err := num.Float64()
		if err != nil {
			return &ResolutionError{Raw: num.String()}
		}
		*v = ChangeValue{Kind: Absolute, Value: int(f)}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return &ResolutionError{Raw: strings.TrimSpace(string(data))}
	}

	m := relativeExpr.FindStringSubmatch(raw)
	if m == nil {
		return &ResolutionError{Raw: raw}
	}
	offset, err := strconv.Atoi(m[3])
	if err != nil {
		return &ResolutionError{Raw: raw}
	}
	if m[2] == "-" {
		offset = -offset
	}
	*v = ChangeValue{Kind: RelativeOffset, Field: m[1], Offset: offset}
	return nil
}

// MarshalJSON writes the value back in the interpreter's wire shape, which
// keeps ledger audit rows readable.
func (v ChangeValue) MarshalJSON() ([]byte, error) {
	if v.Kind == Absolute {
		return json.Marshal(v.Value)
	}
	op := "+"
	offset := v.Offset
	if offset < 0 {
		op = "-"
		offset = -offset
	}
	return json.Marshal(fmt.Sprintf("%s %s %d", v.Field, op, offset))
}

// DecodeChanges decodes a raw interpreter JSON object into tagged change
// values, attaching the offending field name to any shape error.
func DecodeChanges(raw []byte) (map[string]ChangeValue, error) {
	var shapeless map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shapeless); err != nil {
		return nil, fmt.Errorf("parsed changes are not a JSON object: %w", err)
	}

	changes := make(map[string]ChangeValue, len(shapeless))
	for field, value := range shapeless {
		var cv ChangeValue
		if err := cv.UnmarshalJSON(value); err != nil {
			var resErr *ResolutionError
			if errors.As(err, &resErr) {
				resErr.Field = field
			}
			return nil, err
		}
		changes[field] = cv
	}
	return changes, nil
}
