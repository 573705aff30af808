package jobboard

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/jobboard/internal/ledger"
)

// =============================================================================
// Move Field Parsers
// =============================================================================

// maxSafeInteger is the largest integer a float64 represents exactly. Salary,
// timestamps and counters must stay below it so they survive JSON consumers.
const maxSafeInteger = 1<<53 - 1

// structFields unwraps a nested struct rendered as {"type": ..., "fields": {...}}.
func structFields(v gjson.Result) gjson.Result {
	if inner := v.Get("fields"); inner.IsObject() {
		return inner
	}
	return v
}

func requireField(fields gjson.Result, name string) (gjson.Result, error) {
	v := fields.Get(name)
	if !v.Exists() {
		return v, fmt.Errorf("missing")
	}
	return v, nil
}

// ParseString parses a required string field.
func ParseString(fields gjson.Result, name string) (string, error) {
	v, err := requireField(fields, name)
	if err != nil {
		return "", err
	}
	return stringValue(v)
}

// ParseOptionalString parses a string field, treating absence and null as "".
func ParseOptionalString(fields gjson.Result, name string) (string, error) {
	v := fields.Get(name)
	if !v.Exists() || v.Type == gjson.Null {
		return "", nil
	}
	return stringValue(v)
}

func stringValue(v gjson.Result) (string, error) {
	if v.Type != gjson.String {
		return "", fmt.Errorf("expected string, got %s", v.Type)
	}
	return v.Str, nil
}

// ParseUint64 parses a u64 rendered as a decimal string or a JSON number.
// Values are never wrapped: overflow and negatives are errors.
func ParseUint64(fields gjson.Result, name string) (uint64, error) {
	v, err := requireField(fields, name)
	if err != nil {
		return 0, err
	}
	return uintValue(v)
}

// ParseSafeUint64 is ParseUint64 restricted to the 53-bit safe range.
func ParseSafeUint64(fields gjson.Result, name string) (uint64, error) {
	n, err := ParseUint64(fields, name)
	if err != nil {
		return 0, err
	}
	if n > maxSafeInteger {
		return 0, fmt.Errorf("value %d exceeds safe integer range", n)
	}
	return n, nil
}

func uintValue(v gjson.Result) (uint64, error) {
	var raw string
	switch v.Type {
	case gjson.String:
		raw = v.Str
	case gjson.Number:
		raw = v.Raw
	default:
		return 0, fmt.Errorf("expected integer, got %s", v.Type)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse integer %q: %w", raw, err)
	}
	return n, nil
}

// ParseBoolean parses a required bool field.
func ParseBoolean(fields gjson.Result, name string) (bool, error) {
	v, err := requireField(fields, name)
	if err != nil {
		return false, err
	}
	if !v.IsBool() {
		return false, fmt.Errorf("expected bool, got %s", v.Type)
	}
	return v.Bool(), nil
}

// ParseAddress parses a required address and returns it normalized.
func ParseAddress(fields gjson.Result, name string) (string, error) {
	s, err := ParseString(fields, name)
	if err != nil {
		return "", err
	}
	return ledger.NormalizeAddress(s)
}

// ParseID parses an object id, accepting both a bare id and a UID struct
// ({"id": "0x..."}).
func ParseID(fields gjson.Result, name string) (string, error) {
	v, err := requireField(fields, name)
	if err != nil {
		return "", err
	}
	return idValue(v)
}

func idValue(v gjson.Result) (string, error) {
	if v.IsObject() {
		v = structFields(v).Get("id")
		if v.IsObject() {
			// ID { bytes } nested inside UID.
			v = structFields(v).Get("bytes")
		}
	}
	s, err := stringValue(v)
	if err != nil {
		return "", err
	}
	return ledger.NormalizeAddress(s)
}

// optionValue resolves an Option<T>. It accepts null, a bare value, and the
// vector encodings {"vec": [v]} / {"fields": {"vec": [v]}}.
func optionValue(fields gjson.Result, name string) (gjson.Result, bool, error) {
	v := fields.Get(name)
	if !v.Exists() || v.Type == gjson.Null {
		return v, false, nil
	}
	if !v.IsObject() {
		return v, true, nil
	}
	vec := structFields(v).Get("vec")
	if !vec.IsArray() {
		return v, false, fmt.Errorf("malformed option")
	}
	items := vec.Array()
	switch len(items) {
	case 0:
		return v, false, nil
	case 1:
		return items[0], true, nil
	default:
		return v, false, fmt.Errorf("option holds %d values", len(items))
	}
}

// ParseOptionalSafeUint64 parses an Option<u64> within the safe integer range.
func ParseOptionalSafeUint64(fields gjson.Result, name string) (*uint64, error) {
	v, ok, err := optionValue(fields, name)
	if err != nil || !ok {
		return nil, err
	}
	n, err := uintValue(v)
	if err != nil {
		return nil, err
	}
	if n > maxSafeInteger {
		return nil, fmt.Errorf("value %d exceeds safe integer range", n)
	}
	return &n, nil
}

// ParseOptionalAddress parses an Option<address>.
func ParseOptionalAddress(fields gjson.Result, name string) (*string, error) {
	v, ok, err := optionValue(fields, name)
	if err != nil || !ok {
		return nil, err
	}
	s, err := stringValue(v)
	if err != nil {
		return nil, err
	}
	addr, err := ledger.NormalizeAddress(s)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// ParseStringVector parses a vector<String>; absent decodes to an empty slice.
func ParseStringVector(fields gjson.Result, name string) ([]string, error) {
	v := fields.Get(name)
	if !v.Exists() || v.Type == gjson.Null {
		return []string{}, nil
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("expected array, got %s", v.Type)
	}
	items := v.Array()
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, err := stringValue(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ParseIDVector parses a required vector<ID>.
func ParseIDVector(fields gjson.Result, name string) ([]string, error) {
	v, err := requireField(fields, name)
	if err != nil {
		return nil, err
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("expected array, got %s", v.Type)
	}
	items := v.Array()
	out := make([]string, 0, len(items))
	for i, item := range items {
		id, err := idValue(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, id)
	}
	return out, nil
}
