package extension

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
)

// DateLayout is the stored form of DATE values
const DateLayout = "2006-01-02"

// ParseInteger coerces an INTEGER value
func ParseInteger(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

// ParseDecimal coerces a DECIMAL value
func ParseDecimal(raw string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}

// ParseBoolean coerces a BOOLEAN value
func ParseBoolean(raw string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(raw))
}

// ParseDate coerces a DATE value
func ParseDate(raw string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(raw))
}

// Coerce converts a stored string into the Go value of its field type:
// int64, float64, bool, time.Time or string.
func Coerce(t FieldType, raw string) (interface{}, error) {
	switch t {
	case FieldTypeInteger:
		return ParseInteger(raw)
	case FieldTypeDecimal:
		return ParseDecimal(raw)
	case FieldTypeBoolean:
		return ParseBoolean(raw)
	case FieldTypeDate:
		return ParseDate(raw)
	case FieldTypeString, FieldTypeMultiLineString, FieldTypeListOfValues:
		return raw, nil
	}
	return nil, fmt.Errorf("unknown field type %q", t)
}

// Format converts a Go value into its stored string form
func Format(t FieldType, v interface{}) (string, error) {
	switch t {
	case FieldTypeInteger:
		switch n := v.(type) {
		case int:
			return strconv.FormatInt(int64(n), 10), nil
		case int32:
			return strconv.FormatInt(int64(n), 10), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		}
	case FieldTypeDecimal:
		switch n := v.(type) {
		case float32:
			return strconv.FormatFloat(float64(n), 'f', -1, 32), nil
		case float64:
			return strconv.FormatFloat(n, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(n), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		}
	case FieldTypeBoolean:
		if b, ok := v.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	case FieldTypeDate:
		if d, ok := v.(time.Time); ok {
			return d.Format(DateLayout), nil
		}
	case FieldTypeString, FieldTypeMultiLineString, FieldTypeListOfValues:
		if s, ok := v.(string); ok {
			return s, nil
		}
	default:
		return "", fmt.Errorf("unknown field type %q", t)
	}
	return "", fmt.Errorf("cannot format %T as %s", v, t)
}

// EncodeOptions serializes LOV options, enforcing MaxOptionsLength
func EncodeOptions(options []LOVOption) (string, error) {
	if len(options) == 0 {
		return "", nil
	}
	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to marshal options: %w", err)
	}
	if len(data) > MaxOptionsLength {
		return "", apperrors.InvalidArgument("extension.EncodeOptions",
			"serialized options are %d chars, limit is %d", len(data), MaxOptionsLength)
	}
	return string(data), nil
}

// DecodeOptions parses serialized LOV options
func DecodeOptions(raw string) ([]LOVOption, error) {
	if raw == "" {
		return nil, nil
	}
	var options []LOVOption
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	return options, nil
}

// ValidateSpec checks a field definition before it is stored
func ValidateSpec(spec FieldSpec) error {
	const op = "extension.ValidateSpec"
	if strings.TrimSpace(spec.Name) == "" {
		return apperrors.InvalidArgument(op, "field name is required")
	}
	if !spec.Type.Valid() {
		return apperrors.InvalidArgument(op, "unknown field type %q", spec.Type)
	}
	if spec.MaxLength < 0 {
		return apperrors.InvalidArgument(op, "max length must not be negative")
	}
	if spec.Type == FieldTypeListOfValues {
		if len(spec.Options) == 0 {
			return apperrors.InvalidArgument(op, "field %q of type %s requires options", spec.Name, spec.Type)
		}
		for _, o := range spec.Options {
			if o.Value == "" {
				return apperrors.InvalidArgument(op, "field %q has an option without a value", spec.Name)
			}
		}
		if _, err := EncodeOptions(spec.Options); err != nil {
			return err
		}
	}
	return nil
}

// ValidateValue checks a raw value against its field definition. Empty
// values are only rejected for required fields.
func ValidateValue(f *Field, raw string) error {
	const op = "extension.ValidateValue"
	if raw == "" {
		if f.Required {
			return apperrors.InvalidArgument(op, "field %q is required", f.Name)
		}
		return nil
	}
	if f.MaxLength > 0 && utf8.RuneCountInString(raw) > f.MaxLength {
		return apperrors.InvalidArgument(op, "field %q exceeds max length %d", f.Name, f.MaxLength)
	}
	if f.Type == FieldTypeListOfValues {
		for _, o := range f.Options {
			if o.Value == raw {
				return nil
			}
		}
		return apperrors.InvalidArgument(op, "field %q does not allow value %q", f.Name, raw)
	}
	if _, err := Coerce(f.Type, raw); err != nil {
		return apperrors.InvalidArgument(op, "field %q expects %s: %v", f.Name, f.Type, err)
	}
	return nil
}
