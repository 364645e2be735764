package eav

import (
	"fmt"
	"strconv"
	"strings"
)

// Datatype identifies which typed value table holds an attribute's values.
type Datatype string

const (
	DatatypeString  Datatype = "string"
	DatatypeInteger Datatype = "integer"
	DatatypeFloat   Datatype = "float"
	DatatypeBoolean Datatype = "boolean"
)

// Valid reports whether the datatype is one of the four known kinds.
func (d Datatype) Valid() bool {
	switch d {
	case DatatypeString, DatatypeInteger, DatatypeFloat, DatatypeBoolean:
		return true
	default:
		return false
	}
}

// ParseDatatype validates and normalizes a datatype string.
func ParseDatatype(value string) (Datatype, error) {
	d := Datatype(strings.ToLower(strings.TrimSpace(value)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDatatype, value)
	}
	return d, nil
}

// CheckValue verifies that a scalar matches the declared datatype.
func CheckValue(d Datatype, value any) error {
	switch d {
	case DatatypeString:
		if _, ok := value.(string); ok {
			return nil
		}
	case DatatypeInteger:
		switch value.(type) {
		case int, int32, int64:
			return nil
		}
	case DatatypeFloat:
		switch value.(type) {
		case float32, float64:
			return nil
		}
	case DatatypeBoolean:
		if _, ok := value.(bool); ok {
			return nil
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDatatype, string(d))
	}
	return fmt.Errorf("%w: %v (%T) vs %q", ErrValueMismatch, value, value, string(d))
}

// ParseValue converts a string representation into the scalar type for the
// datatype. Used by HTTP glue to turn query parameters into typed filters.
func ParseValue(d Datatype, s string) (any, error) {
	switch d {
	case DatatypeString:
		return s, nil
	case DatatypeInteger:
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("eav: %q is not an integer", s)
		}
		return parsed, nil
	case DatatypeFloat:
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("eav: %q is not a float", s)
		}
		return parsed, nil
	case DatatypeBoolean:
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("eav: %q is not a boolean", s)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDatatype, string(d))
	}
}
