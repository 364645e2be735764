package locations

import (
	"errors"
	"time"
)

// Location is a physical place in the digital twin, described entirely by
// the identifier values of its schema.
type Location struct {
	ID          int64
	SchemaID    int64
	TimeCreated time.Time
}

var (
	// ErrUnknownSchema is returned when a location references a schema name
	// with no registry row.
	ErrUnknownSchema = errors.New("locations: unknown schema")
	// ErrMissingIdentifier is returned when a location is created without a
	// value for one of its schema's declared identifiers.
	ErrMissingIdentifier = errors.New("locations: missing identifier value")
)
