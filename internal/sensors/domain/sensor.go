package sensors

import (
	"errors"
	"time"
)

// Sensor is a measurement device of a declared type. The unique identifier
// is the external handle used by ingest clients.
type Sensor struct {
	ID               int64
	TypeID           int64
	UniqueIdentifier string
	Name             string
	Notes            string
	TimeCreated      time.Time
}

// Reading is one typed measurement value at a point in time. Value holds
// string, int64, float64 or bool according to the measure's datatype.
type Reading struct {
	Measure   string
	Timestamp time.Time
	Value     any
}

// Installation records where a sensor was mounted and when.
type Installation struct {
	SensorID    int64
	LocationID  int64
	InstalledAt time.Time
}

var (
	// ErrUnknownType is returned when a sensor references a type name with
	// no registry row.
	ErrUnknownType = errors.New("sensors: unknown sensor type")
	// ErrUnknownSensor is returned when a sensor id or unique identifier
	// resolves to no row.
	ErrUnknownSensor = errors.New("sensors: unknown sensor")
	// ErrDuplicateSensor is returned when a unique identifier is already
	// taken.
	ErrDuplicateSensor = errors.New("sensors: duplicate unique identifier")
)
