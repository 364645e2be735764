package models

import (
	"errors"
	"time"
)

// Model is a registered forecasting or simulation model.
type Model struct {
	ID          int64
	Name        string
	TimeCreated time.Time
}

// Scenario is one configuration a model can be run under.
type Scenario struct {
	ID          int64
	ModelID     int64
	Description string
	TimeCreated time.Time
}

// Run is one execution of a model, optionally tied to the sensor and
// measure whose data fed it. ModelName and ScenarioDescription are
// denormalized for read paths.
type Run struct {
	ID                  int64
	ModelID             int64
	ModelName           string
	ScenarioID          int64
	ScenarioDescription string
	SensorID            int64
	SensorMeasureID     int64
	TimeCreated         time.Time
}

// Product is one output series of a run, typed by its model measure.
type Product struct {
	ID        int64
	RunID     int64
	MeasureID int64
	Measure   string
}

// ProductValue is one predicted value at a point in time. Value holds
// string, int64, float64 or bool according to the measure's datatype.
type ProductValue struct {
	Measure   string
	Timestamp time.Time
	Value     any
}

var (
	// ErrUnknownModel is returned when a model name resolves to no row.
	ErrUnknownModel = errors.New("models: unknown model")
	// ErrUnknownRun is returned when a run id resolves to no row.
	ErrUnknownRun = errors.New("models: unknown run")
	// ErrUnknownMeasure is returned when a product references a model
	// measure with no catalog row.
	ErrUnknownMeasure = errors.New("models: unknown measure")
	// ErrDuplicateModel is returned when a model name is already taken.
	ErrDuplicateModel = errors.New("models: duplicate model name")
)
