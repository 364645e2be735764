package registry

import (
	"context"
	"errors"

	"digitaltwin-cloud/internal/eav"
)

// Grouping is a named category of entities: a location schema or a sensor
// type.
type Grouping struct {
	ID          int64
	Name        string
	Description string
}

// AttributeDef is a named, typed variable that groupings may declare:
// a location identifier or a sensor measure.
type AttributeDef struct {
	ID       int64
	Name     string
	Units    string
	Datatype eav.Datatype
}

// CatalogEntry is one (grouping, attribute) pair from the full catalog join.
type CatalogEntry struct {
	GroupingID   int64
	GroupingName string
	AttributeID  int64
	Attribute    string
	Units        string
	Datatype     eav.Datatype
}

// Catalog is the read/administer surface over one grouping/attribute
// registry.
type Catalog interface {
	eav.Registry
	Groupings(ctx context.Context) ([]Grouping, error)
	Entries(ctx context.Context) ([]CatalogEntry, error)
	EnsureGrouping(ctx context.Context, name, description string) (int64, error)
	EnsureAttribute(ctx context.Context, name, units string, datatype eav.Datatype) (int64, error)
	LinkAttribute(ctx context.Context, groupingID, attributeID int64) error
}

var (
	// ErrEmptyName is returned when a grouping or attribute name is blank.
	ErrEmptyName = errors.New("registry: empty name")
)
