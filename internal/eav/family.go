package eav

import "fmt"

// Family describes one entity family's tables: the entity table itself and
// the four typed value tables partitioned by datatype. An attribute's
// datatype determines the single value table that may ever hold its values.
type Family struct {
	Name        string
	EntityTable string
	// EntityFK is the value-table column referencing the entity.
	EntityFK string
	// AttributeFK is the value-table column referencing the attribute
	// definition; empty for families where the owning row already binds the
	// attribute (model products).
	AttributeFK string
	// GroupingFK is the entity-table column referencing the grouping.
	GroupingFK string
	// Timestamped marks families whose value rows carry a reading timestamp.
	Timestamped bool

	valueTables map[Datatype]string
}

// ValueTable resolves the typed value table backing the given datatype.
func (f Family) ValueTable(d Datatype) (string, error) {
	table, ok := f.valueTables[d]
	if !ok {
		return "", fmt.Errorf("%w: %q for family %q", ErrUnsupportedDatatype, string(d), f.Name)
	}
	return table, nil
}

var (
	// Locations holds per-location identifier values, one row per
	// (identifier, location).
	Locations = Family{
		Name:        "location",
		EntityTable: "location",
		EntityFK:    "location_id",
		AttributeFK: "identifier_id",
		GroupingFK:  "schema_id",
		valueTables: map[Datatype]string{
			DatatypeString:  "location_string_value",
			DatatypeInteger: "location_integer_value",
			DatatypeFloat:   "location_float_value",
			DatatypeBoolean: "location_boolean_value",
		},
	}

	// Sensors holds timestamped readings, one row per
	// (measure, sensor, timestamp).
	Sensors = Family{
		Name:        "sensor",
		EntityTable: "sensor",
		EntityFK:    "sensor_id",
		AttributeFK: "measure_id",
		GroupingFK:  "type_id",
		Timestamped: true,
		valueTables: map[Datatype]string{
			DatatypeString:  "sensor_string_reading",
			DatatypeInteger: "sensor_integer_reading",
			DatatypeFloat:   "sensor_float_reading",
			DatatypeBoolean: "sensor_boolean_reading",
		},
	}

	// Models holds timestamped predicted values, one row per
	// (product, timestamp). The product row binds the measure.
	Models = Family{
		Name:        "model",
		EntityTable: "model_product",
		EntityFK:    "product_id",
		Timestamped: true,
		valueTables: map[Datatype]string{
			DatatypeString:  "model_string_value",
			DatatypeInteger: "model_integer_value",
			DatatypeFloat:   "model_float_value",
			DatatypeBoolean: "model_boolean_value",
		},
	}
)

// RegistryTables describes the catalog tables declaring which attributes are
// legal for which grouping.
type RegistryTables struct {
	GroupingTable  string
	AttributeTable string
	RelationTable  string
	// GroupingFK and AttributeFK are the relation-table columns.
	GroupingFK  string
	AttributeFK string
}

var (
	// LocationRegistry declares location identifiers per location schema.
	LocationRegistry = RegistryTables{
		GroupingTable:  "location_schema",
		AttributeTable: "location_identifier",
		RelationTable:  "location_schema_identifier_relation",
		GroupingFK:     "schema_id",
		AttributeFK:    "identifier_id",
	}

	// SensorRegistry declares sensor measures per sensor type.
	SensorRegistry = RegistryTables{
		GroupingTable:  "sensor_type",
		AttributeTable: "sensor_measure",
		RelationTable:  "sensor_type_measure_relation",
		GroupingFK:     "type_id",
		AttributeFK:    "measure_id",
	}
)
