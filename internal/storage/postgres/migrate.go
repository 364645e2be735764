package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// statements create the platform schema in dependency order. Every statement
// is idempotent so Migrate can run at each startup.
//
// The typed value tables carry the contract-level constraints: one value row
// per (attribute, entity) for locations, per (attribute, entity, timestamp)
// for sensor readings, per (product, timestamp) for model values, and cascade
// delete from the owning entity.
var statements = []string{
	// Location catalog and values.
	`CREATE TABLE IF NOT EXISTS location_schema (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	description TEXT,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	time_updated TIMESTAMPTZ,
	UNIQUE (name)
)`,
	`CREATE TABLE IF NOT EXISTS location_identifier (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	units VARCHAR(100),
	datatype TEXT NOT NULL CHECK (datatype IN ('string', 'integer', 'float', 'boolean')),
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	time_updated TIMESTAMPTZ,
	UNIQUE (name, units)
)`,
	`CREATE TABLE IF NOT EXISTS location_schema_identifier_relation (
	id BIGSERIAL PRIMARY KEY,
	schema_id BIGINT NOT NULL REFERENCES location_schema (id) ON DELETE CASCADE ON UPDATE CASCADE,
	identifier_id BIGINT NOT NULL REFERENCES location_identifier (id),
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (schema_id, identifier_id)
)`,
	`CREATE TABLE IF NOT EXISTS location (
	id BIGSERIAL PRIMARY KEY,
	schema_id BIGINT NOT NULL REFERENCES location_schema (id),
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	time_updated TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS location_string_value (
	id BIGSERIAL PRIMARY KEY,
	value TEXT NOT NULL,
	identifier_id BIGINT NOT NULL REFERENCES location_identifier (id),
	location_id BIGINT NOT NULL REFERENCES location (id) ON DELETE CASCADE ON UPDATE CASCADE,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (identifier_id, location_id)
)`,
	`CREATE TABLE IF NOT EXISTS location_integer_value (
	id BIGSERIAL PRIMARY KEY,
	value BIGINT NOT NULL,
	identifier_id BIGINT NOT NULL REFERENCES location_identifier (id),
	location_id BIGINT NOT NULL REFERENCES location (id) ON DELETE CASCADE ON UPDATE CASCADE,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (identifier_id, location_id)
)`,
	`CREATE TABLE IF NOT EXISTS location_float_value (
	id BIGSERIAL PRIMARY KEY,
	value DOUBLE PRECISION NOT NULL,
	identifier_id BIGINT NOT NULL REFERENCES location_identifier (id),
	location_id BIGINT NOT NULL REFERENCES location (id) ON DELETE CASCADE ON UPDATE CASCADE,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (identifier_id, location_id)
)`,
	`CREATE TABLE IF NOT EXISTS location_boolean_value (
	id BIGSERIAL PRIMARY KEY,
	value BOOLEAN NOT NULL,
	identifier_id BIGINT NOT NULL REFERENCES location_identifier (id),
	location_id BIGINT NOT NULL REFERENCES location (id) ON DELETE CASCADE ON UPDATE CASCADE,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (identifier_id, location_id)
)`,

	// Sensor catalog and readings.
	`CREATE TABLE IF NOT EXISTS sensor_type (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	description TEXT,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	time_updated TIMESTAMPTZ,
	UNIQUE (name)
)`,
	`CREATE TABLE IF NOT EXISTS sensor_measure (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	units VARCHAR(100),
	datatype TEXT NOT NULL CHECK (datatype IN ('string', 'integer', 'float', 'boolean')),
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	time_updated TIMESTAMPTZ,
	UNIQUE (name, units)
)`,
	`CREATE TABLE IF NOT EXISTS sensor_type_measure_relation (
	id BIGSERIAL PRIMARY KEY,
	type_id BIGINT NOT NULL REFERENCES sensor_type (id) ON DELETE CASCADE ON UPDATE CASCADE,
	measure_id BIGINT NOT NULL REFERENCES sensor_measure (id),
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (type_id, measure_id)
)`,
	`CREATE TABLE IF NOT EXISTS sensor (
	id BIGSERIAL PRIMARY KEY,
	type_id BIGINT NOT NULL REFERENCES sensor_type (id),
	unique_identifier VARCHAR(100) NOT NULL,
	name VARCHAR(100),
	notes TEXT,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	time_updated TIMESTAMPTZ,
	UNIQUE (unique_identifier)
)`,
	`CREATE TABLE IF NOT EXISTS sensor_string_reading (
	id BIGSERIAL PRIMARY KEY,
	value TEXT NOT NULL,
	measure_id BIGINT NOT NULL REFERENCES sensor_measure (id),
	sensor_id BIGINT NOT NULL REFERENCES sensor (id) ON DELETE CASCADE ON UPDATE CASCADE,
	timestamp TIMESTAMPTZ NOT NULL,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (measure_id, sensor_id, timestamp)
)`,
	`CREATE TABLE IF NOT EXISTS sensor_integer_reading (
	id BIGSERIAL PRIMARY KEY,
	value BIGINT NOT NULL,
	measure_id BIGINT NOT NULL REFERENCES sensor_measure (id),
	sensor_id BIGINT NOT NULL REFERENCES sensor (id) ON DELETE CASCADE ON UPDATE CASCADE,
	timestamp TIMESTAMPTZ NOT NULL,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (measure_id, sensor_id, timestamp)
)`,
	`CREATE TABLE IF NOT EXISTS sensor_float_reading (
	id BIGSERIAL PRIMARY KEY,
	value DOUBLE PRECISION NOT NULL,
	measure_id BIGINT NOT NULL REFERENCES sensor_measure (id),
	sensor_id BIGINT NOT NULL REFERENCES sensor (id) ON DELETE CASCADE ON UPDATE CASCADE,
	timestamp TIMESTAMPTZ NOT NULL,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (measure_id, sensor_id, timestamp)
)`,
	`CREATE TABLE IF NOT EXISTS sensor_boolean_reading (
	id BIGSERIAL PRIMARY KEY,
	value BOOLEAN NOT NULL,
	measure_id BIGINT NOT NULL REFERENCES sensor_measure (id),
	sensor_id BIGINT NOT NULL REFERENCES sensor (id) ON DELETE CASCADE ON UPDATE CASCADE,
	timestamp TIMESTAMPTZ NOT NULL,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (measure_id, sensor_id, timestamp)
)`,
	`CREATE TABLE IF NOT EXISTS sensor_location (
	id BIGSERIAL PRIMARY KEY,
	sensor_id BIGINT NOT NULL REFERENCES sensor (id) ON DELETE CASCADE ON UPDATE CASCADE,
	location_id BIGINT NOT NULL REFERENCES location (id),
	installation_datetime TIMESTAMPTZ NOT NULL,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (sensor_id, installation_datetime)
)`,

	// Model catalog, runs and predicted values.
	`CREATE TABLE IF NOT EXISTS model (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	time_updated TIMESTAMPTZ,
	UNIQUE (name)
)`,
	`CREATE TABLE IF NOT EXISTS model_scenario (
	id BIGSERIAL PRIMARY KEY,
	model_id BIGINT NOT NULL REFERENCES model (id) ON DELETE CASCADE ON UPDATE CASCADE,
	description TEXT,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (model_id, description)
)`,
	`CREATE TABLE IF NOT EXISTS model_measure (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	units VARCHAR(100),
	datatype TEXT NOT NULL CHECK (datatype IN ('string', 'integer', 'float', 'boolean')),
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (name, units)
)`,
	`CREATE TABLE IF NOT EXISTS model_run (
	id BIGSERIAL PRIMARY KEY,
	model_id BIGINT NOT NULL REFERENCES model (id),
	scenario_id BIGINT REFERENCES model_scenario (id),
	sensor_id BIGINT REFERENCES sensor (id),
	sensor_measure_id BIGINT REFERENCES sensor_measure (id),
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (model_id, scenario_id, time_created)
)`,
	`CREATE TABLE IF NOT EXISTS model_product (
	id BIGSERIAL PRIMARY KEY,
	run_id BIGINT NOT NULL REFERENCES model_run (id) ON DELETE CASCADE ON UPDATE CASCADE,
	measure_id BIGINT NOT NULL REFERENCES model_measure (id),
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (run_id, measure_id)
)`,
	`CREATE TABLE IF NOT EXISTS model_string_value (
	id BIGSERIAL PRIMARY KEY,
	product_id BIGINT NOT NULL REFERENCES model_product (id) ON DELETE CASCADE ON UPDATE CASCADE,
	timestamp TIMESTAMPTZ NOT NULL,
	value TEXT NOT NULL,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (product_id, timestamp)
)`,
	`CREATE TABLE IF NOT EXISTS model_integer_value (
	id BIGSERIAL PRIMARY KEY,
	product_id BIGINT NOT NULL REFERENCES model_product (id) ON DELETE CASCADE ON UPDATE CASCADE,
	timestamp TIMESTAMPTZ NOT NULL,
	value BIGINT NOT NULL,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (product_id, timestamp)
)`,
	`CREATE TABLE IF NOT EXISTS model_float_value (
	id BIGSERIAL PRIMARY KEY,
	product_id BIGINT NOT NULL REFERENCES model_product (id) ON DELETE CASCADE ON UPDATE CASCADE,
	timestamp TIMESTAMPTZ NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (product_id, timestamp)
)`,
	`CREATE TABLE IF NOT EXISTS model_boolean_value (
	id BIGSERIAL PRIMARY KEY,
	product_id BIGINT NOT NULL REFERENCES model_product (id) ON DELETE CASCADE ON UPDATE CASCADE,
	timestamp TIMESTAMPTZ NOT NULL,
	value BOOLEAN NOT NULL,
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (product_id, timestamp)
)`,

	// Platform tables.
	`CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	email VARCHAR(200) NOT NULL,
	password_hash BYTEA NOT NULL,
	role VARCHAR(20) NOT NULL DEFAULT 'viewer',
	time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	time_updated TIMESTAMPTZ,
	UNIQUE (email)
)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
	id VARCHAR(64) PRIMARY KEY,
	actor VARCHAR(200) NOT NULL,
	role VARCHAR(20) NOT NULL,
	action VARCHAR(100) NOT NULL,
	resource_type VARCHAR(100) NOT NULL,
	resource_id VARCHAR(200) NOT NULL,
	metadata JSONB,
	payload_digest VARCHAR(64),
	ip VARCHAR(64),
	user_agent TEXT,
	created_at TIMESTAMPTZ NOT NULL
)`,
}

// Migrate creates all platform tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("storage: migration statement %d failed: %w", i, err)
		}
	}
	return nil
}
