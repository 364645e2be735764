package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"digitaltwin-cloud/internal/eav"
	sensors "digitaltwin-cloud/internal/sensors/domain"
)

// Repository persists sensors, their installations and their typed readings.
type Repository struct {
	db       *sql.DB
	registry eav.Registry
}

// NewRepository constructs a sensor repository. The registry resolves which
// measures a sensor type declares and which reading table each belongs to.
func NewRepository(db *sql.DB, registry eav.Registry) *Repository {
	return &Repository{db: db, registry: registry}
}

// Create inserts a sensor of the named type.
func (r *Repository) Create(ctx context.Context, typeName, uniqueIdentifier, name, notes string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("sensor repo: nil db")
	}
	if uniqueIdentifier == "" {
		return 0, errors.New("sensor repo: unique identifier is required")
	}

	typeID, found, err := r.registry.GroupingID(ctx, typeName)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %q", sensors.ErrUnknownType, typeName)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
INSERT INTO sensor (type_id, unique_identifier, name, notes)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
RETURNING id`, typeID, uniqueIdentifier, name, notes).Scan(&id)
	if err != nil {
		if eav.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %q", sensors.ErrDuplicateSensor, uniqueIdentifier)
		}
		return 0, err
	}
	return id, nil
}

// Delete removes a sensor; its readings and installations cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("sensor repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM sensor WHERE id = $1`, id)
	return err
}

// ByID resolves a sensor by its surrogate id.
func (r *Repository) ByID(ctx context.Context, id int64) (*sensors.Sensor, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sensor repo: nil db")
	}
	var (
		s           sensors.Sensor
		name, notes sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, type_id, unique_identifier, name, notes, time_created
FROM sensor
WHERE id = $1`, id).
		Scan(&s.ID, &s.TypeID, &s.UniqueIdentifier, &name, &notes, &s.TimeCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", sensors.ErrUnknownSensor, id)
	}
	if err != nil {
		return nil, err
	}
	s.Name = name.String
	s.Notes = notes.String
	return &s, nil
}

// ByUniqueIdentifier resolves a sensor by its external handle.
func (r *Repository) ByUniqueIdentifier(ctx context.Context, uniqueIdentifier string) (*sensors.Sensor, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sensor repo: nil db")
	}
	var (
		s           sensors.Sensor
		name, notes sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, type_id, unique_identifier, name, notes, time_created
FROM sensor
WHERE unique_identifier = $1`, uniqueIdentifier).
		Scan(&s.ID, &s.TypeID, &s.UniqueIdentifier, &name, &notes, &s.TimeCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", sensors.ErrUnknownSensor, uniqueIdentifier)
	}
	if err != nil {
		return nil, err
	}
	s.Name = name.String
	s.Notes = notes.String
	return &s, nil
}

// List returns all sensors of the named type.
func (r *Repository) List(ctx context.Context, typeName string) ([]sensors.Sensor, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sensor repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT s.id, s.type_id, s.unique_identifier, s.name, s.notes, s.time_created
FROM sensor s
JOIN sensor_type t ON s.type_id = t.id
WHERE t.name = $1
ORDER BY s.id`, typeName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sensors.Sensor, 0)
	for rows.Next() {
		var (
			s           sensors.Sensor
			name, notes sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.TypeID, &s.UniqueIdentifier, &name, &notes, &s.TimeCreated); err != nil {
			return nil, err
		}
		s.Name = name.String
		s.Notes = notes.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertReadings stores a batch of readings for one sensor in a single
// transaction. Every reading's measure must be declared for the sensor's
// type, and its value must match the measure's datatype. A reading that
// repeats an existing (measure, sensor, timestamp) fails the whole batch
// with a duplicate-value error.
func (r *Repository) InsertReadings(ctx context.Context, sensorID int64, readings []sensors.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("sensor repo: nil db")
	}
	if len(readings) == 0 {
		return nil
	}

	typeName, err := r.typeNameOf(ctx, sensorID)
	if err != nil {
		return err
	}
	attrs, err := r.registry.AttributesForGrouping(ctx, typeName)
	if err != nil {
		return err
	}
	declared := make(map[string]eav.AttributeSpec, len(attrs))
	for _, attr := range attrs {
		declared[attr.Name] = attr
	}

	for _, reading := range readings {
		attr, ok := declared[reading.Measure]
		if !ok {
			return fmt.Errorf("%w: measure %q not declared for type %q", eav.ErrUnknownAttribute, reading.Measure, typeName)
		}
		if reading.Timestamp.IsZero() {
			return errors.New("sensor repo: reading without timestamp")
		}
		if err := eav.CheckValue(attr.Datatype, reading.Value); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmts := make(map[eav.Datatype]*sql.Stmt, 4)
	defer func() {
		for _, stmt := range stmts {
			_ = stmt.Close()
		}
	}()

	for _, reading := range readings {
		attr := declared[reading.Measure]
		stmt, ok := stmts[attr.Datatype]
		if !ok {
			table, err := eav.Sensors.ValueTable(attr.Datatype)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			insert := fmt.Sprintf(`
INSERT INTO %s (value, measure_id, sensor_id, timestamp)
VALUES ($1, $2, $3, $4)`, table)
			stmt, err = tx.PrepareContext(ctx, insert)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			stmts[attr.Datatype] = stmt
		}

		if _, err := stmt.ExecContext(ctx, reading.Value, attr.ID, sensorID, reading.Timestamp); err != nil {
			_ = tx.Rollback()
			if eav.IsUniqueViolation(err) {
				return fmt.Errorf("%w: measure %q at %s", eav.ErrDuplicateValue, reading.Measure, reading.Timestamp.Format(time.RFC3339))
			}
			return err
		}
	}

	return tx.Commit()
}

// AssignLocation records that a sensor was installed at a location.
func (r *Repository) AssignLocation(ctx context.Context, sensorID, locationID int64, installedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("sensor repo: nil db")
	}
	if installedAt.IsZero() {
		installedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sensor_location (sensor_id, location_id, installation_datetime)
VALUES ($1, $2, $3)`, sensorID, locationID, installedAt)
	return err
}

// LocationHistory returns a sensor's installations, oldest first.
func (r *Repository) LocationHistory(ctx context.Context, sensorID int64) ([]sensors.Installation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sensor repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT sensor_id, location_id, installation_datetime
FROM sensor_location
WHERE sensor_id = $1
ORDER BY installation_datetime ASC`, sensorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sensors.Installation, 0)
	for rows.Next() {
		var inst sensors.Installation
		if err := rows.Scan(&inst.SensorID, &inst.LocationID, &inst.InstalledAt); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// DeclaredMeasures returns the measures declared for a sensor's type.
func (r *Repository) DeclaredMeasures(ctx context.Context, sensorID int64) ([]eav.AttributeSpec, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sensor repo: nil db")
	}
	typeName, err := r.typeNameOf(ctx, sensorID)
	if err != nil {
		return nil, err
	}
	return r.registry.AttributesForGrouping(ctx, typeName)
}

func (r *Repository) typeNameOf(ctx context.Context, sensorID int64) (string, error) {
	var typeName string
	err := r.db.QueryRowContext(ctx, `
SELECT t.name
FROM sensor s
JOIN sensor_type t ON s.type_id = t.id
WHERE s.id = $1`, sensorID).Scan(&typeName)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: id %d", sensors.ErrUnknownSensor, sensorID)
	}
	if err != nil {
		return "", err
	}
	return typeName, nil
}
