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

// ReadingQuery reads typed reading rows back out of the per-datatype tables.
type ReadingQuery struct {
	db       *sql.DB
	registry eav.Registry
}

// NewReadingQuery constructs a reading query.
func NewReadingQuery(db *sql.DB, registry eav.Registry) *ReadingQuery {
	return &ReadingQuery{db: db, registry: registry}
}

// ReadingsBetween returns one sensor's readings for a measure within
// [from, to), oldest first. The measure's datatype decides which reading
// table is consulted.
func (q *ReadingQuery) ReadingsBetween(ctx context.Context, sensorID int64, measureName string, from, to time.Time) ([]sensors.Reading, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("reading query: nil db")
	}
	if measureName == "" || from.IsZero() || to.IsZero() {
		return nil, errors.New("reading query: invalid arguments")
	}

	attr, err := q.measureFor(ctx, sensorID, measureName)
	if err != nil {
		return nil, err
	}
	table, err := eav.Sensors.ValueTable(attr.Datatype)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT value, timestamp
FROM %s
WHERE sensor_id = $1
	AND measure_id = $2
	AND timestamp >= $3
	AND timestamp < $4
ORDER BY timestamp ASC`, table)

	rows, err := q.db.QueryContext(ctx, query, sensorID, attr.ID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sensors.Reading, 0)
	for rows.Next() {
		reading := sensors.Reading{Measure: measureName}
		var err error
		switch attr.Datatype {
		case eav.DatatypeString:
			var v string
			err = rows.Scan(&v, &reading.Timestamp)
			reading.Value = v
		case eav.DatatypeInteger:
			var v int64
			err = rows.Scan(&v, &reading.Timestamp)
			reading.Value = v
		case eav.DatatypeFloat:
			var v float64
			err = rows.Scan(&v, &reading.Timestamp)
			reading.Value = v
		case eav.DatatypeBoolean:
			var v bool
			err = rows.Scan(&v, &reading.Timestamp)
			reading.Value = v
		}
		if err != nil {
			return nil, err
		}
		out = append(out, reading)
	}
	return out, rows.Err()
}

func (q *ReadingQuery) measureFor(ctx context.Context, sensorID int64, measureName string) (eav.AttributeSpec, error) {
	var typeName string
	err := q.db.QueryRowContext(ctx, `
SELECT t.name
FROM sensor s
JOIN sensor_type t ON s.type_id = t.id
WHERE s.id = $1`, sensorID).Scan(&typeName)
	if errors.Is(err, sql.ErrNoRows) {
		return eav.AttributeSpec{}, fmt.Errorf("%w: id %d", sensors.ErrUnknownSensor, sensorID)
	}
	if err != nil {
		return eav.AttributeSpec{}, err
	}

	attrs, err := q.registry.AttributesForGrouping(ctx, typeName)
	if err != nil {
		return eav.AttributeSpec{}, err
	}
	for _, attr := range attrs {
		if attr.Name == measureName {
			return attr, nil
		}
	}
	return eav.AttributeSpec{}, fmt.Errorf("%w: measure %q not declared for type %q", eav.ErrUnknownAttribute, measureName, typeName)
}
