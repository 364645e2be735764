package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"digitaltwin-cloud/internal/eav"
	models "digitaltwin-cloud/internal/models/domain"
)

// Repository persists models, scenarios, runs and their predicted values.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a model repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureMeasure returns the id of the named model measure, creating it when
// missing. Units distinguish measures of the same name.
func (r *Repository) EnsureMeasure(ctx context.Context, name, units string, datatype eav.Datatype) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("model repo: nil db")
	}
	if name == "" {
		return 0, errors.New("model repo: measure name is required")
	}
	if !datatype.Valid() {
		return 0, fmt.Errorf("%w: %q", eav.ErrUnsupportedDatatype, datatype)
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
SELECT id FROM model_measure WHERE name = $1 AND COALESCE(units, '') = $2`, name, units).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	err = r.db.QueryRowContext(ctx, `
INSERT INTO model_measure (name, units, datatype)
VALUES ($1, NULLIF($2, ''), $3)
RETURNING id`, name, units, string(datatype)).Scan(&id)
	if err != nil && eav.IsUniqueViolation(err) {
		// Lost the race to a concurrent insert; read the winner.
		rerr := r.db.QueryRowContext(ctx, `
SELECT id FROM model_measure WHERE name = $1 AND COALESCE(units, '') = $2`, name, units).Scan(&id)
		if rerr == nil {
			return id, nil
		}
		return 0, rerr
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateModel registers a model by name.
func (r *Repository) CreateModel(ctx context.Context, name string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("model repo: nil db")
	}
	if name == "" {
		return 0, errors.New("model repo: model name is required")
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO model (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		if eav.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %q", models.ErrDuplicateModel, name)
		}
		return 0, err
	}
	return id, nil
}

// DeleteModel removes a model; its scenarios cascade, its runs do not.
func (r *Repository) DeleteModel(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("model repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM model WHERE id = $1`, id)
	return err
}

// EnsureScenario returns the id of a model's scenario, creating it when
// missing.
func (r *Repository) EnsureScenario(ctx context.Context, modelID int64, description string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("model repo: nil db")
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `
SELECT id FROM model_scenario WHERE model_id = $1 AND description = $2`, modelID, description).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	err = r.db.QueryRowContext(ctx, `
INSERT INTO model_scenario (model_id, description)
VALUES ($1, $2)
RETURNING id`, modelID, description).Scan(&id)
	if err != nil && eav.IsUniqueViolation(err) {
		rerr := r.db.QueryRowContext(ctx, `
SELECT id FROM model_scenario WHERE model_id = $1 AND description = $2`, modelID, description).Scan(&id)
		if rerr == nil {
			return id, nil
		}
		return 0, rerr
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ProductSpec is one output series to store with a run.
type ProductSpec struct {
	Measure string
	Values  []models.ProductValue
}

// RunSpec describes a run to record: the model it belongs to, an optional
// scenario, an optional source sensor and measure, and the output series.
type RunSpec struct {
	Model           string
	Scenario        string
	SensorID        int64
	SensorMeasureID int64
	Products        []ProductSpec
}

// CreateRun records a model run with its products and predicted values in
// one transaction. Every product's measure must already exist in the model
// measure catalog, and every value must match the measure's datatype.
func (r *Repository) CreateRun(ctx context.Context, spec RunSpec) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("model repo: nil db")
	}

	var modelID int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM model WHERE name = $1`, spec.Model).Scan(&modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", models.ErrUnknownModel, spec.Model)
	}
	if err != nil {
		return 0, err
	}

	scenarioID := sql.NullInt64{}
	if spec.Scenario != "" {
		id, err := r.EnsureScenario(ctx, modelID, spec.Scenario)
		if err != nil {
			return 0, err
		}
		scenarioID = sql.NullInt64{Int64: id, Valid: true}
	}
	sensorID := sql.NullInt64{}
	if spec.SensorID != 0 {
		sensorID = sql.NullInt64{Int64: spec.SensorID, Valid: true}
	}
	sensorMeasureID := sql.NullInt64{}
	if spec.SensorMeasureID != 0 {
		sensorMeasureID = sql.NullInt64{Int64: spec.SensorMeasureID, Valid: true}
	}

	measures := make(map[string]eav.AttributeSpec, len(spec.Products))
	for _, product := range spec.Products {
		attr, err := r.measureByName(ctx, product.Measure)
		if err != nil {
			return 0, err
		}
		for _, value := range product.Values {
			if value.Timestamp.IsZero() {
				return 0, errors.New("model repo: value without timestamp")
			}
			if err := eav.CheckValue(attr.Datatype, value.Value); err != nil {
				return 0, err
			}
		}
		measures[product.Measure] = attr
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	var runID int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO model_run (model_id, scenario_id, sensor_id, sensor_measure_id)
VALUES ($1, $2, $3, $4)
RETURNING id`, modelID, scenarioID, sensorID, sensorMeasureID).Scan(&runID)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	for _, product := range spec.Products {
		attr := measures[product.Measure]

		var productID int64
		err = tx.QueryRowContext(ctx, `
INSERT INTO model_product (run_id, measure_id)
VALUES ($1, $2)
RETURNING id`, runID, attr.ID).Scan(&productID)
		if err != nil {
			_ = tx.Rollback()
			if eav.IsUniqueViolation(err) {
				return 0, fmt.Errorf("%w: measure %q repeated in run", eav.ErrDuplicateValue, product.Measure)
			}
			return 0, err
		}

		table, err := eav.Models.ValueTable(attr.Datatype)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		insert := fmt.Sprintf(`
INSERT INTO %s (product_id, timestamp, value)
VALUES ($1, $2, $3)`, table)
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		for _, value := range product.Values {
			if _, err := stmt.ExecContext(ctx, productID, value.Timestamp, value.Value); err != nil {
				_ = stmt.Close()
				_ = tx.Rollback()
				if eav.IsUniqueViolation(err) {
					return 0, fmt.Errorf("%w: measure %q at %s", eav.ErrDuplicateValue, product.Measure, value.Timestamp.Format(time.RFC3339))
				}
				return 0, err
			}
		}
		_ = stmt.Close()
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// Run resolves a run by id with its model name and scenario description.
func (r *Repository) Run(ctx context.Context, runID int64) (*models.Run, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("model repo: nil db")
	}
	var (
		run                 models.Run
		scenarioID          sql.NullInt64
		scenarioDescription sql.NullString
		sensorID            sql.NullInt64
		sensorMeasureID     sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
SELECT run.id, run.model_id, m.name, run.scenario_id, sc.description,
	run.sensor_id, run.sensor_measure_id, run.time_created
FROM model_run run
JOIN model m ON run.model_id = m.id
LEFT JOIN model_scenario sc ON run.scenario_id = sc.id
WHERE run.id = $1`, runID).
		Scan(&run.ID, &run.ModelID, &run.ModelName, &scenarioID, &scenarioDescription,
			&sensorID, &sensorMeasureID, &run.TimeCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", models.ErrUnknownRun, runID)
	}
	if err != nil {
		return nil, err
	}
	run.ScenarioID = scenarioID.Int64
	run.ScenarioDescription = scenarioDescription.String
	run.SensorID = sensorID.Int64
	run.SensorMeasureID = sensorMeasureID.Int64
	return &run, nil
}

// ListRuns returns a model's runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, modelName string) ([]models.Run, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("model repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT run.id, run.model_id, m.name, run.scenario_id, sc.description,
	run.sensor_id, run.sensor_measure_id, run.time_created
FROM model_run run
JOIN model m ON run.model_id = m.id
LEFT JOIN model_scenario sc ON run.scenario_id = sc.id
WHERE m.name = $1
ORDER BY run.time_created DESC, run.id DESC`, modelName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Run, 0)
	for rows.Next() {
		var (
			run                 models.Run
			scenarioID          sql.NullInt64
			scenarioDescription sql.NullString
			sensorID            sql.NullInt64
			sensorMeasureID     sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &run.ModelID, &run.ModelName, &scenarioID, &scenarioDescription,
			&sensorID, &sensorMeasureID, &run.TimeCreated); err != nil {
			return nil, err
		}
		run.ScenarioID = scenarioID.Int64
		run.ScenarioDescription = scenarioDescription.String
		run.SensorID = sensorID.Int64
		run.SensorMeasureID = sensorMeasureID.Int64
		out = append(out, run)
	}
	return out, rows.Err()
}

// RunValues returns all predicted values of a run, flattened and ordered by
// measure then timestamp. Each product's datatype decides which value table
// is consulted.
func (r *Repository) RunValues(ctx context.Context, runID int64) ([]models.ProductValue, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("model repo: nil db")
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT p.id, mm.name, mm.datatype
FROM model_product p
JOIN model_measure mm ON p.measure_id = mm.id
WHERE p.run_id = $1
ORDER BY mm.name`, runID)
	if err != nil {
		return nil, err
	}
	type product struct {
		id       int64
		measure  string
		datatype eav.Datatype
	}
	products := make([]product, 0)
	for rows.Next() {
		var p product
		var datatype string
		if err := rows.Scan(&p.id, &p.measure, &datatype); err != nil {
			rows.Close()
			return nil, err
		}
		p.datatype = eav.Datatype(datatype)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]models.ProductValue, 0)
	for _, p := range products {
		values, err := r.productValues(ctx, p.id, p.measure, p.datatype)
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}
	return out, nil
}

func (r *Repository) productValues(ctx context.Context, productID int64, measure string, datatype eav.Datatype) ([]models.ProductValue, error) {
	table, err := eav.Models.ValueTable(datatype)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT timestamp, value
FROM %s
WHERE product_id = $1
ORDER BY timestamp ASC`, table)

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ProductValue, 0)
	for rows.Next() {
		value := models.ProductValue{Measure: measure}
		var err error
		switch datatype {
		case eav.DatatypeString:
			var v string
			err = rows.Scan(&value.Timestamp, &v)
			value.Value = v
		case eav.DatatypeInteger:
			var v int64
			err = rows.Scan(&value.Timestamp, &v)
			value.Value = v
		case eav.DatatypeFloat:
			var v float64
			err = rows.Scan(&value.Timestamp, &v)
			value.Value = v
		case eav.DatatypeBoolean:
			var v bool
			err = rows.Scan(&value.Timestamp, &v)
			value.Value = v
		}
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}

// Measure resolves a model measure by name.
func (r *Repository) Measure(ctx context.Context, name string) (eav.AttributeSpec, error) {
	if r == nil || r.db == nil {
		return eav.AttributeSpec{}, errors.New("model repo: nil db")
	}
	return r.measureByName(ctx, name)
}

func (r *Repository) measureByName(ctx context.Context, name string) (eav.AttributeSpec, error) {
	var (
		attr     eav.AttributeSpec
		units    sql.NullString
		datatype string
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, name, units, datatype
FROM model_measure
WHERE name = $1
ORDER BY id
LIMIT 1`, name).Scan(&attr.ID, &attr.Name, &units, &datatype)
	if errors.Is(err, sql.ErrNoRows) {
		return eav.AttributeSpec{}, fmt.Errorf("%w: %q", models.ErrUnknownMeasure, name)
	}
	if err != nil {
		return eav.AttributeSpec{}, err
	}
	attr.Units = units.String
	attr.Datatype = eav.Datatype(datatype)
	return attr, nil
}
