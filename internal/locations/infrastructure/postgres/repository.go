package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"digitaltwin-cloud/internal/eav"
	locations "digitaltwin-cloud/internal/locations/domain"
)

// Repository persists locations and their typed identifier values.
type Repository struct {
	db       *sql.DB
	registry eav.Registry
}

// NewRepository constructs a location repository. The registry resolves
// which identifiers a schema declares and which value table each belongs to.
func NewRepository(db *sql.DB, registry eav.Registry) *Repository {
	return &Repository{db: db, registry: registry}
}

// Create inserts a location of the named schema with one value per declared
// identifier. Every declared identifier must be given; extraneous keys fail
// with an unknown-attribute error. The entity row and its value rows are
// written in one transaction.
func (r *Repository) Create(ctx context.Context, schemaName string, values map[string]any) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("location repo: nil db")
	}

	schemaID, found, err := r.registry.GroupingID(ctx, schemaName)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %q", locations.ErrUnknownSchema, schemaName)
	}
	attrs, err := r.registry.AttributesForGrouping(ctx, schemaName)
	if err != nil {
		return 0, err
	}

	declared := make(map[string]eav.AttributeSpec, len(attrs))
	for _, attr := range attrs {
		declared[attr.Name] = attr
	}
	for name := range values {
		if _, ok := declared[name]; !ok {
			return 0, fmt.Errorf("%w: %q not declared for schema %q", eav.ErrUnknownAttribute, name, schemaName)
		}
	}
	for _, attr := range attrs {
		value, ok := values[attr.Name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", locations.ErrMissingIdentifier, attr.Name)
		}
		if err := eav.CheckValue(attr.Datatype, value); err != nil {
			return 0, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	var locationID int64
	if err := tx.QueryRowContext(ctx, `INSERT INTO location (schema_id) VALUES ($1) RETURNING id`, schemaID).Scan(&locationID); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	for _, attr := range attrs {
		table, err := eav.Locations.ValueTable(attr.Datatype)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		insert := fmt.Sprintf(`INSERT INTO %s (value, identifier_id, location_id) VALUES ($1, $2, $3)`, table)
		if _, err := tx.ExecContext(ctx, insert, values[attr.Name], attr.ID, locationID); err != nil {
			_ = tx.Rollback()
			if eav.IsUniqueViolation(err) {
				return 0, fmt.Errorf("%w: identifier %q for location %d", eav.ErrDuplicateValue, attr.Name, locationID)
			}
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return locationID, nil
}

// Delete removes a location; its typed value rows cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("location repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM location WHERE id = $1`, id)
	return err
}

// ByCoordinates builds the locations-by-coordinate query: one row per
// location of the schema, one column per identifier, optionally filtered.
// The returned query is lazy; callers may page before executing it.
func (r *Repository) ByCoordinates(ctx context.Context, schemaName string, filters map[string]any) (*eav.SelectQuery, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("location repo: nil db")
	}
	return eav.EntitiesByAttributes(ctx, r.registry, eav.Locations, schemaName, filters)
}

// List materializes ByCoordinates on the repository's own session.
func (r *Repository) List(ctx context.Context, schemaName string, filters map[string]any, limit, offset int) ([]eav.EntityRow, error) {
	query, err := r.ByCoordinates(ctx, schemaName, filters)
	if err != nil {
		return nil, err
	}
	return query.Limit(limit).Offset(offset).Query(ctx, r.db)
}
