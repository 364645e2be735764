package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"digitaltwin-cloud/internal/eav"
	registry "digitaltwin-cloud/internal/registry/domain"
)

// Repository answers catalog questions for one grouping/attribute registry.
// The same implementation serves location schemas and sensor types; the
// tables descriptor selects which.
type Repository struct {
	db     eav.DBTX
	tables eav.RegistryTables
}

// NewRepository constructs a catalog repository over the given tables.
func NewRepository(db eav.DBTX, tables eav.RegistryTables) *Repository {
	return &Repository{db: db, tables: tables}
}

// GroupingID resolves a grouping name. found is false for unknown names.
func (r *Repository) GroupingID(ctx context.Context, name string) (int64, bool, error) {
	if r == nil || r.db == nil {
		return 0, false, errors.New("registry repo: nil db")
	}
	query := fmt.Sprintf(`SELECT id FROM %s WHERE name = $1`, r.tables.GroupingTable)
	var id int64
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// AttributesForGrouping returns the attributes declared for the named
// grouping. An unknown grouping and a grouping with no declared attributes
// both return an empty slice; callers that need to tell them apart resolve
// the grouping first.
func (r *Repository) AttributesForGrouping(ctx context.Context, name string) ([]eav.AttributeSpec, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("registry repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT a.id, a.name, COALESCE(a.units, ''), a.datatype
FROM %s g
JOIN %s rel ON rel.%s = g.id
JOIN %s a ON a.id = rel.%s
WHERE g.name = $1
ORDER BY a.id`,
		r.tables.GroupingTable, r.tables.RelationTable, r.tables.GroupingFK,
		r.tables.AttributeTable, r.tables.AttributeFK)

	rows, err := r.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attrs []eav.AttributeSpec
	for rows.Next() {
		var attr eav.AttributeSpec
		var datatype string
		if err := rows.Scan(&attr.ID, &attr.Name, &attr.Units, &datatype); err != nil {
			return nil, err
		}
		attr.Datatype = eav.Datatype(datatype)
		attrs = append(attrs, attr)
	}
	return attrs, rows.Err()
}

// Groupings lists every grouping in the registry.
func (r *Repository) Groupings(ctx context.Context) ([]registry.Grouping, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("registry repo: nil db")
	}
	query := fmt.Sprintf(`SELECT id, name, COALESCE(description, '') FROM %s ORDER BY id`, r.tables.GroupingTable)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groupings []registry.Grouping
	for rows.Next() {
		var g registry.Grouping
		if err := rows.Scan(&g.ID, &g.Name, &g.Description); err != nil {
			return nil, err
		}
		groupings = append(groupings, g)
	}
	return groupings, rows.Err()
}

// Entries returns the full catalog join: one row per declared
// (grouping, attribute) pair across all groupings.
func (r *Repository) Entries(ctx context.Context) ([]registry.CatalogEntry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("registry repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT g.id, g.name, a.id, a.name, COALESCE(a.units, ''), a.datatype
FROM %s g
JOIN %s rel ON rel.%s = g.id
JOIN %s a ON a.id = rel.%s
ORDER BY g.id, a.id`,
		r.tables.GroupingTable, r.tables.RelationTable, r.tables.GroupingFK,
		r.tables.AttributeTable, r.tables.AttributeFK)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []registry.CatalogEntry
	for rows.Next() {
		var entry registry.CatalogEntry
		var datatype string
		if err := rows.Scan(&entry.GroupingID, &entry.GroupingName, &entry.AttributeID, &entry.Attribute, &entry.Units, &datatype); err != nil {
			return nil, err
		}
		entry.Datatype = eav.Datatype(datatype)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// EnsureGrouping creates the grouping if absent and returns its id.
func (r *Repository) EnsureGrouping(ctx context.Context, name, description string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("registry repo: nil db")
	}
	if strings.TrimSpace(name) == "" {
		return 0, registry.ErrEmptyName
	}
	if id, found, err := r.GroupingID(ctx, name); err != nil || found {
		return id, err
	}
	query := fmt.Sprintf(`INSERT INTO %s (name, description) VALUES ($1, NULLIF($2, '')) RETURNING id`, r.tables.GroupingTable)
	var id int64
	if err := r.db.QueryRowContext(ctx, query, name, description).Scan(&id); err != nil {
		if eav.IsUniqueViolation(err) {
			// Lost a race with a concurrent create; the row exists now.
			id, _, lookupErr := r.GroupingID(ctx, name)
			if lookupErr != nil {
				return 0, lookupErr
			}
			return id, nil
		}
		return 0, err
	}
	return id, nil
}

// EnsureAttribute creates the attribute definition if absent and returns its
// id. The datatype is validated here so misconfigured attributes never reach
// the value tables.
func (r *Repository) EnsureAttribute(ctx context.Context, name, units string, datatype eav.Datatype) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("registry repo: nil db")
	}
	if strings.TrimSpace(name) == "" {
		return 0, registry.ErrEmptyName
	}
	if !datatype.Valid() {
		return 0, fmt.Errorf("%w: %q", eav.ErrUnsupportedDatatype, string(datatype))
	}

	lookup := fmt.Sprintf(`SELECT id FROM %s WHERE name = $1 AND COALESCE(units, '') = $2`, r.tables.AttributeTable)
	var id int64
	err := r.db.QueryRowContext(ctx, lookup, name, units).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	insert := fmt.Sprintf(`INSERT INTO %s (name, units, datatype) VALUES ($1, NULLIF($2, ''), $3) RETURNING id`, r.tables.AttributeTable)
	if err := r.db.QueryRowContext(ctx, insert, name, units, string(datatype)).Scan(&id); err != nil {
		if eav.IsUniqueViolation(err) {
			if lookupErr := r.db.QueryRowContext(ctx, lookup, name, units).Scan(&id); lookupErr != nil {
				return 0, lookupErr
			}
			return id, nil
		}
		return 0, err
	}
	return id, nil
}

// LinkAttribute declares an attribute for a grouping. Linking the same pair
// twice is a no-op; the unique constraint keeps the relation duplicate-free.
func (r *Repository) LinkAttribute(ctx context.Context, groupingID, attributeID int64) error {
	if r == nil || r.db == nil {
		return errors.New("registry repo: nil db")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s, %s) VALUES ($1, $2)
ON CONFLICT (%s, %s) DO NOTHING`,
		r.tables.RelationTable, r.tables.GroupingFK, r.tables.AttributeFK,
		r.tables.GroupingFK, r.tables.AttributeFK)
	_, err := r.db.ExecContext(ctx, query, groupingID, attributeID)
	return err
}

// DeleteGrouping removes a grouping; relation rows cascade.
func (r *Repository) DeleteGrouping(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("registry repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.GroupingTable)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
