package eav

import (
	"context"
	"fmt"
	"strings"
)

// AttributeSpec is one resolved attribute of a grouping.
type AttributeSpec struct {
	ID       int64
	Name     string
	Units    string
	Datatype Datatype
}

// Registry resolves grouping metadata. Implemented by the registry Postgres
// repositories; the builder only depends on this read surface.
type Registry interface {
	// GroupingID resolves a grouping name to its id. found is false for an
	// unknown name; that is not an error.
	GroupingID(ctx context.Context, name string) (id int64, found bool, err error)
	// AttributesForGrouping returns the attributes declared for the named
	// grouping, empty (not an error) when the grouping is unknown or has no
	// declared attributes.
	AttributesForGrouping(ctx context.Context, name string) ([]AttributeSpec, error)
}

// EntityRow is one materialized result row: the entity id plus one value per
// attribute, keyed by attribute name.
type EntityRow struct {
	ID     int64
	Values map[string]any
}

// SelectQuery is a lazily-composed select. It is not executed until Query is
// called, so callers may add paging first. Once materialized the result is a
// single pass; re-invoke the builder to run it again.
type SelectQuery struct {
	columns []string
	names   []string
	from    string
	joins   []string
	where   []string
	args    []any
	limit   int
	offset  int
}

func (q *SelectQuery) bind(value any) string {
	q.args = append(q.args, value)
	return fmt.Sprintf("$%d", len(q.args))
}

// Limit caps the number of rows returned. Non-positive values clear the cap.
func (q *SelectQuery) Limit(n int) *SelectQuery {
	q.limit = n
	return q
}

// Offset skips the first n rows.
func (q *SelectQuery) Offset(n int) *SelectQuery {
	q.offset = n
	return q
}

// Columns returns the result column names: "id" plus one per attribute.
func (q *SelectQuery) Columns() []string {
	return append([]string(nil), q.names...)
}

// SQL renders the composed statement with $n placeholders.
func (q *SelectQuery) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.columns, ", "))
	b.WriteString("\nFROM ")
	b.WriteString(q.from)
	for _, join := range q.joins {
		b.WriteString("\n")
		b.WriteString(join)
	}
	if len(q.where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}
	b.WriteString(fmt.Sprintf("\nORDER BY %s.id", q.from))
	if q.limit > 0 {
		b.WriteString(fmt.Sprintf("\nLIMIT %d", q.limit))
	}
	if q.offset > 0 {
		b.WriteString(fmt.Sprintf("\nOFFSET %d", q.offset))
	}
	return b.String()
}

// Args returns the bound arguments in placeholder order.
func (q *SelectQuery) Args() []any {
	return append([]any(nil), q.args...)
}

// Query executes the select on the given session and materializes the rows.
func (q *SelectQuery) Query(ctx context.Context, db DBTX) ([]EntityRow, error) {
	rows, err := db.QueryContext(ctx, q.SQL(), q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EntityRow
	for rows.Next() {
		scanned := make([]any, len(q.names))
		ptrs := make([]any, len(q.names))
		for i := range scanned {
			ptrs[i] = &scanned[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := EntityRow{Values: make(map[string]any, len(q.names)-1)}
		for i, name := range q.names {
			if i == 0 {
				id, ok := scanned[0].(int64)
				if !ok {
					return nil, fmt.Errorf("eav: entity id is %T, want int64", scanned[0])
				}
				row.ID = id
				continue
			}
			row.Values[name] = scanned[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// EntitiesByAttributes builds a query returning one row per entity of the
// named grouping, with one value column per declared attribute. Filters
// constrain individual attribute values; every filter key must be a declared
// attribute name. All joins are inner, so an entity missing a stored value
// for any declared attribute is excluded.
//
// Construction is two-phase: attribute resolution executes a registry query
// before the data query is assembled. Both phases run on whatever session
// backs the registry; callers wanting a consistent snapshot run registry and
// query on one transaction.
//
// An unknown grouping or a grouping with no declared attributes yields a
// query that returns no rows, not an error.
func EntitiesByAttributes(ctx context.Context, reg Registry, family Family, grouping string, filters map[string]any) (*SelectQuery, error) {
	groupingID, found, err := reg.GroupingID(ctx, grouping)
	if err != nil {
		return nil, err
	}
	attrs, err := reg.AttributesForGrouping(ctx, grouping)
	if err != nil {
		return nil, err
	}

	declared := make(map[string]AttributeSpec, len(attrs))
	for _, attr := range attrs {
		declared[attr.Name] = attr
	}
	for name, value := range filters {
		attr, ok := declared[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q not declared for grouping %q", ErrUnknownAttribute, name, grouping)
		}
		if err := CheckValue(attr.Datatype, value); err != nil {
			return nil, err
		}
	}

	q := &SelectQuery{
		from:    family.EntityTable,
		columns: []string{fmt.Sprintf("%s.id", family.EntityTable)},
		names:   []string{"id"},
	}
	if !found || len(attrs) == 0 {
		q.where = append(q.where, "false")
		return q, nil
	}

	for i, attr := range attrs {
		table, err := family.ValueTable(attr.Datatype)
		if err != nil {
			return nil, err
		}
		alias := fmt.Sprintf("v%d", i)
		q.columns = append(q.columns, fmt.Sprintf("%s.value AS %s", alias, quoteIdent(attr.Name)))
		q.names = append(q.names, attr.Name)

		conditions := []string{
			fmt.Sprintf("%s.%s = %s.id", alias, family.EntityFK, family.EntityTable),
			fmt.Sprintf("%s.%s = %s", alias, family.AttributeFK, q.bind(attr.ID)),
		}
		if value, ok := filters[attr.Name]; ok {
			conditions = append(conditions, fmt.Sprintf("%s.value = %s", alias, q.bind(value)))
		}
		q.joins = append(q.joins, fmt.Sprintf("JOIN %s AS %s ON %s", table, alias, strings.Join(conditions, " AND ")))
	}

	q.where = append(q.where, fmt.Sprintf("%s.%s = %s", family.EntityTable, family.GroupingFK, q.bind(groupingID)))
	return q, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
