package eav

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeRegistry struct {
	groupings map[string]int64
	attrs     map[string][]AttributeSpec
}

func (r *fakeRegistry) GroupingID(_ context.Context, name string) (int64, bool, error) {
	id, ok := r.groupings[name]
	return id, ok, nil
}

func (r *fakeRegistry) AttributesForGrouping(_ context.Context, name string) ([]AttributeSpec, error) {
	return r.attrs[name], nil
}

func latlongRegistry() *fakeRegistry {
	return &fakeRegistry{
		groupings: map[string]int64{"latlong": 7},
		attrs: map[string][]AttributeSpec{
			"latlong": {
				{ID: 1, Name: "latitude", Datatype: DatatypeFloat},
				{ID: 2, Name: "longitude", Datatype: DatatypeFloat},
			},
		},
	}
}

func TestEntitiesByAttributes_NoFilters(t *testing.T) {
	q, err := EntitiesByAttributes(context.Background(), latlongRegistry(), Locations, "latlong", nil)
	if err != nil {
		t.Fatalf("build query: %v", err)
	}

	sql := q.SQL()
	wantFragments := []string{
		`SELECT location.id, v0.value AS "latitude", v1.value AS "longitude"`,
		"FROM location",
		"JOIN location_float_value AS v0 ON v0.location_id = location.id AND v0.identifier_id = $1",
		"JOIN location_float_value AS v1 ON v1.location_id = location.id AND v1.identifier_id = $2",
		"WHERE location.schema_id = $3",
		"ORDER BY location.id",
	}
	for _, fragment := range wantFragments {
		if !strings.Contains(sql, fragment) {
			t.Fatalf("missing fragment %q in:\n%s", fragment, sql)
		}
	}

	args := q.Args()
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}
	if args[0] != int64(1) || args[1] != int64(2) || args[2] != int64(7) {
		t.Fatalf("unexpected args: %v", args)
	}
	cols := q.Columns()
	if len(cols) != 3 || cols[0] != "id" || cols[1] != "latitude" || cols[2] != "longitude" {
		t.Fatalf("unexpected columns: %v", cols)
	}
}

func TestEntitiesByAttributes_Filter(t *testing.T) {
	q, err := EntitiesByAttributes(context.Background(), latlongRegistry(), Locations, "latlong", map[string]any{"latitude": 0.0})
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	if !strings.Contains(q.SQL(), "v0.value = $2") {
		t.Fatalf("expected filter condition in:\n%s", q.SQL())
	}
	args := q.Args()
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %v", args)
	}
	if args[1] != 0.0 {
		t.Fatalf("expected filter value bound second, got %v", args)
	}
}

func TestEntitiesByAttributes_UnknownFilterKey(t *testing.T) {
	_, err := EntitiesByAttributes(context.Background(), latlongRegistry(), Locations, "latlong", map[string]any{"altitude": 1.0})
	if !errors.Is(err, ErrUnknownAttribute) {
		t.Fatalf("expected ErrUnknownAttribute, got %v", err)
	}
}

func TestEntitiesByAttributes_FilterTypeMismatch(t *testing.T) {
	_, err := EntitiesByAttributes(context.Background(), latlongRegistry(), Locations, "latlong", map[string]any{"latitude": "zero"})
	if !errors.Is(err, ErrValueMismatch) {
		t.Fatalf("expected ErrValueMismatch, got %v", err)
	}
}

func TestEntitiesByAttributes_UnknownGrouping(t *testing.T) {
	q, err := EntitiesByAttributes(context.Background(), latlongRegistry(), Locations, "nowhere", nil)
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	if !strings.Contains(q.SQL(), "WHERE false") {
		t.Fatalf("expected no-row query, got:\n%s", q.SQL())
	}
}

func TestEntitiesByAttributes_NoDeclaredAttributes(t *testing.T) {
	reg := latlongRegistry()
	reg.groupings["bare"] = 9
	q, err := EntitiesByAttributes(context.Background(), reg, Locations, "bare", nil)
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	if !strings.Contains(q.SQL(), "WHERE false") {
		t.Fatalf("expected no-row query, got:\n%s", q.SQL())
	}
}

func TestEntitiesByAttributes_UnknownGroupingWithFilter(t *testing.T) {
	_, err := EntitiesByAttributes(context.Background(), latlongRegistry(), Locations, "nowhere", map[string]any{"latitude": 0.0})
	if !errors.Is(err, ErrUnknownAttribute) {
		t.Fatalf("expected ErrUnknownAttribute, got %v", err)
	}
}

func TestSelectQuery_Paging(t *testing.T) {
	q, err := EntitiesByAttributes(context.Background(), latlongRegistry(), Locations, "latlong", nil)
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	sql := q.Limit(10).Offset(20).SQL()
	if !strings.Contains(sql, "LIMIT 10") || !strings.Contains(sql, "OFFSET 20") {
		t.Fatalf("expected paging clauses in:\n%s", sql)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent(`weird"name`); got != `"weird""name"` {
		t.Fatalf("unexpected quoting: %s", got)
	}
}
