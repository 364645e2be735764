package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"digitaltwin-cloud/internal/eav"
	registrypostgres "digitaltwin-cloud/internal/registry/infrastructure/postgres"
	storage "digitaltwin-cloud/internal/storage/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestCatalog_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := storage.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	catalog := registrypostgres.NewRepository(db, eav.SensorRegistry)

	typeName := fmt.Sprintf("catalog-it-%d", time.Now().UnixNano())
	typeID, err := catalog.EnsureGrouping(ctx, typeName, "catalog test type")
	if err != nil {
		t.Fatalf("ensure grouping: %v", err)
	}
	defer func() { _ = catalog.DeleteGrouping(ctx, typeID) }()

	// EnsureGrouping is idempotent.
	again, err := catalog.EnsureGrouping(ctx, typeName, "catalog test type")
	if err != nil || again != typeID {
		t.Fatalf("EnsureGrouping not idempotent: %d vs %d (%v)", typeID, again, err)
	}

	tempID, err := catalog.EnsureAttribute(ctx, "temperature", "Degrees C", eav.DatatypeFloat)
	if err != nil {
		t.Fatalf("ensure attribute: %v", err)
	}
	flagID, err := catalog.EnsureAttribute(ctx, "is_raining", "", eav.DatatypeBoolean)
	if err != nil {
		t.Fatalf("ensure attribute: %v", err)
	}
	// Same name, different units is a distinct attribute.
	tempFID, err := catalog.EnsureAttribute(ctx, "temperature", "Degrees F", eav.DatatypeFloat)
	if err != nil {
		t.Fatalf("ensure attribute: %v", err)
	}
	if tempFID == tempID {
		t.Fatal("attributes with different units must be distinct")
	}

	if err := catalog.LinkAttribute(ctx, typeID, tempID); err != nil {
		t.Fatalf("link attribute: %v", err)
	}
	if err := catalog.LinkAttribute(ctx, typeID, flagID); err != nil {
		t.Fatalf("link attribute: %v", err)
	}
	// Linking twice is a no-op.
	if err := catalog.LinkAttribute(ctx, typeID, tempID); err != nil {
		t.Fatalf("relink attribute: %v", err)
	}

	attrs, err := catalog.AttributesForGrouping(ctx, typeName)
	if err != nil {
		t.Fatalf("attributes for grouping: %v", err)
	}
	if len(attrs) != 2 {
		t.Fatalf("attrs = %d, want 2", len(attrs))
	}
	if attrs[0].Name != "temperature" || attrs[0].Units != "Degrees C" || attrs[0].Datatype != eav.DatatypeFloat {
		t.Fatalf("attr 0 = %+v", attrs[0])
	}
	if attrs[1].Name != "is_raining" || attrs[1].Datatype != eav.DatatypeBoolean {
		t.Fatalf("attr 1 = %+v", attrs[1])
	}

	// An unknown grouping yields no attributes and no id.
	if _, found, err := catalog.GroupingID(ctx, "no-such-grouping"); err != nil || found {
		t.Fatalf("unknown grouping: found=%v err=%v", found, err)
	}
	none, err := catalog.AttributesForGrouping(ctx, "no-such-grouping")
	if err != nil {
		t.Fatalf("unknown grouping attrs: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("unknown grouping attrs = %d, want 0", len(none))
	}

	// The full catalog join carries this grouping's pairs.
	entries, err := catalog.Entries(ctx)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	pairs := 0
	for _, entry := range entries {
		if entry.GroupingID == typeID {
			pairs++
		}
	}
	if pairs != 2 {
		t.Fatalf("catalog pairs for grouping = %d, want 2", pairs)
	}

	// Deleting a grouping cascades its relation rows but keeps the
	// attribute definitions.
	if err := catalog.DeleteGrouping(ctx, typeID); err != nil {
		t.Fatalf("delete grouping: %v", err)
	}
	var relations int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sensor_type_measure_relation WHERE type_id = $1`, typeID).Scan(&relations); err != nil {
		t.Fatalf("count relations: %v", err)
	}
	if relations != 0 {
		t.Fatalf("relations after delete = %d, want 0", relations)
	}
	var attrCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sensor_measure WHERE id = $1`, tempID).Scan(&attrCount); err != nil {
		t.Fatalf("count attributes: %v", err)
	}
	if attrCount != 1 {
		t.Fatal("attribute definition must survive grouping delete")
	}
}
