package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"digitaltwin-cloud/internal/eav"
	registrypostgres "digitaltwin-cloud/internal/registry/infrastructure/postgres"
	sensors "digitaltwin-cloud/internal/sensors/domain"
	sensorspostgres "digitaltwin-cloud/internal/sensors/infrastructure/postgres"
	storage "digitaltwin-cloud/internal/storage/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestSensorReadings_Postgres(t *testing.T) {
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

	typeName := fmt.Sprintf("weather-it-%d", time.Now().UnixNano())

	catalog := registrypostgres.NewRepository(db, eav.SensorRegistry)
	typeID, err := catalog.EnsureGrouping(ctx, typeName, "integration test type")
	if err != nil {
		t.Fatalf("ensure type: %v", err)
	}
	defer func() { _ = catalog.DeleteGrouping(ctx, typeID) }()

	tempID, err := catalog.EnsureAttribute(ctx, "temperature", "Degrees C", eav.DatatypeFloat)
	if err != nil {
		t.Fatalf("ensure measure: %v", err)
	}
	countID, err := catalog.EnsureAttribute(ctx, "pulse_count", "", eav.DatatypeInteger)
	if err != nil {
		t.Fatalf("ensure measure: %v", err)
	}
	if err := catalog.LinkAttribute(ctx, typeID, tempID); err != nil {
		t.Fatalf("link measure: %v", err)
	}
	if err := catalog.LinkAttribute(ctx, typeID, countID); err != nil {
		t.Fatalf("link measure: %v", err)
	}

	repo := sensorspostgres.NewRepository(db, catalog)
	query := sensorspostgres.NewReadingQuery(db, catalog)

	uid := fmt.Sprintf("sensor-it-%d", time.Now().UnixNano())
	sensorID, err := repo.Create(ctx, typeName, uid, "integration sensor", "")
	if err != nil {
		t.Fatalf("create sensor: %v", err)
	}
	defer func() { _ = repo.Delete(ctx, sensorID) }()

	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	batch := []sensors.Reading{
		{Measure: "temperature", Timestamp: base, Value: 21.5},
		{Measure: "temperature", Timestamp: base.Add(10 * time.Minute), Value: 21.7},
		{Measure: "pulse_count", Timestamp: base, Value: int64(3)},
	}
	if err := repo.InsertReadings(ctx, sensorID, batch); err != nil {
		t.Fatalf("insert readings: %v", err)
	}

	// Same (measure, sensor, timestamp) again must fail the whole batch.
	dup := []sensors.Reading{{Measure: "temperature", Timestamp: base, Value: 99.9}}
	if err := repo.InsertReadings(ctx, sensorID, dup); !errors.Is(err, eav.ErrDuplicateValue) {
		t.Fatalf("duplicate reading err = %v, want ErrDuplicateValue", err)
	}

	// A measure the type never declared must be rejected before any write.
	undeclared := []sensors.Reading{{Measure: "humidity", Timestamp: base, Value: 0.4}}
	if err := repo.InsertReadings(ctx, sensorID, undeclared); !errors.Is(err, eav.ErrUnknownAttribute) {
		t.Fatalf("undeclared measure err = %v, want ErrUnknownAttribute", err)
	}

	got, err := query.ReadingsBetween(ctx, sensorID, "temperature", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("readings between: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("readings = %d, want 2", len(got))
	}
	if got[0].Value != 21.5 || got[1].Value != 21.7 {
		t.Fatalf("reading values = %v, %v", got[0].Value, got[1].Value)
	}
	if !got[0].Timestamp.Before(got[1].Timestamp) {
		t.Fatal("readings not ordered by timestamp")
	}

	counts, err := query.ReadingsBetween(ctx, sensorID, "pulse_count", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("readings between: %v", err)
	}
	if len(counts) != 1 || counts[0].Value != int64(3) {
		t.Fatalf("integer readings = %v", counts)
	}

	// Deleting the sensor cascades its reading rows.
	if err := repo.Delete(ctx, sensorID); err != nil {
		t.Fatalf("delete sensor: %v", err)
	}
	var remaining int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sensor_float_reading WHERE sensor_id = $1`, sensorID).Scan(&remaining); err != nil {
		t.Fatalf("count readings: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("readings after delete = %d, want 0", remaining)
	}
}

func TestSensorInstallations_Postgres(t *testing.T) {
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
	typeName := fmt.Sprintf("placement-it-%d", time.Now().UnixNano())
	typeID, err := catalog.EnsureGrouping(ctx, typeName, "")
	if err != nil {
		t.Fatalf("ensure type: %v", err)
	}
	defer func() { _ = catalog.DeleteGrouping(ctx, typeID) }()

	repo := sensorspostgres.NewRepository(db, catalog)
	uid := fmt.Sprintf("placed-it-%d", time.Now().UnixNano())
	sensorID, err := repo.Create(ctx, typeName, uid, "", "")
	if err != nil {
		t.Fatalf("create sensor: %v", err)
	}
	defer func() { _ = repo.Delete(ctx, sensorID) }()

	schemas := registrypostgres.NewRepository(db, eav.LocationRegistry)
	schemaName := fmt.Sprintf("site-it-%d", time.Now().UnixNano())
	schemaID, err := schemas.EnsureGrouping(ctx, schemaName, "")
	if err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	defer func() { _ = schemas.DeleteGrouping(ctx, schemaID) }()

	var locationID int64
	if err := db.QueryRowContext(ctx, `INSERT INTO location (schema_id) VALUES ($1) RETURNING id`, schemaID).Scan(&locationID); err != nil {
		t.Fatalf("insert location: %v", err)
	}
	defer func() { _, _ = db.ExecContext(ctx, `DELETE FROM location WHERE id = $1`, locationID) }()

	first := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.AssignLocation(ctx, sensorID, locationID, first); err != nil {
		t.Fatalf("assign location: %v", err)
	}
	if err := repo.AssignLocation(ctx, sensorID, locationID, first.Add(30*24*time.Hour)); err != nil {
		t.Fatalf("assign location: %v", err)
	}

	history, err := repo.LocationHistory(ctx, sensorID)
	if err != nil {
		t.Fatalf("location history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d, want 2", len(history))
	}
	if !history[0].InstalledAt.Before(history[1].InstalledAt) {
		t.Fatal("history not ordered by installation time")
	}
}
