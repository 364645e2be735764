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
	models "digitaltwin-cloud/internal/models/domain"
	modelspostgres "digitaltwin-cloud/internal/models/infrastructure/postgres"
	storage "digitaltwin-cloud/internal/storage/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestModelRuns_Postgres(t *testing.T) {
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

	repo := modelspostgres.NewRepository(db)

	modelName := fmt.Sprintf("forecast-it-%d", time.Now().UnixNano())
	modelID, err := repo.CreateModel(ctx, modelName)
	if err != nil {
		t.Fatalf("create model: %v", err)
	}
	defer func() { _ = repo.DeleteModel(ctx, modelID) }()

	if _, err := repo.CreateModel(ctx, modelName); !errors.Is(err, models.ErrDuplicateModel) {
		t.Fatalf("duplicate model err = %v, want ErrDuplicateModel", err)
	}

	measureName := fmt.Sprintf("mean-it-%d", time.Now().UnixNano())
	if _, err := repo.EnsureMeasure(ctx, measureName, "kWh", eav.DatatypeFloat); err != nil {
		t.Fatalf("ensure measure: %v", err)
	}
	// Second call must return the same row, not insert a duplicate.
	firstID, _ := repo.EnsureMeasure(ctx, measureName, "kWh", eav.DatatypeFloat)
	secondID, err := repo.EnsureMeasure(ctx, measureName, "kWh", eav.DatatypeFloat)
	if err != nil || firstID != secondID {
		t.Fatalf("EnsureMeasure not idempotent: %d vs %d (%v)", firstID, secondID, err)
	}

	base := time.Date(2026, time.March, 1, 13, 0, 0, 0, time.UTC)
	runID, err := repo.CreateRun(ctx, modelspostgres.RunSpec{
		Model:    modelName,
		Scenario: "clear sky",
		Products: []modelspostgres.ProductSpec{{
			Measure: measureName,
			Values: []models.ProductValue{
				{Timestamp: base, Value: 4.2},
				{Timestamp: base.Add(time.Hour), Value: 4.6},
			},
		}},
	})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	run, err := repo.Run(ctx, runID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.ModelName != modelName || run.ScenarioDescription != "clear sky" {
		t.Fatalf("run = %+v", run)
	}

	values, err := repo.RunValues(ctx, runID)
	if err != nil {
		t.Fatalf("run values: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("values = %d, want 2", len(values))
	}
	if values[0].Value != 4.2 || values[1].Value != 4.6 {
		t.Fatalf("value payloads = %v, %v", values[0].Value, values[1].Value)
	}
	if !values[0].Timestamp.Before(values[1].Timestamp) {
		t.Fatal("values not ordered by timestamp")
	}

	runs, err := repo.ListRuns(ctx, modelName)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != runID {
		t.Fatalf("runs = %+v", runs)
	}

	// An unknown model must be rejected before any write.
	if _, err := repo.CreateRun(ctx, modelspostgres.RunSpec{
		Model:    "no-such-model",
		Products: []modelspostgres.ProductSpec{{Measure: measureName}},
	}); !errors.Is(err, models.ErrUnknownModel) {
		t.Fatalf("unknown model err = %v, want ErrUnknownModel", err)
	}

	// A value whose type contradicts the measure's datatype fails the run.
	if _, err := repo.CreateRun(ctx, modelspostgres.RunSpec{
		Model: modelName,
		Products: []modelspostgres.ProductSpec{{
			Measure: measureName,
			Values:  []models.ProductValue{{Timestamp: base, Value: "not a float"}},
		}},
	}); !errors.Is(err, eav.ErrValueMismatch) {
		t.Fatalf("bad value err = %v, want ErrValueMismatch", err)
	}
}
