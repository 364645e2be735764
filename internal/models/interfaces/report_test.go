package interfaces

import (
	"bytes"
	"testing"
	"time"

	models "digitaltwin-cloud/internal/models/domain"
)

func TestBuildRunPDF(t *testing.T) {
	run := &models.Run{
		ID:                  7,
		ModelName:           "solar-forecast",
		ScenarioDescription: "clear sky",
		TimeCreated:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	values := []models.ProductValue{
		{Measure: "mean_prediction", Timestamp: time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC), Value: 4.2},
		{Measure: "mean_prediction", Timestamp: time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC), Value: 4.6},
	}

	payload, err := BuildRunPDF(run, values)
	if err != nil {
		t.Fatalf("BuildRunPDF: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("expected non-empty report")
	}
	if !bytes.HasPrefix(payload, []byte("%PDF")) {
		t.Fatalf("report does not start with PDF header: %q", payload[:8])
	}
}

func TestBuildRunPDF_NoScenario(t *testing.T) {
	run := &models.Run{ID: 1, ModelName: "baseline", TimeCreated: time.Now().UTC()}
	payload, err := BuildRunPDF(run, nil)
	if err != nil {
		t.Fatalf("BuildRunPDF: %v", err)
	}
	if !bytes.HasPrefix(payload, []byte("%PDF")) {
		t.Fatal("report does not start with PDF header")
	}
}
