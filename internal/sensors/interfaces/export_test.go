package interfaces

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	sensors "digitaltwin-cloud/internal/sensors/domain"
)

func TestBuildReadingsXLSX(t *testing.T) {
	sensor := &sensors.Sensor{ID: 1, UniqueIdentifier: "weather-001", Name: "roof station"}
	readings := []sensors.Reading{
		{Measure: "temperature", Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), Value: 21.5},
		{Measure: "temperature", Timestamp: time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC), Value: 21.7},
	}

	payload, err := BuildReadingsXLSX(sensor, "temperature", readings)
	if err != nil {
		t.Fatalf("BuildReadingsXLSX: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("expected non-empty workbook")
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue("summary", "B3")
	if err != nil {
		t.Fatalf("read summary cell: %v", err)
	}
	if got != "weather-001" {
		t.Fatalf("summary sensor = %q, want weather-001", got)
	}

	got, err = f.GetCellValue("readings", "A2")
	if err != nil {
		t.Fatalf("read readings cell: %v", err)
	}
	if got != "2026-03-01T10:00:00Z" {
		t.Fatalf("first timestamp = %q", got)
	}
}
