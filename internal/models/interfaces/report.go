package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	models "digitaltwin-cloud/internal/models/domain"
)

// BuildRunPDF renders a minimal PDF report for a model run.
func BuildRunPDF(run *models.Run, values []models.ProductValue) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Model Run Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Model: %s", run.ModelName))
	pdf.Ln(5)
	if run.ScenarioDescription != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Scenario: %s", run.ScenarioDescription))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Run: %d", run.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Recorded: %s", run.TimeCreated.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Measure", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Timestamp", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, value := range values {
		pdf.CellFormat(60, 6, value.Measure, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, value.Timestamp.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%v", value.Value), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
