package datalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// HistoryExport is a snapshot of the four series plus the figures the
// summary report prints.
type HistoryExport struct {
	Voltage       []float64
	Current       []float64
	Power         []float64
	Energy        []float64
	Interval      time.Duration
	GeneratedAt   time.Time
	CumulativeKWh float64
	Cost          float64
	BudgetKWh     float64
}

func (h HistoryExport) rows() ([]time.Time, int) {
	n := len(h.Voltage)
	return backdate(h.GeneratedAt, n, h.Interval), n
}

// BuildHistoryCSV renders the history snapshot as CSV.
func BuildHistoryCSV(export HistoryExport) ([]byte, error) {
	stamps, n := export.rows()
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(sampleHeader); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		row := []string{
			stamps[i].Format(timeLayout),
			fmt.Sprintf("%.1f", export.Voltage[i]),
			fmt.Sprintf("%.1f", export.Current[i]),
			fmt.Sprintf("%.1f", export.Power[i]),
			fmt.Sprintf("%.4f", export.Energy[i]),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders the history snapshot as a workbook with a
// summary sheet and a samples sheet.
func BuildHistoryXLSX(export HistoryExport) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	samplesSheet := "samples"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(samplesSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Load Monitoring History")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", export.GeneratedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Samples")
	_ = f.SetCellValue(summarySheet, "B4", len(export.Voltage))
	_ = f.SetCellValue(summarySheet, "A5", "Cumulative Energy (kWh)")
	_ = f.SetCellValue(summarySheet, "B5", export.CumulativeKWh)
	_ = f.SetCellValue(summarySheet, "A6", "Cost")
	_ = f.SetCellValue(summarySheet, "B6", export.Cost)
	_ = f.SetCellValue(summarySheet, "A7", "Energy Budget (kWh)")
	_ = f.SetCellValue(summarySheet, "B7", export.BudgetKWh)

	for col, name := range sampleHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(samplesSheet, cell, name)
	}
	stamps, n := export.rows()
	for i := 0; i < n; i++ {
		row := i + 2
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("A%d", row), stamps[i].Format(timeLayout))
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("B%d", row), export.Voltage[i])
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("C%d", row), export.Current[i])
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("D%d", row), export.Power[i])
		_ = f.SetCellValue(samplesSheet, fmt.Sprintf("E%d", row), export.Energy[i])
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSummaryPDF renders a one-page consumption summary.
func BuildSummaryPDF(export HistoryExport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Load Monitoring Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", export.GeneratedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Samples: %d at %s interval", len(export.Voltage), export.Interval))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Cumulative Energy: %.3f kWh", export.CumulativeKWh))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Cost: %.2f", export.Cost))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Energy Budget: %.1f kWh", export.BudgetKWh))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Series", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Min", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Max", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Mean", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, series := range []struct {
		name   string
		values []float64
	}{
		{"Voltage (V)", export.Voltage},
		{"Current (A)", export.Current},
		{"Power (W)", export.Power},
		{"Energy (kWh)", export.Energy},
	} {
		lo, hi, mean := seriesStats(series.values)
		pdf.CellFormat(45, 6, series.name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", lo), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", hi), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", mean), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func seriesStats(values []float64) (lo, hi, mean float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	lo, hi = values[0], values[0]
	var sum float64
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		sum += v
	}
	return lo, hi, sum / float64(len(values))
}
