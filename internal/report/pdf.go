package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

// PDF renders the summary and daily tables as a printable PDF.
func PDF(d *Data) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("Energy Analysis Report - Last %d Days", d.Days))
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 5, fmt.Sprintf("Generated: %s", d.Generated.Format("2006-01-02 15:04:05")))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(70, 6, "Register", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, "Total kWh", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Total Cost", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Avg $/Day", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, name := range d.RankedNames() {
		s := d.Stats[name]
		pdf.CellFormat(70, 6, meter.DisplayName(name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", s.TotalKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("$%.2f", s.TotalCost), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("$%.2f", s.AvgDailyCost), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	totalKWh, totalCost := d.Totals()
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(70, 6, "TOTAL", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", totalKWh), "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, fmt.Sprintf("$%.2f", totalCost), "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, "", "1", 0, "R", false, 0, "")
	pdf.Ln(10)

	if len(d.Daily) > 0 {
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(35, 6, "Date", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "kWh", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Cost", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Peak kWh", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, day := range d.Daily {
			pdf.CellFormat(35, 6, day.Date, "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", day.TotalKWh), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("$%.2f", day.TotalCost), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", day.ByTOU[tariff.Peak].KWh), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	if d.System != nil {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 9)
		pdf.Cell(0, 6, "Solar & Battery")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 9)
		pdf.Cell(0, 5, fmt.Sprintf("Solar generated: %.1f kWh  |  Grid imported: %.1f kWh ($%.2f)", d.System.SolarKWh, d.System.GridImportKWh, d.System.GridCost))
		pdf.Ln(5)
		pdf.Cell(0, 5, fmt.Sprintf("Exported: %.1f kWh ($%.2f credit)  |  Battery: %.1f kWh ($%.2f)", d.System.GridExportKWh, d.System.ExportCredit, d.System.BatteryDischargeKWh, d.System.BatteryCost))
		pdf.Ln(5)
		pdf.Cell(0, 5, fmt.Sprintf("Net cost: $%.2f", d.System.NetCost))
		pdf.Ln(5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("report: writing PDF: %w", err)
	}
	return buf.Bytes(), nil
}
