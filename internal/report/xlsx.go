package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

// XLSX renders the report as a workbook with summary, daily and TOU sheets.
func XLSX(d *Data) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	dailySheet := "daily"
	touSheet := "by_tou"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(dailySheet)
	f.NewSheet(touSheet)

	_ = f.SetCellValue(summarySheet, "A1", fmt.Sprintf("Energy Analysis Report - Last %d Days", d.Days))
	_ = f.SetCellValue(summarySheet, "A2", "Generated")
	_ = f.SetCellValue(summarySheet, "B2", d.Generated.Format("2006-01-02 15:04:05"))

	headers := []string{"Register", "Total kWh", "Total Cost", "Avg kWh/Day", "Avg $/Day"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		_ = f.SetCellValue(summarySheet, cell, h)
	}
	row := 5
	for _, name := range d.RankedNames() {
		s := d.Stats[name]
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), meter.DisplayName(name))
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), s.TotalKWh)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), s.TotalCost)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), s.AvgDailyKWh)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("E%d", row), s.AvgDailyCost)
		row++
	}
	totalKWh, totalCost := d.Totals()
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "TOTAL")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), totalKWh)
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), totalCost)

	dailyHeaders := []string{"Date", "Total kWh", "Total Cost", "Peak kWh", "Peak Cost", "Part-Peak kWh", "Part-Peak Cost", "Off-Peak kWh", "Off-Peak Cost"}
	for i, h := range dailyHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(dailySheet, cell, h)
	}
	for i, day := range d.Daily {
		r := i + 2
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("A%d", r), day.Date)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("B%d", r), day.TotalKWh)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("C%d", r), day.TotalCost)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("D%d", r), day.ByTOU[tariff.Peak].KWh)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("E%d", r), day.ByTOU[tariff.Peak].Cost)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("F%d", r), day.ByTOU[tariff.PartPeak].KWh)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("G%d", r), day.ByTOU[tariff.PartPeak].Cost)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("H%d", r), day.ByTOU[tariff.OffPeak].KWh)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("I%d", r), day.ByTOU[tariff.OffPeak].Cost)
	}

	touHeaders := []string{"Register", "Period", "kWh", "Cost", "% of Total"}
	for i, h := range touHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(touSheet, cell, h)
	}
	row = 2
	for _, name := range d.RankedNames() {
		s := d.Stats[name]
		for _, p := range tariff.Periods {
			b := s.ByTOU[p]
			_ = f.SetCellValue(touSheet, fmt.Sprintf("A%d", row), meter.DisplayName(name))
			_ = f.SetCellValue(touSheet, fmt.Sprintf("B%d", row), periodTitle(p))
			_ = f.SetCellValue(touSheet, fmt.Sprintf("C%d", row), b.KWh)
			_ = f.SetCellValue(touSheet, fmt.Sprintf("D%d", row), b.Cost)
			_ = f.SetCellValue(touSheet, fmt.Sprintf("E%d", row), b.Percent)
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("report: writing XLSX: %w", err)
	}
	return buf.Bytes(), nil
}
