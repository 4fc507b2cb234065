package report

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Energy Report - Last {{.Days}} Days</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; margin: 24px; color: #222; }
h1 { font-size: 22px; }
h2 { font-size: 17px; margin-top: 28px; border-bottom: 2px solid #ddd; padding-bottom: 4px; }
table { border-collapse: collapse; width: 100%; margin-top: 8px; }
th, td { text-align: right; padding: 5px 10px; border-bottom: 1px solid #eee; font-size: 13px; }
th { background: #f5f5f5; }
th:first-child, td:first-child { text-align: left; }
tr.total td { font-weight: bold; border-top: 2px solid #bbb; }
.muted { color: #888; font-size: 12px; }
.savings { color: #0a7d32; font-weight: bold; }
</style>
</head>
<body>
<h1>Energy Analysis Report - Last {{.Days}} Days</h1>
<p class="muted">Generated {{.Generated}}</p>

<h2>Summary - Ranked by Total Cost</h2>
<table>
<tr><th>Register</th><th>Total kWh</th><th>Total Cost</th><th>Avg kWh/Day</th><th>Avg $/Day</th></tr>
{{range .Rows}}<tr><td>{{.Name}}</td><td>{{printf "%.2f" .KWh}}</td><td>${{printf "%.2f" .Cost}}</td><td>{{printf "%.2f" .DailyKWh}}</td><td>${{printf "%.2f" .DailyCost}}</td></tr>
{{end}}<tr class="total"><td>TOTAL</td><td>{{printf "%.2f" .TotalKWh}}</td><td>${{printf "%.2f" .TotalCost}}</td><td></td><td></td></tr>
</table>

{{if .Daily}}<h2>Daily Totals</h2>
<table>
<tr><th>Date</th><th>kWh</th><th>Cost</th><th>Peak kWh</th><th>Part-Peak kWh</th><th>Off-Peak kWh</th></tr>
{{range .Daily}}<tr><td>{{.Date}}</td><td>{{printf "%.2f" .KWh}}</td><td>${{printf "%.2f" .Cost}}</td><td>{{printf "%.2f" .PeakKWh}}</td><td>{{printf "%.2f" .PartPeakKWh}}</td><td>{{printf "%.2f" .OffPeakKWh}}</td></tr>
{{end}}</table>{{end}}

{{if .System}}<h2>Solar &amp; Battery</h2>
<table>
<tr><th>Metric</th><th>kWh</th><th>$</th></tr>
<tr><td>Solar generated</td><td>{{printf "%.1f" .System.SolarKWh}}</td><td></td></tr>
<tr><td>Grid imported</td><td>{{printf "%.1f" .System.GridImportKWh}}</td><td>${{printf "%.2f" .System.GridCost}}</td></tr>
<tr><td>Grid exported</td><td>{{printf "%.1f" .System.GridExportKWh}}</td><td>-${{printf "%.2f" .System.ExportCredit}}</td></tr>
<tr><td>Battery discharged</td><td>{{printf "%.1f" .System.BatteryDischargeKWh}}</td><td>${{printf "%.2f" .System.BatteryCost}}</td></tr>
<tr class="total"><td>Net cost</td><td></td><td>${{printf "%.2f" .System.NetCost}}</td></tr>
</table>{{end}}

{{if .Opportunities}}<h2>Time-Shifting Opportunities</h2>
<table>
<tr><th>Circuit</th><th>Peak %</th><th>Peak Cost</th><th>Potential Savings</th></tr>
{{range .Opportunities}}<tr><td>{{.Circuit}}</td><td>{{printf "%.1f" .PeakPercent}}%</td><td>${{printf "%.2f" .PeakCost}}</td><td class="savings">${{printf "%.2f" .PotentialSavings}}/week</td></tr>
{{end}}</table>{{end}}

<p class="muted">Peak 4-9pm &middot; Part-Peak 3-4pm, 9pm-12am &middot; Off-Peak 12am-3pm</p>
</body>
</html>
`

var htmlTmpl = template.Must(template.New("report").Parse(htmlTemplate))

type htmlRow struct {
	Name      string
	KWh       float64
	Cost      float64
	DailyKWh  float64
	DailyCost float64
}

type htmlDaily struct {
	Date        string
	KWh         float64
	Cost        float64
	PeakKWh     float64
	PartPeakKWh float64
	OffPeakKWh  float64
}

// HTML renders the report as an email-friendly HTML document.
func HTML(d *Data) (string, error) {
	rows := make([]htmlRow, 0, len(d.Stats))
	for _, name := range d.RankedNames() {
		s := d.Stats[name]
		rows = append(rows, htmlRow{
			Name:      meter.DisplayName(name),
			KWh:       s.TotalKWh,
			Cost:      s.TotalCost,
			DailyKWh:  s.AvgDailyKWh,
			DailyCost: s.AvgDailyCost,
		})
	}

	daily := make([]htmlDaily, 0, len(d.Daily))
	for _, day := range d.Daily {
		daily = append(daily, htmlDaily{
			Date:        day.Date,
			KWh:         day.TotalKWh,
			Cost:        day.TotalCost,
			PeakKWh:     day.ByTOU[tariff.Peak].KWh,
			PartPeakKWh: day.ByTOU[tariff.PartPeak].KWh,
			OffPeakKWh:  day.ByTOU[tariff.OffPeak].KWh,
		})
	}

	totalKWh, totalCost := d.Totals()
	ctx := struct {
		Days          int
		Generated     string
		Rows          []htmlRow
		TotalKWh      float64
		TotalCost     float64
		Daily         []htmlDaily
		System        any
		Opportunities any
	}{
		Days:      d.Days,
		Generated: d.Generated.Format("2006-01-02 15:04:05"),
		Rows:      rows,
		TotalKWh:  totalKWh,
		TotalCost: totalCost,
		Daily:     daily,
	}
	if d.System != nil {
		ctx.System = d.System
	}
	if len(d.Opportunities) > 0 {
		ctx.Opportunities = d.Opportunities
	}

	var b strings.Builder
	if err := htmlTmpl.Execute(&b, ctx); err != nil {
		return "", fmt.Errorf("report: rendering HTML: %w", err)
	}
	return b.String(), nil
}
