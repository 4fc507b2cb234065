// Package report renders the periodic analysis as text, HTML, XLSX and PDF.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/epheterson/energy-dashboard/internal/analysis"
	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/solar"
	"github.com/epheterson/energy-dashboard/internal/store"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

// Data is everything a rendering needs. Previous, Averages, System and
// Blended are optional; nil sections are left out of the output.
type Data struct {
	Generated     time.Time
	Days          int
	Stats         map[string]*analysis.RegisterStats
	Daily         []analysis.DailyTotal
	Opportunities []analysis.Opportunity

	Previous *store.WeeklyReport
	Averages *store.Averages

	System  *solar.SystemTotals
	Blended map[string]*solar.BlendedStats
}

// RankedNames returns register names ordered by total cost descending, name
// ascending on ties.
func (d *Data) RankedNames() []string {
	names := make([]string, 0, len(d.Stats))
	for name := range d.Stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := d.Stats[names[i]], d.Stats[names[j]]
		if a.TotalCost != b.TotalCost {
			return a.TotalCost > b.TotalCost
		}
		return names[i] < names[j]
	})
	return names
}

// Totals sums kWh and cost across all registers.
func (d *Data) Totals() (kwh, cost float64) {
	for _, s := range d.Stats {
		kwh += s.TotalKWh
		cost += s.TotalCost
	}
	return kwh, cost
}

const rule = "===================================================================================================="
const thinRule = "----------------------------------------------------------------------------------------------------"

// Text renders the plain-text report.
func Text(d *Data) string {
	var b strings.Builder

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Energy Analysis Report - Last %d Days\n", d.Days)
	fmt.Fprintf(&b, "Report Generated: %s\n", d.Generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)

	writeSummary(&b, d)
	writeTrends(&b, d)
	writeTOUDetail(&b, d)
	writeSolar(&b, d)
	writeOpportunities(&b, d)
	writeFooter(&b)

	return b.String()
}

func writeSummary(b *strings.Builder, d *Data) {
	fmt.Fprintln(b, "SUMMARY - Ranked by Total Cost")
	fmt.Fprintln(b, thinRule)
	fmt.Fprintf(b, "%-45s %12s %12s %12s %12s\n", "Register", "Total kWh", "Total Cost", "Avg/Day", "$/Day")
	fmt.Fprintln(b, thinRule)

	for _, name := range d.RankedNames() {
		s := d.Stats[name]
		fmt.Fprintf(b, "%-45s %12.2f $%11.2f %12.2f $%11.2f\n",
			meter.DisplayName(name), s.TotalKWh, s.TotalCost, s.AvgDailyKWh, s.AvgDailyCost)
	}

	kwh, cost := d.Totals()
	fmt.Fprintln(b, thinRule)
	fmt.Fprintf(b, "%-45s %12.2f $%11.2f\n", "TOTAL", kwh, cost)
	fmt.Fprintln(b)
}

func writeTrends(b *strings.Builder, d *Data) {
	if d.Previous == nil && d.Averages == nil {
		return
	}

	fmt.Fprintln(b)
	fmt.Fprintln(b, "TREND ANALYSIS")
	fmt.Fprintln(b, rule)

	kwh, cost := d.Totals()

	if d.Previous != nil {
		kwhChange := kwh - d.Previous.TotalKWh
		costChange := cost - d.Previous.TotalCost
		var kwhPct, costPct float64
		if d.Previous.TotalKWh > 0 {
			kwhPct = kwhChange / d.Previous.TotalKWh * 100
		}
		if d.Previous.TotalCost > 0 {
			costPct = costChange / d.Previous.TotalCost * 100
		}

		fmt.Fprintln(b)
		fmt.Fprintln(b, "Week-over-Week Comparison:")
		fmt.Fprintln(b, thinRule)
		fmt.Fprintf(b, "  %-20s %15s %15s %15s %10s\n", "Metric", "Previous", "Current", "Change", "%")
		fmt.Fprintln(b, thinRule)
		fmt.Fprintf(b, "  %-20s %15.2f %15.2f %+15.2f %+9.1f%%\n", "Energy (kWh)", d.Previous.TotalKWh, kwh, kwhChange, kwhPct)
		fmt.Fprintf(b, "  %-20s $%14.2f $%14.2f $%+14.2f %+9.1f%%\n", "Cost ($)", d.Previous.TotalCost, cost, costChange, costPct)

		switch {
		case kwhPct > 10:
			fmt.Fprintf(b, "\n  ! ALERT: Energy usage INCREASED by %.1f%% vs last week\n", kwhPct)
		case kwhPct < -10:
			fmt.Fprintf(b, "\n  * GOOD: Energy usage DECREASED by %.1f%% vs last week\n", -kwhPct)
		}
	} else {
		fmt.Fprintln(b)
		fmt.Fprintln(b, "  (No previous week data available for comparison)")
	}

	if d.Averages != nil && d.Days > 0 {
		dailyKWh := kwh / float64(d.Days)
		dailyCost := cost / float64(d.Days)

		fmt.Fprintln(b)
		fmt.Fprintf(b, "30-Day Historical Average (%d days of data):\n", d.Averages.DaysAnalyzed)
		fmt.Fprintln(b, thinRule)
		fmt.Fprintf(b, "  %-20s %15s %15s %15s\n", "Metric", "30-Day Avg", "This Week", "Difference")
		fmt.Fprintln(b, thinRule)
		fmt.Fprintf(b, "  %-20s %15.2f %15.2f %+15.2f\n", "Daily kWh", d.Averages.AvgDailyKWh, dailyKWh, dailyKWh-d.Averages.AvgDailyKWh)
		fmt.Fprintf(b, "  %-20s $%14.2f $%14.2f $%+14.2f\n", "Daily Cost", d.Averages.AvgDailyCost, dailyCost, dailyCost-d.Averages.AvgDailyCost)
	}
	fmt.Fprintln(b)
}

func writeTOUDetail(b *strings.Builder, d *Data) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, "DETAILED BREAKDOWN BY TIME-OF-USE PERIOD")
	fmt.Fprintln(b, rule)

	for _, name := range d.RankedNames() {
		s := d.Stats[name]
		fmt.Fprintln(b)
		fmt.Fprintln(b, meter.DisplayName(name))
		fmt.Fprintln(b, thinRule)
		fmt.Fprintf(b, "%-15s %12s %12s %12s %12s\n", "Period", "kWh", "Cost", "% of Total", "Avg Rate")
		fmt.Fprintln(b, thinRule)

		for _, p := range tariff.Periods {
			bucket := s.ByTOU[p]
			avgRate := 0.0
			if bucket.KWh > 0 {
				avgRate = bucket.Cost / bucket.KWh
			}
			fmt.Fprintf(b, "%-15s %12.2f $%11.2f %11.1f%% $%11.4f\n",
				periodTitle(p), bucket.KWh, bucket.Cost, bucket.Percent, avgRate)
		}

		fmt.Fprintln(b, thinRule)
		fmt.Fprintf(b, "%-15s %12.2f $%11.2f %11.1f%%\n", "TOTAL", s.TotalKWh, s.TotalCost, 100.0)
	}
	fmt.Fprintln(b)
}

func writeSolar(b *strings.Builder, d *Data) {
	if d.System == nil {
		return
	}
	sys := d.System

	fmt.Fprintln(b)
	fmt.Fprintln(b, "SOLAR & BATTERY SOURCE ATTRIBUTION")
	fmt.Fprintln(b, rule)
	fmt.Fprintf(b, "  Solar generated:     %10.1f kWh\n", sys.SolarKWh)
	fmt.Fprintf(b, "  Grid imported:       %10.1f kWh   $%8.2f\n", sys.GridImportKWh, sys.GridCost)
	fmt.Fprintf(b, "  Grid exported:       %10.1f kWh   $%8.2f credit\n", sys.GridExportKWh, sys.ExportCredit)
	fmt.Fprintf(b, "  Battery charged:     %10.1f kWh (%.0f%% from solar)\n", sys.BatteryChargeKWh, sys.Battery.SolarPercent)
	fmt.Fprintf(b, "  Battery discharged:  %10.1f kWh   $%8.2f at $%.4f/kWh\n", sys.BatteryDischargeKWh, sys.BatteryCost, sys.Battery.CostPerKWh)
	fmt.Fprintf(b, "  Round-trip loss:     %10.1f kWh (measured efficiency %.0f%%)\n", sys.EnergyLostKWh, sys.Battery.MeasuredEfficiency*100)
	fmt.Fprintln(b, thinRule)
	fmt.Fprintf(b, "  NET COST:            $%9.2f (grid + battery - export credit)\n", sys.NetCost)
	fmt.Fprintln(b)

	if len(d.Blended) == 0 {
		return
	}

	fmt.Fprintln(b, "Per-Circuit Actual Cost (grid + battery share):")
	fmt.Fprintln(b, thinRule)
	fmt.Fprintf(b, "%-45s %10s %10s %10s %10s\n", "Register", "Grid kWh", "Solar kWh", "Batt kWh", "Actual $")
	fmt.Fprintln(b, thinRule)

	names := make([]string, 0, len(d.Blended))
	for name := range d.Blended {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, c := d.Blended[names[i]], d.Blended[names[j]]
		if a.ActualCost != c.ActualCost {
			return a.ActualCost > c.ActualCost
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		s := d.Blended[name]
		fmt.Fprintf(b, "%-45s %10.2f %10.2f %10.2f $%9.2f\n",
			meter.DisplayName(name), s.GridKWh, s.SolarKWh, s.BatteryKWh, s.ActualCost)
	}
	fmt.Fprintln(b)
}

func writeOpportunities(b *strings.Builder, d *Data) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, "ALERTS & RECOMMENDATIONS")
	fmt.Fprintln(b, rule)
	fmt.Fprintln(b)
	fmt.Fprintln(b, "Potential Savings from Time-Shifting:")
	fmt.Fprintln(b, thinRule)

	if len(d.Opportunities) == 0 {
		fmt.Fprintln(b)
		fmt.Fprintln(b, "[OK] No alerts - all consumption within normal parameters")
		return
	}

	for _, o := range d.Opportunities {
		fmt.Fprintf(b, "%-45s Peak: %5.1f%% ($%.2f) -> Potential savings: $%6.2f/week\n",
			o.Circuit, o.PeakPercent, o.PeakCost, o.PotentialSavings)
	}
}

func writeFooter(b *strings.Builder) {
	fmt.Fprintln(b)
	fmt.Fprintln(b, rule)
	fmt.Fprintln(b)
	fmt.Fprintln(b, "TOU Period Definitions:")
	fmt.Fprintln(b, "  Peak: 4:00 PM - 9:00 PM (highest rates)")
	fmt.Fprintln(b, "  Part-Peak: 3:00 PM - 4:00 PM and 9:00 PM - 12:00 AM (medium rates)")
	fmt.Fprintln(b, "  Off-Peak: 12:00 AM - 3:00 PM (lowest rates)")
	fmt.Fprintln(b)
}

func periodTitle(p tariff.Period) string {
	switch p {
	case tariff.Peak:
		return "Peak"
	case tariff.PartPeak:
		return "Part-Peak"
	default:
		return "Off-Peak"
	}
}
