package analysis

import (
	"sort"
	"time"

	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

// TOUBucket is a register's consumption within one TOU period.
type TOUBucket struct {
	KWh     float64 `json:"kwh"`
	Cost    float64 `json:"cost"`
	Percent float64 `json:"percent"`
}

// RegisterStats aggregates one register over a date range.
type RegisterStats struct {
	TotalKWh     float64 `json:"total_kwh"`
	TotalCost    float64 `json:"total_cost"`
	AvgDailyKWh  float64 `json:"avg_daily_kwh"`
	AvgDailyCost float64 `json:"avg_daily_cost"`

	ByTOU map[tariff.Period]*TOUBucket `json:"by_tou"`
}

func newRegisterStats() *RegisterStats {
	s := &RegisterStats{ByTOU: make(map[tariff.Period]*TOUBucket, len(tariff.Periods))}
	for _, p := range tariff.Periods {
		s.ByTOU[p] = &TOUBucket{}
	}
	return s
}

// Analyze folds hourly records into per-register stats. Percentages are
// zero when a register's total is zero; averages divide by days.
func Analyze(hourly []HourlyConsumption, days int) map[string]*RegisterStats {
	if days < 1 {
		days = 1
	}

	stats := make(map[string]*RegisterStats)
	for _, h := range hourly {
		for name, kwh := range h.Registers {
			s, ok := stats[name]
			if !ok {
				s = newRegisterStats()
				stats[name] = s
			}
			cost := kwh * h.Rate
			s.TotalKWh += kwh
			s.TotalCost += cost
			s.ByTOU[h.Period].KWh += kwh
			s.ByTOU[h.Period].Cost += cost
		}
	}

	for _, s := range stats {
		if s.TotalKWh > 0 {
			for _, b := range s.ByTOU {
				b.Percent = b.KWh / s.TotalKWh * 100
			}
		}
		s.AvgDailyKWh = s.TotalKWh / float64(days)
		s.AvgDailyCost = s.TotalCost / float64(days)
	}
	return stats
}

// DailyTOU is one day's consumption within one TOU period.
type DailyTOU struct {
	KWh  float64 `json:"kwh"`
	Cost float64 `json:"cost"`
}

// DailyTotal is the whole-range rollup for one calendar date.
type DailyTotal struct {
	Date      string  `json:"date"`
	TotalKWh  float64 `json:"total_kwh"`
	TotalCost float64 `json:"total_cost"`

	ByTOU     map[tariff.Period]*DailyTOU `json:"by_tou"`
	Registers map[string]float64          `json:"register_totals"`
}

// DailyTotals groups hourly records by calendar date, sorted ascending.
func DailyTotals(hourly []HourlyConsumption) []DailyTotal {
	byDate := make(map[string]*DailyTotal)
	for _, h := range hourly {
		d, ok := byDate[h.Date]
		if !ok {
			d = &DailyTotal{
				Date:      h.Date,
				ByTOU:     map[tariff.Period]*DailyTOU{tariff.Peak: {}, tariff.PartPeak: {}, tariff.OffPeak: {}},
				Registers: make(map[string]float64),
			}
			byDate[h.Date] = d
		}
		for name, kwh := range h.Registers {
			cost := kwh * h.Rate
			d.TotalKWh += kwh
			d.TotalCost += cost
			d.ByTOU[h.Period].KWh += kwh
			d.ByTOU[h.Period].Cost += cost
			d.Registers[name] += kwh
		}
	}

	out := make([]DailyTotal, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Opportunity is a circuit whose peak-hours usage could be shifted off-peak.
type Opportunity struct {
	Circuit          string  `json:"circuit"`
	PeakPercent      float64 `json:"peak_pct"`
	PeakCost         float64 `json:"peak_cost"`
	PotentialSavings float64 `json:"potential_savings"`
	TotalCost        float64 `json:"total_cost"`
	AvgDailyCost     float64 `json:"avg_daily_cost"`
}

// Opportunities ranks circuits by the savings available from moving their
// peak-period usage entirely off-peak. Candidates need peak share above 20%
// and peak cost above $1; savings are estimated at the current date's rates,
// not the rates of the analyzed period. The sort is stable: ties keep the
// cost-ranked order.
func Opportunities(stats map[string]*RegisterStats, now time.Time, schedule *tariff.Schedule) []Opportunity {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	// Rank by total cost first (the report's presentation order).
	sort.SliceStable(names, func(i, j int) bool {
		a, b := stats[names[i]], stats[names[j]]
		if a.TotalCost != b.TotalCost {
			return a.TotalCost > b.TotalCost
		}
		return names[i] < names[j]
	})

	peakRate := schedule.Rate(now, tariff.Peak)
	offPeakRate := schedule.Rate(now, tariff.OffPeak)

	var out []Opportunity
	for _, name := range names {
		s := stats[name]
		peak := s.ByTOU[tariff.Peak]
		if peak.Percent <= 20 || peak.Cost <= 1.0 {
			continue
		}
		savings := 0.0
		if peakRate > 0 {
			savings = peak.Cost * (1 - offPeakRate/peakRate)
		}
		out = append(out, Opportunity{
			Circuit:          meter.DisplayName(name),
			PeakPercent:      peak.Percent,
			PeakCost:         peak.Cost,
			PotentialSavings: savings,
			TotalCost:        s.TotalCost,
			AvgDailyCost:     s.AvgDailyCost,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PotentialSavings > out[j].PotentialSavings
	})
	return out
}
