package server

import (
	"math"
	"sort"

	"github.com/epheterson/energy-dashboard/internal/analysis"
	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/solar"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// CircuitCost is one circuit's share of a day or hour.
type CircuitCost struct {
	Name string  `json:"name"`
	KWh  float64 `json:"kwh"`
	Cost float64 `json:"cost"`
}

// HourCost is one hour's rollup with its circuit breakdown, circuits sorted
// by cost descending and trimmed of near-zero entries.
type HourCost struct {
	Hour     int           `json:"hour"`
	Period   tariff.Period `json:"tou_period"`
	Cost     float64       `json:"cost"`
	KWh      float64       `json:"kwh"`
	Circuits []CircuitCost `json:"circuits"`
	Partial  bool          `json:"partial,omitempty"`
}

// TodayResponse is the /api/today payload.
type TodayResponse struct {
	Date      string        `json:"date"`
	TotalCost float64       `json:"total_cost"`
	TotalKWh  float64       `json:"total_kwh"`
	Hourly    []HourCost    `json:"hourly"`
	Circuits  []CircuitCost `json:"circuits"`
}

func buildTodayResponse(date string, hourly []analysis.HourlyConsumption) *TodayResponse {
	resp := &TodayResponse{Date: date, Hourly: []HourCost{}, Circuits: []CircuitCost{}}

	circuitTotals := make(map[string]*CircuitCost)
	for _, h := range hourly {
		entry := HourCost{
			Hour:     h.Hour,
			Period:   h.Period,
			Cost:     round(h.TotalCost, 2),
			KWh:      round(h.TotalKWh, 2),
			Partial:  h.Partial,
			Circuits: []CircuitCost{},
		}
		for name, kwh := range h.Registers {
			display := meter.DisplayName(name)
			cost := kwh * h.Rate
			if kwh > 0.001 {
				entry.Circuits = append(entry.Circuits, CircuitCost{
					Name: display,
					KWh:  round(kwh, 3),
					Cost: round(cost, 3),
				})
			}
			t, ok := circuitTotals[display]
			if !ok {
				t = &CircuitCost{Name: display}
				circuitTotals[display] = t
			}
			t.KWh += kwh
			t.Cost += cost
		}
		sort.Slice(entry.Circuits, func(i, j int) bool {
			a, b := entry.Circuits[i], entry.Circuits[j]
			if a.Cost != b.Cost {
				return a.Cost > b.Cost
			}
			return a.Name < b.Name
		})
		resp.Hourly = append(resp.Hourly, entry)
		resp.TotalCost += h.TotalCost
		resp.TotalKWh += h.TotalKWh
	}

	for _, t := range circuitTotals {
		resp.Circuits = append(resp.Circuits, CircuitCost{
			Name: t.Name,
			KWh:  round(t.KWh, 2),
			Cost: round(t.Cost, 2),
		})
	}
	sort.Slice(resp.Circuits, func(i, j int) bool {
		a, b := resp.Circuits[i], resp.Circuits[j]
		if a.Cost != b.Cost {
			return a.Cost > b.Cost
		}
		return a.Name < b.Name
	})

	resp.TotalCost = round(resp.TotalCost, 2)
	resp.TotalKWh = round(resp.TotalKWh, 2)
	return resp
}

// HistoryCircuit is one circuit's aggregated stats for /api/history.
type HistoryCircuit struct {
	Name         string                       `json:"name"`
	TotalKWh     float64                      `json:"total_kwh"`
	TotalCost    float64                      `json:"total_cost"`
	AvgDailyKWh  float64                      `json:"avg_daily_kwh"`
	AvgDailyCost float64                      `json:"avg_daily_cost"`
	ByTOU        map[tariff.Period]historyTOU `json:"by_tou"`
}

type historyTOU struct {
	KWh     float64 `json:"kwh"`
	Cost    float64 `json:"cost"`
	Percent float64 `json:"percent"`
}

// HistoryDay is one day's rollup for /api/history.
type HistoryDay struct {
	Date         string  `json:"date"`
	TotalKWh     float64 `json:"total_kwh"`
	TotalCost    float64 `json:"total_cost"`
	PeakCost     float64 `json:"peak_cost"`
	PartPeakCost float64 `json:"part_peak_cost"`
	OffPeakCost  float64 `json:"off_peak_cost"`
}

// HistoryResponse is the /api/history payload.
type HistoryResponse struct {
	Days          int                    `json:"days"`
	Circuits      []HistoryCircuit       `json:"circuits"`
	Daily         []HistoryDay           `json:"daily"`
	Opportunities []analysis.Opportunity `json:"opportunities"`
	TotalKWh      float64                `json:"total_kwh"`
	TotalCost     float64                `json:"total_cost"`
}

func buildHistoryResponse(days int, stats map[string]*analysis.RegisterStats, daily []analysis.DailyTotal, opportunities []analysis.Opportunity) *HistoryResponse {
	resp := &HistoryResponse{
		Days:          days,
		Circuits:      []HistoryCircuit{},
		Daily:         []HistoryDay{},
		Opportunities: opportunities,
	}
	if resp.Opportunities == nil {
		resp.Opportunities = []analysis.Opportunity{}
	}

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := stats[names[i]], stats[names[j]]
		if a.TotalCost != b.TotalCost {
			return a.TotalCost > b.TotalCost
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		s := stats[name]
		c := HistoryCircuit{
			Name:         meter.DisplayName(name),
			TotalKWh:     round(s.TotalKWh, 2),
			TotalCost:    round(s.TotalCost, 2),
			AvgDailyKWh:  round(s.AvgDailyKWh, 2),
			AvgDailyCost: round(s.AvgDailyCost, 2),
			ByTOU:        make(map[tariff.Period]historyTOU, len(s.ByTOU)),
		}
		for p, b := range s.ByTOU {
			c.ByTOU[p] = historyTOU{
				KWh:     round(b.KWh, 2),
				Cost:    round(b.Cost, 2),
				Percent: round(b.Percent, 1),
			}
		}
		resp.Circuits = append(resp.Circuits, c)
		resp.TotalKWh += s.TotalKWh
		resp.TotalCost += s.TotalCost
	}

	for _, d := range daily {
		resp.Daily = append(resp.Daily, HistoryDay{
			Date:         d.Date,
			TotalKWh:     round(d.TotalKWh, 2),
			TotalCost:    round(d.TotalCost, 2),
			PeakCost:     round(d.ByTOU[tariff.Peak].Cost, 2),
			PartPeakCost: round(d.ByTOU[tariff.PartPeak].Cost, 2),
			OffPeakCost:  round(d.ByTOU[tariff.OffPeak].Cost, 2),
		})
	}

	resp.TotalKWh = round(resp.TotalKWh, 2)
	resp.TotalCost = round(resp.TotalCost, 2)
	return resp
}

// SolarCircuit is one circuit's source-partitioned stats for /api/solar.
type SolarCircuit struct {
	Name         string                     `json:"name"`
	TotalKWh     float64                    `json:"total_kwh"`
	GridKWh      float64                    `json:"grid_kwh"`
	SolarKWh     float64                    `json:"solar_kwh"`
	BatteryKWh   float64                    `json:"battery_kwh"`
	GridCost     float64                    `json:"grid_cost"`
	BatteryCost  float64                    `json:"battery_cost"`
	ActualCost   float64                    `json:"actual_cost"`
	FullRateCost float64                    `json:"full_rate_cost"`
	SolarSavings float64                    `json:"solar_savings"`
	ByTOU        map[tariff.Period]solarTOU `json:"by_tou"`
}

type solarTOU struct {
	KWh     float64 `json:"kwh"`
	GridKWh float64 `json:"grid_kwh"`
}

// SolarHour is one hour's raw energy flows for the source chart.
type SolarHour struct {
	Date                string  `json:"date"`
	Hour                int     `json:"hour"`
	SolarKWh            float64 `json:"solar_kwh"`
	GridImportKWh       float64 `json:"grid_import_kwh"`
	BatteryDischargeKWh float64 `json:"battery_discharge_kwh"`
	BatteryChargeKWh    float64 `json:"battery_charge_kwh"`
}

// SolarBattery is the battery economics block of /api/solar.
type SolarBattery struct {
	CostPerKWh     float64 `json:"cost_per_kwh"`
	SolarPercent   float64 `json:"solar_pct"`
	SolarChargeKWh float64 `json:"solar_charge_kwh"`
	GridChargeKWh  float64 `json:"grid_charge_kwh"`
	GridChargeCost float64 `json:"grid_charge_cost"`
	DischargeKWh   float64 `json:"discharge_kwh"`
	ChargeKWh      float64 `json:"charge_kwh"`
	Efficiency     float64 `json:"efficiency"`
	EnergyLostKWh  float64 `json:"energy_lost_kwh"`
	TotalCost      float64 `json:"total_battery_cost"`
	ValueDisplaced float64 `json:"value_displaced"`
}

// SolarResponse is the /api/solar payload.
type SolarResponse struct {
	Days                int            `json:"days"`
	SolarKWh            float64        `json:"solar_kwh"`
	GridImportKWh       float64        `json:"grid_import_kwh"`
	GridExportKWh       float64        `json:"grid_export_kwh"`
	BatteryChargeKWh    float64        `json:"battery_charge_kwh"`
	BatteryDischargeKWh float64        `json:"battery_discharge_kwh"`
	ConsumptionKWh      float64        `json:"consumption_kwh"`
	GridCost            float64        `json:"grid_cost"`
	ExportCredit        float64        `json:"export_credit"`
	NetCost             float64        `json:"net_cost"`
	FullRateCost        float64        `json:"full_rate_cost"`
	SolarSavings        float64        `json:"solar_savings"`
	Circuits            []SolarCircuit `json:"circuits"`
	Hourly              []SolarHour    `json:"hourly"`
	Battery             *SolarBattery  `json:"battery,omitempty"`
}

func buildSolarResponse(days int, blended map[string]*solar.BlendedStats, system *solar.SystemTotals, buckets solar.Buckets, rateNow func(tariff.Period) float64) *SolarResponse {
	resp := &SolarResponse{
		Days:                days,
		SolarKWh:            round(system.SolarKWh, 2),
		GridImportKWh:       round(system.GridImportKWh, 2),
		GridExportKWh:       round(system.GridExportKWh, 2),
		BatteryChargeKWh:    round(system.BatteryChargeKWh, 2),
		BatteryDischargeKWh: round(system.BatteryDischargeKWh, 2),
		ConsumptionKWh:      round(system.ConsumptionKWh, 2),
		GridCost:            round(system.GridCost, 2),
		ExportCredit:        round(system.ExportCredit, 2),
		NetCost:             round(system.NetCost, 2),
		Circuits:            []SolarCircuit{},
		Hourly:              []SolarHour{},
	}

	names := make([]string, 0, len(blended))
	for name := range blended {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := blended[names[i]], blended[names[j]]
		if a.ActualCost != b.ActualCost {
			return a.ActualCost > b.ActualCost
		}
		return names[i] < names[j]
	})

	var fullRate float64
	for _, name := range names {
		s := blended[name]
		fullRate += s.FullRateCost
		c := SolarCircuit{
			Name:         meter.DisplayName(name),
			TotalKWh:     round(s.TotalKWh, 2),
			GridKWh:      round(s.GridKWh, 2),
			SolarKWh:     round(s.SolarKWh, 2),
			BatteryKWh:   round(s.BatteryKWh, 2),
			GridCost:     round(s.GridCost, 2),
			BatteryCost:  round(s.BatteryCost, 2),
			ActualCost:   round(s.ActualCost, 2),
			FullRateCost: round(s.FullRateCost, 2),
			SolarSavings: round(s.SolarSavings, 2),
			ByTOU:        make(map[tariff.Period]solarTOU, len(s.ByTOU)),
		}
		for p, b := range s.ByTOU {
			c.ByTOU[p] = solarTOU{KWh: round(b.KWh, 2), GridKWh: round(b.GridKWh, 2)}
		}
		resp.Circuits = append(resp.Circuits, c)
	}

	for _, key := range buckets.SortedKeys() {
		b := buckets[key]
		resp.Hourly = append(resp.Hourly, SolarHour{
			Date:                b.Date,
			Hour:                b.Hour,
			SolarKWh:            round(b.SolarKWh, 3),
			GridImportKWh:       round(b.GridImportKWh, 3),
			BatteryDischargeKWh: round(b.BatteryDischargeKWh, 3),
			BatteryChargeKWh:    round(b.BatteryChargeKWh, 3),
		})
	}

	resp.FullRateCost = round(fullRate, 2)
	resp.SolarSavings = round(fullRate-system.NetCost, 2)

	if system.Battery.DischargeKWh > 0 {
		// Value displaced: what the discharged energy would have cost at
		// the current date's grid rates, per TOU period.
		var displaced float64
		for p, tou := range system.ByTOU {
			displaced += tou.BatteryDischargeKWh * rateNow(p)
		}
		resp.Battery = &SolarBattery{
			CostPerKWh:     round(system.Battery.CostPerKWh, 4),
			SolarPercent:   round(system.Battery.SolarPercent, 1),
			SolarChargeKWh: round(system.Battery.SolarChargeKWh, 2),
			GridChargeKWh:  round(system.Battery.GridChargeKWh, 2),
			GridChargeCost: round(system.Battery.GridChargeCost, 2),
			DischargeKWh:   round(system.Battery.DischargeKWh, 2),
			ChargeKWh:      round(system.Battery.ChargeKWh, 2),
			Efficiency:     round(system.Battery.MeasuredEfficiency, 3),
			EnergyLostKWh:  round(system.EnergyLostKWh, 2),
			TotalCost:      round(system.BatteryCost, 2),
			ValueDisplaced: round(displaced, 2),
		}
	}
	return resp
}
