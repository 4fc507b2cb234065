package solar

import (
	"errors"
	"math"

	"github.com/epheterson/energy-dashboard/internal/analysis"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

// ErrUnavailable signals that source attribution cannot run (no telemetry
// buckets). Callers fall back to the plain grid-only analysis; this is
// distinct from an empty-but-valid all-zero result.
var ErrUnavailable = errors.New("solar: attribution data unavailable")

// BatteryEconomics is the whole-period battery cost model derived in pass 1
// and consumed by pass 2.
type BatteryEconomics struct {
	CostPerKWh         float64 `json:"cost_per_kwh"`         // $ per kWh discharged
	MeasuredEfficiency float64 `json:"efficiency"`           // discharge / charge
	SolarPercent       float64 `json:"solar_pct"`            // share of charge from solar
	SolarChargeKWh     float64 `json:"solar_charge_kwh"`
	GridChargeKWh      float64 `json:"grid_charge_kwh"`
	GridChargeCost     float64 `json:"grid_charge_cost"`
	ChargeKWh          float64 `json:"charge_kwh"`
	DischargeKWh       float64 `json:"discharge_kwh"`
}

// chargeSource splits one hour's battery charge between solar surplus and
// grid. Assumes Powerwall-style priority: solar serves the home first, the
// surplus charges the battery, grid covers the rest.
func chargeSource(b *Bucket) (solarToBattery, gridToBattery float64) {
	solarOnsite := math.Max(0, b.SolarKWh-b.GridExportKWh)
	homeLoad := math.Max(0, solarOnsite+b.GridImportKWh+b.BatteryDischargeKWh-b.BatteryChargeKWh)
	solarToHome := math.Min(solarOnsite, homeLoad)
	surplus := math.Max(0, solarOnsite-solarToHome)
	solarToBattery = math.Min(surplus, b.BatteryChargeKWh)
	gridToBattery = b.BatteryChargeKWh - solarToBattery
	return solarToBattery, gridToBattery
}

// DeriveBatteryEconomics is pass 1: it walks every hour that has both a
// consumption slot and a telemetry bucket, attributes battery charge to
// solar vs grid, and derives the period-wide discharge cost per kWh.
// Round-trip losses are captured naturally: less comes out than went in, so
// the per-kWh-out cost exceeds the per-kWh-in cost.
func DeriveBatteryEconomics(hourly []analysis.HourlyConsumption, buckets Buckets) BatteryEconomics {
	var econ BatteryEconomics
	for _, h := range hourly {
		b, ok := buckets[HourKey{Date: h.Date, Hour: h.Hour}]
		if !ok {
			continue
		}
		econ.ChargeKWh += b.BatteryChargeKWh
		econ.DischargeKWh += b.BatteryDischargeKWh

		if b.BatteryChargeKWh > 0 {
			solarToBattery, gridToBattery := chargeSource(b)
			econ.SolarChargeKWh += solarToBattery
			econ.GridChargeKWh += gridToBattery
			econ.GridChargeCost += gridToBattery * h.Rate
		}
	}

	if econ.DischargeKWh > 0 {
		econ.CostPerKWh = econ.GridChargeCost / econ.DischargeKWh
	}
	if econ.ChargeKWh > 0 {
		econ.MeasuredEfficiency = econ.DischargeKWh / econ.ChargeKWh
		econ.SolarPercent = econ.SolarChargeKWh / econ.ChargeKWh * 100
	}
	return econ
}

// BlendedTOU is a circuit's source-split consumption within one TOU period.
type BlendedTOU struct {
	KWh         float64 `json:"kwh"`
	GridKWh     float64 `json:"grid_kwh"`
	SolarKWh    float64 `json:"solar_kwh"`
	BatteryKWh  float64 `json:"battery_kwh"`
	GridCost    float64 `json:"grid_cost"`
	BatteryCost float64 `json:"battery_cost"`
	FullCost    float64 `json:"full_cost"`
}

// BlendedStats is RegisterStats with consumption partitioned by source.
type BlendedStats struct {
	TotalKWh   float64 `json:"total_kwh"`
	GridKWh    float64 `json:"grid_kwh"`
	SolarKWh   float64 `json:"solar_kwh"`
	BatteryKWh float64 `json:"battery_kwh"`

	GridCost     float64 `json:"grid_cost"`
	BatteryCost  float64 `json:"battery_cost"`
	ActualCost   float64 `json:"actual_cost"`    // grid + battery
	FullRateCost float64 `json:"full_rate_cost"` // cost with no solar/battery
	SolarSavings float64 `json:"solar_savings"`  // full-rate minus actual

	ByTOU map[tariff.Period]*BlendedTOU `json:"by_tou"`
}

func newBlendedStats() *BlendedStats {
	s := &BlendedStats{ByTOU: make(map[tariff.Period]*BlendedTOU, len(tariff.Periods))}
	for _, p := range tariff.Periods {
		s.ByTOU[p] = &BlendedTOU{}
	}
	return s
}

// SystemTOU is the whole-house energy flow within one TOU period.
type SystemTOU struct {
	SolarKWh            float64 `json:"solar"`
	GridImportKWh       float64 `json:"grid_import"`
	GridExportKWh       float64 `json:"grid_export"`
	BatteryDischargeKWh float64 `json:"battery_discharge"`
	ConsumptionKWh      float64 `json:"consumption"`
	GridCost            float64 `json:"grid_cost"`
	BatteryCost         float64 `json:"battery_cost"`
	ExportCredit        float64 `json:"export_credit"`
}

// SystemTotals is the whole-house rollup for the reporting period.
type SystemTotals struct {
	SolarKWh            float64 `json:"total_solar_kwh"`
	GridImportKWh       float64 `json:"total_grid_import_kwh"`
	GridExportKWh       float64 `json:"total_grid_export_kwh"`
	BatteryChargeKWh    float64 `json:"total_battery_charge_kwh"`
	BatteryDischargeKWh float64 `json:"total_battery_discharge_kwh"`
	ConsumptionKWh      float64 `json:"total_consumption_kwh"`

	GridCost     float64 `json:"total_grid_cost"`
	BatteryCost  float64 `json:"total_battery_cost"`
	ExportCredit float64 `json:"total_export_credit"`
	NetCost      float64 `json:"net_cost"` // grid + battery - export credit

	Battery              BatteryEconomics `json:"battery"`
	ConfiguredEfficiency float64          `json:"battery_efficiency_config"`
	EnergyLostKWh        float64          `json:"battery_energy_lost_kwh"`

	ByTOU map[tariff.Period]*SystemTOU `json:"by_tou"`
}

// Blend is pass 2: it apportions every circuit's hourly consumption across
// grid, solar and battery from each hour's supply mix, prices the grid and
// battery shares, and rolls up system totals including export credits.
// Hours without a telemetry bucket are billed as 100% grid. Returns
// ErrUnavailable when no buckets exist at all.
func Blend(hourly []analysis.HourlyConsumption, buckets Buckets, schedule *tariff.Schedule, configuredEfficiency float64) (map[string]*BlendedStats, *SystemTotals, error) {
	if len(buckets) == 0 {
		return nil, nil, ErrUnavailable
	}

	econ := DeriveBatteryEconomics(hourly, buckets)

	stats := make(map[string]*BlendedStats)
	system := &SystemTotals{
		BatteryChargeKWh:     econ.ChargeKWh,
		BatteryDischargeKWh:  econ.DischargeKWh,
		Battery:              econ,
		ConfiguredEfficiency: configuredEfficiency,
		EnergyLostKWh:        econ.ChargeKWh - econ.DischargeKWh,
		ByTOU:                make(map[tariff.Period]*SystemTOU, len(tariff.Periods)),
	}
	for _, p := range tariff.Periods {
		system.ByTOU[p] = &SystemTOU{}
	}

	for _, h := range hourly {
		rate := h.Rate
		credit := schedule.ExportCredit(h.Timestamp, h.Period)
		sysTOU := system.ByTOU[h.Period]

		// Supply-side source mix for this hour. Battery charge is a load,
		// not a supply, so it stays out of the mix.
		gridFrac, solarFrac, batteryFrac := 1.0, 0.0, 0.0

		if b, ok := buckets[HourKey{Date: h.Date, Hour: h.Hour}]; ok {
			totalSupply := b.SolarKWh + b.GridImportKWh + b.BatteryDischargeKWh
			if totalSupply > 0 {
				solarFrac = b.SolarKWh / totalSupply
				gridFrac = b.GridImportKWh / totalSupply
				batteryFrac = b.BatteryDischargeKWh / totalSupply
			} else {
				gridFrac = 0
			}

			gridImportCost := b.GridImportKWh * rate
			dischargeCost := b.BatteryDischargeKWh * econ.CostPerKWh
			exportEarn := b.GridExportKWh * credit

			system.SolarKWh += b.SolarKWh
			system.GridImportKWh += b.GridImportKWh
			system.GridExportKWh += b.GridExportKWh
			system.GridCost += gridImportCost
			system.BatteryCost += dischargeCost
			system.ExportCredit += exportEarn

			sysTOU.SolarKWh += b.SolarKWh
			sysTOU.GridImportKWh += b.GridImportKWh
			sysTOU.GridExportKWh += b.GridExportKWh
			sysTOU.BatteryDischargeKWh += b.BatteryDischargeKWh
			sysTOU.GridCost += gridImportCost
			sysTOU.BatteryCost += dischargeCost
			sysTOU.ExportCredit += exportEarn
		}

		for name, kwh := range h.Registers {
			s, ok := stats[name]
			if !ok {
				s = newBlendedStats()
				stats[name] = s
			}

			gridKWh := kwh * gridFrac
			solarKWh := kwh * solarFrac
			batteryKWh := kwh * batteryFrac
			gridCost := gridKWh * rate
			batteryCost := batteryKWh * econ.CostPerKWh
			fullCost := kwh * rate

			s.TotalKWh += kwh
			s.GridKWh += gridKWh
			s.SolarKWh += solarKWh
			s.BatteryKWh += batteryKWh
			s.GridCost += gridCost
			s.BatteryCost += batteryCost
			s.ActualCost += gridCost + batteryCost
			s.FullRateCost += fullCost
			s.SolarSavings += fullCost - (gridCost + batteryCost)

			tou := s.ByTOU[h.Period]
			tou.KWh += kwh
			tou.GridKWh += gridKWh
			tou.SolarKWh += solarKWh
			tou.BatteryKWh += batteryKWh
			tou.GridCost += gridCost
			tou.BatteryCost += batteryCost
			tou.FullCost += fullCost

			system.ConsumptionKWh += kwh
			sysTOU.ConsumptionKWh += kwh
		}
	}

	system.NetCost = system.GridCost + system.BatteryCost - system.ExportCredit
	return stats, system, nil
}
