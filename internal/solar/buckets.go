package solar

import (
	"sort"
	"time"
)

// Quantity identifies one tracked cumulative telemetry counter.
type Quantity string

const (
	SolarGenerated    Quantity = "solar_generated"
	GridImported      Quantity = "grid_imported"
	GridExported      Quantity = "grid_exported"
	BatteryCharged    Quantity = "battery_charged"
	BatteryDischarged Quantity = "battery_discharged"
)

// Quantities lists every counter the attribution needs.
var Quantities = []Quantity{SolarGenerated, GridImported, GridExported, BatteryCharged, BatteryDischarged}

// Sample is one cumulative counter observation.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// HourKey identifies an hour-of-day slot, matching the hourly consumption
// records so the two can be joined.
type HourKey struct {
	Date string // YYYY-MM-DD
	Hour int
}

// KeyFor returns the slot key for a timestamp.
func KeyFor(t time.Time) HourKey {
	return HourKey{Date: t.Format("2006-01-02"), Hour: t.Hour()}
}

// Bucket is one hour's energy flows, all non-negative kWh.
type Bucket struct {
	Date string `json:"date"`
	Hour int    `json:"hour"`

	SolarKWh            float64 `json:"solar_kwh"`
	GridImportKWh       float64 `json:"grid_import_kwh"`
	GridExportKWh       float64 `json:"grid_export_kwh"`
	BatteryChargeKWh    float64 `json:"battery_charge_kwh"`
	BatteryDischargeKWh float64 `json:"battery_discharge_kwh"`
}

func (b *Bucket) add(q Quantity, kwh float64) {
	switch q {
	case SolarGenerated:
		b.SolarKWh += kwh
	case GridImported:
		b.GridImportKWh += kwh
	case GridExported:
		b.GridExportKWh += kwh
	case BatteryCharged:
		b.BatteryChargeKWh += kwh
	case BatteryDischarged:
		b.BatteryDischargeKWh += kwh
	}
}

// Buckets maps hour slots to energy flows.
type Buckets map[HourKey]*Bucket

func (bs Buckets) ensure(t time.Time) *Bucket {
	key := KeyFor(t)
	b, ok := bs[key]
	if !ok {
		b = &Bucket{Date: key.Date, Hour: key.Hour}
		bs[key] = b
	}
	return b
}

// SortedKeys returns the bucket keys in ascending (date, hour) order.
func (bs Buckets) SortedKeys() []HourKey {
	keys := make([]HourKey, 0, len(bs))
	for k := range bs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].Hour < keys[j].Hour
	})
	return keys
}

// BuildBuckets distributes each quantity's cumulative samples into hourly
// buckets. Quantities with fewer than two samples are skipped. Non-positive
// deltas between consecutive samples (counter resets) are discarded, never
// negated. A delta spanning several hours is split across them
// proportionally to the time the sample interval overlaps each hour.
func BuildBuckets(samples map[Quantity][]Sample) Buckets {
	buckets := make(Buckets)
	for _, q := range Quantities {
		distribute(buckets, q, samples[q])
	}
	return buckets
}

func distribute(buckets Buckets, q Quantity, samples []Sample) {
	if len(samples) < 2 {
		return
	}
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]

		delta := curr.Value - prev.Value
		if delta <= 0 {
			continue // counter reset or no change
		}

		if KeyFor(prev.Timestamp) == KeyFor(curr.Timestamp) {
			buckets.ensure(curr.Timestamp).add(q, delta)
			continue
		}

		total := curr.Timestamp.Sub(prev.Timestamp).Seconds()
		if total <= 0 {
			continue
		}

		// Walk hour by hour, weighting by overlap time.
		t := prev.Timestamp
		for t.Before(curr.Timestamp) {
			hourEnd := startOfHour(t).Add(time.Hour)
			if hourEnd.After(curr.Timestamp) {
				hourEnd = curr.Timestamp
			}
			frac := hourEnd.Sub(t).Seconds() / total
			buckets.ensure(t).add(q, delta*frac)
			t = hourEnd
		}
	}
}

func startOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
