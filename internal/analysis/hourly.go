package analysis

import (
	"errors"
	"time"

	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

// ErrTooFewReadings is returned when a reading sequence cannot be
// differenced. Callers must not treat it as an empty-but-valid result.
var ErrTooFewReadings = errors.New("analysis: need at least two readings")

// HourlyConsumption is the consumption derived from one adjacent pair of
// cumulative readings. The slot is labeled by the EARLIER reading's hour and
// billed at that hour's rate: consumption is attributed to the hour in which
// it began accumulating. Changing this convention would change historical
// report numbers.
type HourlyConsumption struct {
	Timestamp time.Time // earlier reading's timestamp
	Date      string
	Hour      int
	Period    tariff.Period
	Rate      float64 // $/kWh applied to this slot

	// Registers maps register name to kWh consumed this hour.
	Registers map[string]float64

	TotalKWh  float64
	TotalCost float64

	// Partial marks the trailing record built from a mid-hour snapshot:
	// it covers only the elapsed fraction of the current hour.
	Partial bool
}

// Engine turns sorted cumulative readings into hourly consumption records.
type Engine struct {
	schedule *tariff.Schedule
	exclude  map[string]bool
}

// NewEngine builds an Engine. Registers named in exclude (whole-house
// totals and other aggregate registers) are never differenced.
func NewEngine(schedule *tariff.Schedule, exclude []string) *Engine {
	ex := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		ex[name] = true
	}
	return &Engine{schedule: schedule, exclude: ex}
}

// HourlyConsumption diffs consecutive readings: n readings yield n-1
// records. Readings must already be sorted ascending by timestamp.
func (e *Engine) HourlyConsumption(readings []meter.Reading) ([]HourlyConsumption, error) {
	if len(readings) < 2 {
		return nil, ErrTooFewReadings
	}

	hourly := make([]HourlyConsumption, 0, len(readings)-1)
	for i := 1; i < len(readings); i++ {
		prev, curr := readings[i-1], readings[i]

		rec := HourlyConsumption{
			Timestamp: prev.Timestamp,
			Date:      prev.Date,
			Hour:      prev.Hour,
			Period:    prev.Period,
			Rate:      e.schedule.Rate(prev.Timestamp, prev.Period),
			Registers: make(map[string]float64),
		}

		for name, prevVal := range prev.Energy {
			if e.exclude[name] {
				continue
			}
			currVal, ok := curr.Energy[name]
			if !ok {
				continue
			}
			// Raw counters may count down; consumption is the magnitude.
			kwh := currVal - prevVal
			if kwh < 0 {
				kwh = -kwh
			}
			rec.Registers[name] = kwh
			rec.TotalKWh += kwh
			rec.TotalCost += kwh * rec.Rate
		}

		hourly = append(hourly, rec)
	}
	return hourly, nil
}

// HourlyWithSnapshot is HourlyConsumption with the partial-current-hour
// extension: if snapshot is strictly newer than the last hourly-aligned
// reading it is appended before differencing, and the resulting trailing
// record is flagged Partial. A nil or stale snapshot falls back to
// completed hours only.
func (e *Engine) HourlyWithSnapshot(readings []meter.Reading, snapshot *meter.Reading) ([]HourlyConsumption, error) {
	appended := false
	if snapshot != nil && len(readings) > 0 &&
		snapshot.Timestamp.After(readings[len(readings)-1].Timestamp) {
		readings = append(readings[:len(readings):len(readings)], *snapshot)
		appended = true
	}

	hourly, err := e.HourlyConsumption(readings)
	if err != nil {
		return nil, err
	}
	if appended {
		hourly[len(hourly)-1].Partial = true
	}
	return hourly, nil
}

// FilterDate keeps only the slots for one calendar date (YYYY-MM-DD),
// preserving order. Used for historical-date windows, where the device
// returns a span reaching back from now.
func FilterDate(hourly []HourlyConsumption, date string) []HourlyConsumption {
	var out []HourlyConsumption
	for _, h := range hourly {
		if h.Date == date {
			out = append(out, h)
		}
	}
	return out
}
