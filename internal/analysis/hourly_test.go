package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

func testSchedule(t *testing.T) *tariff.Schedule {
	t.Helper()
	s, err := tariff.New(tariff.Config{
		PeakHours:     []int{16, 17, 18, 19, 20},
		PartPeakHours: []int{15, 21, 22, 23},
		SummerMonths:  []time.Month{time.June, time.July, time.August, time.September},
		Winter:        tariff.Rates{Peak: 0.520, PartPeak: 0.492, OffPeak: 0.298},
		Summer:        tariff.Rates{Peak: 0.646, PartPeak: 0.525, OffPeak: 0.298},
	})
	require.NoError(t, err)
	return s
}

func reading(sched *tariff.Schedule, ts time.Time, energy map[string]float64) meter.Reading {
	return meter.Reading{
		Timestamp: ts,
		Date:      ts.Format("2006-01-02"),
		Hour:      ts.Hour(),
		Period:    sched.PeriodFor(ts.Hour()),
		Energy:    energy,
	}
}

// Winter off-peak hour: 2025-01-15 10:00 UTC.
var slotStart = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

func TestHourlyConsumption_OffPeakWinterSlot(t *testing.T) {
	sched := testSchedule(t)
	e := NewEngine(sched, nil)

	readings := []meter.Reading{
		reading(sched, slotStart, map[string]float64{"CT1 [kWh]": 100.0}),
		reading(sched, slotStart.Add(time.Hour), map[string]float64{"CT1 [kWh]": 98.5}),
	}

	hourly, err := e.HourlyConsumption(readings)
	require.NoError(t, err)
	require.Len(t, hourly, 1)

	// Counter counted down 1.5 kWh; off-peak winter rate 0.298.
	assert.InDelta(t, 1.5, hourly[0].Registers["CT1 [kWh]"], 1e-9)
	assert.InDelta(t, 1.5, hourly[0].TotalKWh, 1e-9)
	assert.InDelta(t, 0.447, hourly[0].TotalCost, 1e-9)
	assert.Equal(t, tariff.OffPeak, hourly[0].Period)
	assert.False(t, hourly[0].Partial)
}

func TestHourlyConsumption_TooFewReadings(t *testing.T) {
	sched := testSchedule(t)
	e := NewEngine(sched, nil)

	_, err := e.HourlyConsumption(nil)
	assert.ErrorIs(t, err, ErrTooFewReadings)

	_, err = e.HourlyConsumption([]meter.Reading{reading(sched, slotStart, nil)})
	assert.ErrorIs(t, err, ErrTooFewReadings)
}

func TestHourlyConsumption_CountIsReadingsMinusOne(t *testing.T) {
	sched := testSchedule(t)
	e := NewEngine(sched, nil)

	var readings []meter.Reading
	for i := 0; i < 5; i++ {
		ts := slotStart.Add(time.Duration(i) * time.Hour)
		readings = append(readings, reading(sched, ts, map[string]float64{"CT1 [kWh]": float64(i)}))
	}

	hourly, err := e.HourlyConsumption(readings)
	require.NoError(t, err)
	assert.Len(t, hourly, 4)
}

func TestHourlyConsumption_ExcludedRegisters(t *testing.T) {
	sched := testSchedule(t)
	e := NewEngine(sched, []string{"Usage [kWh]"})

	readings := []meter.Reading{
		reading(sched, slotStart, map[string]float64{"Usage [kWh]": 500.0, "CT1 [kWh]": 10.0}),
		reading(sched, slotStart.Add(time.Hour), map[string]float64{"Usage [kWh]": 495.0, "CT1 [kWh]": 9.0}),
	}

	hourly, err := e.HourlyConsumption(readings)
	require.NoError(t, err)
	require.Len(t, hourly, 1)

	assert.NotContains(t, hourly[0].Registers, "Usage [kWh]")
	assert.InDelta(t, 1.0, hourly[0].TotalKWh, 1e-9)
}

func TestHourlyConsumption_RegisterMissingFromOneReading(t *testing.T) {
	sched := testSchedule(t)
	e := NewEngine(sched, nil)

	readings := []meter.Reading{
		reading(sched, slotStart, map[string]float64{"CT1 [kWh]": 10.0, "CT2 [kWh]": 5.0}),
		reading(sched, slotStart.Add(time.Hour), map[string]float64{"CT1 [kWh]": 9.0}),
	}

	hourly, err := e.HourlyConsumption(readings)
	require.NoError(t, err)
	assert.NotContains(t, hourly[0].Registers, "CT2 [kWh]")
}

func TestHourlyConsumption_SlotLabeledByEarlierReading(t *testing.T) {
	sched := testSchedule(t)
	e := NewEngine(sched, nil)

	// 15:00 -> 16:00 crosses the part-peak/peak boundary. The slot bills
	// at the earlier hour's (part-peak) rate.
	start := time.Date(2025, time.January, 15, 15, 0, 0, 0, time.UTC)
	readings := []meter.Reading{
		reading(sched, start, map[string]float64{"CT1 [kWh]": 10.0}),
		reading(sched, start.Add(time.Hour), map[string]float64{"CT1 [kWh]": 8.0}),
	}

	hourly, err := e.HourlyConsumption(readings)
	require.NoError(t, err)
	require.Len(t, hourly, 1)

	assert.Equal(t, 15, hourly[0].Hour)
	assert.Equal(t, tariff.PartPeak, hourly[0].Period)
	assert.InDelta(t, 2.0*0.492, hourly[0].TotalCost, 1e-9)
}

func TestHourlyWithSnapshot_AppendsNewerSnapshot(t *testing.T) {
	sched := testSchedule(t)
	e := NewEngine(sched, nil)

	readings := []meter.Reading{
		reading(sched, slotStart, map[string]float64{"CT1 [kWh]": 100.0}),
		reading(sched, slotStart.Add(time.Hour), map[string]float64{"CT1 [kWh]": 99.0}),
	}
	snap := reading(sched, slotStart.Add(90*time.Minute), map[string]float64{"CT1 [kWh]": 98.4})

	hourly, err := e.HourlyWithSnapshot(readings, &snap)
	require.NoError(t, err)
	require.Len(t, hourly, 2)

	assert.False(t, hourly[0].Partial)
	assert.True(t, hourly[1].Partial)
	assert.InDelta(t, 0.6, hourly[1].TotalKWh, 1e-9)
}

func TestHourlyWithSnapshot_StaleSnapshotFallsBack(t *testing.T) {
	sched := testSchedule(t)
	e := NewEngine(sched, nil)

	readings := []meter.Reading{
		reading(sched, slotStart, map[string]float64{"CT1 [kWh]": 100.0}),
		reading(sched, slotStart.Add(time.Hour), map[string]float64{"CT1 [kWh]": 99.0}),
	}
	stale := reading(sched, slotStart.Add(time.Hour), map[string]float64{"CT1 [kWh]": 99.0})

	hourly, err := e.HourlyWithSnapshot(readings, &stale)
	require.NoError(t, err)
	// Exactly boundary readings - 1 records, none partial.
	require.Len(t, hourly, 1)
	assert.False(t, hourly[0].Partial)

	hourly, err = e.HourlyWithSnapshot(readings, nil)
	require.NoError(t, err)
	require.Len(t, hourly, 1)
}

func TestFilterDate(t *testing.T) {
	hourly := []HourlyConsumption{
		{Date: "2025-01-14", Hour: 23},
		{Date: "2025-01-15", Hour: 0},
		{Date: "2025-01-15", Hour: 1},
		{Date: "2025-01-16", Hour: 0},
	}
	day := FilterDate(hourly, "2025-01-15")
	require.Len(t, day, 2)
	assert.Equal(t, 0, day[0].Hour)
	assert.Equal(t, 1, day[1].Hour)
}
