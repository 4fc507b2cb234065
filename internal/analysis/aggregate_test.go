package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// twoDayFixture builds 48 hourly slots over two winter days:
// CT1 burns 1.0 kWh/h and CT2 burns 0.5 kWh/h (counters count down).
func twoDayFixture(t *testing.T) []HourlyConsumption {
	t.Helper()
	sched := testSchedule(t)
	e := NewEngine(sched, nil)

	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	vals := map[string]float64{"CT1 [kWh]": 1000, "CT2 [kWh]": 500}

	readings := []meter.Reading{reading(sched, start, copyMap(vals))}
	for i := 1; i <= 48; i++ {
		vals["CT1 [kWh]"] -= 1.0
		vals["CT2 [kWh]"] -= 0.5
		readings = append(readings, reading(sched, start.Add(time.Duration(i)*time.Hour), copyMap(vals)))
	}

	hourly, err := e.HourlyConsumption(readings)
	require.NoError(t, err)
	require.Len(t, hourly, 48)
	return hourly
}

func TestAnalyze_ConservationAndPercent(t *testing.T) {
	hourly := twoDayFixture(t)
	stats := Analyze(hourly, 2)

	ct1 := stats["CT1 [kWh]"]
	require.NotNil(t, ct1)

	// Delta conservation: by_tou sums to total; percentages sum to 100.
	var touSum, pctSum float64
	for _, b := range ct1.ByTOU {
		touSum += b.KWh
		pctSum += b.Percent
	}
	assert.InDelta(t, ct1.TotalKWh, touSum, 1e-6)
	assert.InDelta(t, 100.0, pctSum, 0.1)

	assert.InDelta(t, 48.0, ct1.TotalKWh, 1e-6)
	assert.InDelta(t, 24.0, ct1.AvgDailyKWh, 1e-6)

	// 5 peak + 4 part-peak + 15 off-peak hours per day, 1 kWh each.
	assert.InDelta(t, 10.0, ct1.ByTOU[tariff.Peak].KWh, 1e-6)
	assert.InDelta(t, 8.0, ct1.ByTOU[tariff.PartPeak].KWh, 1e-6)
	assert.InDelta(t, 30.0, ct1.ByTOU[tariff.OffPeak].KWh, 1e-6)

	// Costs follow the winter rates per period.
	wantCost := 10.0*0.520 + 8.0*0.492 + 30.0*0.298
	assert.InDelta(t, wantCost, ct1.TotalCost, 1e-6)
}

func TestAnalyze_ZeroTotalHasZeroPercents(t *testing.T) {
	hourly := []HourlyConsumption{
		{Date: "2025-01-15", Hour: 3, Period: tariff.OffPeak, Rate: 0.298,
			Registers: map[string]float64{"CT9 [kWh]": 0}},
	}

	stats := Analyze(hourly, 1)
	s := stats["CT9 [kWh]"]
	require.NotNil(t, s)
	assert.Zero(t, s.TotalKWh)
	for _, b := range s.ByTOU {
		assert.Zero(t, b.Percent)
	}
}

func TestDailyTotals(t *testing.T) {
	hourly := twoDayFixture(t)
	days := DailyTotals(hourly)

	require.Len(t, days, 2)
	assert.Equal(t, "2025-01-15", days[0].Date)
	assert.Equal(t, "2025-01-16", days[1].Date)

	// 24 slots/day, CT1 1.0 + CT2 0.5 kWh each.
	assert.InDelta(t, 36.0, days[0].TotalKWh, 1e-6)
	assert.InDelta(t, 24.0, days[0].Registers["CT1 [kWh]"], 1e-6)
	assert.InDelta(t, 12.0, days[0].Registers["CT2 [kWh]"], 1e-6)

	var touSum float64
	for _, b := range days[0].ByTOU {
		touSum += b.KWh
	}
	assert.InDelta(t, days[0].TotalKWh, touSum, 1e-6)
}

func TestOpportunities_FilterAndRank(t *testing.T) {
	sched := testSchedule(t)
	now := time.Date(2025, time.January, 20, 12, 0, 0, 0, time.UTC)

	mk := func(peakKWh, peakCost, totalKWh, totalCost float64) *RegisterStats {
		s := newRegisterStats()
		s.TotalKWh = totalKWh
		s.TotalCost = totalCost
		s.ByTOU[tariff.Peak].KWh = peakKWh
		s.ByTOU[tariff.Peak].Cost = peakCost
		if totalKWh > 0 {
			s.ByTOU[tariff.Peak].Percent = peakKWh / totalKWh * 100
		}
		return s
	}

	stats := map[string]*RegisterStats{
		"EV Charger [kWh]": mk(40, 20.0, 100, 35.0), // 40% peak, big target
		"Furnace [kWh]":    mk(10, 5.0, 40, 12.0),   // 25% peak
		"Fridge [kWh]":     mk(1, 0.5, 30, 9.0),     // peak cost below $1
		"Lights [kWh]":     mk(5, 2.6, 50, 10.0),    // 10% peak share
	}

	opps := Opportunities(stats, now, sched)
	require.Len(t, opps, 2)

	assert.Equal(t, "EV Charger", opps[0].Circuit)
	assert.Equal(t, "Furnace", opps[1].Circuit)

	// savings = peak_cost * (1 - off_peak/peak) at current (winter) rates.
	want := 20.0 * (1 - 0.298/0.520)
	assert.InDelta(t, want, opps[0].PotentialSavings, 1e-9)
	assert.Greater(t, opps[0].PotentialSavings, opps[1].PotentialSavings)
}

func TestOpportunities_EmptyStats(t *testing.T) {
	sched := testSchedule(t)
	opps := Opportunities(map[string]*RegisterStats{}, time.Now(), sched)
	assert.Empty(t, opps)
}
