package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epheterson/energy-dashboard/internal/analysis"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func hourAt(ts time.Time, kwh float64) analysis.HourlyConsumption {
	return analysis.HourlyConsumption{
		Timestamp: ts,
		Date:      ts.Format("2006-01-02"),
		Hour:      ts.Hour(),
		Period:    tariff.OffPeak,
		Rate:      0.298,
		Registers: map[string]float64{"CT1 [kWh]": kwh},
		TotalKWh:  kwh,
		TotalCost: kwh * 0.298,
	}
}

func TestSaveHourly_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	t0 := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

	err := s.SaveHourly([]analysis.HourlyConsumption{
		hourAt(t0, 1.5),
		hourAt(t0.Add(time.Hour), 2.0),
	})
	require.NoError(t, err)

	got, err := s.HourlyRange(t0, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, t0.Unix(), got[0].Timestamp.Unix())
	assert.Equal(t, "2025-01-15", got[0].Date)
	assert.Equal(t, 10, got[0].Hour)
	assert.Equal(t, tariff.OffPeak, got[0].Period)
	assert.InDelta(t, 1.5, got[0].Registers["CT1 [kWh]"], 1e-9)
	assert.InDelta(t, 1.5*0.298, got[0].TotalCost, 1e-9)
}

func TestSaveHourly_UpsertsAndSkipsPartial(t *testing.T) {
	s := openTestStore(t)
	t0 := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveHourly([]analysis.HourlyConsumption{hourAt(t0, 1.0)}))
	require.NoError(t, s.SaveHourly([]analysis.HourlyConsumption{hourAt(t0, 1.5)}))

	partial := hourAt(t0.Add(time.Hour), 0.3)
	partial.Partial = true
	require.NoError(t, s.SaveHourly([]analysis.HourlyConsumption{partial}))

	got, err := s.HourlyRange(t0, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.5, got[0].Registers["CT1 [kWh]"], 1e-9)
}

func dailyAt(date string, kwh float64) analysis.DailyTotal {
	return analysis.DailyTotal{
		Date:      date,
		TotalKWh:  kwh,
		TotalCost: kwh * 0.298,
		ByTOU: map[tariff.Period]*analysis.DailyTOU{
			tariff.Peak:     {KWh: kwh / 4, Cost: kwh / 4 * 0.520},
			tariff.PartPeak: {},
			tariff.OffPeak:  {KWh: kwh * 3 / 4, Cost: kwh * 3 / 4 * 0.298},
		},
		Registers: map[string]float64{"CT1 [kWh]": kwh},
	}
}

func TestDailySummaries_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveDailySummary(dailyAt("2025-01-14", 30)))
	require.NoError(t, s.SaveDailySummary(dailyAt("2025-01-15", 36)))
	// Upsert replaces.
	require.NoError(t, s.SaveDailySummary(dailyAt("2025-01-15", 40)))

	got, err := s.DailySummaries("2025-01-14", "2025-01-15")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2025-01-14", got[0].Date)
	assert.InDelta(t, 40.0, got[1].TotalKWh, 1e-9)
	assert.InDelta(t, 10.0, got[1].ByTOU[tariff.Peak].KWh, 1e-9)
	assert.InDelta(t, 40.0, got[1].Registers["CT1 [kWh]"], 1e-9)
}

func TestWeeklyReports(t *testing.T) {
	s := openTestStore(t)

	stats := map[string]*analysis.RegisterStats{
		"CT1 [kWh]": {TotalKWh: 100, TotalCost: 31.2},
	}
	require.NoError(t, s.SaveWeeklyReport(WeeklyReport{
		WeekStart: "2025-01-06",
		WeekEnd:   "2025-01-12",
		TotalKWh:  100,
		TotalCost: 31.2,
		Stats:     stats,
		Text:      "weekly summary",
	}))

	currentStart := time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC)
	prev, err := s.PreviousWeekStats(currentStart)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", prev.WeekStart)
	assert.InDelta(t, 100.0, prev.TotalKWh, 1e-9)
	assert.InDelta(t, 100.0, prev.Stats["CT1 [kWh]"].TotalKWh, 1e-9)
	assert.Equal(t, "weekly summary", prev.Text)

	// A week with no snapshot.
	_, err = s.PreviousWeekStats(currentStart.AddDate(0, 2, 0))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHistoricalAverages(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

	_, err := s.HistoricalAverages(now, 30)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveDailySummary(dailyAt("2025-01-13", 20)))
	require.NoError(t, s.SaveDailySummary(dailyAt("2025-01-14", 40)))

	avg, err := s.HistoricalAverages(now, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, avg.DaysAnalyzed)
	assert.InDelta(t, 30.0, avg.AvgDailyKWh, 1e-9)
	assert.InDelta(t, 30.0*0.298, avg.AvgDailyCost, 1e-9)
}

func TestRegisterHistory(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveDailySummary(dailyAt("2025-01-13", 20)))
	d := dailyAt("2025-01-14", 10)
	d.Registers = map[string]float64{"Other [kWh]": 10}
	require.NoError(t, s.SaveDailySummary(d))

	hist, err := s.RegisterHistory("CT1 [kWh]", now, 30)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "2025-01-13", hist[0].Date)
	assert.InDelta(t, 20.0, hist[0].TotalKWh, 1e-9)
}

func TestCleanup(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	old := now.AddDate(0, 0, -100)
	require.NoError(t, s.SaveHourly([]analysis.HourlyConsumption{
		hourAt(old, 1.0),
		hourAt(now.AddDate(0, 0, -1), 2.0),
	}))
	require.NoError(t, s.SaveDailySummary(dailyAt(old.Format("2006-01-02"), 10)))
	require.NoError(t, s.SaveDailySummary(dailyAt("2025-02-28", 20)))

	deleted, err := s.Cleanup(now, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := s.HourlyRange(old.AddDate(0, 0, -1), now)
	require.NoError(t, err)
	require.Len(t, got, 1)

	days, err := s.DailySummaries("2024-01-01", "2025-12-31")
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-02-28", days[0].Date)
}
