package tariff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		PeakHours:     []int{16, 17, 18, 19, 20},
		PartPeakHours: []int{15, 21, 22, 23},
		SummerMonths:  []time.Month{time.June, time.July, time.August, time.September},
		Winter:        Rates{Peak: 0.51928, PartPeak: 0.49193, OffPeak: 0.29780},
		Summer:        Rates{Peak: 0.64639, PartPeak: 0.52525, OffPeak: 0.29780},
		WinterExportCredit: Rates{Peak: 0.16, PartPeak: 0.14, OffPeak: 0.12},
		SummerExportCredit: Rates{Peak: 0.16, PartPeak: 0.14, OffPeak: 0.12},
	}
}

func TestSchedule_PeriodForIsTotal(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)

	counts := map[Period]int{}
	for h := 0; h < 24; h++ {
		p := s.PeriodFor(h)
		assert.Contains(t, Periods, p, "hour %d", h)
		counts[p]++
	}
	assert.Equal(t, 5, counts[Peak])
	assert.Equal(t, 4, counts[PartPeak])
	assert.Equal(t, 15, counts[OffPeak])
}

func TestSchedule_PeriodBoundaries(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)

	assert.Equal(t, OffPeak, s.PeriodFor(0))
	assert.Equal(t, OffPeak, s.PeriodFor(14))
	assert.Equal(t, PartPeak, s.PeriodFor(15))
	assert.Equal(t, Peak, s.PeriodFor(16))
	assert.Equal(t, Peak, s.PeriodFor(20))
	assert.Equal(t, PartPeak, s.PeriodFor(21))
	assert.Equal(t, PartPeak, s.PeriodFor(23))
}

func TestSchedule_IsSummer(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)

	assert.False(t, s.IsSummer(time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsSummer(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsSummer(time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC)))
	assert.False(t, s.IsSummer(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSchedule_Rate(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)

	winter := time.Date(2025, time.January, 15, 18, 0, 0, 0, time.UTC)
	summer := time.Date(2025, time.July, 15, 18, 0, 0, 0, time.UTC)

	assert.InDelta(t, 0.51928, s.Rate(winter, Peak), 1e-9)
	assert.InDelta(t, 0.64639, s.Rate(summer, Peak), 1e-9)
	assert.InDelta(t, 0.29780, s.Rate(winter, OffPeak), 1e-9)
	assert.InDelta(t, 0.29780, s.Rate(summer, OffPeak), 1e-9)
}

func TestSchedule_ExportCredit(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)

	winter := time.Date(2025, time.December, 1, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, 0.12, s.ExportCredit(winter, OffPeak), 1e-9)
	assert.InDelta(t, 0.16, s.ExportCredit(winter, Peak), 1e-9)
}

func TestSchedule_RejectsOverlapAndBadHours(t *testing.T) {
	cfg := testConfig()
	cfg.PartPeakHours = append(cfg.PartPeakHours, 16) // already peak
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.PeakHours = []int{24}
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.SummerMonths = []time.Month{13}
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestSchedule_OutOfRangeHourDefaultsOffPeak(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)
	assert.Equal(t, OffPeak, s.PeriodFor(-1))
	assert.Equal(t, OffPeak, s.PeriodFor(24))
}
