package meter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epheterson/energy-dashboard/internal/tariff"
)

func testSchedule(t *testing.T) *tariff.Schedule {
	t.Helper()
	s, err := tariff.New(tariff.Config{
		PeakHours:     []int{16, 17, 18, 19, 20},
		PartPeakHours: []int{15, 21, 22, 23},
		SummerMonths:  []time.Month{time.June, time.July, time.August, time.September},
		Winter:        tariff.Rates{Peak: 0.51928, PartPeak: 0.49193, OffPeak: 0.29780},
		Summer:        tariff.Rates{Peak: 0.64639, PartPeak: 0.52525, OffPeak: 0.29780},
	})
	require.NoError(t, err)
	return s
}

func TestCSVParser_Parse(t *testing.T) {
	// 1736935200 = 2025-01-15 10:00:00 UTC
	input := `Date & Time,CT 1 [kWh],CT 2 [kWh],Voltage
1736938800,105.5,42.1,241.9
1736935200,104.2,41.0,242.3`

	p := NewCSVParser(testSchedule(t), time.UTC)
	readings, err := p.Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, readings, 2)

	// Sorted ascending even though input was newest-first.
	assert.True(t, readings[0].Timestamp.Before(readings[1].Timestamp))
	assert.Equal(t, "2025-01-15", readings[0].Date)
	assert.Equal(t, 10, readings[0].Hour)
	assert.Equal(t, tariff.OffPeak, readings[0].Period)

	assert.InDelta(t, 104.2, readings[0].Energy["CT 1 [kWh]"], 1e-9)
	assert.InDelta(t, 41.0, readings[0].Energy["CT 2 [kWh]"], 1e-9)
	// Non-energy columns are dropped at ingestion.
	assert.NotContains(t, readings[0].Energy, "Voltage")
}

func TestCSVParser_MalformedCellParsesAsZero(t *testing.T) {
	input := `Date & Time,CT 1 [kWh]
1736935200,not-a-number`

	p := NewCSVParser(testSchedule(t), time.UTC)
	readings, err := p.Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.InDelta(t, 0.0, readings[0].Energy["CT 1 [kWh]"], 1e-9)
}

func TestCSVParser_MalformedTimestampIsFatal(t *testing.T) {
	input := `Date & Time,CT 1 [kWh]
garbage,104.2`

	p := NewCSVParser(testSchedule(t), time.UTC)
	_, err := p.Parse(strings.NewReader(input))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp")
}

func TestCSVParser_BadHeader(t *testing.T) {
	input := `timestamp,CT 1 [kWh]
1736935200,104.2`

	p := NewCSVParser(testSchedule(t), time.UTC)
	_, err := p.Parse(strings.NewReader(input))
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "CT 14 - Furnace", DisplayName("CT 14 - Furnace [kWh]"))
	assert.Equal(t, "Usage", DisplayName("Usage [kWh]"))
	assert.Equal(t, "Voltage", DisplayName("Voltage"))
}

func TestParseInstantXML(t *testing.T) {
	input := `<data>
  <r t="P" n="Usage" rt="total"><i>-1520.0</i></r>
  <r t="P" n="Generation" rt="total"><i>800.0</i></r>
  <r t="P" n="CT 14 - Furnace"><i>-420.5</i></r>
  <r t="P" n="CT 16"><i>-95.0</i></r>
  <r t="P" n="Total Power"><i>-1500.0</i></r>
  <r t="P" n="No Value"></r>
</data>`

	snap, err := ParseInstantXML(strings.NewReader(input))
	require.NoError(t, err)

	assert.InDelta(t, -1520.0, snap.TotalUsageW, 1e-9)
	require.Len(t, snap.Circuits, 2)
	// Sorted descending by magnitude; consumption sign stripped.
	assert.Equal(t, "CT 14 - Furnace", snap.Circuits[0].Name)
	assert.InDelta(t, 420.5, snap.Circuits[0].Watts, 1e-9)
	assert.InDelta(t, 95.0, snap.Circuits[1].Watts, 1e-9)
}
