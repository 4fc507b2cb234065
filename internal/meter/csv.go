package meter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/epheterson/energy-dashboard/internal/tariff"
)

// timestampColumn is the first column of the device's CSV export: an
// integer epoch timestamp.
const timestampColumn = "Date & Time"

// CSVParser parses the meter's cumulative-register CSV export.
//
// Expected format:
//
//	Date & Time,CT 1 [kWh],CT 2 [kWh],...
//	1732186800,1023.544,98.210,...
//
// Rows arrive newest-first from the device; Parse returns readings stably
// sorted ascending by timestamp. A malformed timestamp is fatal for the
// whole row set; a malformed register cell degrades to 0.0.
type CSVParser struct {
	Schedule *tariff.Schedule
	Location *time.Location
}

func NewCSVParser(schedule *tariff.Schedule, loc *time.Location) *CSVParser {
	if loc == nil {
		loc = time.Local
	}
	return &CSVParser{Schedule: schedule, Location: loc}
}

func (p *CSVParser) Parse(r io.Reader) ([]Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if len(header) < 2 || strings.TrimSpace(header[0]) != timestampColumn {
		return nil, fmt.Errorf("expected first column %q, got %q", timestampColumn, header[0])
	}

	// Classify energy registers once, by column position.
	energyCols := make([]int, 0, len(header))
	for i := 1; i < len(header); i++ {
		if IsEnergyRegister(strings.TrimSpace(header[i])) {
			energyCols = append(energyCols, i)
		}
	}

	var readings []Reading
	lineNum := 1

	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		ts, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing timestamp %q: %w", lineNum, record[0], err)
		}

		reading := p.newReading(time.Unix(ts, 0).In(p.Location))
		for _, col := range energyCols {
			if col >= len(record) {
				continue
			}
			name := strings.TrimSpace(header[col])
			val, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				val = 0.0
			}
			reading.Energy[name] = val
		}
		readings = append(readings, reading)
	}

	// Device row order is not guaranteed; differencing requires ascending time.
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
	return readings, nil
}

func (p *CSVParser) newReading(t time.Time) Reading {
	return Reading{
		Timestamp: t,
		Date:      t.Format("2006-01-02"),
		Hour:      t.Hour(),
		Period:    p.Schedule.PeriodFor(t.Hour()),
		Energy:    make(map[string]float64),
	}
}
