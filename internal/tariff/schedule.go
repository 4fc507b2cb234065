package tariff

import (
	"fmt"
	"time"
)

// Period is a time-of-use tariff bucket.
type Period string

const (
	Peak     Period = "peak"
	PartPeak Period = "part_peak"
	OffPeak  Period = "off_peak"
)

// Periods lists all TOU periods in display order.
var Periods = []Period{Peak, PartPeak, OffPeak}

// Rates holds $/kWh per TOU period for one season.
type Rates struct {
	Peak     float64
	PartPeak float64
	OffPeak  float64
}

// For returns the rate for a period.
func (r Rates) For(p Period) float64 {
	switch p {
	case Peak:
		return r.Peak
	case PartPeak:
		return r.PartPeak
	default:
		return r.OffPeak
	}
}

// Config describes a seasonal TOU schedule. Hours not listed as peak or
// part-peak are off-peak, so the hour mapping is total over 0-23.
type Config struct {
	PeakHours     []int
	PartPeakHours []int
	SummerMonths  []time.Month

	Winter Rates
	Summer Rates

	WinterExportCredit Rates
	SummerExportCredit Rates
}

// Schedule resolves TOU periods, $/kWh rates and export credits.
// Immutable once built; safe for concurrent use.
type Schedule struct {
	hourPeriod   [24]Period
	summerMonths [13]bool

	winter, summer             Rates
	winterExport, summerExport Rates
}

// New validates cfg and builds a Schedule.
func New(cfg Config) (*Schedule, error) {
	s := &Schedule{
		winter:       cfg.Winter,
		summer:       cfg.Summer,
		winterExport: cfg.WinterExportCredit,
		summerExport: cfg.SummerExportCredit,
	}
	for h := range s.hourPeriod {
		s.hourPeriod[h] = OffPeak
	}
	for _, h := range cfg.PeakHours {
		if h < 0 || h > 23 {
			return nil, fmt.Errorf("tariff: peak hour %d out of range", h)
		}
		s.hourPeriod[h] = Peak
	}
	for _, h := range cfg.PartPeakHours {
		if h < 0 || h > 23 {
			return nil, fmt.Errorf("tariff: part-peak hour %d out of range", h)
		}
		if s.hourPeriod[h] == Peak {
			return nil, fmt.Errorf("tariff: hour %d is both peak and part-peak", h)
		}
		s.hourPeriod[h] = PartPeak
	}
	for _, m := range cfg.SummerMonths {
		if m < time.January || m > time.December {
			return nil, fmt.Errorf("tariff: summer month %d out of range", m)
		}
		s.summerMonths[m] = true
	}
	return s, nil
}

// PeriodFor returns the TOU period for an hour of day.
func (s *Schedule) PeriodFor(hour int) Period {
	if hour < 0 || hour > 23 {
		return OffPeak
	}
	return s.hourPeriod[hour]
}

// IsSummer reports whether t falls in a summer-rate month.
func (s *Schedule) IsSummer(t time.Time) bool {
	return s.summerMonths[t.Month()]
}

// Rate returns the $/kWh import rate for a date and TOU period.
func (s *Schedule) Rate(t time.Time, p Period) float64 {
	if s.IsSummer(t) {
		return s.summer.For(p)
	}
	return s.winter.For(p)
}

// ExportCredit returns the $/kWh credit for energy exported to the grid.
func (s *Schedule) ExportCredit(t time.Time, p Period) float64 {
	if s.IsSummer(t) {
		return s.summerExport.For(p)
	}
	return s.winterExport.For(p)
}
