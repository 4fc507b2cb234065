// Package server is the dashboard daemon: the JSON API, the live
// WebSocket feed and the background refresh and report loops.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/epheterson/energy-dashboard/internal/analysis"
	"github.com/epheterson/energy-dashboard/internal/config"
	"github.com/epheterson/energy-dashboard/internal/egauge"
	"github.com/epheterson/energy-dashboard/internal/mail"
	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/metrics"
	"github.com/epheterson/energy-dashboard/internal/solar"
	"github.com/epheterson/energy-dashboard/internal/store"
	"github.com/epheterson/energy-dashboard/internal/tariff"
	"github.com/epheterson/energy-dashboard/internal/ws"
)

// MeterClient is the slice of the eGauge client the server needs.
type MeterClient interface {
	FetchHourly(ctx context.Context, n int) ([]meter.Reading, error)
	FetchLatest(ctx context.Context) (*meter.Reading, error)
	FetchInstant(ctx context.Context) (meter.InstantSnapshot, error)
}

// TelemetryClient is the slice of the Home Assistant client the server
// needs. A nil or unconfigured client disables solar features.
type TelemetryClient interface {
	Configured() bool
	FetchHistory(ctx context.Context, start, end time.Time) (map[solar.Quantity][]solar.Sample, error)
	FetchLive(ctx context.Context) (map[string]float64, error)
}

// ErrSolarDisabled is returned by Solar when no telemetry source is
// configured, as opposed to a configured source that failed.
var ErrSolarDisabled = errors.New("server: solar not configured")

const maxHistoryDays = 90

const (
	todayTTL      = 60 * time.Second
	historicalTTL = time.Hour
	instantTTL    = 4 * time.Second
)

// Server owns the data pipeline behind the HTTP API.
type Server struct {
	cfg      config.Config
	schedule *tariff.Schedule
	loc      *time.Location
	engine   *analysis.Engine

	meter MeterClient
	ha    TelemetryClient
	store *store.Store // nil disables persistence
	mail  *mail.Sender // nil disables the weekly email

	hub   *ws.Hub
	pub   *ws.Publisher
	cache *Cache

	now func() time.Time
}

// New wires a Server. store and mailer may be nil.
func New(cfg config.Config, schedule *tariff.Schedule, loc *time.Location, meterClient MeterClient, haClient TelemetryClient, st *store.Store, mailer *mail.Sender) *Server {
	hub := ws.NewHub()
	return &Server{
		cfg:      cfg,
		schedule: schedule,
		loc:      loc,
		engine:   analysis.NewEngine(schedule, cfg.Meter.ExcludeRegisters),
		meter:    meterClient,
		ha:       haClient,
		store:    st,
		mail:     mailer,
		hub:      hub,
		pub:      ws.NewPublisher(hub),
		cache:    NewCache(),
		now: func() time.Time {
			return time.Now().In(loc)
		},
	}
}

// Hub exposes the WebSocket hub for the live handler.
func (s *Server) Hub() *ws.Hub { return s.hub }

// SolarEnabled reports whether source attribution can run.
func (s *Server) SolarEnabled() bool {
	return s.ha != nil && s.ha.Configured()
}

// Today builds the running-cost view for one date. An empty date means the
// current day, extended with the partial current hour from the device's
// latest snapshot. Historical dates serve completed hours only and cache
// far longer.
func (s *Server) Today(ctx context.Context, date string) (*TodayResponse, error) {
	now := s.now()
	today := now.Format("2006-01-02")
	isToday := date == "" || date == today
	if isToday {
		date = today
	}

	key, ttl := "today", todayTTL
	if !isToday {
		key, ttl = "day_"+date, historicalTTL
	}
	if v, ok := s.cache.Get(key, ttl); ok {
		return v.(*TodayResponse), nil
	}

	var (
		rows int
		err  error
	)
	if isToday {
		rows = egauge.RowsForToday(now)
	} else {
		target, perr := time.ParseInLocation("2006-01-02", date, s.loc)
		if perr != nil {
			return nil, fmt.Errorf("server: bad date %q: %w", date, perr)
		}
		rows = egauge.RowsForDate(now, target)
	}

	start := time.Now()
	readings, err := s.meter.FetchHourly(ctx, rows)
	metrics.ObserveFetch("egauge", start, err)
	if err != nil {
		return nil, fmt.Errorf("server: fetching hourly data: %w", err)
	}

	var hourly []analysis.HourlyConsumption
	if isToday {
		// The latest snapshot extends the view into the current hour;
		// losing it degrades to completed hours, not to an error.
		snapshot, serr := s.meter.FetchLatest(ctx)
		if serr != nil {
			snapshot = nil
		}
		hourly, err = s.engine.HourlyWithSnapshot(readings, snapshot)
	} else {
		hourly, err = s.engine.HourlyConsumption(readings)
	}
	if err != nil {
		return nil, fmt.Errorf("server: computing hourly consumption: %w", err)
	}

	resp := buildTodayResponse(date, analysis.FilterDate(hourly, date))
	s.cache.Set(key, resp)
	if isToday {
		metrics.SetTodayTotals(resp.TotalKWh, resp.TotalCost)
	}
	return resp, nil
}

// History builds the N-day aggregate analysis. days is clamped to
// [1, maxHistoryDays].
func (s *Server) History(ctx context.Context, days int) (*HistoryResponse, error) {
	days = clampDays(days)

	key := fmt.Sprintf("history_%d", days)
	if v, ok := s.cache.Get(key, historicalTTL); ok {
		return v.(*HistoryResponse), nil
	}

	hourly, err := s.fetchHourlyDays(ctx, days)
	if err != nil {
		return nil, err
	}

	stats := analysis.Analyze(hourly, days)
	daily := analysis.DailyTotals(hourly)
	opportunities := analysis.Opportunities(stats, s.now(), s.schedule)

	resp := buildHistoryResponse(days, stats, daily, opportunities)
	s.cache.Set(key, resp)
	return resp, nil
}

// Solar builds the N-day source-attribution view. Returns ErrSolarDisabled
// when no telemetry is configured and solar.ErrUnavailable when the window
// yielded no telemetry buckets.
func (s *Server) Solar(ctx context.Context, days int) (*SolarResponse, error) {
	if !s.SolarEnabled() {
		return nil, ErrSolarDisabled
	}
	days = clampDays(days)

	key := fmt.Sprintf("solar_%d", days)
	if v, ok := s.cache.Get(key, historicalTTL); ok {
		return v.(*SolarResponse), nil
	}

	hourly, err := s.fetchHourlyDays(ctx, days)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fetchStart := time.Now()
	samples, err := s.ha.FetchHistory(ctx, now.AddDate(0, 0, -days), now)
	metrics.ObserveFetch("home_assistant", fetchStart, err)
	if err != nil {
		return nil, fmt.Errorf("server: fetching telemetry: %w", err)
	}

	buckets := solar.BuildBuckets(samples)
	blended, system, err := solar.Blend(hourly, buckets, s.schedule, s.cfg.Battery.Efficiency)
	if err != nil {
		return nil, err
	}

	resp := buildSolarResponse(days, blended, system, buckets, func(p tariff.Period) float64 {
		return s.schedule.Rate(now, p)
	})
	s.cache.Set(key, resp)
	return resp, nil
}

func (s *Server) fetchHourlyDays(ctx context.Context, days int) ([]analysis.HourlyConsumption, error) {
	start := time.Now()
	readings, err := s.meter.FetchHourly(ctx, egauge.RowsForDays(days))
	metrics.ObserveFetch("egauge", start, err)
	if err != nil {
		return nil, fmt.Errorf("server: fetching hourly data: %w", err)
	}
	hourly, err := s.engine.HourlyConsumption(readings)
	if err != nil {
		return nil, fmt.Errorf("server: computing hourly consumption: %w", err)
	}
	return hourly, nil
}

func clampDays(days int) int {
	if days < 1 {
		return 7
	}
	if days > maxHistoryDays {
		return maxHistoryDays
	}
	return days
}
