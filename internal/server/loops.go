package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/epheterson/energy-dashboard/internal/analysis"
	"github.com/epheterson/energy-dashboard/internal/mail"
	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/metrics"
	"github.com/epheterson/energy-dashboard/internal/report"
	"github.com/epheterson/energy-dashboard/internal/solar"
	"github.com/epheterson/energy-dashboard/internal/store"
	"github.com/epheterson/energy-dashboard/internal/ws"
)

const (
	liveInterval         = 5 * time.Second
	todayRefreshInterval = 60 * time.Second
	retentionDays        = 365
)

// Run starts the background loops and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) {
	go s.liveLoop(ctx)
	go s.weeklyEmailLoop(ctx)
	s.todayRefreshLoop(ctx)
}

func (s *Server) todayRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(todayRefreshInterval)
	defer ticker.Stop()

	s.refreshToday(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshToday(ctx)
		}
	}
}

// refreshToday rebuilds the day-so-far view and pushes the rollup to
// connected dashboards.
func (s *Server) refreshToday(ctx context.Context) {
	s.cache.Invalidate("today")
	resp, err := s.Today(ctx, "")
	if err != nil {
		log.Printf("Background today refresh error: %v", err)
		return
	}

	partial := false
	if n := len(resp.Hourly); n > 0 {
		partial = resp.Hourly[n-1].Partial
	}
	s.pub.PublishToday(ws.TodayTotals{
		Date:        resp.Date,
		TotalKWh:    resp.TotalKWh,
		TotalCost:   resp.TotalCost,
		PartialHour: partial,
	})
}

func (s *Server) liveLoop(ctx context.Context) {
	ticker := time.NewTicker(liveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.ClientCount() == 0 {
				continue
			}
			payload, err := s.buildLivePayload(ctx)
			if err != nil {
				log.Printf("Live payload error: %v", err)
				continue
			}
			s.pub.PublishLive(payload)
		}
	}
}

func (s *Server) buildLivePayload(ctx context.Context) (ws.LivePayload, error) {
	now := s.now()
	period := s.schedule.PeriodFor(now.Hour())
	payload := ws.LivePayload{
		Timestamp: now.Format(time.RFC3339),
		TOUPeriod: string(period),
		TOURate:   s.schedule.Rate(now, period),
		Circuits:  []ws.CircuitWatts{},
		SourceMix: &ws.SourceMix{},
	}

	snap, err := s.fetchInstant(ctx)
	if err != nil {
		return payload, fmt.Errorf("instant snapshot: %w", err)
	}
	payload.TotalUsageW = math.Round(snap.TotalUsageW)
	for _, c := range snap.Circuits {
		payload.Circuits = append(payload.Circuits, ws.CircuitWatts{Name: c.Name, Watts: c.Watts})
	}

	if s.SolarEnabled() {
		if live, lerr := s.fetchLive(ctx); lerr != nil {
			log.Printf("Live telemetry error: %v", lerr)
		} else {
			// Telemetry reports kW; battery positive means discharging.
			flow := &ws.PowerFlow{
				SolarKW:   live["solar_power"],
				GridKW:    live["grid_power"],
				BatteryKW: live["battery_power"],
				LoadKW:    snap.TotalUsageW / 1000,
			}
			payload.Flow = flow
			payload.BatterySOC = round(live["soc"], 1)

			// Only supplies count toward the mix: negative flows are
			// outflows (charging, exporting), not sources.
			solarSupply := math.Max(0, flow.SolarKW)
			batterySupply := math.Max(0, flow.BatteryKW)
			gridSupply := math.Max(0, flow.GridKW)
			if total := solarSupply + batterySupply + gridSupply; total > 0 {
				payload.SourceMix = &ws.SourceMix{
					Solar:   round(solarSupply/total*100, 1),
					Battery: round(batterySupply/total*100, 1),
					Grid:    round(gridSupply/total*100, 1),
				}
			}
		}
	}

	// Running cost from the cached today view; an aging cache entry is
	// still better than an extra device fetch per live tick.
	if v, ok := s.cache.Get("today", 2*todayRefreshInterval); ok {
		today := v.(*TodayResponse)
		payload.TodayKWh = today.TotalKWh
		payload.TodayCost = today.TotalCost
	}
	return payload, nil
}

func (s *Server) fetchInstant(ctx context.Context) (meter.InstantSnapshot, error) {
	if v, ok := s.cache.Get("instant", instantTTL); ok {
		return v.(meter.InstantSnapshot), nil
	}
	start := time.Now()
	snap, err := s.meter.FetchInstant(ctx)
	metrics.ObserveFetch("egauge_instant", start, err)
	if err != nil {
		return meter.InstantSnapshot{}, err
	}
	s.cache.Set("instant", snap)
	return snap, nil
}

func (s *Server) fetchLive(ctx context.Context) (map[string]float64, error) {
	if v, ok := s.cache.Get("ha_live", instantTTL); ok {
		return v.(map[string]float64), nil
	}
	start := time.Now()
	live, err := s.ha.FetchLive(ctx)
	metrics.ObserveFetch("home_assistant_live", start, err)
	if err != nil {
		return nil, err
	}
	s.cache.Set("ha_live", live)
	return live, nil
}

func (s *Server) weeklyEmailLoop(ctx context.Context) {
	if s.mail == nil || !s.mail.Configured() {
		log.Printf("Email not configured, weekly reports disabled")
		return
	}

	for {
		next := nextMonday(s.now())
		log.Printf("Weekly email scheduled for %s", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.sendWeeklyReport(ctx); err != nil {
				log.Printf("Weekly email error: %v", err)
			} else {
				log.Printf("Weekly email sent")
			}
		}
	}
}

// nextMonday returns the next Monday 06:00 strictly in the future: on a
// Monday at or after 06:00 the report waits a full week.
func nextMonday(now time.Time) time.Time {
	days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if days == 0 && now.Hour() >= 6 {
		days = 7
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 6, 0, 0, 0, now.Location()).
		AddDate(0, 0, days)
}

func (s *Server) sendWeeklyReport(ctx context.Context) error {
	const days = 7
	now := s.now()
	weekStart := now.AddDate(0, 0, -days)

	hourly, err := s.fetchHourlyDays(ctx, days)
	if err != nil {
		metrics.ObserveReport(err)
		return err
	}

	stats := analysis.Analyze(hourly, days)
	data := report.Data{
		Generated:     now,
		Days:          days,
		Stats:         stats,
		Daily:         analysis.DailyTotals(hourly),
		Opportunities: analysis.Opportunities(stats, now, s.schedule),
	}

	if s.store != nil {
		if prev, perr := s.store.PreviousWeekStats(weekStart); perr == nil {
			data.Previous = prev
		} else if !errors.Is(perr, store.ErrNotFound) {
			log.Printf("Previous week lookup error: %v", perr)
		}
		if avg, aerr := s.store.HistoricalAverages(now, 30); aerr == nil {
			data.Averages = avg
		}
	}

	if s.SolarEnabled() {
		samples, serr := s.ha.FetchHistory(ctx, weekStart, now)
		if serr != nil {
			log.Printf("Weekly telemetry fetch error: %v", serr)
		} else {
			buckets := solar.BuildBuckets(samples)
			blended, system, berr := solar.Blend(hourly, buckets, s.schedule, s.cfg.Battery.Efficiency)
			if berr == nil {
				data.Blended = blended
				data.System = system
			} else if !errors.Is(berr, solar.ErrUnavailable) {
				log.Printf("Weekly blend error: %v", berr)
			}
		}
	}

	text := report.Text(&data)
	html, err := report.HTML(&data)
	if err != nil {
		metrics.ObserveReport(err)
		return fmt.Errorf("rendering HTML report: %w", err)
	}

	err = s.mail.Send(mail.Message{
		Subject:  fmt.Sprintf("Weekly Energy Report: %s to %s", weekStart.Format("Jan 2"), now.Format("Jan 2")),
		TextBody: text,
		HTMLBody: html,
	})
	metrics.ObserveReport(err)
	if err != nil {
		return fmt.Errorf("sending report: %w", err)
	}

	if s.store != nil {
		s.persistWeek(&data, hourly, weekStart, now, text)
	}
	return nil
}

func (s *Server) persistWeek(data *report.Data, hourly []analysis.HourlyConsumption, weekStart, weekEnd time.Time, text string) {
	if err := s.store.SaveHourly(hourly); err != nil {
		log.Printf("Saving hourly data: %v", err)
	}
	for _, d := range data.Daily {
		if err := s.store.SaveDailySummary(d); err != nil {
			log.Printf("Saving daily summary: %v", err)
		}
	}

	kwh, cost := data.Totals()
	err := s.store.SaveWeeklyReport(store.WeeklyReport{
		WeekStart: weekStart.Format("2006-01-02"),
		WeekEnd:   weekEnd.Format("2006-01-02"),
		TotalKWh:  kwh,
		TotalCost: cost,
		Stats:     data.Stats,
		Text:      text,
	})
	if err != nil {
		log.Printf("Saving weekly report: %v", err)
	}

	if deleted, err := s.store.Cleanup(weekEnd, retentionDays); err != nil {
		log.Printf("Retention cleanup: %v", err)
	} else if deleted > 0 {
		log.Printf("Retention cleanup removed %d rows", deleted)
	}
}
