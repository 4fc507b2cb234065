// Package store persists hourly consumption, daily summaries and weekly
// report snapshots in SQLite for trend analysis.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/epheterson/energy-dashboard/internal/analysis"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

// ErrNotFound signals an absent row where one row was asked for.
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS hourly_consumption (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER UNIQUE NOT NULL,
	date TEXT NOT NULL,
	hour INTEGER NOT NULL,
	tou_period TEXT NOT NULL,
	rate REAL NOT NULL,
	register_data TEXT NOT NULL,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_hourly_timestamp ON hourly_consumption(timestamp);
CREATE INDEX IF NOT EXISTS idx_hourly_date ON hourly_consumption(date);

CREATE TABLE IF NOT EXISTS daily_summary (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT UNIQUE NOT NULL,
	total_kwh REAL NOT NULL,
	total_cost REAL NOT NULL,
	peak_kwh REAL NOT NULL,
	peak_cost REAL NOT NULL,
	part_peak_kwh REAL NOT NULL,
	part_peak_cost REAL NOT NULL,
	off_peak_kwh REAL NOT NULL,
	off_peak_cost REAL NOT NULL,
	register_totals TEXT NOT NULL,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_daily_date ON daily_summary(date);

CREATE TABLE IF NOT EXISTS weekly_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	week_start TEXT NOT NULL,
	week_end TEXT NOT NULL,
	total_kwh REAL NOT NULL,
	total_cost REAL NOT NULL,
	register_stats TEXT NOT NULL,
	report_text TEXT,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
`

// Store wraps the SQLite database. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pinging %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveHourly upserts completed hourly records keyed by slot timestamp.
// Partial records are skipped: the slot gets rewritten once complete.
func (s *Store) SaveHourly(hourly []analysis.HourlyConsumption) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO hourly_consumption
		(timestamp, date, hour, tou_period, rate, register_data)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	for _, h := range hourly {
		if h.Partial {
			continue
		}
		regs, err := json.Marshal(h.Registers)
		if err != nil {
			return fmt.Errorf("store: encoding registers: %w", err)
		}
		if _, err := stmt.Exec(h.Timestamp.Unix(), h.Date, h.Hour, string(h.Period), h.Rate, string(regs)); err != nil {
			return fmt.Errorf("store: inserting hour %s: %w", h.Timestamp, err)
		}
	}
	return tx.Commit()
}

// HourlyRange returns stored hourly records with start <= timestamp < end,
// oldest first.
func (s *Store) HourlyRange(start, end time.Time) ([]analysis.HourlyConsumption, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, date, hour, tou_period, rate, register_data
		FROM hourly_consumption
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp`, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("store: querying hourly: %w", err)
	}
	defer rows.Close()

	var out []analysis.HourlyConsumption
	for rows.Next() {
		var (
			ts     int64
			h      analysis.HourlyConsumption
			period string
			regs   string
		)
		if err := rows.Scan(&ts, &h.Date, &h.Hour, &period, &h.Rate, &regs); err != nil {
			return nil, fmt.Errorf("store: scanning hourly: %w", err)
		}
		h.Timestamp = time.Unix(ts, 0)
		h.Period = tariff.Period(period)
		if err := json.Unmarshal([]byte(regs), &h.Registers); err != nil {
			return nil, fmt.Errorf("store: decoding registers: %w", err)
		}
		for _, kwh := range h.Registers {
			h.TotalKWh += kwh
		}
		h.TotalCost = h.TotalKWh * h.Rate
		out = append(out, h)
	}
	return out, rows.Err()
}

// SaveDailySummary upserts one day's rollup.
func (s *Store) SaveDailySummary(d analysis.DailyTotal) error {
	regs, err := json.Marshal(d.Registers)
	if err != nil {
		return fmt.Errorf("store: encoding register totals: %w", err)
	}

	peak := d.ByTOU[tariff.Peak]
	part := d.ByTOU[tariff.PartPeak]
	off := d.ByTOU[tariff.OffPeak]

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO daily_summary
		(date, total_kwh, total_cost, peak_kwh, peak_cost,
		 part_peak_kwh, part_peak_cost, off_peak_kwh, off_peak_cost, register_totals)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Date, d.TotalKWh, d.TotalCost,
		peak.KWh, peak.Cost, part.KWh, part.Cost, off.KWh, off.Cost,
		string(regs))
	if err != nil {
		return fmt.Errorf("store: saving daily summary %s: %w", d.Date, err)
	}
	return nil
}

// DailySummaries returns stored rollups with startDate <= date <= endDate,
// oldest first. Dates are YYYY-MM-DD strings.
func (s *Store) DailySummaries(startDate, endDate string) ([]analysis.DailyTotal, error) {
	rows, err := s.db.Query(`
		SELECT date, total_kwh, total_cost, peak_kwh, peak_cost,
		       part_peak_kwh, part_peak_cost, off_peak_kwh, off_peak_cost, register_totals
		FROM daily_summary
		WHERE date >= ? AND date <= ?
		ORDER BY date`, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("store: querying daily summaries: %w", err)
	}
	defer rows.Close()

	var out []analysis.DailyTotal
	for rows.Next() {
		d := analysis.DailyTotal{
			ByTOU: map[tariff.Period]*analysis.DailyTOU{
				tariff.Peak: {}, tariff.PartPeak: {}, tariff.OffPeak: {},
			},
		}
		var regs string
		if err := rows.Scan(&d.Date, &d.TotalKWh, &d.TotalCost,
			&d.ByTOU[tariff.Peak].KWh, &d.ByTOU[tariff.Peak].Cost,
			&d.ByTOU[tariff.PartPeak].KWh, &d.ByTOU[tariff.PartPeak].Cost,
			&d.ByTOU[tariff.OffPeak].KWh, &d.ByTOU[tariff.OffPeak].Cost,
			&regs); err != nil {
			return nil, fmt.Errorf("store: scanning daily summary: %w", err)
		}
		if err := json.Unmarshal([]byte(regs), &d.Registers); err != nil {
			return nil, fmt.Errorf("store: decoding register totals: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// WeeklyReport is a stored weekly snapshot.
type WeeklyReport struct {
	WeekStart string
	WeekEnd   string
	TotalKWh  float64
	TotalCost float64
	Stats     map[string]*analysis.RegisterStats
	Text      string
}

// SaveWeeklyReport appends a weekly snapshot. Snapshots are append-only so
// re-runs of the same week remain visible.
func (s *Store) SaveWeeklyReport(r WeeklyReport) error {
	stats, err := json.Marshal(r.Stats)
	if err != nil {
		return fmt.Errorf("store: encoding weekly stats: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO weekly_reports
		(week_start, week_end, total_kwh, total_cost, register_stats, report_text)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.WeekStart, r.WeekEnd, r.TotalKWh, r.TotalCost, string(stats), r.Text)
	if err != nil {
		return fmt.Errorf("store: saving weekly report: %w", err)
	}
	return nil
}

// PreviousWeekStats finds the most recent weekly snapshot covering the week
// before currentWeekStart. Returns ErrNotFound when no snapshot matches.
func (s *Store) PreviousWeekStats(currentWeekStart time.Time) (*WeeklyReport, error) {
	prevWeekStart := currentWeekStart.AddDate(0, 0, -7).Format("2006-01-02")

	row := s.db.QueryRow(`
		SELECT week_start, week_end, total_kwh, total_cost, register_stats, report_text
		FROM weekly_reports
		WHERE week_start <= ? AND week_end >= ?
		ORDER BY week_end DESC
		LIMIT 1`, prevWeekStart, prevWeekStart)

	var (
		r     WeeklyReport
		stats string
		text  sql.NullString
	)
	err := row.Scan(&r.WeekStart, &r.WeekEnd, &r.TotalKWh, &r.TotalCost, &stats, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: querying previous week: %w", err)
	}
	if err := json.Unmarshal([]byte(stats), &r.Stats); err != nil {
		return nil, fmt.Errorf("store: decoding weekly stats: %w", err)
	}
	r.Text = text.String
	return &r, nil
}

// Averages summarizes stored daily rollups over a trailing window.
type Averages struct {
	AvgDailyKWh  float64
	AvgDailyCost float64
	DaysAnalyzed int
}

// HistoricalAverages averages daily summaries over the past days ending at
// now. Returns ErrNotFound when no summaries fall in the window.
func (s *Store) HistoricalAverages(now time.Time, days int) (*Averages, error) {
	end := now.Format("2006-01-02")
	start := now.AddDate(0, 0, -days).Format("2006-01-02")

	row := s.db.QueryRow(`
		SELECT COALESCE(AVG(total_kwh), 0), COALESCE(AVG(total_cost), 0), COUNT(*)
		FROM daily_summary
		WHERE date >= ? AND date <= ?`, start, end)

	var a Averages
	if err := row.Scan(&a.AvgDailyKWh, &a.AvgDailyCost, &a.DaysAnalyzed); err != nil {
		return nil, fmt.Errorf("store: querying averages: %w", err)
	}
	if a.DaysAnalyzed == 0 {
		return nil, ErrNotFound
	}
	return &a, nil
}

// RegisterHistory returns one register's stored daily kWh over a trailing
// window, oldest first. Days without that register are omitted.
func (s *Store) RegisterHistory(name string, now time.Time, days int) ([]analysis.DailyTotal, error) {
	end := now.Format("2006-01-02")
	start := now.AddDate(0, 0, -days).Format("2006-01-02")

	rows, err := s.db.Query(`
		SELECT date, register_totals FROM daily_summary
		WHERE date >= ? AND date <= ?
		ORDER BY date`, start, end)
	if err != nil {
		return nil, fmt.Errorf("store: querying register history: %w", err)
	}
	defer rows.Close()

	var out []analysis.DailyTotal
	for rows.Next() {
		var date, regs string
		if err := rows.Scan(&date, &regs); err != nil {
			return nil, fmt.Errorf("store: scanning register history: %w", err)
		}
		totals := make(map[string]float64)
		if err := json.Unmarshal([]byte(regs), &totals); err != nil {
			return nil, fmt.Errorf("store: decoding register totals: %w", err)
		}
		kwh, ok := totals[name]
		if !ok {
			continue
		}
		out = append(out, analysis.DailyTotal{
			Date:      date,
			TotalKWh:  kwh,
			Registers: map[string]float64{name: kwh},
		})
	}
	return out, rows.Err()
}

// Cleanup deletes hourly rows and daily summaries older than the retention
// window. Weekly snapshots are kept indefinitely. Returns the number of
// hourly rows removed.
func (s *Store) Cleanup(now time.Time, retentionDays int) (int64, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	res, err := s.db.Exec(`DELETE FROM hourly_consumption WHERE timestamp < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("store: cleaning hourly: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if _, err := s.db.Exec(`DELETE FROM daily_summary WHERE date < ?`, cutoff.Format("2006-01-02")); err != nil {
		return deleted, fmt.Errorf("store: cleaning daily: %w", err)
	}
	return deleted, nil
}
