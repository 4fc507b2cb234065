package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/epheterson/energy-dashboard/internal/analysis"
	"github.com/epheterson/energy-dashboard/internal/config"
	"github.com/epheterson/energy-dashboard/internal/egauge"
	"github.com/epheterson/energy-dashboard/internal/ha"
	"github.com/epheterson/energy-dashboard/internal/mail"
	"github.com/epheterson/energy-dashboard/internal/meter"
	"github.com/epheterson/energy-dashboard/internal/report"
	"github.com/epheterson/energy-dashboard/internal/solar"
	"github.com/epheterson/energy-dashboard/internal/store"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	days := flag.Int("days", 7, "days of history to analyze")
	output := flag.String("output", "", "write the text report to a file instead of stdout")
	htmlPath := flag.String("html", "", "also write the HTML report to this path")
	xlsxPath := flag.String("xlsx", "", "also write an XLSX export to this path")
	pdfPath := flag.String("pdf", "", "also write a PDF export to this path")
	email := flag.Bool("email", false, "send the report by email")
	withSolar := flag.Bool("solar", false, "include solar and battery source attribution")
	noStore := flag.Bool("no-store", false, "skip reading and writing the history database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	schedule, err := cfg.Schedule()
	if err != nil {
		log.Fatalf("Invalid tariff config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	ctx := context.Background()
	now := time.Now().In(loc)
	weekStart := now.AddDate(0, 0, -*days)

	parser := meter.NewCSVParser(schedule, loc)
	client := egauge.New(cfg.Meter.URL, cfg.Meter.Username, cfg.Meter.Password, parser)

	log.Printf("Fetching %d days of hourly data from %s", *days, cfg.Meter.URL)
	readings, err := client.FetchHourly(ctx, egauge.RowsForDays(*days))
	if err != nil {
		log.Fatalf("Failed to fetch meter data: %v", err)
	}

	engine := analysis.NewEngine(schedule, cfg.Meter.ExcludeRegisters)
	hourly, err := engine.HourlyConsumption(readings)
	if err != nil {
		log.Fatalf("Failed to compute hourly consumption: %v", err)
	}

	stats := analysis.Analyze(hourly, *days)
	data := report.Data{
		Generated:     now,
		Days:          *days,
		Stats:         stats,
		Daily:         analysis.DailyTotals(hourly),
		Opportunities: analysis.Opportunities(stats, now, schedule),
	}

	var st *store.Store
	if !*noStore && cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			log.Printf("History database unavailable: %v", err)
			st = nil
		} else {
			defer st.Close()
			if prev, perr := st.PreviousWeekStats(weekStart); perr == nil {
				data.Previous = prev
			} else if !errors.Is(perr, store.ErrNotFound) {
				log.Printf("Previous week lookup: %v", perr)
			}
			if avg, aerr := st.HistoricalAverages(now, 30); aerr == nil {
				data.Averages = avg
			}
		}
	}

	if *withSolar {
		addSolar(ctx, cfg, schedule, loc, hourly, weekStart, now, &data)
	}

	text := report.Text(&data)
	if *output != "" {
		if err := os.WriteFile(*output, []byte(text), 0o644); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		log.Printf("Report written to %s", *output)
	} else {
		fmt.Print(text)
	}

	var html string
	if *htmlPath != "" || *email {
		html, err = report.HTML(&data)
		if err != nil {
			log.Fatalf("Failed to render HTML report: %v", err)
		}
	}
	if *htmlPath != "" {
		if err := os.WriteFile(*htmlPath, []byte(html), 0o644); err != nil {
			log.Fatalf("Failed to write HTML report: %v", err)
		}
		log.Printf("HTML report written to %s", *htmlPath)
	}

	var attachments []mail.Attachment
	if *xlsxPath != "" {
		content := renderExport("XLSX", *xlsxPath, &data, report.XLSX)
		attachments = append(attachments, mail.Attachment{Filename: "energy-report.xlsx", Content: content})
	}
	if *pdfPath != "" {
		content := renderExport("PDF", *pdfPath, &data, report.PDF)
		attachments = append(attachments, mail.Attachment{Filename: "energy-report.pdf", Content: content})
	}

	if *email {
		sendEmail(cfg, text, html, attachments, weekStart, now)
	}

	persistRun(st, &data, hourly, weekStart, now, text)
}

// addSolar fetches telemetry for the window and attaches the blended
// source attribution. Attribution failures degrade to a grid-only report.
func addSolar(ctx context.Context, cfg config.Config, schedule *tariff.Schedule, loc *time.Location, hourly []analysis.HourlyConsumption, start, end time.Time, data *report.Data) {
	haClient := ha.New(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token,
		cfg.HomeAssistant.QuantityEntities(), cfg.HomeAssistant.LiveEntities, loc)
	if !haClient.Configured() {
		log.Printf("Solar requested but Home Assistant is not configured")
		return
	}

	samples, err := haClient.FetchHistory(ctx, start, end)
	if err != nil {
		log.Printf("Telemetry fetch failed, continuing without solar: %v", err)
		return
	}

	buckets := solar.BuildBuckets(samples)
	blended, system, err := solar.Blend(hourly, buckets, schedule, cfg.Battery.Efficiency)
	if err != nil {
		log.Printf("Source attribution unavailable: %v", err)
		return
	}
	data.Blended = blended
	data.System = system
}

func renderExport(kind, path string, data *report.Data, render func(*report.Data) ([]byte, error)) []byte {
	content, err := render(data)
	if err != nil {
		log.Fatalf("Failed to render %s export: %v", kind, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		log.Fatalf("Failed to write %s export: %v", kind, err)
	}
	log.Printf("%s export written to %s", kind, path)
	return content
}

func sendEmail(cfg config.Config, text, html string, attachments []mail.Attachment, weekStart, weekEnd time.Time) {
	sender := mail.New(cfg.Email)
	if !sender.Configured() {
		log.Fatal("Email requested but SMTP is not configured")
	}
	err := sender.Send(mail.Message{
		Subject:     fmt.Sprintf("Weekly Energy Report: %s to %s", weekStart.Format("Jan 2"), weekEnd.Format("Jan 2")),
		TextBody:    text,
		HTMLBody:    html,
		Attachments: attachments,
	})
	if err != nil {
		log.Fatalf("Failed to send report: %v", err)
	}
	log.Printf("Report emailed to %v", cfg.Email.To)
}

func persistRun(st *store.Store, data *report.Data, hourly []analysis.HourlyConsumption, weekStart, weekEnd time.Time, text string) {
	if st == nil {
		return
	}
	if err := st.SaveHourly(hourly); err != nil {
		log.Printf("Saving hourly data: %v", err)
	}
	for _, d := range data.Daily {
		if err := st.SaveDailySummary(d); err != nil {
			log.Printf("Saving daily summary: %v", err)
		}
	}
	kwh, cost := data.Totals()
	err := st.SaveWeeklyReport(store.WeeklyReport{
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
}
