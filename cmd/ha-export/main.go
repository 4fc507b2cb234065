// Command ha-export dumps Home Assistant energy telemetry as hourly CSV
// buckets, for inspecting what the source attribution will see.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/epheterson/energy-dashboard/internal/config"
	"github.com/epheterson/energy-dashboard/internal/ha"
	"github.com/epheterson/energy-dashboard/internal/solar"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	days := flag.Int("days", 7, "days of telemetry to fetch")
	output := flag.String("output", "ha-export.csv", "output CSV path")
	flag.Parse()

	loadDotEnv(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	client := ha.New(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token,
		cfg.HomeAssistant.QuantityEntities(), cfg.HomeAssistant.LiveEntities, loc)
	if !client.Configured() {
		log.Fatal("Home Assistant not configured: set home_assistant.url, HA_TOKEN and the entity map")
	}

	now := time.Now().In(loc)
	start := now.AddDate(0, 0, -*days)
	log.Printf("Fetching %d days of telemetry from %s", *days, cfg.HomeAssistant.URL)

	samples, err := client.FetchHistory(context.Background(), start, now)
	if err != nil {
		log.Fatalf("Telemetry fetch failed: %v", err)
	}
	for _, q := range solar.Quantities {
		log.Printf("  %s: %d samples", q, len(samples[q]))
	}

	buckets := solar.BuildBuckets(samples)
	if len(buckets) == 0 {
		log.Fatal("No telemetry buckets in the window")
	}

	if dir := filepath.Dir(*output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Creating output directory: %v", err)
		}
	}
	if err := writeCSV(*output, buckets); err != nil {
		log.Fatalf("Writing CSV: %v", err)
	}
	log.Printf("Wrote %d hourly buckets to %s", len(buckets), *output)
}

func writeCSV(path string, buckets solar.Buckets) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"date", "hour", "solar_kwh", "grid_import_kwh", "grid_export_kwh",
		"battery_charge_kwh", "battery_discharge_kwh",
	}); err != nil {
		return err
	}
	for _, key := range buckets.SortedKeys() {
		b := buckets[key]
		row := []string{
			b.Date,
			fmt.Sprintf("%d", b.Hour),
			fmt.Sprintf("%.3f", b.SolarKWh),
			fmt.Sprintf("%.3f", b.GridImportKWh),
			fmt.Sprintf("%.3f", b.GridExportKWh),
			fmt.Sprintf("%.3f", b.BatteryChargeKWh),
			fmt.Sprintf("%.3f", b.BatteryDischargeKWh),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// loadDotEnv reads a .env file and sets variables not already in the
// environment, so HA_TOKEN can live next to the binary during development.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, val)
		}
	}
}
