// Command db-stats prints a summary of the history database: recent daily
// rollups, trailing averages and the per-register history of one circuit.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/epheterson/energy-dashboard/internal/config"
	"github.com/epheterson/energy-dashboard/internal/store"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	days := flag.Int("days", 14, "days of history to show")
	register := flag.String("register", "", "also show one register's daily kWh (full column name)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", cfg.Store.Path, err)
	}
	defer st.Close()

	now := time.Now().In(loc)
	start := now.AddDate(0, 0, -*days).Format("2006-01-02")
	end := now.Format("2006-01-02")

	daily, err := st.DailySummaries(start, end)
	if err != nil {
		log.Fatalf("Reading daily summaries: %v", err)
	}
	if len(daily) == 0 {
		fmt.Printf("No daily summaries between %s and %s\n", start, end)
		return
	}

	fmt.Printf("Daily summaries %s to %s\n", start, end)
	fmt.Printf("%-12s %10s %10s %10s %10s %10s\n", "date", "kwh", "cost", "peak", "part_peak", "off_peak")
	for _, d := range daily {
		fmt.Printf("%-12s %10.2f %10.2f %10.2f %10.2f %10.2f\n",
			d.Date, d.TotalKWh, d.TotalCost,
			d.ByTOU[tariff.Peak].Cost, d.ByTOU[tariff.PartPeak].Cost, d.ByTOU[tariff.OffPeak].Cost)
	}

	if avg, err := st.HistoricalAverages(now, *days); err == nil {
		fmt.Printf("\nAverages over %d stored days: %.2f kWh/day, $%.2f/day\n",
			avg.DaysAnalyzed, avg.AvgDailyKWh, avg.AvgDailyCost)
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("Averages: %v", err)
	}

	if *register != "" {
		showRegister(st, *register, now, *days)
		return
	}

	// No register requested: rank the stored circuits by last-day kWh as a
	// starting point for picking one.
	last := daily[len(daily)-1]
	type entry struct {
		name string
		kwh  float64
	}
	entries := make([]entry, 0, len(last.Registers))
	for name, kwh := range last.Registers {
		entries = append(entries, entry{name, kwh})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].kwh != entries[j].kwh {
			return entries[i].kwh > entries[j].kwh
		}
		return entries[i].name < entries[j].name
	})

	fmt.Printf("\nCircuits on %s:\n", last.Date)
	for _, e := range entries {
		fmt.Printf("  %-40s %8.2f kWh\n", e.name, e.kwh)
	}
}

func showRegister(st *store.Store, name string, now time.Time, days int) {
	history, err := st.RegisterHistory(name, now, days)
	if err != nil {
		log.Fatalf("Register history: %v", err)
	}
	if len(history) == 0 {
		fmt.Printf("\nNo stored data for %q\n", name)
		return
	}
	fmt.Printf("\n%s daily kWh:\n", name)
	for _, d := range history {
		fmt.Printf("  %-12s %8.2f\n", d.Date, d.Registers[name])
	}
}
