// Package config loads the dashboard configuration from YAML with
// environment overrides for secrets.
package config

import (
	"fmt"
	"net/smtp"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/epheterson/energy-dashboard/internal/solar"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

// RatesConfig is a per-period $/kWh triple as it appears in YAML.
type RatesConfig struct {
	Peak     float64 `yaml:"peak"`
	PartPeak float64 `yaml:"part_peak"`
	OffPeak  float64 `yaml:"off_peak"`
}

func (r RatesConfig) rates() tariff.Rates {
	return tariff.Rates{Peak: r.Peak, PartPeak: r.PartPeak, OffPeak: r.OffPeak}
}

// TariffConfig describes the TOU schedule and seasonal rates.
type TariffConfig struct {
	PlanName      string       `yaml:"plan_name"`
	PeakHours     []int        `yaml:"peak_hours"`
	PartPeakHours []int        `yaml:"part_peak_hours"`
	SummerMonths  []int        `yaml:"summer_months"`
	Winter        RatesConfig  `yaml:"winter"`
	Summer        RatesConfig  `yaml:"summer"`
	WinterExport  RatesConfig  `yaml:"winter_export_credit"`
	SummerExport  RatesConfig  `yaml:"summer_export_credit"`
}

// MeterConfig points at the eGauge device.
type MeterConfig struct {
	URL              string   `yaml:"url"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ExcludeRegisters []string `yaml:"exclude_registers"`
	Timezone         string   `yaml:"timezone"`
}

// HomeAssistantConfig points at the Home Assistant instance that carries
// solar and battery telemetry. Entities maps a telemetry quantity name to
// the entity ID of its cumulative energy sensor; LiveEntities maps power
// flow keys (solar_power, grid_power, battery_power, soc) to the
// instantaneous sensors behind the live dashboard view.
type HomeAssistantConfig struct {
	URL          string            `yaml:"url"`
	Token        string            `yaml:"token"`
	Entities     map[string]string `yaml:"entities"`
	LiveEntities map[string]string `yaml:"live_entities"`
}

// QuantityEntities converts the YAML entity map into telemetry quantity
// keys, dropping names that match no known quantity.
func (h HomeAssistantConfig) QuantityEntities() map[solar.Quantity]string {
	out := make(map[solar.Quantity]string, len(h.Entities))
	for name, id := range h.Entities {
		q := solar.Quantity(name)
		for _, known := range solar.Quantities {
			if q == known {
				out[q] = id
				break
			}
		}
	}
	return out
}

// BatteryConfig holds the nameplate round-trip efficiency used when
// measured data is unavailable.
type BatteryConfig struct {
	Efficiency float64 `yaml:"efficiency"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// EmailConfig drives the weekly report delivery.
type EmailConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	StartTLS bool     `yaml:"starttls"`
}

// Addr returns host:port for the SMTP dial.
func (e EmailConfig) Addr() string {
	return fmt.Sprintf("%s:%d", e.SMTPHost, e.SMTPPort)
}

// Auth returns SMTP PLAIN auth, or nil when no username is configured.
func (e EmailConfig) Auth() smtp.Auth {
	if e.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", e.Username, e.Password, e.SMTPHost)
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr      string        `yaml:"addr"`
	StaticDir string        `yaml:"static_dir"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// Config is the full dashboard configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Tariff        TariffConfig        `yaml:"tariff"`
	Meter         MeterConfig         `yaml:"meter"`
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant"`
	Battery       BatteryConfig       `yaml:"battery"`
	Store         StoreConfig         `yaml:"store"`
	Email         EmailConfig         `yaml:"email"`
}

// Default returns the built-in configuration: PG&E EV2-A rates with peak
// 4-9pm, part-peak shoulders, summer June through September.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			StaticDir: "frontend",
			CacheTTL:  5 * time.Minute,
		},
		Tariff: TariffConfig{
			PlanName:      "EV2-A",
			PeakHours:     []int{16, 17, 18, 19, 20},
			PartPeakHours: []int{15, 21, 22, 23},
			SummerMonths:  []int{6, 7, 8, 9},
			Winter:        RatesConfig{Peak: 0.51928, PartPeak: 0.49193, OffPeak: 0.29780},
			Summer:        RatesConfig{Peak: 0.64639, PartPeak: 0.52525, OffPeak: 0.29780},
			WinterExport:  RatesConfig{Peak: 0.16, PartPeak: 0.14, OffPeak: 0.12},
			SummerExport:  RatesConfig{Peak: 0.16, PartPeak: 0.14, OffPeak: 0.12},
		},
		Meter: MeterConfig{
			Username: "owner",
			ExcludeRegisters: []string{
				"Usage [kWh]",
				"Generation [kWh]",
				"Grid [kWh]",
				"Grid+ [kWh]",
			},
		},
		Battery: BatteryConfig{Efficiency: 0.90},
		Store:   StoreConfig{Path: "energy.db"},
		Email:   EmailConfig{SMTPPort: 587, StartTLS: true},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides for secrets: EGAUGE_PASSWORD, HA_TOKEN and
// SMTP_PASSWORD always win over file values.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if v := os.Getenv("EGAUGE_PASSWORD"); v != "" {
		cfg.Meter.Password = v
	}
	if v := os.Getenv("HA_TOKEN"); v != "" {
		cfg.HomeAssistant.Token = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Battery.Efficiency <= 0 || c.Battery.Efficiency > 1 {
		return fmt.Errorf("config: battery efficiency %.2f out of (0, 1]", c.Battery.Efficiency)
	}
	for _, m := range c.Tariff.SummerMonths {
		if m < 1 || m > 12 {
			return fmt.Errorf("config: summer month %d out of range", m)
		}
	}
	return nil
}

// Schedule builds the tariff schedule from the config.
func (c *Config) Schedule() (*tariff.Schedule, error) {
	months := make([]time.Month, len(c.Tariff.SummerMonths))
	for i, m := range c.Tariff.SummerMonths {
		months[i] = time.Month(m)
	}
	return tariff.New(tariff.Config{
		PeakHours:          c.Tariff.PeakHours,
		PartPeakHours:      c.Tariff.PartPeakHours,
		SummerMonths:       months,
		Winter:             c.Tariff.Winter.rates(),
		Summer:             c.Tariff.Summer.rates(),
		WinterExportCredit: c.Tariff.WinterExport.rates(),
		SummerExportCredit: c.Tariff.SummerExport.rates(),
	})
}

// Location resolves the meter timezone, defaulting to the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Meter.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Meter.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Meter.Timezone, err)
	}
	return loc, nil
}
