package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epheterson/energy-dashboard/internal/solar"
	"github.com/epheterson/energy-dashboard/internal/tariff"
)

func TestQuantityEntities(t *testing.T) {
	ha := HomeAssistantConfig{Entities: map[string]string{
		"solar_generated": "sensor.solar_generated",
		"grid_imported":   "sensor.grid_imported",
		"not_a_quantity":  "sensor.bogus",
	}}

	got := ha.QuantityEntities()
	assert.Equal(t, map[solar.Quantity]string{
		solar.SolarGenerated: "sensor.solar_generated",
		solar.GridImported:   "sensor.grid_imported",
	}, got)
}

func TestDefault_EV2ASchedule(t *testing.T) {
	cfg := Default()
	sched, err := cfg.Schedule()
	require.NoError(t, err)

	assert.Equal(t, tariff.Peak, sched.PeriodFor(18))
	assert.Equal(t, tariff.PartPeak, sched.PeriodFor(15))
	assert.Equal(t, tariff.OffPeak, sched.PeriodFor(3))

	winter := time.Date(2025, time.January, 15, 18, 0, 0, 0, time.UTC)
	summer := time.Date(2025, time.July, 15, 18, 0, 0, 0, time.UTC)
	assert.InDelta(t, 0.51928, sched.Rate(winter, tariff.Peak), 1e-9)
	assert.InDelta(t, 0.64639, sched.Rate(summer, tariff.Peak), 1e-9)
	assert.InDelta(t, 0.29780, sched.Rate(summer, tariff.OffPeak), 1e-9)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  addr: ":9090"
meter:
  url: http://egauge.local
  exclude_registers: ["Usage [kWh]"]
battery:
  efficiency: 0.85
email:
  smtp_host: smtp.example.com
  to: ["a@example.com"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "http://egauge.local", cfg.Meter.URL)
	assert.Equal(t, []string{"Usage [kWh]"}, cfg.Meter.ExcludeRegisters)
	assert.InDelta(t, 0.85, cfg.Battery.Efficiency, 1e-9)
	assert.Equal(t, "smtp.example.com:587", cfg.Email.Addr())

	// Untouched sections keep defaults.
	assert.InDelta(t, 0.29780, cfg.Tariff.Winter.OffPeak, 1e-9)
}

func TestLoad_EnvSecretsWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
meter:
  password: from-file
home_assistant:
  token: from-file
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("EGAUGE_PASSWORD", "from-env")
	t.Setenv("HA_TOKEN", "from-env-token")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Meter.Password)
	assert.Equal(t, "from-env-token", cfg.HomeAssistant.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_RejectsBadEfficiency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("battery:\n  efficiency: 1.5\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLocation_DefaultIsLocal(t *testing.T) {
	cfg := Default()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Meter.Timezone = "America/Los_Angeles"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Los_Angeles", loc.String())
}

func TestEmailAuth(t *testing.T) {
	e := EmailConfig{}
	assert.Nil(t, e.Auth())

	e = EmailConfig{SMTPHost: "smtp.example.com", Username: "u", Password: "p"}
	assert.NotNil(t, e.Auth())
}
