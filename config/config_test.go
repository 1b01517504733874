package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
mqtt:
  broker: tcp://localhost:1883
  client_id: dispatchd-test
geo:
  mode: greatcircle
  speed_kmh: 35
planner:
  time_budget_ms: 1500
trigger:
  debounce_seconds: 5
metrics:
  prometheus_enabled: true
api:
  enabled: true
forecast:
  flat:
    north: 12.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "dispatchd-test", cfg.MQTT.ClientID)
	assert.Equal(t, 35.0, cfg.Geo.SpeedKmh)
	assert.Equal(t, 1500, cfg.Planner.TimeBudgetMS)
	assert.Equal(t, 5, cfg.Trigger.DebounceSeconds)
	assert.True(t, cfg.Metrics.PrometheusEnabled)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, 12.5, cfg.Forecast.Flat["north"])

	// Unset fields pick up defaults.
	assert.Equal(t, 10, cfg.Planner.TardinessWeight)
	assert.Equal(t, 300, cfg.Trigger.BreachToleranceSeconds)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, "feed/orders", cfg.MQTT.OrderTopic)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"geo":{"mode":"greatcircle"},"planner":{"time_budget_ms":800}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Planner.TimeBudgetMS)
	assert.Equal(t, "greatcircle", cfg.Geo.Mode)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DSP_PLANNER__TIME_BUDGET_MS", "750")
	t.Setenv("DSP_MQTT__BROKER", "tcp://broker:1883")

	path := writeConfig(t, "config.yaml", `
planner:
  time_budget_ms: 1500
mqtt:
  broker: tcp://localhost:1883
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 750, cfg.Planner.TimeBudgetMS)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("config.toml")
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeConfig(t, "config.yaml", "geo:\n  mode: http\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "geo.http.base_url")

	path = writeConfig(t, "config.yaml", "geo:\n  mode: teleport\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "unknown geo mode")
}
