// Package config loads the engine configuration from a yaml or json
// file with optional DSP_ environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fleetcore/dispatchd/core/metrics"
	"github.com/fleetcore/dispatchd/core/planner"
	"github.com/fleetcore/dispatchd/core/trigger"
	"github.com/fleetcore/dispatchd/infra/mqtt"
)

type Config struct {
	MQTT     mqtt.Config    `json:"mqtt"`
	Geo      GeoConfig      `json:"geo"`
	Planner  planner.Config `json:"planner"`
	Trigger  trigger.Config `json:"trigger"`
	Metrics  metrics.Config `json:"metrics"`
	API      APIConfig      `json:"api"`
	Forecast ForecastConfig `json:"forecast"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("DSP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "dsp_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.MQTT.SetDefaults()
	cfg.Geo.SetDefaults()
	cfg.Planner.SetDefaults()
	cfg.Trigger.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Geo.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
