package config

import (
	"fmt"

	infrageo "github.com/fleetcore/dispatchd/infra/geo"
)

// GeoConfig selects the travel time source.
type GeoConfig struct {
	// Mode selects the provider: "http" or "greatcircle".
	Mode string `json:"mode"`
	// SpeedKmh is the assumed speed for great-circle estimates.
	SpeedKmh float64 `json:"speed_kmh"`
	// HTTP configures the routing service when Mode is "http".
	HTTP infrageo.Config `json:"http"`
}

// SetDefaults applies sane defaults.
func (c *GeoConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "greatcircle"
	}
	c.HTTP.SetDefaults()
}

// Validate checks mandatory fields.
func (c GeoConfig) Validate() error {
	switch c.Mode {
	case "greatcircle":
	case "http":
		if c.HTTP.BaseURL == "" {
			return fmt.Errorf("geo.http.base_url is required in http mode")
		}
	default:
		return fmt.Errorf("unknown geo mode %s", c.Mode)
	}
	return nil
}
