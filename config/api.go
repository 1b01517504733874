package config

// APIConfig defines the dispatch board HTTP server settings.
type APIConfig struct {
	// Addr is the listen address of the board API.
	Addr string `json:"addr"`
	// Enabled turns the board API on.
	Enabled bool `json:"enabled"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// ForecastConfig carries optional order-volume hints per region, used
// to bias insertion toward regions expecting demand.
type ForecastConfig struct {
	// Flat maps region to a constant expected order volume.
	Flat map[string]float64 `json:"flat"`
}
