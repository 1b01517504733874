package main

import (
	"flag"
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker        string
	ClientID      string
	Vehicles      int
	Orders        int
	CenterLat     float64
	CenterLon     float64
	RadiusKm      float64
	OrderInterval time.Duration
	PingInterval  time.Duration
	Seed          int64
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.ClientID, "client-id", "feed-simulator", "MQTT client ID")
	flag.IntVar(&cfg.Vehicles, "vehicles", 5, "number of simulated vehicles")
	flag.IntVar(&cfg.Orders, "orders", 50, "number of orders to publish")
	flag.Float64Var(&cfg.CenterLat, "lat", 48.8566, "center latitude")
	flag.Float64Var(&cfg.CenterLon, "lon", 2.3522, "center longitude")
	flag.Float64Var(&cfg.RadiusKm, "radius", 8, "order radius around the center in km")
	flag.DurationVar(&cfg.OrderInterval, "order-interval", 2*time.Second, "delay between orders")
	flag.DurationVar(&cfg.PingInterval, "ping-interval", 5*time.Second, "delay between position pings")
	flag.Int64Var(&cfg.Seed, "seed", 1, "random seed")
	flag.Parse()
	return cfg
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.Vehicles <= 0 {
		return fmt.Errorf("vehicles must be positive")
	}
	if c.RadiusKm <= 0 {
		return fmt.Errorf("radius must be positive")
	}
	return nil
}
