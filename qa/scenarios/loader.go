// Package scenarios runs YAML-defined routing scenarios against the
// solver. Each file describes a fleet, a set of stops with windows
// expressed as minute offsets from the scenario clock, and the
// expected assignment outcome.
package scenarios

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fleetcore/dispatchd/core/model"
)

type VehicleDef struct {
	ID            string         `yaml:"id"`
	Capacity      map[string]int `yaml:"capacity"`
	Lat           float64        `yaml:"lat"`
	Lon           float64        `yaml:"lon"`
	ShiftStartMin int            `yaml:"shift_start_min"`
	ShiftEndMin   int            `yaml:"shift_end_min"`
	Region        string         `yaml:"region"`
}

func (v VehicleDef) ToModel(now time.Time) model.Vehicle {
	return model.Vehicle{
		ID:       v.ID,
		Capacity: model.Quantity(v.Capacity),
		Depot:    model.Coord{Lat: v.Lat, Lon: v.Lon},
		Region:   v.Region,
		Shift: model.TimeWindow{
			Earliest: now.Add(time.Duration(v.ShiftStartMin) * time.Minute),
			Latest:   now.Add(time.Duration(v.ShiftEndMin) * time.Minute),
		},
	}
}

type StopDef struct {
	ID             string         `yaml:"id"`
	Kind           string         `yaml:"kind"`
	Demand         map[string]int `yaml:"demand"`
	Lat            float64        `yaml:"lat"`
	Lon            float64        `yaml:"lon"`
	EarliestMin    int            `yaml:"earliest_min"`
	LatestMin      int            `yaml:"latest_min"`
	ServiceSeconds int            `yaml:"service_seconds"`
	Priority       int            `yaml:"priority"`
	Region         string         `yaml:"region"`
}

func (s StopDef) ToModel(now time.Time) model.Stop {
	kind := model.KindDelivery
	if s.Kind == "pickup" {
		kind = model.KindPickup
	}
	return model.Stop{
		ID:       s.ID,
		Kind:     kind,
		Demand:   model.Quantity(s.Demand),
		Location: model.Coord{Lat: s.Lat, Lon: s.Lon},
		Region:   s.Region,
		Window: model.TimeWindow{
			Earliest: now.Add(time.Duration(s.EarliestMin) * time.Minute),
			Latest:   now.Add(time.Duration(s.LatestMin) * time.Minute),
		},
		ServiceSeconds: s.ServiceSeconds,
		Priority:       s.Priority,
	}
}

type Expected struct {
	Assigned     int      `yaml:"assigned"`
	Unassigned   int      `yaml:"unassigned"`
	UnassignedID []string `yaml:"unassigned_ids"`
	Reasons      []string `yaml:"reasons"`
}

type Scenario struct {
	Name     string       `yaml:"name"`
	Vehicles []VehicleDef `yaml:"vehicles"`
	Stops    []StopDef    `yaml:"stops"`
	Expected Expected     `yaml:"expected"`
}

// Load reads a scenario definition file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
