package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fleetcore/dispatchd/core/events"
	"github.com/fleetcore/dispatchd/core/model"
)

type simVehicle struct {
	vehicle  model.Vehicle
	position model.Coord
}

// Simulator generates the synthetic feed: one shift per vehicle, orders
// scattered around the center and a position ping per vehicle that
// drifts randomly.
type Simulator struct {
	cfg      Config
	cli      paho.Client
	rng      *rand.Rand
	vehicles []simVehicle
	orderSeq int
}

// NewSimulator seeds the fleet.
func NewSimulator(cfg Config, cli paho.Client) *Simulator {
	rng := rand.New(rand.NewSource(cfg.Seed))
	sim := &Simulator{cfg: cfg, cli: cli, rng: rng}
	now := time.Now()
	for i := 0; i < cfg.Vehicles; i++ {
		depot := sim.randomCoord()
		sim.vehicles = append(sim.vehicles, simVehicle{
			vehicle: model.Vehicle{
				ID:       fmt.Sprintf("veh%04d", i+1),
				Capacity: model.Quantity{"b13": 40},
				Shift:    model.TimeWindow{Earliest: now, Latest: now.Add(8 * time.Hour)},
				Depot:    depot,
				Status:   model.VehicleAvailable,
			},
			position: depot,
		})
	}
	return sim
}

// StartShifts publishes a shift_started event per vehicle.
func (s *Simulator) StartShifts() {
	for _, v := range s.vehicles {
		s.publish("feed/fleet", events.KindShiftStarted, v.vehicle)
	}
}

// EndShifts publishes a shift_ended event per vehicle.
func (s *Simulator) EndShifts() {
	for _, v := range s.vehicles {
		s.publish("feed/fleet", events.KindShiftEnded, map[string]any{"vehicle_id": v.vehicle.ID})
	}
}

// PublishOrder emits one stop_created event with a window opening now.
func (s *Simulator) PublishOrder() {
	s.orderSeq++
	now := time.Now()
	stop := model.Stop{
		ID:       fmt.Sprintf("ord%05d", s.orderSeq),
		Kind:     model.KindDelivery,
		Location: s.randomCoord(),
		Demand:   model.Quantity{"b13": 1 + s.rng.Intn(4)},
		Window: model.TimeWindow{
			Earliest: now,
			Latest:   now.Add(time.Duration(30+s.rng.Intn(120)) * time.Minute),
		},
		ServiceSeconds: 180,
		Priority:       s.rng.Intn(3),
	}
	s.publish("feed/orders", events.KindStopCreated, stop)
}

// PublishPings drifts every vehicle and emits its position.
func (s *Simulator) PublishPings() {
	for i := range s.vehicles {
		v := &s.vehicles[i]
		v.position.Lat += (s.rng.Float64() - 0.5) * 0.002
		v.position.Lon += (s.rng.Float64() - 0.5) * 0.002
		s.publish("feed/positions", events.KindPositionPing, map[string]any{
			"vehicle_id": v.vehicle.ID,
			"position":   v.position,
		})
	}
}

func (s *Simulator) publish(topic string, kind events.Kind, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal %s: %v", kind, err)
		return
	}
	env, err := json.Marshal(events.Envelope{Type: kind, At: time.Now(), Payload: raw})
	if err != nil {
		log.Printf("marshal envelope: %v", err)
		return
	}
	if token := s.cli.Publish(topic, 0, false, env); token.Wait() && token.Error() != nil {
		log.Printf("publish %s: %v", topic, token.Error())
	}
}

// randomCoord picks a point uniformly within the configured radius.
func (s *Simulator) randomCoord() model.Coord {
	r := s.cfg.RadiusKm * math.Sqrt(s.rng.Float64())
	theta := s.rng.Float64() * 2 * math.Pi
	return model.Coord{
		Lat: s.cfg.CenterLat + (r/111.0)*math.Cos(theta),
		Lon: s.cfg.CenterLon + (r/(111.0*math.Cos(s.cfg.CenterLat*math.Pi/180)))*math.Sin(theta),
	}
}
