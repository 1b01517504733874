// Command simulator publishes a synthetic order, fleet and position
// feed to the broker so the engine can be exercised without real
// producers.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg := parseFlags()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, err := newMQTTClient(cfg.Broker, cfg.ClientID)
	if err != nil {
		log.Fatalf("mqtt connect: %v", err)
	}
	defer cli.Disconnect(250)

	sim := NewSimulator(cfg, cli)
	sim.StartShifts()
	log.Printf("simulating %d vehicles, %d orders around (%.4f, %.4f)",
		cfg.Vehicles, cfg.Orders, cfg.CenterLat, cfg.CenterLon)

	orderTick := time.NewTicker(cfg.OrderInterval)
	pingTick := time.NewTicker(cfg.PingInterval)
	defer orderTick.Stop()
	defer pingTick.Stop()

	published := 0
	for {
		select {
		case <-ctx.Done():
			sim.EndShifts()
			return
		case <-orderTick.C:
			if published < cfg.Orders {
				sim.PublishOrder()
				published++
			}
		case <-pingTick.C:
			sim.PublishPings()
		}
	}
}
