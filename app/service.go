// Package app wires the engine together from configuration and runs
// its workers.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fleetcore/dispatchd/api/board"
	"github.com/fleetcore/dispatchd/config"
	"github.com/fleetcore/dispatchd/core/analytics"
	"github.com/fleetcore/dispatchd/core/archive"
	"github.com/fleetcore/dispatchd/core/broadcast"
	"github.com/fleetcore/dispatchd/core/events"
	"github.com/fleetcore/dispatchd/core/forecast"
	coregeo "github.com/fleetcore/dispatchd/core/geo"
	"github.com/fleetcore/dispatchd/core/planner"
	"github.com/fleetcore/dispatchd/core/state"
	"github.com/fleetcore/dispatchd/core/trigger"
	infrageo "github.com/fleetcore/dispatchd/infra/geo"
	"github.com/fleetcore/dispatchd/infra/logger"
	"github.com/fleetcore/dispatchd/infra/metrics"
	"github.com/fleetcore/dispatchd/infra/mqtt"
	"github.com/fleetcore/dispatchd/internal/eventbus"
)

// Service owns the wired engine: state machine, solver, trigger
// manager, broadcaster, analytics and the external adapters.
type Service struct {
	Machine     *state.Machine
	Trigger     *trigger.Manager
	Broadcaster *broadcast.Broadcaster
	Analytics   *analytics.Aggregator

	cfg       *config.Config
	bus       *eventbus.Bus[events.Event]
	ingest    *mqtt.Ingestor
	transport *mqtt.Transport
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	sink := metrics.NewSink(cfg.Metrics)

	fallback := coregeo.NewGreatCircle(cfg.Geo.SpeedKmh)
	var provider coregeo.Provider = fallback
	if cfg.Geo.Mode == "http" {
		provider = infrageo.NewHTTPMatrixProvider(cfg.Geo.HTTP)
	}
	cache := coregeo.NewPairCache(coregeo.DefaultBucket)
	matrix := coregeo.NewMatrixBuilder(provider, cache, fallback, logger.New("geo"))

	var fc forecast.Source = forecast.Nop{}
	if len(cfg.Forecast.Flat) > 0 {
		fc = forecast.Static{Flat: cfg.Forecast.Flat}
	}

	bus := eventbus.New[events.Event](0)
	machine := state.NewMachine(state.NewLog(0), bus, archive.NewMemorySink(), sink, logger.New("state"))

	builder := planner.NewBuilder(matrix, fc, logger.New("planner"))
	solver := planner.NewSolver(cfg.Planner, logger.New("solver"))
	trig := trigger.NewManager(cfg.Trigger, machine, builder, solver, logger.New("trigger"))

	svc := &Service{
		Machine:   machine,
		Trigger:   trig,
		Analytics: analytics.New(0),
		cfg:       cfg,
		bus:       bus,
		log:       logg,
	}

	if cfg.MQTT.Broker != "" {
		transport, err := mqtt.NewTransport(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt transport: %w", err)
		}
		svc.transport = transport

		ingest, err := mqtt.NewIngestor(cfg.MQTT, machine)
		if err != nil {
			transport.Close()
			return nil, fmt.Errorf("mqtt ingest: %w", err)
		}
		svc.ingest = ingest
	}

	var transport broadcast.Transport
	if svc.transport != nil {
		transport = svc.transport
	}
	svc.Broadcaster = broadcast.New(machine, transport, logger.New("broadcast"))
	return svc, nil
}

// Run starts the workers and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.Trigger.Run(ctx, s.bus.Subscribe())
	go s.Broadcaster.Run(ctx, s.bus.Subscribe())
	go s.Analytics.Run(ctx, s.bus.Subscribe())

	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Enabled {
		go s.serveBoard(ctx)
	}

	// Initial full-fleet solve so the board is populated before the
	// first feed event arrives.
	if err := s.Trigger.RequestFullSolve(ctx); err != nil {
		s.log.Warnf("startup solve: %v", err)
	}

	<-ctx.Done()
	return nil
}

func (s *Service) serveBoard(ctx context.Context) {
	srv := &http.Server{
		Addr:              s.cfg.API.Addr,
		Handler:           board.NewMux(s.Machine, s.Analytics, s.Trigger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("board shutdown: %v", err)
		}
	}()
	s.log.Infof("board API on %s", s.cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Errorf("board server: %v", err)
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.ingest != nil {
		s.ingest.Close()
	}
	if s.transport != nil {
		s.transport.Close()
	}
	s.bus.Close()
	return nil
}
