package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/fleetcore/dispatchd/core/metrics"
	"github.com/fleetcore/dispatchd/infra/logger"
)

// InfluxSink writes dispatch records to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB
// endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSolve writes one solver run as line protocol.
func (s *InfluxSink) RecordSolve(rec coremetrics.SolveRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("solve").
		AddTag("plan_id", rec.PlanID).
		AddTag("scoped", strconv.FormatBool(rec.Scoped)).
		AddTag("approximate", strconv.FormatBool(rec.Approximate)).
		AddTag("interrupted", strconv.FormatBool(rec.Interrupted)).
		AddField("duration_ms", rec.Duration.Milliseconds()).
		AddField("iterations", rec.Iterations).
		AddField("assigned", rec.Assigned).
		AddField("unassigned", rec.Unassigned).
		AddField("cost", rec.Cost).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCommit writes one committed plan swap.
func (s *InfluxSink) RecordCommit(rec coremetrics.CommitRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_commit").
		AddTag("plan_id", rec.PlanID).
		AddField("version", rec.Version).
		AddField("routes", rec.Routes).
		AddField("stops", rec.Stops).
		AddField("unassigned", rec.Unassigned).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStopEvent writes one stop lifecycle transition.
func (s *InfluxSink) RecordStopEvent(rec coremetrics.StopEventRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("stop_event").
		AddTag("stop_id", rec.StopID).
		AddTag("vehicle_id", rec.VehicleID).
		AddTag("status", rec.Status).
		AddField("tardiness_seconds", rec.TardinessSeconds).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFleetSize writes the on-duty vehicle count.
func (s *InfluxSink) RecordFleetSize(size int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("fleet_size").
		AddField("vehicles", size).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
