package geo

import (
	"context"
	"math"

	"github.com/fleetcore/dispatchd/core/model"
)

// DefaultSpeedKmh is the assumed average road speed for great-circle
// estimates when none is configured.
const DefaultSpeedKmh = 40.0

// GreatCircle estimates travel time from straight-line distance and an
// assumed average speed. It never fails and is the fallback when the
// routing service is unavailable.
type GreatCircle struct {
	SpeedKmh float64
}

// NewGreatCircle returns an estimator using the given average speed,
// or DefaultSpeedKmh when speedKmh is not positive.
func NewGreatCircle(speedKmh float64) GreatCircle {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return GreatCircle{SpeedKmh: speedKmh}
}

// TravelTime implements Provider.
func (g GreatCircle) TravelTime(_ context.Context, origin, destination model.Coord) (TravelEstimate, error) {
	meters := origin.GreatCircleMeters(destination)
	seconds := meters / (g.SpeedKmh * 1000 / 3600)
	return TravelEstimate{
		Seconds:     int(math.Round(seconds)),
		Meters:      int(math.Round(meters)),
		Approximate: true,
	}, nil
}

// TravelTimes implements MatrixProvider.
func (g GreatCircle) TravelTimes(ctx context.Context, origin model.Coord, destinations []model.Coord) ([]TravelEstimate, error) {
	out := make([]TravelEstimate, len(destinations))
	for i, d := range destinations {
		est, err := g.TravelTime(ctx, origin, d)
		if err != nil {
			return nil, err
		}
		out[i] = est
	}
	return out, nil
}
