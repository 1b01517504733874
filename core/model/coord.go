package model

import (
	"fmt"
	"math"
)

// Coord is a WGS84 geographic coordinate.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

const earthRadiusMeters = 6371000.0

// GreatCircleMeters returns the haversine distance to other in meters.
func (c Coord) GreatCircleMeters(other Coord) float64 {
	lat1 := c.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - c.Lat) * math.Pi / 180
	dLon := (other.Lon - c.Lon) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Key returns a stable representation rounded to four decimal places,
// roughly 11 meters. Used as the coordinate-pair cache key.
func (c Coord) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// IsZero reports whether the coordinate is the zero value.
func (c Coord) IsZero() bool { return c.Lat == 0 && c.Lon == 0 }
