// Package forecast provides the expected-order-volume input supplied by
// the external batch prediction job. Hints only bias vehicle
// pre-positioning; their absence degrades gracefully to no bias.
package forecast

import "time"

// Source supplies forecasted order volume per region for the time
// bucket containing at. Higher values mean more expected orders.
type Source interface {
	VolumeHints(at time.Time) map[string]float64
}

// Nop is a Source without data. It yields no pre-positioning bias.
type Nop struct{}

// VolumeHints implements Source.
func (Nop) VolumeHints(time.Time) map[string]float64 { return nil }

// Static serves hints from an in-memory table keyed by hour of day,
// the granularity the prediction job exports.
type Static struct {
	// ByHour maps hour-of-day (0-23) to region volumes.
	ByHour map[int]map[string]float64
	// Flat is used for hours missing from ByHour.
	Flat map[string]float64
}

// VolumeHints implements Source.
func (s Static) VolumeHints(at time.Time) map[string]float64 {
	if hints, ok := s.ByHour[at.UTC().Hour()]; ok {
		return hints
	}
	return s.Flat
}
