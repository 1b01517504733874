package geo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coregeo "github.com/fleetcore/dispatchd/core/geo"
	"github.com/fleetcore/dispatchd/core/model"
)

func matrixServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestTravelTimesParsesMatrix(t *testing.T) {
	var gotAuth string
	srv := matrixServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v2/matrix/driving-car", r.URL.Path)

		var req matrixRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int{0}, req.Sources)
		assert.Equal(t, []int{1, 2}, req.Destinations)
		require.Len(t, req.Locations, 3)
		// Locations are lon-lat ordered.
		assert.Equal(t, 2.3522, req.Locations[0][0])
		assert.Equal(t, 48.8566, req.Locations[0][1])

		d1, d2 := 600.0, 900.0
		m1, m2 := 5000.0, 8000.0
		json.NewEncoder(w).Encode(matrixResponse{
			Durations: [][]*float64{{&d1, &d2}},
			Distances: [][]*float64{{&m1, &m2}},
		})
	})

	p := NewHTTPMatrixProvider(Config{BaseURL: srv.URL, APIKey: "key-123"})
	origin := model.Coord{Lat: 48.8566, Lon: 2.3522}
	dests := []model.Coord{{Lat: 48.86, Lon: 2.34}, {Lat: 48.87, Lon: 2.36}}

	out, err := p.TravelTimes(context.Background(), origin, dests)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, coregeo.TravelEstimate{Seconds: 600, Meters: 5000}, out[0])
	assert.Equal(t, coregeo.TravelEstimate{Seconds: 900, Meters: 8000}, out[1])
	assert.Equal(t, "key-123", gotAuth)
}

func TestUnroutablePairMarkedApproximate(t *testing.T) {
	srv := matrixServer(t, func(w http.ResponseWriter, _ *http.Request) {
		d := 600.0
		m := 5000.0
		json.NewEncoder(w).Encode(matrixResponse{
			Durations: [][]*float64{{&d, nil}},
			Distances: [][]*float64{{&m, nil}},
		})
	})

	p := NewHTTPMatrixProvider(Config{BaseURL: srv.URL})
	out, err := p.TravelTimes(context.Background(), model.Coord{Lat: 48.85, Lon: 2.35},
		[]model.Coord{{Lat: 48.86, Lon: 2.34}, {Lat: 0, Lon: 0}})
	require.NoError(t, err)
	assert.False(t, out[0].Approximate)
	assert.True(t, out[1].Approximate)
	assert.Zero(t, out[1].Seconds)
}

func TestTransientErrorRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := matrixServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		d, m := 60.0, 500.0
		json.NewEncoder(w).Encode(matrixResponse{
			Durations: [][]*float64{{&d}},
			Distances: [][]*float64{{&m}},
		})
	})

	p := NewHTTPMatrixProvider(Config{BaseURL: srv.URL, MaxRetries: 5})
	est, err := p.TravelTime(context.Background(), model.Coord{Lat: 48.85, Lon: 2.35}, model.Coord{Lat: 48.86, Lon: 2.34})
	require.NoError(t, err)
	assert.Equal(t, 60, est.Seconds)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPermanentErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := matrixServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	p := NewHTTPMatrixProvider(Config{BaseURL: srv.URL, MaxRetries: 5})
	_, err := p.TravelTime(context.Background(), model.Coord{Lat: 48.85, Lon: 2.35}, model.Coord{Lat: 48.86, Lon: 2.34})
	require.Error(t, err)
	assert.True(t, errors.Is(err, coregeo.ErrUnavailable), "routing failures must map to ErrUnavailable")
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestExhaustedRetriesReturnUnavailable(t *testing.T) {
	srv := matrixServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	p := NewHTTPMatrixProvider(Config{BaseURL: srv.URL, MaxRetries: 1})
	_, err := p.TravelTime(context.Background(), model.Coord{Lat: 48.85, Lon: 2.35}, model.Coord{Lat: 48.86, Lon: 2.34})
	require.Error(t, err)
	assert.True(t, errors.Is(err, coregeo.ErrUnavailable))
}
