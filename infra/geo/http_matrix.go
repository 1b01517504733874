// Package geo provides the HTTP routing-service adapter for travel
// time lookups. It speaks the OpenRouteService matrix protocol and
// degrades to geo.ErrUnavailable so callers can fall back to
// great-circle estimates.
package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fleetcore/dispatchd/auth"
	coregeo "github.com/fleetcore/dispatchd/core/geo"
	"github.com/fleetcore/dispatchd/core/model"
	"github.com/fleetcore/dispatchd/infra/logger"
)

// Config defines the routing service connection parameters.
type Config struct {
	BaseURL        string    `json:"base_url"`
	APIKey         string    `json:"api_key"`
	Profile        string    `json:"profile"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	MaxRetries     int       `json:"max_retries"`
	OAuth          auth.Conf `json:"oauth"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Profile == "" {
		c.Profile = "driving-car"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// HTTPMatrixProvider implements geo.MatrixProvider against an
// OpenRouteService-compatible matrix endpoint.
type HTTPMatrixProvider struct {
	cfg    Config
	client *http.Client
	creds  *auth.ClientCred
	log    logger.Logger
}

// NewHTTPMatrixProvider creates a provider for the configured endpoint.
func NewHTTPMatrixProvider(cfg Config) *HTTPMatrixProvider {
	cfg.SetDefaults()
	p := &HTTPMatrixProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:    logger.New("geo-http"),
	}
	if cfg.OAuth.Enabled() {
		p.creds = auth.NewClientCred(cfg.OAuth)
	}
	return p
}

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Sources      []int       `json:"sources"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// TravelTime fetches a single origin/destination estimate.
func (p *HTTPMatrixProvider) TravelTime(ctx context.Context, origin, destination model.Coord) (coregeo.TravelEstimate, error) {
	row, err := p.TravelTimes(ctx, origin, []model.Coord{destination})
	if err != nil {
		return coregeo.TravelEstimate{}, err
	}
	return row[0], nil
}

// TravelTimes fetches estimates from one origin to many destinations in
// a single matrix call.
func (p *HTTPMatrixProvider) TravelTimes(ctx context.Context, origin model.Coord, destinations []model.Coord) ([]coregeo.TravelEstimate, error) {
	if len(destinations) == 0 {
		return nil, nil
	}

	locations := make([][]float64, 0, 1+len(destinations))
	locations = append(locations, []float64{origin.Lon, origin.Lat})
	destIdx := make([]int, 0, len(destinations))
	for i, d := range destinations {
		locations = append(locations, []float64{d.Lon, d.Lat})
		destIdx = append(destIdx, i+1)
	}

	payload, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Sources:      []int{0},
		Destinations: destIdx,
		Metrics:      []string{"distance", "duration"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal matrix request: %w", err)
	}

	mr, err := p.postWithRetry(ctx, payload)
	if err != nil {
		p.log.Warnf("matrix request failed: %v", err)
		return nil, fmt.Errorf("%w: %v", coregeo.ErrUnavailable, err)
	}

	if len(mr.Durations) != 1 || len(mr.Distances) != 1 {
		return nil, fmt.Errorf("%w: expected 1 source row, got %d", coregeo.ErrUnavailable, len(mr.Durations))
	}
	durations, distances := mr.Durations[0], mr.Distances[0]
	if len(durations) != len(destinations) || len(distances) != len(destinations) {
		return nil, fmt.Errorf("%w: row length %d does not match %d destinations",
			coregeo.ErrUnavailable, len(durations), len(destinations))
	}

	out := make([]coregeo.TravelEstimate, len(destinations))
	for i := range destinations {
		if durations[i] == nil || distances[i] == nil {
			// Unroutable pair; the caller substitutes a great-circle
			// estimate for this destination.
			out[i] = coregeo.TravelEstimate{Approximate: true}
			continue
		}
		out[i] = coregeo.TravelEstimate{
			Seconds: int(math.Round(*durations[i])),
			Meters:  int(math.Round(*distances[i])),
		}
	}
	return out, nil
}

// postWithRetry sends the matrix request, retrying transient failures
// with exponential backoff while respecting context cancellation.
func (p *HTTPMatrixProvider) postWithRetry(ctx context.Context, payload []byte) (*matrixResponse, error) {
	endpoint := fmt.Sprintf("%s/v2/matrix/%s", strings.TrimSuffix(p.cfg.BaseURL, "/"), p.cfg.Profile)

	var mr matrixResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		switch {
		case p.creds != nil:
			if err := p.creds.SetAuthHeader(req); err != nil {
				return backoff.Permanent(fmt.Errorf("auth: %w", err))
			}
		case p.cfg.APIKey != "":
			req.Header.Set("Authorization", p.cfg.APIKey)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
			if retryableStatus(resp.StatusCode) {
				return err
			}
			return backoff.Permanent(err)
		}
		if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
			return backoff.Permanent(fmt.Errorf("decode matrix response: %w", err))
		}
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.cfg.MaxRetries)),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return &mr, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
