package geo

import (
	"context"
	"time"

	"github.com/fleetcore/dispatchd/core/logger"
	"github.com/fleetcore/dispatchd/core/model"
)

// Matrix holds travel estimates between every pair of planning points
// (vehicle start positions and stop locations). Solvers operate on a
// private matrix snapshot and never call the provider mid-search.
type Matrix struct {
	index    map[string]int
	points   []model.Coord
	est      [][]TravelEstimate
	fallback GreatCircle

	// Approximate is set when any entry had to fall back to a
	// great-circle estimate. Plans built from such a matrix are
	// flagged reduced-confidence.
	Approximate bool
}

// At returns the estimate between two points. Pairs that were not part
// of the matrix (for example a vehicle position updated after the
// build) get an estimate from the builder's fallback so lookups never
// fail and use the same assumed speed as the build itself.
func (m *Matrix) At(from, to model.Coord) TravelEstimate {
	i, iok := m.index[from.Key()]
	j, jok := m.index[to.Key()]
	if iok && jok {
		return m.est[i][j]
	}
	fb := m.fallback
	if fb.SpeedKmh <= 0 {
		fb = NewGreatCircle(0)
	}
	est, _ := fb.TravelTime(context.Background(), from, to)
	return est
}

// MatrixBuilder assembles matrices through the provider, consulting the
// shared pair cache first and batching the remainder per origin row.
type MatrixBuilder struct {
	provider Provider
	cache    *PairCache
	fallback GreatCircle
	log      logger.Logger
}

// NewMatrixBuilder creates a builder. The cache may be nil, in which
// case every pair is fetched.
func NewMatrixBuilder(provider Provider, cache *PairCache, fallback GreatCircle, log logger.Logger) *MatrixBuilder {
	if log == nil {
		log = logger.Nop{}
	}
	return &MatrixBuilder{provider: provider, cache: cache, fallback: fallback, log: log}
}

// Build computes a full matrix over the given points at time at.
// Provider failures degrade to great-circle estimates per pair rather
// than aborting the build; the matrix is then marked Approximate.
func (b *MatrixBuilder) Build(ctx context.Context, points []model.Coord, at time.Time) (*Matrix, error) {
	m := &Matrix{index: make(map[string]int), fallback: b.fallback}
	for _, p := range points {
		if _, ok := m.index[p.Key()]; ok {
			continue
		}
		m.index[p.Key()] = len(m.points)
		m.points = append(m.points, p)
	}
	n := len(m.points)
	m.est = make([][]TravelEstimate, n)
	for i := range m.est {
		m.est[i] = make([]TravelEstimate, n)
	}

	for i, origin := range m.points {
		var missing []int
		for j, dest := range m.points {
			if i == j {
				continue
			}
			if b.cache != nil {
				if est, ok := b.cache.Get(origin, dest, at); ok {
					m.est[i][j] = est
					continue
				}
			}
			missing = append(missing, j)
		}
		if len(missing) == 0 {
			continue
		}
		if err := b.fetchRow(ctx, m, i, missing, at); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// fetchRow fills the missing columns of one origin row.
func (b *MatrixBuilder) fetchRow(ctx context.Context, m *Matrix, i int, missing []int, at time.Time) error {
	origin := m.points[i]

	if mp, ok := b.provider.(MatrixProvider); ok {
		dests := make([]model.Coord, len(missing))
		for k, j := range missing {
			dests[k] = m.points[j]
		}
		ests, err := mp.TravelTimes(ctx, origin, dests)
		if err == nil && len(ests) == len(missing) {
			for k, j := range missing {
				m.store(b.cache, i, j, at, ests[k])
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warnf("matrix row fetch failed, falling back per pair: %v", err)
	}

	for _, j := range missing {
		est, err := b.provider.TravelTime(ctx, origin, m.points[j])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			est, _ = b.fallback.TravelTime(ctx, origin, m.points[j])
			m.Approximate = true
			m.est[i][j] = est
			// Approximate estimates are not cached so the real value
			// can replace them once the provider recovers.
			continue
		}
		m.store(b.cache, i, j, at, est)
	}
	return nil
}

func (m *Matrix) store(cache *PairCache, i, j int, at time.Time, est TravelEstimate) {
	m.est[i][j] = est
	if est.Approximate {
		m.Approximate = true
		return
	}
	if cache != nil {
		cache.Put(m.points[i], m.points[j], at, est)
	}
}
