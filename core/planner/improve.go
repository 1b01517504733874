package planner

import (
	"context"
	"time"

	"github.com/fleetcore/dispatchd/core/model"
)

// searchStats summarizes one improvement run.
type searchStats struct {
	iterations  int
	improved    int
	interrupted bool
}

// improve runs local search on the constructed solution until no
// improving move remains, the deadline passes or the context is
// cancelled. The incumbent is mutated in place: at any interruption
// point it is the best feasible solution found so far.
func improve(ctx context.Context, m *Model, cfg Config, sol *solution, deadline time.Time) searchStats {
	stats := searchStats{}
	for {
		if expired(ctx, deadline) {
			stats.interrupted = true
			return stats
		}
		stats.iterations++
		improved := sol.tryInsertUnassigned(m, cfg)
		if sol.tryRelocate(ctx, m, cfg, deadline) {
			improved = true
		}
		if sol.trySwap(ctx, m, cfg, deadline) {
			improved = true
		}
		if sol.tryTwoOpt(ctx, m, cfg, deadline) {
			improved = true
		}
		if !improved {
			return stats
		}
		stats.improved++
	}
}

func expired(ctx context.Context, deadline time.Time) bool {
	return ctx.Err() != nil || !time.Now().Before(deadline)
}

// tryInsertUnassigned retries stops the construction phase could not
// place; relocations may have opened capacity or window room.
func (s *solution) tryInsertUnassigned(m *Model, cfg Config) bool {
	improved := false
	remaining := s.unassigned[:0]
	for _, u := range s.unassigned {
		ins, _ := s.bestInsertion(m, cfg, u.Stop)
		if ins.found {
			s.apply(m, cfg, u.Stop, ins)
			improved = true
			continue
		}
		remaining = append(remaining, u)
	}
	s.unassigned = remaining
	return improved
}

// tryRelocate moves single stops between positions and routes,
// accepting the first cost-reducing feasible move per stop (or-opt
// with segment length one).
func (s *solution) tryRelocate(ctx context.Context, m *Model, cfg Config, deadline time.Time) bool {
	improved := false
	for vi := range s.routes {
		for si := 0; si < len(s.routes[vi]); si++ {
			if expired(ctx, deadline) {
				return improved
			}
			stop := s.routes[vi][si]
			before := s.key(cfg)

			removed := append([]model.Stop(nil), s.routes[vi][:si]...)
			removed = append(removed, s.routes[vi][si+1:]...)
			prevSeq, prevSched := s.routes[vi], s.scheds[vi]
			s.routes[vi] = removed
			s.resimulate(m, cfg, vi)

			ins, _ := s.bestInsertion(m, cfg, stop)
			if ins.found {
				trial := s.clone()
				trial.apply(m, cfg, stop, ins)
				if trial.scheds[ins.vehicle].feasible && trial.key(cfg).less(before) {
					*s = *trial
					improved = true
					continue
				}
			}
			s.routes[vi], s.scheds[vi] = prevSeq, prevSched
		}
	}
	return improved
}

// trySwap exchanges stop pairs across routes.
func (s *solution) trySwap(ctx context.Context, m *Model, cfg Config, deadline time.Time) bool {
	improved := false
	for ai := range s.routes {
		for aj := 0; aj < len(s.routes[ai]); aj++ {
			for bi := ai; bi < len(s.routes); bi++ {
				start := 0
				if bi == ai {
					start = aj + 1
				}
				for bj := start; bj < len(s.routes[bi]); bj++ {
					if expired(ctx, deadline) {
						return improved
					}
					before := s.key(cfg)
					trial := s.clone()
					trial.routes[ai][aj], trial.routes[bi][bj] = trial.routes[bi][bj], trial.routes[ai][aj]
					trial.resimulate(m, cfg, ai)
					if bi != ai {
						trial.resimulate(m, cfg, bi)
					}
					if trial.scheds[ai].feasible && trial.scheds[bi].feasible && trial.key(cfg).less(before) {
						*s = *trial
						improved = true
					}
				}
			}
		}
	}
	return improved
}

// tryTwoOpt reverses intra-route segments.
func (s *solution) tryTwoOpt(ctx context.Context, m *Model, cfg Config, deadline time.Time) bool {
	improved := false
	for vi := range s.routes {
		n := len(s.routes[vi])
		for i := 0; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				if expired(ctx, deadline) {
					return improved
				}
				before := s.key(cfg)
				trial := s.clone()
				reverse(trial.routes[vi], i, j)
				trial.resimulate(m, cfg, vi)
				if trial.scheds[vi].feasible && trial.key(cfg).less(before) {
					*s = *trial
					improved = true
				}
			}
		}
	}
	return improved
}

func reverse(seq []model.Stop, i, j int) {
	for i < j {
		seq[i], seq[j] = seq[j], seq[i]
		i++
		j--
	}
}
