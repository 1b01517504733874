package planner

// cost returns the weighted cost of one route schedule: travel seconds
// plus the linear tardiness penalty. Lateness is already bounded by
// cfg.MaxLateSeconds per stop (anything later is infeasible), which
// caps the penalty without risking overflow.
func (s schedule) cost(cfg Config) int64 {
	return int64(s.travelSeconds) + int64(cfg.TardinessWeight)*int64(s.tardinessSeconds)
}

// costKey orders candidate solutions. Total weighted cost decides;
// route count and total distance break ties so solver output is
// deterministic for a given model.
type costKey struct {
	cost   int64
	routes int
	meters int64
}

func (a costKey) less(b costKey) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.routes != b.routes {
		return a.routes < b.routes
	}
	return a.meters < b.meters
}

// key computes the cost key of a solution, including the penalty for
// every stop left unassigned.
func (s *solution) key(cfg Config) costKey {
	k := costKey{}
	for i := range s.scheds {
		if len(s.routes[i]) == 0 {
			continue
		}
		k.cost += s.scheds[i].cost(cfg)
		k.routes++
		k.meters += int64(s.scheds[i].distanceMeters)
	}
	k.cost += cfg.UnassignedPenalty * int64(len(s.unassigned))
	return k
}
