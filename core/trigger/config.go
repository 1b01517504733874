package trigger

// Config defines re-optimization policy parameters.
type Config struct {
	// DebounceSeconds batches bursts of stop churn into one scoped
	// re-solve instead of solving per event.
	DebounceSeconds int `json:"debounce_seconds"`
	// BreachToleranceSeconds is how far past a window's latest bound a
	// projected arrival may drift before an immediate re-solve fires.
	BreachToleranceSeconds int `json:"breach_tolerance_seconds"`
	// DeviationMeters is the detour distance past which a position ping
	// counts as off-path and triggers an ETA recompute.
	DeviationMeters int `json:"deviation_meters"`
	// ScopeRadiusMeters bounds which vehicles a changed stop pulls into
	// a scoped re-solve.
	ScopeRadiusMeters int `json:"scope_radius_meters"`
	// SolveBudgetMS bounds scoped re-solves. Zero falls back to the
	// solver's own budget.
	SolveBudgetMS int `json:"solve_budget_ms"`
	// CommitRetries bounds automatic retries after a stale commit.
	CommitRetries int `json:"commit_retries"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DebounceSeconds <= 0 {
		c.DebounceSeconds = 3
	}
	if c.BreachToleranceSeconds <= 0 {
		c.BreachToleranceSeconds = 300
	}
	if c.DeviationMeters <= 0 {
		c.DeviationMeters = 2000
	}
	if c.ScopeRadiusMeters <= 0 {
		c.ScopeRadiusMeters = 5000
	}
	if c.CommitRetries <= 0 {
		c.CommitRetries = 2
	}
}
