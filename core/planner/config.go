package planner

// Config defines solver parameters loaded from configuration.
type Config struct {
	// TimeBudgetMS bounds one solver run. The improvement phase stops
	// when the budget elapses and returns the best plan found.
	TimeBudgetMS int `json:"time_budget_ms"`
	// TardinessWeight is the cost per second of lateness past a stop's
	// window.
	TardinessWeight int `json:"tardiness_weight"`
	// MaxLateSeconds is the hard bound on lateness: an insertion that
	// would arrive later than this past the window is infeasible.
	MaxLateSeconds int `json:"max_late_seconds"`
	// UnassignedPenalty is the cost of leaving one stop out of the plan.
	// It dominates any realistic route cost so stops are only dropped
	// when no feasible insertion exists.
	UnassignedPenalty int64 `json:"unassigned_penalty"`
	// ForecastBiasSeconds discounts insertions that keep a vehicle in a
	// region with a high forecasted order volume. Zero disables the bias.
	ForecastBiasSeconds int `json:"forecast_bias_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeBudgetMS <= 0 {
		c.TimeBudgetMS = 2000
	}
	if c.TardinessWeight <= 0 {
		c.TardinessWeight = 10
	}
	if c.MaxLateSeconds <= 0 {
		c.MaxLateSeconds = 1800
	}
	if c.UnassignedPenalty <= 0 {
		c.UnassignedPenalty = 1 << 32
	}
}
