// Package planner builds VRP instances from live fleet state and solves
// them with a two-phase heuristic: greedy cheapest-feasible insertion
// followed by time-budgeted local search. Solves are interruptible and
// always return the best feasible plan found so far.
package planner
