package model

import (
	"fmt"
	"sort"
	"strings"
)

// Quantity is a demand or capacity vector keyed by cylinder class
// (e.g. "13kg", "45kg"). A nil Quantity is treated as empty.
type Quantity map[string]int

// Clone returns an independent copy.
func (q Quantity) Clone() Quantity {
	if q == nil {
		return nil
	}
	cp := make(Quantity, len(q))
	for k, v := range q {
		cp[k] = v
	}
	return cp
}

// Add returns q + other without mutating either operand.
func (q Quantity) Add(other Quantity) Quantity {
	sum := q.Clone()
	if sum == nil {
		sum = Quantity{}
	}
	for k, v := range other {
		sum[k] += v
	}
	return sum
}

// Sub returns q - other without mutating either operand.
func (q Quantity) Sub(other Quantity) Quantity {
	diff := q.Clone()
	if diff == nil {
		diff = Quantity{}
	}
	for k, v := range other {
		diff[k] -= v
	}
	return diff
}

// Fits reports whether every class in q is within the given capacity.
func (q Quantity) Fits(capacity Quantity) bool {
	for k, v := range q {
		if v > capacity[k] {
			return false
		}
	}
	return true
}

// Total returns the summed unit count across all classes.
func (q Quantity) Total() int {
	total := 0
	for _, v := range q {
		total += v
	}
	return total
}

// String renders the vector in class order for logs and tests.
func (q Quantity) String() string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, q[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
