package optimization

import (
	"context"
)

// Optimizer defines the interface for path optimization strategies
type Optimizer interface {
	// Name identifies the strategy in logs, metrics and results
	Name() string

	// Optimize searches for a short open route over every waypoint in d
	Optimize(ctx context.Context, d Distances) (*Result, error)
}

// Distances is the read-only view of a distance matrix that the path
// builders consume. Implementations must be safe for concurrent readers.
type Distances interface {
	// Len returns the number of waypoints.
	Len() int
	// ID returns the waypoint id stored at index i.
	ID(i int) string
	// At returns the distance in miles between waypoints i and j.
	At(i, j int) float64
}

// Waypoint is a named geographic point.
type Waypoint struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Leg is one edge of a route.
type Leg struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Distance float64 `json:"distance"`
}

// Result is the best route a strategy found.
type Result struct {
	Strategy string   `json:"strategy"`
	Route    []string `json:"route"`
	Legs     []Leg    `json:"legs"`
	Cost     float64  `json:"cost"`

	// History holds the running best cost after each generation for
	// iterative strategies. Empty for single-pass strategies.
	History []float64 `json:"history,omitempty"`
}

// Path is an ordered visiting sequence of matrix indices with its cost.
type Path struct {
	Order []int
	Cost  float64
}

// PathCost sums the consecutive-edge distances along order.
func PathCost(d Distances, order []int) float64 {
	cost := 0.0
	for i := 1; i < len(order); i++ {
		cost += d.At(order[i-1], order[i])
	}
	return cost
}

// NewResult expands an index path into ids and per-leg distances.
func NewResult(strategy string, d Distances, p Path) *Result {
	res := &Result{
		Strategy: strategy,
		Route:    make([]string, len(p.Order)),
		Legs:     make([]Leg, 0, max(len(p.Order)-1, 0)),
		Cost:     p.Cost,
	}
	for i, idx := range p.Order {
		res.Route[i] = d.ID(idx)
		if i > 0 {
			res.Legs = append(res.Legs, Leg{
				From:     d.ID(p.Order[i-1]),
				To:       d.ID(idx),
				Distance: d.At(p.Order[i-1], idx),
			})
		}
	}
	return res
}

// IsPermutation reports whether order visits every index in [0, n) exactly once.
func IsPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
