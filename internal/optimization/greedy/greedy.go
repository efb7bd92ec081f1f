// Package greedy implements the multi-start nearest-neighbor path builder.
package greedy

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/steerpoint/internal/optimization"
)

// Name is the strategy name reported in results.
const Name = "greedy"

// Builder runs one nearest-neighbor search per starting waypoint.
type Builder struct {
	workers int
	logger  *zap.Logger
}

// NewBuilder creates a Builder using at most workers goroutines.
// workers <= 0 uses GOMAXPROCS; a nil logger is replaced with a no-op.
func NewBuilder(workers int, logger *zap.Logger) *Builder {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{workers: workers, logger: logger}
}

// Name implements optimization.Optimizer.
func (b *Builder) Name() string { return Name }

// Optimize builds every path and returns the shortest.
func (b *Builder) Optimize(ctx context.Context, d optimization.Distances) (*optimization.Result, error) {
	paths, err := b.BuildAllPaths(ctx, d)
	if err != nil {
		return nil, err
	}
	best := Shortest(d, paths)
	b.logger.Debug("greedy search finished",
		zap.Int("starts", len(paths)),
		zap.Float64("best_cost", best.Cost),
	)
	return best, nil
}

// BuildAllPaths returns one path per starting waypoint, in start order.
func (b *Builder) BuildAllPaths(ctx context.Context, d optimization.Distances) ([]optimization.Path, error) {
	n := d.Len()
	if n == 0 {
		return nil, nil
	}

	paths := make([]optimization.Path, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for s := 0; s < n; s++ {
		s := s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			paths[s] = NearestNeighbor(d, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// NearestNeighbor builds a path from start by repeatedly moving to the
// closest unvisited waypoint. Equal distances go to the lexically lower id.
func NearestNeighbor(d optimization.Distances, start int) optimization.Path {
	n := d.Len()
	order := make([]int, 1, n)
	order[0] = start
	visited := make([]bool, n)
	visited[start] = true

	cost := 0.0
	current := start
	for len(order) < n {
		next := -1
		best := 0.0
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			dist := d.At(current, j)
			if next < 0 || dist < best || (dist == best && d.ID(j) < d.ID(next)) {
				next, best = j, dist
			}
		}
		visited[next] = true
		order = append(order, next)
		cost += best
		current = next
	}
	return optimization.Path{Order: order, Cost: cost}
}

// Shortest picks the minimum-cost path; ties keep the earliest start.
// An empty input yields an empty result.
func Shortest(d optimization.Distances, paths []optimization.Path) *optimization.Result {
	if len(paths) == 0 {
		return &optimization.Result{Strategy: Name, Route: []string{}, Legs: []optimization.Leg{}}
	}
	best := 0
	for i := 1; i < len(paths); i++ {
		if paths[i].Cost < paths[best].Cost {
			best = i
		}
	}
	return optimization.NewResult(Name, d, paths[best])
}
