// Package planner composes the greedy and genetic strategies over one
// distance matrix and reports the best route found.
package planner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/steerpoint/internal/metrics"
	"github.com/copyleftdev/steerpoint/internal/optimization"
	"github.com/copyleftdev/steerpoint/internal/optimization/distance"
	"github.com/copyleftdev/steerpoint/internal/optimization/genetic"
	"github.com/copyleftdev/steerpoint/internal/optimization/greedy"
)

// Strategy selects which optimizers a plan runs.
type Strategy string

const (
	StrategyGreedy  Strategy = "greedy"
	StrategyGenetic Strategy = "genetic"
	StrategyBoth    Strategy = "both"
)

// ParseStrategy accepts greedy, genetic or both; empty means both.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyBoth:
		return StrategyBoth, nil
	case StrategyGreedy, StrategyGenetic:
		return Strategy(s), nil
	}
	return "", optimization.NewConfigurationError("unknown strategy %q", s).WithComponent("planner")
}

// Request describes one planning run.
type Request struct {
	Waypoints []optimization.Waypoint
	Strategy  Strategy
	Genetic   genetic.Config
}

// Outcome holds every strategy's result. Best is the lower-cost one; greedy
// wins ties.
type Outcome struct {
	Matrix  *distance.Matrix
	Greedy  *optimization.Result
	Genetic *optimization.Result
	Best    *optimization.Result
}

// Planner runs plans with a shared worker bound and logger.
type Planner struct {
	workers int
	logger  *zap.Logger
}

// New creates a Planner. workers <= 0 lets each stage pick GOMAXPROCS.
func New(workers int, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{workers: workers, logger: logger}
}

// Plan validates the request, builds the distance matrix and runs the
// requested strategies against it.
func (p *Planner) Plan(ctx context.Context, req Request) (*Outcome, error) {
	strategy, err := ParseStrategy(string(req.Strategy))
	if err != nil {
		return nil, err
	}
	if strategy != StrategyGreedy {
		if err := req.Genetic.Validate(); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	m, err := distance.NewMatrix(ctx, req.Waypoints, p.workers)
	if err != nil {
		return nil, err
	}
	metrics.MatrixBuildSeconds.Observe(time.Since(started).Seconds())
	p.logger.Debug("distance matrix built",
		zap.Int("waypoints", m.Len()),
		zap.Duration("elapsed", time.Since(started)),
	)

	return p.Run(ctx, m, strategy, req.Genetic)
}

// Run executes strategy against an existing matrix.
func (p *Planner) Run(ctx context.Context, m *distance.Matrix, strategy Strategy, cfg genetic.Config) (*Outcome, error) {
	out := &Outcome{Matrix: m}

	var optimizers []optimization.Optimizer
	if strategy == StrategyGreedy || strategy == StrategyBoth {
		optimizers = append(optimizers, greedy.NewBuilder(p.workers, p.logger))
	}
	if strategy == StrategyGenetic || strategy == StrategyBoth {
		if cfg.Workers <= 0 {
			cfg.Workers = p.workers
		}
		ga, err := genetic.New(cfg, p.logger)
		if err != nil {
			return nil, err
		}
		optimizers = append(optimizers, ga)
	}
	if len(optimizers) == 0 {
		return nil, optimization.NewConfigurationError("unknown strategy %q", strategy).WithComponent("planner")
	}

	for _, opt := range optimizers {
		started := time.Now()
		res, err := opt.Optimize(ctx, m)
		if err != nil {
			metrics.ObserveRun(opt.Name(), started, 0, err)
			return nil, fmt.Errorf("%s strategy: %w", opt.Name(), err)
		}
		metrics.ObserveRun(opt.Name(), started, res.Cost, nil)
		p.logger.Info("strategy finished",
			zap.String("strategy", opt.Name()),
			zap.Float64("cost", res.Cost),
			zap.Duration("elapsed", time.Since(started)),
		)

		switch opt.Name() {
		case greedy.Name:
			out.Greedy = res
		case genetic.Name:
			out.Genetic = res
		}
		if out.Best == nil || res.Cost < out.Best.Cost {
			out.Best = res
		}
	}
	return out, nil
}
