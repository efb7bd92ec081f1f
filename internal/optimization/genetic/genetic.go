// Package genetic evolves open routes with elitism, roulette-wheel
// selection, ordered crossover and swap mutation.
package genetic

import (
	"context"
	"math/rand"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/steerpoint/internal/optimization"
)

// Name is the strategy name reported in results.
const Name = "genetic"

// Optimizer runs genetic searches. It holds no per-run state, so one
// Optimizer may serve concurrent Optimize calls.
type Optimizer struct {
	cfg    Config
	logger *zap.Logger
}

// New validates cfg and creates an Optimizer.
func New(cfg Config, logger *zap.Logger) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{cfg: cfg, logger: logger}, nil
}

// Name implements optimization.Optimizer.
func (o *Optimizer) Name() string { return Name }

// Config returns the effective configuration.
func (o *Optimizer) Config() Config { return o.cfg }

// run is the state of a single Optimize call.
type run struct {
	cfg     Config
	d       optimization.Distances
	n       int
	rng     *rand.Rand
	best    optimization.Path
	history []float64
}

// Optimize evolves cfg.Generations generations and returns the cheapest
// route seen in any of them. Cancellation is observed between generations.
func (o *Optimizer) Optimize(ctx context.Context, d optimization.Distances) (*optimization.Result, error) {
	n := d.Len()
	switch n {
	case 0:
		return &optimization.Result{Strategy: Name, Route: []string{}, Legs: []optimization.Leg{}}, nil
	case 1:
		return optimization.NewResult(Name, d, optimization.Path{Order: []int{0}}), nil
	}

	r := &run{
		cfg:     o.cfg,
		d:       d,
		n:       n,
		rng:     o.cfg.newRand(),
		history: make([]float64, 0, o.cfg.Generations+1),
	}

	pop := r.initialPopulation()
	ranked, err := r.score(ctx, pop)
	if err != nil {
		return nil, err
	}
	r.observe(0, ranked)

	for gen := 1; gen <= o.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			o.logger.Info("genetic search cancelled",
				zap.Int("generation", gen),
				zap.Float64("best_cost", r.best.Cost),
			)
			return nil, err
		}

		pop = r.nextGeneration(ranked)
		if ranked, err = r.score(ctx, pop); err != nil {
			return nil, err
		}
		if improved := r.observe(gen, ranked); improved {
			o.logger.Debug("new best route",
				zap.Int("generation", gen),
				zap.Float64("cost", r.best.Cost),
			)
		}
	}

	o.logger.Debug("genetic search finished",
		zap.Int("generations", o.cfg.Generations),
		zap.Int("population", o.cfg.PopulationSize),
		zap.Float64("best_cost", r.best.Cost),
	)

	res := optimization.NewResult(Name, d, r.best)
	res.History = r.history
	return res, nil
}

func (r *run) initialPopulation() []*individual {
	pop := make([]*individual, r.cfg.PopulationSize)
	for i := range pop {
		pop[i] = &individual{genes: r.rng.Perm(r.n)}
	}
	return pop
}

// score computes the cost of every unscored individual in parallel and
// returns the population ranked by fitness.
func (r *run) score(ctx context.Context, pop []*individual) ([]*individual, error) {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, ind := range pop {
		if ind.scored {
			continue
		}
		ind := ind
		g.Go(func() error {
			ind.cost = optimization.PathCost(r.d, ind.genes)
			ind.scored = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, ind := range pop {
		if ind.cost <= 0 {
			return nil, optimization.NewComputationError("route cost is %v, fitness is undefined", ind.cost).
				WithComponent("genetic").WithOperation("score")
		}
	}
	return rank(pop), nil
}

// nextGeneration carries the elites forward untouched and fills the rest
// with mutated children of the mating pool.
func (r *run) nextGeneration(ranked []*individual) []*individual {
	size := r.cfg.PopulationSize
	elite := r.cfg.EliteSize

	pool := selectPool(ranked, elite, r.rng)
	next := make([]*individual, 0, size)
	next = append(next, pool[:elite]...)

	parents := append([]*individual(nil), pool...)
	r.rng.Shuffle(len(parents), func(i, j int) {
		parents[i], parents[j] = parents[j], parents[i]
	})
	for i := 0; i < size-elite; i++ {
		child := OrderedCrossover(parents[i].genes, parents[len(parents)-1-i].genes, r.rng)
		Mutate(child, r.cfg.MutationRate, r.rng)
		next = append(next, &individual{genes: child})
	}
	return next
}

// observe folds the best of ranked into the running best, appends it to the
// history and reports progress. It returns true when the best improved.
func (r *run) observe(gen int, ranked []*individual) bool {
	top := ranked[0]
	improved := r.best.Order == nil || top.cost < r.best.Cost
	if improved {
		r.best = optimization.Path{
			Order: append([]int(nil), top.genes...),
			Cost:  top.cost,
		}
	}
	r.history = append(r.history, r.best.Cost)

	if r.cfg.Progress != nil {
		costs := make([]float64, len(ranked))
		for i, ind := range ranked {
			costs[i] = ind.cost
		}
		mean, std := stat.MeanStdDev(costs, nil)
		r.cfg.Progress(GenerationStats{
			Generation:  gen,
			Generations: r.cfg.Generations,
			BestCost:    r.best.Cost,
			MeanCost:    mean,
			StdDevCost:  std,
		})
	}
	return improved
}
