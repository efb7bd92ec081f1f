package genetic

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/copyleftdev/steerpoint/internal/optimization"
	"github.com/copyleftdev/steerpoint/internal/optimization/distance"
	"github.com/copyleftdev/steerpoint/internal/optimization/testutil"
)

func newMatrix(t *testing.T, waypoints []optimization.Waypoint) *distance.Matrix {
	t.Helper()
	m, err := distance.NewMatrix(context.Background(), waypoints, 2)
	require.NoError(t, err)
	return m
}

func smallConfig() Config {
	return Config{
		PopulationSize: 30,
		EliteSize:      5,
		MutationRate:   0.02,
		Generations:    40,
		Seed:           99,
		Workers:        2,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "zero generations", mutate: func(c *Config) { c.Generations = 0 }},
		{name: "zero elites", mutate: func(c *Config) { c.EliteSize = 0 }},
		{name: "population of one", mutate: func(c *Config) { c.PopulationSize = 1; c.EliteSize = 0 }, wantErr: true},
		{name: "elite equals population", mutate: func(c *Config) { c.EliteSize = c.PopulationSize }, wantErr: true},
		{name: "negative elite", mutate: func(c *Config) { c.EliteSize = -1 }, wantErr: true},
		{name: "mutation rate above one", mutate: func(c *Config) { c.MutationRate = 1.5 }, wantErr: true},
		{name: "negative mutation rate", mutate: func(c *Config) { c.MutationRate = -0.1 }, wantErr: true},
		{name: "negative generations", mutate: func(c *Config) { c.Generations = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, optimization.ErrConfiguration)

			_, err = New(cfg, nil)
			assert.ErrorIs(t, err, optimization.ErrConfiguration)
		})
	}
}

func TestCrossoverAlwaysYieldsPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for n := 1; n <= 9; n++ {
		for trial := 0; trial < 20; trial++ {
			p1, p2 := rng.Perm(n), rng.Perm(n)
			for start := 0; start <= n; start++ {
				for end := start; end <= n; end++ {
					child := Crossover(p1, p2, start, end)
					testutil.AssertPermutation(t, child, n)
					assert.Equal(t, p1[start:end], child[start:end], "segment from parent 1 must keep its positions")
				}
			}
		}
	}
}

func TestCrossover(t *testing.T) {
	p1 := []int{0, 1, 2, 3, 4, 5}
	p2 := []int{5, 3, 1, 4, 0, 2}

	tests := []struct {
		name       string
		start, end int
		expected   []int
	}{
		{name: "middle segment", start: 2, end: 4, expected: []int{5, 1, 2, 3, 4, 0}},
		{name: "degenerate cut", start: 3, end: 3, expected: []int{5, 3, 1, 4, 0, 2}},
		{name: "whole parent", start: 0, end: 6, expected: []int{0, 1, 2, 3, 4, 5}},
		{name: "prefix", start: 0, end: 2, expected: []int{0, 1, 5, 3, 4, 2}},
		{name: "suffix", start: 4, end: 6, expected: []int{3, 1, 0, 2, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Crossover(p1, p2, tt.start, tt.end))
		})
	}
}

func TestOrderedCrossoverRandomCuts(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		p1, p2 := rng.Perm(12), rng.Perm(12)
		testutil.AssertPermutation(t, OrderedCrossover(p1, p2, rng), 12)
	}
}

func TestMutate(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	t.Run("zero rate leaves genes unchanged", func(t *testing.T) {
		genes := rng.Perm(20)
		before := append([]int(nil), genes...)
		assert.Zero(t, Mutate(genes, 0, rng))
		assert.Equal(t, before, genes)
	})

	t.Run("full rate keeps a permutation", func(t *testing.T) {
		genes := rng.Perm(20)
		swaps := Mutate(genes, 1, rng)
		assert.Equal(t, 20, swaps)
		testutil.AssertPermutation(t, genes, 20)
	})

	t.Run("single gene", func(t *testing.T) {
		genes := []int{0}
		assert.Zero(t, Mutate(genes, 1, rng))
		assert.Equal(t, []int{0}, genes)
	})
}

func TestRankIsStable(t *testing.T) {
	pop := []*individual{
		{genes: []int{0}, cost: 3},
		{genes: []int{1}, cost: 1},
		{genes: []int{2}, cost: 3},
		{genes: []int{3}, cost: 1},
	}
	ranked := rank(pop)
	assert.Same(t, pop[1], ranked[0])
	assert.Same(t, pop[3], ranked[1])
	assert.Same(t, pop[0], ranked[2])
	assert.Same(t, pop[2], ranked[3])
}

func TestSelectPool(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	ranked := rank([]*individual{
		{cost: 1}, {cost: 2}, {cost: 4}, {cost: 8}, {cost: 1000},
	})

	pool := selectPool(ranked, 2, rng)
	require.Len(t, pool, len(ranked))
	assert.Same(t, ranked[0], pool[0])
	assert.Same(t, ranked[1], pool[1])
	for _, p := range pool {
		assert.Contains(t, ranked, p)
	}

	counts := make(map[*individual]int)
	for i := 0; i < 2000; i++ {
		for _, p := range selectPool(ranked, 0, rng) {
			counts[p]++
		}
	}
	assert.Greater(t, counts[ranked[0]], counts[ranked[3]], "fitter routes should be drawn more often")
	assert.Greater(t, counts[ranked[3]], counts[ranked[4]])
}

func TestNextGenerationElitism(t *testing.T) {
	m := newMatrix(t, testutil.Airfields())

	tests := []struct {
		name  string
		elite int
		rate  float64
	}{
		{name: "no elites", elite: 0, rate: 0.05},
		{name: "some elites", elite: 4, rate: 0.05},
		{name: "no mutation", elite: 2, rate: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			cfg.EliteSize = tt.elite
			cfg.MutationRate = tt.rate
			r := &run{cfg: cfg, d: m, n: m.Len(), rng: cfg.newRand()}

			ranked, err := r.score(context.Background(), r.initialPopulation())
			require.NoError(t, err)
			next := r.nextGeneration(ranked)
			require.Len(t, next, cfg.PopulationSize)

			for i, ind := range next {
				testutil.AssertPermutation(t, ind.genes, m.Len())
				if i < tt.elite {
					assert.Same(t, ranked[i], ind, "elite %d should be carried unchanged", i)
					continue
				}
				assert.False(t, ind.scored, "children start unscored")
				for _, prev := range ranked {
					assert.NotSame(t, prev, ind)
				}
			}
		})
	}
}

func TestNoMutationChildrenMatchCrossover(t *testing.T) {
	m := newMatrix(t, testutil.Airfields())
	cfg := smallConfig()
	cfg.MutationRate = 0

	r := &run{cfg: cfg, d: m, n: m.Len(), rng: cfg.newRand()}
	ranked, err := r.score(context.Background(), r.initialPopulation())
	require.NoError(t, err)

	// Replay the same random stream by hand: selection, shuffle, crossover.
	replay := cfg.newRand()
	for range ranked {
		replay.Perm(m.Len())
	}
	pool := selectPool(ranked, cfg.EliteSize, replay)
	parents := append([]*individual(nil), pool...)
	replay.Shuffle(len(parents), func(i, j int) { parents[i], parents[j] = parents[j], parents[i] })

	next := r.nextGeneration(ranked)
	for i := 0; i < cfg.PopulationSize-cfg.EliteSize; i++ {
		want := OrderedCrossover(parents[i].genes, parents[len(parents)-1-i].genes, replay)
		assert.Equal(t, want, next[cfg.EliteSize+i].genes)
	}
}

func TestOptimize(t *testing.T) {
	m := newMatrix(t, testutil.Airfields())
	cfg := smallConfig()

	var progress []GenerationStats
	cfg.Progress = func(gs GenerationStats) { progress = append(progress, gs) }

	opt, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	res, err := opt.Optimize(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, Name, res.Strategy)
	testutil.AssertRoute(t, res.Route, m.IDs())
	require.Len(t, res.Legs, m.Len()-1)

	total := 0.0
	for _, leg := range res.Legs {
		total += leg.Distance
	}
	assert.InDelta(t, res.Cost, total, 1e-9)

	require.Len(t, res.History, cfg.Generations+1)
	for k := 1; k < len(res.History); k++ {
		assert.LessOrEqual(t, res.History[k], res.History[k-1], "best cost rose at generation %d", k)
	}
	assert.Equal(t, res.History[len(res.History)-1], res.Cost)

	require.Len(t, progress, cfg.Generations+1)
	for k, gs := range progress {
		assert.Equal(t, k, gs.Generation)
		assert.Equal(t, cfg.Generations, gs.Generations)
		assert.Equal(t, res.History[k], gs.BestCost)
		assert.GreaterOrEqual(t, gs.MeanCost, gs.BestCost)
	}
}

func TestOptimizeDeterministic(t *testing.T) {
	m := newMatrix(t, testutil.RandomWaypoints(15, 21))
	cfg := smallConfig()

	opt, err := New(cfg, nil)
	require.NoError(t, err)
	first, err := opt.Optimize(context.Background(), m)
	require.NoError(t, err)
	second, err := opt.Optimize(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	cfg.Workers = 8
	parallel, err := New(cfg, nil)
	require.NoError(t, err)
	third, err := parallel.Optimize(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestOptimizeFindsSquareRoute(t *testing.T) {
	m := newMatrix(t, testutil.Square())
	side, err := m.Distance("A", "B")
	require.NoError(t, err)

	opt, err := New(smallConfig(), nil)
	require.NoError(t, err)
	res, err := opt.Optimize(context.Background(), m)
	require.NoError(t, err)
	assert.InDelta(t, 3*side, res.Cost, 0.05)
}

func TestOptimizeNeverWorseThanInitialGeneration(t *testing.T) {
	m := newMatrix(t, testutil.RandomWaypoints(25, 4))
	cfg := smallConfig()
	cfg.Generations = 0

	opt, err := New(cfg, nil)
	require.NoError(t, err)
	initial, err := opt.Optimize(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, initial.History, 1)

	cfg.Generations = 60
	opt, err = New(cfg, nil)
	require.NoError(t, err)
	evolved, err := opt.Optimize(context.Background(), m)
	require.NoError(t, err)
	assert.LessOrEqual(t, evolved.Cost, initial.Cost)
	assert.Equal(t, initial.History[0], evolved.History[0], "same seed, same first generation")
}

func TestOptimizeEdgeCases(t *testing.T) {
	opt, err := New(smallConfig(), nil)
	require.NoError(t, err)

	t.Run("no waypoints", func(t *testing.T) {
		res, err := opt.Optimize(context.Background(), newMatrix(t, nil))
		require.NoError(t, err)
		assert.Empty(t, res.Route)
		assert.Zero(t, res.Cost)
	})

	t.Run("single waypoint", func(t *testing.T) {
		res, err := opt.Optimize(context.Background(), newMatrix(t, []optimization.Waypoint{{ID: "X"}}))
		require.NoError(t, err)
		assert.Equal(t, []string{"X"}, res.Route)
		assert.Zero(t, res.Cost)
		assert.Empty(t, res.History)
	})

	t.Run("zero cost routes", func(t *testing.T) {
		m := newMatrix(t, []optimization.Waypoint{
			{ID: "A", Latitude: 5, Longitude: 5},
			{ID: "B", Latitude: 5, Longitude: 5},
			{ID: "C", Latitude: 5, Longitude: 5},
		})
		_, err := opt.Optimize(context.Background(), m)
		assert.ErrorIs(t, err, optimization.ErrComputation)
	})

	t.Run("cancelled between generations", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := smallConfig()
		cfg.Progress = func(gs GenerationStats) {
			if gs.Generation == 3 {
				cancel()
			}
		}
		o, err := New(cfg, nil)
		require.NoError(t, err)
		_, err = o.Optimize(ctx, newMatrix(t, testutil.Airfields()))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
