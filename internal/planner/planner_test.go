package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/copyleftdev/steerpoint/internal/optimization"
	"github.com/copyleftdev/steerpoint/internal/optimization/distance"
	"github.com/copyleftdev/steerpoint/internal/optimization/genetic"
	"github.com/copyleftdev/steerpoint/internal/optimization/testutil"
)

func quickGenetic() genetic.Config {
	return genetic.Config{
		PopulationSize: 20,
		EliteSize:      4,
		MutationRate:   0.02,
		Generations:    15,
		Seed:           7,
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{in: "", want: StrategyBoth},
		{in: "both", want: StrategyBoth},
		{in: "greedy", want: StrategyGreedy},
		{in: "genetic", want: StrategyGenetic},
		{in: "annealing", wantErr: true},
		{in: "Greedy", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, optimization.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanStrategies(t *testing.T) {
	p := New(2, zaptest.NewLogger(t))

	tests := []struct {
		strategy    Strategy
		wantGreedy  bool
		wantGenetic bool
	}{
		{strategy: StrategyGreedy, wantGreedy: true},
		{strategy: StrategyGenetic, wantGenetic: true},
		{strategy: StrategyBoth, wantGreedy: true, wantGenetic: true},
		{strategy: "", wantGreedy: true, wantGenetic: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			out, err := p.Plan(context.Background(), Request{
				Waypoints: testutil.Airfields(),
				Strategy:  tt.strategy,
				Genetic:   quickGenetic(),
			})
			require.NoError(t, err)
			require.NotNil(t, out.Matrix)
			assert.Equal(t, 10, out.Matrix.Len())
			assert.Equal(t, tt.wantGreedy, out.Greedy != nil)
			assert.Equal(t, tt.wantGenetic, out.Genetic != nil)
			require.NotNil(t, out.Best)
			testutil.AssertRoute(t, out.Best.Route, out.Matrix.IDs())

			if out.Greedy != nil {
				assert.LessOrEqual(t, out.Best.Cost, out.Greedy.Cost)
			}
			if out.Genetic != nil {
				assert.LessOrEqual(t, out.Best.Cost, out.Genetic.Cost)
			}
		})
	}
}

func TestRunGreedyWinsTies(t *testing.T) {
	// With two waypoints every route has the same cost.
	m, err := distance.NewMatrix(context.Background(), []optimization.Waypoint{
		{ID: "A", Latitude: 1, Longitude: 1},
		{ID: "B", Latitude: 2, Longitude: 2},
	}, 1)
	require.NoError(t, err)

	out, err := New(1, nil).Run(context.Background(), m, StrategyBoth, quickGenetic())
	require.NoError(t, err)
	require.Equal(t, out.Greedy.Cost, out.Genetic.Cost)
	assert.Same(t, out.Greedy, out.Best)
}

func TestPlanErrors(t *testing.T) {
	p := New(1, nil)

	t.Run("invalid genetic config", func(t *testing.T) {
		cfg := quickGenetic()
		cfg.EliteSize = cfg.PopulationSize
		_, err := p.Plan(context.Background(), Request{Waypoints: testutil.Square(), Genetic: cfg})
		assert.ErrorIs(t, err, optimization.ErrConfiguration)
	})

	t.Run("greedy ignores genetic config", func(t *testing.T) {
		out, err := p.Plan(context.Background(), Request{
			Waypoints: testutil.Square(),
			Strategy:  StrategyGreedy,
			Genetic:   genetic.Config{},
		})
		require.NoError(t, err)
		assert.Nil(t, out.Genetic)
	})

	t.Run("duplicate waypoint", func(t *testing.T) {
		wps := append(testutil.Square(), optimization.Waypoint{ID: "A", Latitude: 3, Longitude: 3})
		_, err := p.Plan(context.Background(), Request{Waypoints: wps, Genetic: quickGenetic()})
		assert.ErrorIs(t, err, optimization.ErrValidation)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := p.Plan(context.Background(), Request{Waypoints: testutil.Square(), Strategy: "random"})
		assert.ErrorIs(t, err, optimization.ErrConfiguration)
	})

	t.Run("genetic computation error is wrapped", func(t *testing.T) {
		wps := []optimization.Waypoint{
			{ID: "A", Latitude: 4, Longitude: 4},
			{ID: "B", Latitude: 4, Longitude: 4},
			{ID: "C", Latitude: 4, Longitude: 4},
		}
		_, err := p.Plan(context.Background(), Request{Waypoints: wps, Strategy: StrategyGenetic, Genetic: quickGenetic()})
		require.Error(t, err)
		assert.ErrorIs(t, err, optimization.ErrComputation)
		assert.Contains(t, err.Error(), "genetic strategy")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.Plan(ctx, Request{Waypoints: testutil.Airfields(), Genetic: quickGenetic()})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
