package genetic

import (
	"math"
	"math/rand"

	"github.com/copyleftdev/steerpoint/internal/optimization"
)

// defaultSeed replaces a zero Config.Seed so runs stay reproducible.
const defaultSeed int64 = 1

// Config controls a genetic optimization run.
type Config struct {
	// PopulationSize is the number of routes per generation. Must be >= 2.
	PopulationSize int `json:"population_size"`
	// EliteSize routes are carried into the next generation unchanged.
	// Must satisfy 0 <= EliteSize < PopulationSize.
	EliteSize int `json:"elite_size"`
	// MutationRate is the per-position swap probability in [0, 1].
	MutationRate float64 `json:"mutation_rate"`
	// Generations is the number of breeding rounds. Zero evaluates only the
	// initial population.
	Generations int `json:"generations"`
	// Seed for the run's random source; 0 selects a fixed default.
	Seed int64 `json:"seed"`
	// Workers bounds the goroutines scoring a generation; <= 0 uses GOMAXPROCS.
	Workers int `json:"-"`
	// Progress, when set, is called after every generation. It is advisory
	// and cannot influence the run.
	Progress func(GenerationStats) `json:"-"`
}

// GenerationStats summarizes one generation.
type GenerationStats struct {
	Generation  int
	Generations int
	BestCost    float64
	MeanCost    float64
	StdDevCost  float64
}

// DefaultConfig returns the parameters used when none are supplied.
func DefaultConfig() Config {
	return Config{
		PopulationSize: 100,
		EliteSize:      20,
		MutationRate:   0.01,
		Generations:    500,
	}
}

// Validate rejects parameter combinations the optimizer cannot run.
func (c Config) Validate() error {
	switch {
	case c.PopulationSize < 2:
		return optimization.NewConfigurationError("population size must be at least 2, got %d", c.PopulationSize).
			WithComponent("genetic")
	case c.EliteSize < 0:
		return optimization.NewConfigurationError("elite size must not be negative, got %d", c.EliteSize).
			WithComponent("genetic")
	case c.EliteSize >= c.PopulationSize:
		return optimization.NewConfigurationError("elite size %d must be less than population size %d", c.EliteSize, c.PopulationSize).
			WithComponent("genetic")
	case math.IsNaN(c.MutationRate) || c.MutationRate < 0 || c.MutationRate > 1:
		return optimization.NewConfigurationError("mutation rate must be in [0, 1], got %v", c.MutationRate).
			WithComponent("genetic")
	case c.Generations < 0:
		return optimization.NewConfigurationError("generations must not be negative, got %d", c.Generations).
			WithComponent("genetic")
	}
	return nil
}

func (c Config) newRand() *rand.Rand {
	seed := c.Seed
	if seed == 0 {
		seed = defaultSeed
	}
	return rand.New(rand.NewSource(seed))
}
