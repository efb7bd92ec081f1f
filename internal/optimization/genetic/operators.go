package genetic

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// individual is one candidate route. cost is memoized once scored.
type individual struct {
	genes  []int
	cost   float64
	scored bool
}

func (ind *individual) fitness() float64 {
	return 1 / ind.cost
}

// rank orders the population by descending fitness. Equal fitness keeps
// population order.
func rank(pop []*individual) []*individual {
	ranked := append([]*individual(nil), pop...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].fitness() > ranked[j].fitness()
	})
	return ranked
}

// selectPool builds a mating pool the size of ranked: the eliteSize best
// first, the rest drawn by roulette wheel over all of ranked, with
// replacement.
func selectPool(ranked []*individual, eliteSize int, rng *rand.Rand) []*individual {
	size := len(ranked)
	pool := make([]*individual, 0, size)
	pool = append(pool, ranked[:eliteSize]...)

	fit := make([]float64, size)
	for i, ind := range ranked {
		fit[i] = ind.fitness()
	}
	cum := floats.CumSum(make([]float64, size), fit)
	floats.Scale(1/cum[size-1], cum)

	for len(pool) < size {
		pick := rng.Float64()
		idx := sort.SearchFloat64s(cum, pick)
		if idx >= size {
			idx = size - 1
		}
		pool = append(pool, ranked[idx])
	}
	return pool
}

// OrderedCrossover cuts parent1 at two random points and fills the child
// with Crossover.
func OrderedCrossover(parent1, parent2 []int, rng *rand.Rand) []int {
	n := len(parent1)
	a, b := rng.Intn(n+1), rng.Intn(n+1)
	if a > b {
		a, b = b, a
	}
	return Crossover(parent1, parent2, a, b)
}

// Crossover copies parent1[start:end] into the same positions of the child
// and fills the remaining positions left to right with parent2's genes in
// parent2's order, skipping genes already taken. Both parents must be
// permutations of 0..n-1. start == end yields parent2's order.
func Crossover(parent1, parent2 []int, start, end int) []int {
	n := len(parent1)
	child := make([]int, n)
	taken := make([]bool, n)
	for i := start; i < end; i++ {
		child[i] = parent1[i]
		taken[parent1[i]] = true
	}

	pos := 0
	for _, g := range parent2 {
		if taken[g] {
			continue
		}
		if pos == start {
			pos = end
		}
		child[pos] = g
		pos++
	}
	return child
}

// Mutate swaps each position with a uniformly random other position with
// probability rate and returns the number of swaps performed.
func Mutate(genes []int, rate float64, rng *rand.Rand) int {
	n := len(genes)
	if n < 2 || rate <= 0 {
		return 0
	}
	swaps := 0
	for i := range genes {
		if rng.Float64() >= rate {
			continue
		}
		j := rng.Intn(n - 1)
		if j >= i {
			j++
		}
		genes[i], genes[j] = genes[j], genes[i]
		swaps++
	}
	return swaps
}
