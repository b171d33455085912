package scheduler

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

// taggedPopulation 生成 n 个可以通过唯一格子区分的个体
func taggedPopulation(n int) Population {
	pop := make(Population, n)
	for i := range pop {
		tt := NewTimetable(Dimensions{NumPeriods: 1, NumDays: 1, NumSlots: 1})
		tt.Set(0, 0, 0, int64(i+1))
		pop[i] = tt
	}
	return pop
}

func TestNewSelector(t *testing.T) {
	s, err := NewSelector(domain.SelectionRoulette, 0, 10)
	require.NoError(t, err)
	assert.IsType(t, RouletteSelector{}, s)

	s, err = NewSelector(domain.SelectionTournament, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, TournamentSelector{Size: 3}, s)

	_, err = NewSelector(domain.SelectionTournament, 0, 10)
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewSelector(domain.SelectionTournament, 11, 10)
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewSelector("rank", 0, 10)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestRouletteFrequenciesFollowFitness(t *testing.T) {
	pop := taggedPopulation(4)
	fitness := []float64{1, 2, 3, 4}
	rng := rand.New(rand.NewSource(99))

	counts := make(map[int64]int)
	draws := 0
	for i := 0; i < 25000; i++ {
		selected, err := RouletteSelector{}.Select(rng, pop, fitness)
		require.NoError(t, err)
		require.Len(t, selected, len(pop))
		for _, tt := range selected {
			counts[tt.Get(0, 0, 0)]++
			draws++
		}
	}

	for i, fit := range fitness {
		got := float64(counts[int64(i+1)]) / float64(draws)
		assert.InDelta(t, fit/10, got, 0.01, "individual %d", i)
	}
}

func TestRouletteNeverPicksZeroWeight(t *testing.T) {
	pop := taggedPopulation(3)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		selected, err := RouletteSelector{}.Select(rng, pop, []float64{0, 5, 0})
		require.NoError(t, err)
		for _, tt := range selected {
			require.Equal(t, int64(2), tt.Get(0, 0, 0))
		}
	}
}

func TestRouletteDegenerate(t *testing.T) {
	pop := taggedPopulation(3)
	rng := rand.New(rand.NewSource(1))

	for name, fitness := range map[string][]float64{
		"negative": {10, -1, 5},
		"zero sum": {0, 0, 0},
		"nan":      {1, math.NaN(), 1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := RouletteSelector{}.Select(rng, pop, fitness)
			require.ErrorIs(t, err, ErrSelectionDegenerate)
		})
	}
}

func TestRouletteReturnsCopies(t *testing.T) {
	pop := taggedPopulation(2)
	selected, err := RouletteSelector{}.Select(rand.New(rand.NewSource(1)), pop, []float64{1, 1})
	require.NoError(t, err)

	for _, tt := range selected {
		for _, src := range pop {
			require.NotSame(t, src, tt)
		}
	}
}

func TestTournamentWinnerBeatsParticipants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	fitness := make([]float64, 10)
	for i := range fitness {
		fitness[i] = rng.Float64() * 100
	}

	s := TournamentSelector{Size: 3}
	index := newIndex(len(fitness))
	for i := 0; i < 500; i++ {
		winner, participants := s.pick(rng, index, fitness)
		require.Len(t, participants, 3)

		seen := make(map[int]bool)
		minFit := math.Inf(1)
		maxFit := math.Inf(-1)
		for _, p := range participants {
			require.False(t, seen[p], "participants must be distinct")
			seen[p] = true
			minFit = min(minFit, fitness[p])
			maxFit = max(maxFit, fitness[p])
		}
		require.True(t, seen[winner])
		require.GreaterOrEqual(t, fitness[winner], minFit)
		require.Equal(t, maxFit, fitness[winner])
	}
}

func TestTournamentFirstMaxOnTies(t *testing.T) {
	s := TournamentSelector{Size: 4}
	rng := rand.New(rand.NewSource(3))
	fitness := []float64{5, 5, 5, 5}
	index := newIndex(len(fitness))

	for i := 0; i < 50; i++ {
		winner, participants := s.pick(rng, index, fitness)
		require.Equal(t, participants[0], winner)
	}
}

func TestTournamentParticipationIsUniform(t *testing.T) {
	const n, draws = 20, 20000
	s := TournamentSelector{Size: 4}
	rng := rand.New(rand.NewSource(11))
	fitness := make([]float64, n)
	index := newIndex(n)

	counts := make([]int, n)
	for i := 0; i < draws; i++ {
		_, participants := s.pick(rng, index, fitness)
		for _, p := range participants {
			counts[p]++
		}
	}

	expected := float64(draws*s.Size) / n
	for i, c := range counts {
		assert.InDelta(t, expected, float64(c), expected*0.1, "index %d", i)
	}
}

func TestTournamentPickCostDoesNotGrowWithPopulation(t *testing.T) {
	const n = 5000
	s := TournamentSelector{Size: 3}
	rng := rand.New(rand.NewSource(5))
	fitness := make([]float64, n)
	index := newIndex(n)

	// 每次只分配参赛者切片，不再为整个种群生成排列
	allocs := testing.AllocsPerRun(200, func() {
		s.pick(rng, index, fitness)
	})
	assert.LessOrEqual(t, allocs, 1.0)
}

func TestTournamentSelect(t *testing.T) {
	pop := taggedPopulation(5)
	fitness := []float64{1, 2, 3, 4, 5}

	// 锦标赛规模等于种群大小时总是选出最优个体
	selected, err := TournamentSelector{Size: 5}.Select(rand.New(rand.NewSource(1)), pop, fitness)
	require.NoError(t, err)
	require.Len(t, selected, 5)
	for _, tt := range selected {
		assert.Equal(t, int64(5), tt.Get(0, 0, 0))
		assert.NotSame(t, pop[4], tt)
	}

	_, err = TournamentSelector{Size: 6}.Select(rand.New(rand.NewSource(1)), pop, fitness)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}
