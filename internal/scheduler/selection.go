package scheduler

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

// Selector 根据适应度从种群中选出下一代的父本，返回的个体都是深拷贝
type Selector interface {
	Select(rng *rand.Rand, pop Population, fitness []float64) (Population, error)
}

// NewSelector 在构造时就确定选择方式，避免运行中途才发现配置错误
func NewSelector(method domain.SelectionMethod, tournamentSize int, populationSize int) (Selector, error) {
	switch method {
	case domain.SelectionRoulette:
		return RouletteSelector{}, nil
	case domain.SelectionTournament:
		if tournamentSize <= 0 {
			return nil, fmt.Errorf("%w: 锦标赛选择必须指定锦标赛规模", ErrInvalidConfiguration)
		}
		if tournamentSize > populationSize {
			return nil, fmt.Errorf("%w: 锦标赛规模 %d 超过种群大小 %d", ErrInvalidConfiguration, tournamentSize, populationSize)
		}
		return TournamentSelector{Size: tournamentSize}, nil
	default:
		return nil, fmt.Errorf("%w: 未知的选择方式 %q", ErrInvalidConfiguration, method)
	}
}

// RouletteSelector 轮盘赌选择，个体被选中的概率与适应度成正比
type RouletteSelector struct{}

func (RouletteSelector) Select(rng *rand.Rand, pop Population, fitness []float64) (Population, error) {
	if len(pop) != len(fitness) {
		return nil, fmt.Errorf("%w: 种群大小 %d 与适应度数量 %d 不一致", ErrInvalidConfiguration, len(pop), len(fitness))
	}

	sumFit := 0.0
	lastPositive := -1
	for i, fit := range fitness {
		if fit < 0 || math.IsNaN(fit) || math.IsInf(fit, 0) {
			return nil, fmt.Errorf("%w: 个体 %d 的适应度为 %v", ErrSelectionDegenerate, i, fit)
		}
		if fit > 0 {
			lastPositive = i
		}
		sumFit += fit
	}
	if sumFit <= 0 {
		return nil, fmt.Errorf("%w: 适应度之和为 %v", ErrSelectionDegenerate, sumFit)
	}

	selected := make(Population, len(pop))
	for i := range selected {
		pick := rng.Float64() * sumFit
		partial := 0.0
		// 浮点误差导致没有命中时，取最后一个适应度为正的个体
		chosen := lastPositive

		for j, fit := range fitness {
			partial += fit
			if pick < partial {
				chosen = j
				break
			}
		}

		selected[i] = pop[chosen].Clone()
	}

	return selected, nil
}

// TournamentSelector 锦标赛选择，每次不放回地抽取 Size 个个体，取其中适应度最高者
type TournamentSelector struct {
	Size int
}

func (s TournamentSelector) Select(rng *rand.Rand, pop Population, fitness []float64) (Population, error) {
	if len(pop) != len(fitness) {
		return nil, fmt.Errorf("%w: 种群大小 %d 与适应度数量 %d 不一致", ErrInvalidConfiguration, len(pop), len(fitness))
	}
	if s.Size <= 0 || s.Size > len(pop) {
		return nil, fmt.Errorf("%w: 锦标赛规模 %d 不在 [1, %d] 内", ErrInvalidConfiguration, s.Size, len(pop))
	}

	index := newIndex(len(pop))
	selected := make(Population, len(pop))
	for i := range selected {
		winner, _ := s.pick(rng, index, fitness)
		selected[i] = pop[winner].Clone()
	}

	return selected, nil
}

func newIndex(n int) []int {
	index := make([]int, n)
	for i := range index {
		index[i] = i
	}
	return index
}

// pick 进行一次锦标赛，返回胜者下标以及参赛者下标
// index 是 0..n-1 的一个排列，只对前 Size 个位置做 Fisher-Yates 交换，调用之间可以复用
func (s TournamentSelector) pick(rng *rand.Rand, index []int, fitness []float64) (int, []int) {
	n := len(index)
	for i := 0; i < s.Size; i++ {
		j := i + rng.Intn(n-i)
		index[i], index[j] = index[j], index[i]
	}
	participants := make([]int, s.Size)
	copy(participants, index[:s.Size])

	winner := participants[0]
	for _, p := range participants[1:] {
		if fitness[p] > fitness[winner] {
			winner = p
		}
	}

	return winner, participants
}
