package scheduler

import (
	"fmt"

	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

const (
	baseFitness       = 500
	conflictWeight    = 20
	gapWeight         = 5
	consecutiveWeight = 10
)

// FitnessBreakdown 记录适应度中每一项的取值
type FitnessBreakdown struct {
	Conflicts   int     `json:"conflicts"`
	GapScore    int     `json:"gapScore"`
	Consecutive int     `json:"consecutive"`
	Fitness     float64 `json:"fitness"`
}

// Evaluator 计算种群中每个个体的适应度，并记录最近一次评估中的最优个体
type Evaluator struct {
	catalog     Catalog
	best        *Timetable
	bestFitness float64
}

func NewEvaluator(catalog Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

/**
 * 计算个体的适应度
 * fitness = 500 - 20 * conflicts - 5 * gapScore + 10 * consecutive
 * 其中:
 * 		1. conflicts 为同一时刻不同学期由同一位老师上课的次数（有序学期对，因此每次冲突计两次）
 * 		2. gapScore 为每天空课分布得分之和再取反
 * 		3. consecutive 为同一天中连续上同一科目的次数
 */
func (e *Evaluator) Breakdown(t *Timetable) (FitnessBreakdown, error) {
	conflicts, err := e.countConflicts(t)
	if err != nil {
		return FitnessBreakdown{}, err
	}

	gapSum := 0
	consecutive := 0
	for period := 0; period < t.dims.NumPeriods; period++ {
		row := t.row(period)
		for day := 0; day < t.dims.NumDays; day++ {
			dayCells := row[day*t.dims.NumSlots : (day+1)*t.dims.NumSlots]
			gapSum += gapRowScore(dayCells)
			consecutive += countConsecutive(dayCells)
		}
	}
	gapScore := -gapSum

	return FitnessBreakdown{
		Conflicts:   conflicts,
		GapScore:    gapScore,
		Consecutive: consecutive,
		Fitness:     float64(baseFitness - conflictWeight*conflicts - gapWeight*gapScore + consecutiveWeight*consecutive),
	}, nil
}

func (e *Evaluator) Fitness(t *Timetable) (float64, error) {
	b, err := e.Breakdown(t)
	if err != nil {
		return 0, err
	}
	return b.Fitness, nil
}

// Scores 计算整个种群的适应度，不更新最优个体
func (e *Evaluator) Scores(pop Population) ([]float64, error) {
	scores := make([]float64, len(pop))
	for i, t := range pop {
		fit, err := e.Fitness(t)
		if err != nil {
			return nil, err
		}
		scores[i] = fit
	}
	return scores, nil
}

// Evaluate 计算整个种群的适应度，并将其中适应度最高的个体（相同时取第一个）记为最优
func (e *Evaluator) Evaluate(pop Population) ([]float64, error) {
	if len(pop) == 0 {
		return nil, fmt.Errorf("%w: 种群为空", ErrInvalidConfiguration)
	}

	scores, err := e.Scores(pop)
	if err != nil {
		return nil, err
	}

	bestIdx := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[bestIdx] {
			bestIdx = i
		}
	}

	// 这里需要使用深拷贝，防止后续繁殖的过程中修改到最优个体
	e.best = pop[bestIdx].Clone()
	e.bestFitness = scores[bestIdx]

	return scores, nil
}

// Best 返回最近一次评估中的最优个体的副本
func (e *Evaluator) Best() (*Timetable, float64) {
	if e.best == nil {
		return nil, 0
	}
	return e.best.Clone(), e.bestFitness
}

func (e *Evaluator) countConflicts(t *Timetable) (int, error) {
	dims := t.dims
	teachers := make([]string, dims.NumPeriods)
	occupied := make([]bool, dims.NumPeriods)
	conflicts := 0

	for day := 0; day < dims.NumDays; day++ {
		for slot := 0; slot < dims.NumSlots; slot++ {
			for period := 0; period < dims.NumPeriods; period++ {
				id := t.Get(period, day, slot)
				occupied[period] = id != domain.EmptySubjectID
				if !occupied[period] {
					continue
				}

				subject, err := e.catalog.ByID(id)
				if err != nil {
					return 0, err
				}
				occupied[period] = !subject.IsEmptySlot
				teachers[period] = subject.Teacher
			}

			for p1 := 0; p1 < dims.NumPeriods; p1++ {
				if !occupied[p1] {
					continue
				}
				for p2 := 0; p2 < dims.NumPeriods; p2++ {
					if p1 == p2 || !occupied[p2] {
						continue
					}
					if teachers[p1] == teachers[p2] {
						conflicts++
					}
				}
			}
		}
	}

	return conflicts, nil
}

// gapRowScore 计算一天课表中空课分布的得分
// 以每天 4 节课为例: 第 0、1 节都空 +15；第 2、3 节都空 +15；第 1、2 节都空 -20；
// 单个空课在第 0 或 3 节 +5，在第 1 或 2 节 -10
// 节数不为 4 时，首尾两节视为边缘课时，中间相邻的两节都空则 -20
func gapRowScore(cells []int64) int {
	n := len(cells)
	empty := func(i int) bool {
		return cells[i] == domain.EmptySubjectID
	}

	score := 0
	if n >= 2 {
		if empty(0) && empty(1) {
			score += 15
		}
		if empty(n-2) && empty(n-1) {
			score += 15
		}
	}
	for i := 1; i+1 <= n-2; i++ {
		if empty(i) && empty(i+1) {
			score -= 20
		}
	}
	for i := 0; i < n; i++ {
		if !empty(i) {
			continue
		}
		if i == 0 || i == n-1 {
			score += 5
		} else {
			score -= 10
		}
	}

	return score
}

// countConsecutive 统计一天中（跳过空课）与前一节非空课相同科目的次数
func countConsecutive(cells []int64) int {
	cnt := 0
	var prev int64
	hasPrev := false

	for _, id := range cells {
		if id == domain.EmptySubjectID {
			continue
		}
		if hasPrev && id == prev {
			cnt++
		}
		prev = id
		hasPrev = true
	}

	return cnt
}
