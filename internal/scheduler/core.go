package scheduler

import (
	"fmt"
	"math/rand"
	"sort"
)

// CheckCapacity 在随机采样之前检查每个学期的总课时是否放得下，超出时返回 ErrCapacityExceeded
func CheckCapacity(catalog Catalog, dims Dimensions) error {
	capacity := dims.CellsPerPeriod()
	for period := 0; period < dims.NumPeriods; period++ {
		total := 0
		for _, subject := range catalog.SubjectsForPeriod(period) {
			total += subject.Workload
		}
		if total > capacity {
			return fmt.Errorf("%w: 第 %d 学期总课时 %d 超过可排课时 %d", ErrCapacityExceeded, period+1, total, capacity)
		}
	}
	return nil
}

// InitPopulation 随机初始化种群
func InitPopulation(rng *rand.Rand, size int, catalog Catalog, dims Dimensions) (Population, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: 缺少科目目录", ErrInvalidConfiguration)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: 种群大小必须为正数", ErrInvalidConfiguration)
	}
	if err := dims.validate(); err != nil {
		return nil, err
	}
	if err := CheckCapacity(catalog, dims); err != nil {
		return nil, err
	}

	pop := make(Population, size)
	for i := range pop {
		pop[i] = randomInitTimetable(rng, catalog, dims)
	}

	return pop, nil
}

// randomInitTimetable 随机初始化一张课表
// 每个科目都通过拒绝采样放入空格子，直到放满其课时数，剩下的格子填入空课时占位
func randomInitTimetable(rng *rand.Rand, catalog Catalog, dims Dimensions) *Timetable {
	t := NewTimetable(dims)

	for period := 0; period < dims.NumPeriods; period++ {
		row := t.row(period)
		// 占位科目的 ID 同样为 0，所以需要单独记录格子是否已被占用
		taken := make([]bool, len(row))

		for _, subject := range catalog.SubjectsForPeriod(period) {
			placed := 0
			for placed < subject.Workload {
				day := rng.Intn(dims.NumDays)
				slot := rng.Intn(dims.NumSlots)
				idx := day*dims.NumSlots + slot
				if taken[idx] {
					continue
				}

				row[idx] = subject.ID
				taken[idx] = true
				placed++
			}
		}

		emptyID := catalog.EmptySlotFor(period).ID
		for idx := range row {
			if !taken[idx] {
				row[idx] = emptyID
			}
		}
	}

	return t
}

// Crossover 打乱种群顺序后两两配对，按概率交换一半学期的整行课表
// 奇数种群中最后一个个体原样（拷贝）保留
func Crossover(rng *rand.Rand, pop Population, rate float64) Population {
	order := rng.Perm(len(pop))
	children := make(Population, 0, len(pop))

	for i := 0; i+1 < len(order); i += 2 {
		ch1 := pop[order[i]].Clone()
		ch2 := pop[order[i+1]].Clone()

		if rng.Float64() < rate {
			rowSwapCrossover(rng, ch1, ch2)
		}

		children = append(children, ch1, ch2)
	}

	if len(order)%2 == 1 {
		children = append(children, pop[order[len(order)-1]].Clone())
	}

	return children
}

// rowSwapCrossover 随机选出 floor(学期数/2) 个学期，交换两张课表中这些学期的整行
// 整行搬移不会改变每一行中科目的课时分布
func rowSwapCrossover(rng *rand.Rand, ch1 *Timetable, ch2 *Timetable) []int {
	numPeriods := ch1.dims.NumPeriods
	periods := rng.Perm(numPeriods)[:numPeriods/2]

	for _, period := range periods {
		ch1.swapRow(ch2, period)
	}

	return periods
}

// Mutate 对每个个体的每个学期按概率交换该行中两个不同的格子
// 同一行中的交换不会改变该行的科目课时分布
func Mutate(rng *rand.Rand, pop Population, rate float64) {
	for _, t := range pop {
		for period := 0; period < t.dims.NumPeriods; period++ {
			row := t.row(period)
			if len(row) < 2 {
				continue
			}
			if rng.Float64() >= rate {
				continue
			}

			i := rng.Intn(len(row))
			j := rng.Intn(len(row) - 1)
			if j >= i {
				j++
			}
			row[i], row[j] = row[j], row[i]
		}
	}
}

// rankAscending 按适应度升序稳定排序，返回排序后的下标（相同适应度时下标小的在前）
func rankAscending(fitness []float64) []int {
	ranked := make([]int, len(fitness))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return fitness[ranked[i]] < fitness[ranked[j]]
	})
	return ranked
}

// captureElites 深拷贝出适应度最高的 k 个个体，最好的排在最前
func captureElites(pop Population, fitness []float64, k int) Population {
	if k <= 0 {
		return nil
	}

	ranked := rankAscending(fitness)
	elites := make(Population, 0, k)
	for i := len(ranked) - 1; i >= len(ranked)-k; i-- {
		elites = append(elites, pop[ranked[i]].Clone())
	}

	return elites
}

// restoreElites 用精英覆盖新种群中最差的个体，最好的精英覆盖最差的位置
func restoreElites(pop Population, fitness []float64, elites Population) {
	ranked := rankAscending(fitness)
	for i, elite := range elites {
		pop[ranked[i]] = elite
	}
}
