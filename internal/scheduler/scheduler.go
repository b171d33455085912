package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
)

type Scheduler struct {
	parameters *Parameters
	catalog    Catalog
	evaluator  *Evaluator
	selector   Selector
	rng        *rand.Rand
	logger     *slog.Logger
}

type Option func(*Scheduler)

// WithRand 使用外部传入的随机数源，替代由 Parameters.Seed 创建的随机数源
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) {
		s.rng = rng
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// Progress 为每一代结束后汇报给观察者的信息
type Progress struct {
	Generation  int
	Best        *Timetable
	BestFitness float64
}

// ProgressFunc 在每一代结束后被同步调用，返回的错误只会被记录，不会中断排课
type ProgressFunc func(Progress) error

type Result struct {
	Best        *Timetable
	BestFitness float64
	Generations int  // 实际完成的代数
	Cancelled   bool // 是否因为外部取消而提前结束
}

func New(parameters *Parameters, catalog Catalog, opts ...Option) (*Scheduler, error) {
	if parameters == nil {
		return nil, fmt.Errorf("%w: 缺少算法参数", ErrInvalidConfiguration)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: 缺少科目目录", ErrInvalidConfiguration)
	}
	if err := parameters.validate(); err != nil {
		return nil, err
	}

	selector, err := NewSelector(parameters.SelectionMethod, parameters.TournamentSize, parameters.PopulationSize)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		parameters: parameters,
		catalog:    catalog,
		evaluator:  NewEvaluator(catalog),
		selector:   selector,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(parameters.Seed))
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Run 迭代 generations 代，返回最后一次评估得到的最优个体
// ctx 只在每一代开始前检查一次，被取消时立即返回当前的最优个体
func (s *Scheduler) Run(ctx context.Context, generations int, onGeneration ProgressFunc) (*Result, error) {
	if generations <= 0 {
		return nil, fmt.Errorf("%w: 迭代次数必须为正数", ErrInvalidConfiguration)
	}

	// 生成初始种群
	pop, err := InitPopulation(s.rng, s.parameters.PopulationSize, s.catalog, s.parameters.Dimensions)
	if err != nil {
		return nil, err
	}
	if _, err := s.evaluator.Evaluate(pop); err != nil {
		return nil, err
	}

	result := &Result{}

	// 迭代
	for gen := 1; gen <= generations; gen++ {
		if ctx.Err() != nil {
			s.logger.Info("排课已被取消", slog.Int("generation", gen))
			result.Cancelled = true
			break
		}

		pop, err = s.evolve(pop)
		if err != nil {
			return nil, err
		}

		best, bestFitness := s.evaluator.Best()
		result.Generations = gen
		s.logger.Debug("完成一代迭代", slog.Int("generation", gen), slog.Float64("best_fitness", bestFitness))

		s.report(onGeneration, Progress{
			Generation:  gen,
			Best:        best,
			BestFitness: bestFitness,
		})
	}

	result.Best, result.BestFitness = s.evaluator.Best()
	return result, nil
}

// evolve 完成一代的 评估 -> 保留精英 -> 选择 -> 交叉 -> 变异 -> 恢复精英 -> 评估
func (s *Scheduler) evolve(pop Population) (Population, error) {
	fitness, err := s.evaluator.Evaluate(pop)
	if err != nil {
		return nil, err
	}

	// 保留精英
	elites := captureElites(pop, fitness, s.parameters.EliteCount)

	// 繁殖
	selected, err := s.selector.Select(s.rng, pop, fitness)
	if err != nil {
		return nil, err
	}
	children := Crossover(s.rng, selected, s.parameters.CrossoverRate)
	Mutate(s.rng, children, s.parameters.MutationRate)

	// 用精英替换新种群中最差的个体
	if len(elites) > 0 {
		scores, err := s.evaluator.Scores(children)
		if err != nil {
			return nil, err
		}
		restoreElites(children, scores, elites)
	}

	if _, err := s.evaluator.Evaluate(children); err != nil {
		return nil, err
	}

	return children, nil
}

// report 调用观察者，观察者的错误和 panic 都在这里被隔离
func (s *Scheduler) report(onGeneration ProgressFunc, p Progress) {
	if onGeneration == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("进度回调发生 panic", slog.Int("generation", p.Generation), slog.Any("panic", r))
		}
	}()

	if err := onGeneration(p); err != nil {
		s.logger.Warn("进度回调失败", slog.Int("generation", p.Generation), slog.String("error", err.Error()))
	}
}
