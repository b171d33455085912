package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

func singleRow(ids ...int64) *Timetable {
	tt := NewTimetable(Dimensions{NumPeriods: 1, NumDays: 1, NumSlots: len(ids)})
	for slot, id := range ids {
		tt.Set(0, 0, slot, id)
	}
	return tt
}

func TestFitnessBreakdown(t *testing.T) {
	e := NewEvaluator(twoSubjectCatalog(t))

	cases := []struct {
		name string
		row  *Timetable
		want FitnessBreakdown
	}{
		{"blocks", singleRow(1, 1, 2, 2), FitnessBreakdown{Consecutive: 2, Fitness: 520}},
		{"alternating", singleRow(1, 2, 1, 2), FitnessBreakdown{Fitness: 500}},
		{"morning free", singleRow(0, 0, 1, 1), FitnessBreakdown{GapScore: -10, Consecutive: 1, Fitness: 560}},
		{"middle free", singleRow(1, 0, 0, 1), FitnessBreakdown{GapScore: 40, Consecutive: 1, Fitness: 310}},
		{"evening free", singleRow(2, 2, 0, 0), FitnessBreakdown{GapScore: -10, Consecutive: 1, Fitness: 560}},
		{"single middle gap", singleRow(1, 0, 2, 2), FitnessBreakdown{GapScore: 10, Consecutive: 1, Fitness: 460}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := e.Breakdown(c.row)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestConflictsCountOrderedPairs(t *testing.T) {
	catalog := newTestCatalog(t, 3,
		&domain.Subject{ID: 1, Teacher: "王老师", Workload: 1, Period: 1},
		&domain.Subject{ID: 2, Teacher: "王老师", Workload: 1, Period: 2},
		&domain.Subject{ID: 3, Teacher: "李老师", Workload: 1, Period: 3},
	)
	e := NewEvaluator(catalog)

	tt := NewTimetable(Dimensions{NumPeriods: 3, NumDays: 1, NumSlots: 1})
	tt.Set(0, 0, 0, 1)
	tt.Set(1, 0, 0, 2)
	tt.Set(2, 0, 0, 3)

	b, err := e.Breakdown(tt)
	require.NoError(t, err)
	// 同一冲突在 (1,2) 和 (2,1) 两个有序学期对中各计一次
	assert.Equal(t, 2, b.Conflicts)
	assert.Equal(t, 0, b.GapScore)
	assert.Equal(t, 460.0, b.Fitness)

	// 空课不参与冲突计算
	tt.Set(1, 0, 0, domain.EmptySubjectID)
	b, err = e.Breakdown(tt)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Conflicts)
}

func TestFitnessUnknownSubject(t *testing.T) {
	e := NewEvaluator(twoSubjectCatalog(t))

	_, err := e.Fitness(singleRow(1, 2, 3, 0))
	require.ErrorIs(t, err, ErrNotFound)

	_, err = e.Evaluate(Population{singleRow(1, 1, 2, 2), singleRow(1, 2, 3, 0)})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGapRowScore(t *testing.T) {
	assert.Equal(t, 0, gapRowScore([]int64{1, 2, 3, 4}))
	// 全空: +15 +15 -20 +5 -10 -10 +5
	assert.Equal(t, 0, gapRowScore([]int64{0, 0, 0, 0}))
	assert.Equal(t, 5, gapRowScore([]int64{0, 1, 1, 1}))
	assert.Equal(t, -10, gapRowScore([]int64{1, 1, 0, 1}))
	assert.Equal(t, 0, gapRowScore([]int64{1}))
	assert.Equal(t, 5, gapRowScore([]int64{0}))
}

func TestCountConsecutive(t *testing.T) {
	assert.Equal(t, 0, countConsecutive([]int64{1, 2, 1, 2}))
	assert.Equal(t, 3, countConsecutive([]int64{1, 1, 1, 1}))
	// 空课被跳过，前后相同科目仍算连续
	assert.Equal(t, 1, countConsecutive([]int64{1, 0, 1, 2}))
	assert.Equal(t, 0, countConsecutive([]int64{0, 0, 0, 0}))
}

func TestEvaluateRecordsFirstBest(t *testing.T) {
	e := NewEvaluator(twoSubjectCatalog(t))

	first := singleRow(1, 1, 2, 2)
	second := singleRow(2, 2, 1, 1)
	pop := Population{singleRow(1, 2, 1, 2), first, second}

	best, fit := e.Best()
	assert.Nil(t, best)
	assert.Zero(t, fit)

	scores, err := e.Evaluate(pop)
	require.NoError(t, err)
	assert.Equal(t, []float64{500, 520, 520}, scores)

	best, fit = e.Best()
	assert.Equal(t, 520.0, fit)
	assert.True(t, best.Equal(first))

	// 最优个体是深拷贝
	first.Set(0, 0, 0, 2)
	best, _ = e.Best()
	assert.Equal(t, int64(1), best.Get(0, 0, 0))

	// Scores 不更新最优个体
	_, err = e.Scores(Population{singleRow(1, 2, 1, 2)})
	require.NoError(t, err)
	_, fit = e.Best()
	assert.Equal(t, 520.0, fit)

	_, err = e.Evaluate(nil)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}
