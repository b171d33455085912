package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimetableIndexing(t *testing.T) {
	tt := NewTimetable(Dimensions{NumPeriods: 2, NumDays: 3, NumSlots: 4})

	assert.Equal(t, 5, tt.index(0, 1, 1))
	assert.Equal(t, 12+2*4+3, tt.index(1, 2, 3))

	tt.Set(1, 2, 3, 42)
	assert.Equal(t, int64(42), tt.Get(1, 2, 3))
	assert.False(t, tt.IsEmpty(1, 2, 3))
	assert.True(t, tt.IsEmpty(0, 2, 3))
	assert.Equal(t, 11, tt.CountEmpty(1))
	assert.Equal(t, 12, tt.CountEmpty(0))

	row := tt.Row(1)
	require.Len(t, row, 12)
	assert.Equal(t, int64(42), row[11])
}

func TestTimetableCloneIsIndependent(t *testing.T) {
	tt := NewTimetable(Dimensions{NumPeriods: 1, NumDays: 1, NumSlots: 4})
	tt.Set(0, 0, 0, 7)

	clone := tt.Clone()
	require.True(t, clone.Equal(tt))

	clone.Set(0, 0, 0, 8)
	assert.Equal(t, int64(7), tt.Get(0, 0, 0))
	assert.False(t, clone.Equal(tt))

	// Row 返回的是副本
	row := tt.Row(0)
	row[0] = 99
	assert.Equal(t, int64(7), tt.Get(0, 0, 0))
}

func TestSwapRowKeepsOwnStorage(t *testing.T) {
	dims := Dimensions{NumPeriods: 2, NumDays: 1, NumSlots: 2}
	a := NewTimetable(dims)
	b := NewTimetable(dims)
	a.Set(1, 0, 0, 1)
	b.Set(1, 0, 1, 2)

	a.swapRow(b, 1)
	assert.Equal(t, []int64{0, 2}, a.Row(1))
	assert.Equal(t, []int64{1, 0}, b.Row(1))

	b.Set(1, 0, 0, 5)
	assert.Equal(t, []int64{0, 2}, a.Row(1))
}

func TestParametersValidate(t *testing.T) {
	valid := Parameters{
		PopulationSize: 10,
		CrossoverRate:  0.85,
		MutationRate:   0.2,
		EliteCount:     2,
		Dimensions:     Dimensions{NumPeriods: 1, NumDays: 5, NumSlots: 4},
	}
	require.NoError(t, valid.validate())

	cases := map[string]func(p *Parameters){
		"population":     func(p *Parameters) { p.PopulationSize = 0 },
		"crossover low":  func(p *Parameters) { p.CrossoverRate = -0.1 },
		"mutation high":  func(p *Parameters) { p.MutationRate = 1.5 },
		"elite too many": func(p *Parameters) { p.EliteCount = 11 },
		"elite negative": func(p *Parameters) { p.EliteCount = -1 },
		"dimensions":     func(p *Parameters) { p.Dimensions.NumSlots = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			require.ErrorIs(t, p.validate(), ErrInvalidConfiguration)
		})
	}
}
