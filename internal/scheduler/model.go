package scheduler

import (
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

// Dimensions: 课表网格尺寸
type Dimensions struct {
	NumPeriods int // 学期数
	NumDays    int // 每周上课天数
	NumSlots   int // 每天课时数
}

// CellsPerPeriod 返回一个学期一周内可排的课时数
func (d Dimensions) CellsPerPeriod() int {
	return d.NumDays * d.NumSlots
}

func (d Dimensions) validate() error {
	if d.NumPeriods <= 0 || d.NumDays <= 0 || d.NumSlots <= 0 {
		return fmt.Errorf("%w: 课表尺寸 %dx%dx%d 必须均为正数", ErrInvalidConfiguration, d.NumPeriods, d.NumDays, d.NumSlots)
	}
	return nil
}

// 遗传算法参数
type Parameters struct {
	PopulationSize  int                    // 种群大小
	CrossoverRate   float64                // 交叉概率
	MutationRate    float64                // 变异概率
	EliteCount      int                    // 精英数量
	SelectionMethod domain.SelectionMethod // 选择方式
	TournamentSize  int                    // 锦标赛规模（仅锦标赛选择时使用）
	Dimensions      Dimensions
	Seed            int64 // 随机数种子
}

func (p *Parameters) validate() error {
	if p.PopulationSize <= 0 {
		return fmt.Errorf("%w: 种群大小必须为正数", ErrInvalidConfiguration)
	}
	if !(p.CrossoverRate >= 0 && p.CrossoverRate <= 1) {
		return fmt.Errorf("%w: 交叉概率 %v 不在 [0, 1] 内", ErrInvalidConfiguration, p.CrossoverRate)
	}
	if !(p.MutationRate >= 0 && p.MutationRate <= 1) {
		return fmt.Errorf("%w: 变异概率 %v 不在 [0, 1] 内", ErrInvalidConfiguration, p.MutationRate)
	}
	if p.EliteCount < 0 || p.EliteCount > p.PopulationSize {
		return fmt.Errorf("%w: 精英数量 %d 不在 [0, %d] 内", ErrInvalidConfiguration, p.EliteCount, p.PopulationSize)
	}
	return p.Dimensions.validate()
}

// Timetable: 一个个体，即一张完整的课表
// 所有格子保存在同一个切片中，下标为 period*days*slots + day*slots + slot
type Timetable struct {
	dims  Dimensions
	cells []int64
}

// NewTimetable 创建一张所有格子均为 0 的课表
func NewTimetable(dims Dimensions) *Timetable {
	return &Timetable{
		dims:  dims,
		cells: make([]int64, dims.NumPeriods*dims.CellsPerPeriod()),
	}
}

func (t *Timetable) Dimensions() Dimensions {
	return t.dims
}

func (t *Timetable) index(period, day, slot int) int {
	return period*t.dims.CellsPerPeriod() + day*t.dims.NumSlots + slot
}

func (t *Timetable) Get(period, day, slot int) int64 {
	return t.cells[t.index(period, day, slot)]
}

func (t *Timetable) Set(period, day, slot int, subjectID int64) {
	t.cells[t.index(period, day, slot)] = subjectID
}

func (t *Timetable) IsEmpty(period, day, slot int) bool {
	return t.Get(period, day, slot) == domain.EmptySubjectID
}

func (t *Timetable) CountEmpty(period int) int {
	cnt := 0
	for _, id := range t.row(period) {
		if id == domain.EmptySubjectID {
			cnt++
		}
	}
	return cnt
}

// Row 返回某个学期一周课表的副本
func (t *Timetable) Row(period int) []int64 {
	return slices.Clone(t.row(period))
}

// row 返回底层存储的视图，只在本包的算子内部使用
func (t *Timetable) row(period int) []int64 {
	n := t.dims.CellsPerPeriod()
	return t.cells[period*n : (period+1)*n : (period+1)*n]
}

// swapRow 交换两张课表中同一学期的整行内容，两者仍各自持有自己的存储
func (t *Timetable) swapRow(other *Timetable, period int) {
	a, b := t.row(period), other.row(period)
	for i := range a {
		a[i], b[i] = b[i], a[i]
	}
}

// Clone 深拷贝，返回的课表与原课表不共享任何存储
func (t *Timetable) Clone() *Timetable {
	return &Timetable{
		dims:  t.dims,
		cells: slices.Clone(t.cells),
	}
}

func (t *Timetable) Equal(other *Timetable) bool {
	if other == nil {
		return false
	}
	return t.dims == other.dims && slices.Equal(t.cells, other.cells)
}

// Population: 种群，个体之间互不共享存储
type Population []*Timetable

func (p Population) Clone() Population {
	res := make(Population, len(p))
	for i, t := range p {
		res[i] = t.Clone()
	}
	return res
}

// NewParameters 将排课任务中保存的参数转换为算法参数
func NewParameters(p domain.RunParameters) *Parameters {
	return &Parameters{
		PopulationSize:  p.PopulationSize,
		CrossoverRate:   p.CrossoverRate,
		MutationRate:    p.MutationRate,
		EliteCount:      p.EliteCount,
		SelectionMethod: p.SelectionMethod,
		TournamentSize:  p.TournamentSize,
		Dimensions: Dimensions{
			NumPeriods: p.NumPeriods,
			NumDays:    p.NumDays,
			NumSlots:   p.NumSlots,
		},
		Seed: p.Seed,
	}
}
