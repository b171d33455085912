package domain

import "time"

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// Finished 表示运行是否已经结束（无论成功与否）
func (s RunStatus) Finished() bool {
	return s == RunStatusCompleted || s == RunStatusCancelled || s == RunStatusFailed
}

type SelectionMethod string

const (
	SelectionRoulette   SelectionMethod = "roulette"
	SelectionTournament SelectionMethod = "tournament"
)

// RunParameters 为一次自动排课使用的遗传算法参数
type RunParameters struct {
	PopulationSize  int             `json:"populationSize" validate:"required,min=1,max=5000"`
	Generations     int             `json:"generations" validate:"required,min=1"`
	CrossoverRate   float64         `json:"crossoverRate" validate:"gte=0,lte=1"`
	MutationRate    float64         `json:"mutationRate" validate:"gte=0,lte=1"`
	EliteCount      int             `json:"eliteCount" validate:"gte=0,ltefield=PopulationSize"`
	SelectionMethod SelectionMethod `json:"selectionMethod" validate:"required,oneof=roulette tournament"`
	TournamentSize  int             `json:"tournamentSize" validate:"required_if=SelectionMethod tournament,omitempty,min=1,ltefield=PopulationSize"`
	NumPeriods      int             `json:"numPeriods" validate:"required,min=1"`
	NumDays         int             `json:"numDays" validate:"required,min=1,max=7"`
	NumSlots        int             `json:"numSlots" validate:"required,min=1"`
	Seed            int64           `json:"seed"`
}

type SchedulingRun struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Parameters  RunParameters `json:"parameters"`
	Status      RunStatus     `json:"status"`
	BestFitness *float64      `json:"bestFitness"` // 运行结束前为空
	Message     string        `json:"message"`     // 失败原因或取消说明
	CreatedBy   int64         `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	FinishedAt  *time.Time    `json:"finishedAt"`
	Version     int32         `json:"-"`
}

// ScheduleRunMessage 为投递到排课队列中的消息
type ScheduleRunMessage struct {
	RunID int64 `json:"runID"`
}

// GenerationProgress 为每一代结束后写入 redis 的进度信息
type GenerationProgress struct {
	RunID       int64     `json:"runID"`
	Generation  int       `json:"generation"`
	Generations int       `json:"generations"`
	BestFitness float64   `json:"bestFitness"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
