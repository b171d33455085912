package domain

import "time"

type SchedulingResultCell struct {
	Period      int    `json:"period"` // 从 1 开始
	Day         int    `json:"day"`    // 从 0 开始
	Slot        int    `json:"slot"`   // 从 0 开始
	SubjectID   int64  `json:"subjectID"`
	SubjectName string `json:"subjectName"` // 只在读取时填充
	Teacher     string `json:"teacher"`
}

type SchedulingResult struct {
	ID          int64                  `json:"id"`
	RunID       int64                  `json:"runID"`
	Fitness     float64                `json:"fitness"`
	Conflicts   int                    `json:"conflicts"`
	GapScore    int                    `json:"gapScore"`
	Consecutive int                    `json:"consecutive"`
	Generation  int                    `json:"generation"` // 最优个体被找到时的代数
	Cells       []SchedulingResultCell `json:"cells"`
	CreatedAt   time.Time              `json:"createdAt"`
	Version     int32                  `json:"-"`
}
