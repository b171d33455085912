package scheduler

import "errors"

// 以下错误都会使本次运行立即终止，调用方可以通过 errors.Is 判断具体类型
var (
	ErrInvalidConfiguration = errors.New("排课参数配置无效")
	ErrCapacityExceeded     = errors.New("学期总课时超过可排课时")
	ErrSelectionDegenerate  = errors.New("轮盘赌选择的概率分布无效")
	ErrNotFound             = errors.New("科目不存在")
)
