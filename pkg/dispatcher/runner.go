package dispatcher

import (
	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/swap"
)

// OperationType 状态转换类型
type OperationType string

// 支持的操作
const (
	OpAssignAll     OperationType = "assign_all"
	OpAssignRep     OperationType = "assign_rep"
	OpDistribute    OperationType = "distribute"
	OpOptimize      OperationType = "optimize"
	OpUnoptimize    OperationType = "unoptimize"
	OpSwap          OperationType = "swap"
	OpAddJobs       OperationType = "add_jobs"
	OpAssign        OperationType = "assign"
	OpUnassign      OperationType = "unassign"
	OpMove          OperationType = "move"
	OpClearRep      OperationType = "clear_rep"
	OpLock          OperationType = "lock"
	OpApplySettings OperationType = "apply_settings"
)

// Operation 一次状态转换请求
type Operation struct {
	Type     OperationType   `json:"type"`
	RepID    string          `json:"rep_id,omitempty"`
	OtherRep string          `json:"other_rep_id,omitempty"` // swap 的另一方
	JobID    string          `json:"job_id,omitempty"`
	SlotID   string          `json:"slot_id,omitempty"`
	Jobs     []*model.Job    `json:"jobs,omitempty"`
	Locked   bool            `json:"locked,omitempty"`
	Settings *model.Settings `json:"settings,omitempty"`
}

// Run 执行一次状态转换
// 返回的状态与输入为同一指针时表示无操作；报告仅对批量分配模式非空
func (e *DispatchEngine) Run(state *model.DayState, op Operation) (*model.DayState, *Report, error) {
	if err := checkState(state); err != nil {
		return nil, nil, err
	}

	switch op.Type {
	case OpAssignAll:
		return e.AssignAll(state)
	case OpAssignRep:
		return e.AssignToRep(state, op.RepID)
	case OpDistribute:
		return e.Distribute(state)
	case OpOptimize:
		return e.optimizer.Optimize(state, op.RepID), nil, nil
	case OpUnoptimize:
		return e.optimizer.Unoptimize(state, op.RepID), nil, nil
	case OpSwap:
		return swap.SwapSchedules(state, op.RepID, op.OtherRep), nil, nil
	case OpAddJobs:
		return e.AddJobs(state, op.Jobs), nil, nil
	case OpAssign:
		return e.AssignManual(state, op.JobID, op.RepID, op.SlotID), nil, nil
	case OpUnassign:
		return e.Unassign(state, op.JobID), nil, nil
	case OpMove:
		return e.MoveJob(state, op.JobID, op.RepID, op.SlotID), nil, nil
	case OpClearRep:
		return e.ClearRep(state, op.RepID), nil, nil
	case OpLock:
		return e.SetLocked(state, op.RepID, op.Locked), nil, nil
	case OpApplySettings:
		if op.Settings == nil {
			return nil, nil, apperrors.InvalidInput("settings", "required")
		}
		next, err := e.ApplySettings(state, *op.Settings)
		return next, nil, err
	default:
		return nil, nil, apperrors.UnknownOperation(string(op.Type))
	}
}
