package dispatcher

import (
	"strings"

	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// 手动编辑操作。全部为纯函数，任何无效的ID都返回原输入（无操作）

// AddJobs 将任务加入待分配队列，缺少ID的任务自动生成ID
// 已存在的ID被跳过；任务上的分配元数据被清除
func (e *DispatchEngine) AddJobs(state *model.DayState, jobs []*model.Job) *model.DayState {
	if state == nil || len(jobs) == 0 {
		return state
	}
	next := state.Clone()
	seen := make(map[string]bool)
	added := 0
	for _, j := range jobs {
		if j == nil {
			continue
		}
		job := j.Clone()
		job.ID = strings.TrimSpace(job.ID)
		if job.ID == "" {
			job.ID = model.NewID()
		}
		if _, exists := next.LocateJob(job.ID); exists || seen[job.ID] {
			continue
		}
		seen[job.ID] = true
		job.ClearAssignment()
		next.Unassigned = append(next.Unassigned, job)
		added++
	}
	if added == 0 {
		return state
	}
	return next
}

// AssignManual 将队列中的任务手动分配到指定 (代表, 时段)
// 允许超过每人上限；目标代表已优化时为无操作
func (e *DispatchEngine) AssignManual(state *model.DayState, jobID, repID, slotID string) *model.DayState {
	if state == nil {
		return state
	}
	if loc, ok := state.LocateJob(jobID); !ok || loc.RepIndex >= 0 {
		return state
	}
	return e.MoveJob(state, jobID, repID, slotID)
}

// MoveJob 将任务移动到指定 (代表, 时段)，任务可在队列或任意日程中
// 目标为已优化代表或与当前位置相同时为无操作
func (e *DispatchEngine) MoveJob(state *model.DayState, jobID, repID, slotID string) *model.DayState {
	if state == nil {
		return state
	}
	loc, ok := state.LocateJob(jobID)
	if !ok {
		return state
	}
	ri := state.RepIndex(repID)
	if ri < 0 || state.Reps[ri].Optimized {
		return state
	}
	si := state.Reps[ri].Schedule.SlotIndex(slotID)
	if si < 0 || (loc.RepIndex == ri && loc.SlotIndex == si) {
		return state
	}

	next := state.Clone()
	job := detach(next, loc)
	rep := next.Reps[ri]
	b := e.scorer.Score(job, rep, slotID, &next.Settings, next.Weekday())
	attach(job, rep, b)
	job.RouteLabel = ""
	rep.Schedule.Slots[si].Jobs = append(rep.Schedule.Slots[si].Jobs, job)
	e.logger.Placed(job.ID, rep.ID, slotID, job.AssignedScore)
	return next
}

// Unassign 将已分配的任务放回队列末尾
func (e *DispatchEngine) Unassign(state *model.DayState, jobID string) *model.DayState {
	if state == nil {
		return state
	}
	loc, ok := state.LocateJob(jobID)
	if !ok || loc.RepIndex < 0 {
		return state
	}
	next := state.Clone()
	job := detach(next, loc)
	job.ClearAssignment()
	next.Unassigned = append(next.Unassigned, job)
	return next
}

// ClearRep 将代表的全部任务放回队列并解除优化
func (e *DispatchEngine) ClearRep(state *model.DayState, repID string) *model.DayState {
	if state == nil {
		return state
	}
	ri := state.RepIndex(repID)
	if ri < 0 || (state.Reps[ri].JobCount() == 0 && !state.Reps[ri].Optimized) {
		return state
	}
	next := state.Clone()
	rep := next.Reps[ri]
	for _, j := range rep.Schedule.Jobs() {
		j.ClearAssignment()
		next.Unassigned = append(next.Unassigned, j)
	}
	rep.Schedule = model.NewSchedule()
	rep.Optimized = false
	return next
}

// SetLocked 设置代表的锁定标记
func (e *DispatchEngine) SetLocked(state *model.DayState, repID string, locked bool) *model.DayState {
	if state == nil {
		return state
	}
	ri := state.RepIndex(repID)
	if ri < 0 || state.Reps[ri].Locked == locked {
		return state
	}
	next := state.Clone()
	next.Reps[ri].Locked = locked
	return next
}

// ApplySettings 应用新的派工设置，设置无效时返回错误
func (e *DispatchEngine) ApplySettings(state *model.DayState, settings model.Settings) (*model.DayState, error) {
	if state == nil {
		return nil, checkState(state)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if state.Settings == settings {
		return state, nil
	}
	next := state.Clone()
	next.Settings = settings
	return next, nil
}

// detach 从克隆状态中移除并返回任务
func detach(state *model.DayState, loc model.JobLocation) *model.Job {
	if loc.RepIndex < 0 {
		job := state.Unassigned[loc.JobIndex]
		state.Unassigned = append(state.Unassigned[:loc.JobIndex:loc.JobIndex], state.Unassigned[loc.JobIndex+1:]...)
		return job
	}
	slot := &state.Reps[loc.RepIndex].Schedule.Slots[loc.SlotIndex]
	job := slot.Jobs[loc.JobIndex]
	slot.Jobs = append(slot.Jobs[:loc.JobIndex:loc.JobIndex], slot.Jobs[loc.JobIndex+1:]...)
	return job
}
