// Package dispatcher 提供派工分配引擎
package dispatcher

import (
	"sort"
	"time"

	"github.com/roofdispatch/roofdispatch/pkg/dispatcher/constraint"
	"github.com/roofdispatch/roofdispatch/pkg/dispatcher/route"
	"github.com/roofdispatch/roofdispatch/pkg/dispatcher/scorer"
	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/geo"
	"github.com/roofdispatch/roofdispatch/pkg/logger"
	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/region"
	"github.com/roofdispatch/roofdispatch/pkg/timeframe"
)

// QuotaBonus 代表未达最低配额时的临时加分，记录得分前扣除
const QuotaBonus = 1000.0

// 分配模式
const (
	ModeBalanced   = "balanced"
	ModeSingleRep  = "single_rep"
	ModeDistribute = "distribute"
)

// Recorder 批量分配结果记录器（指标）
type Recorder interface {
	RecordBatch(report *Report, duration time.Duration)
}

// DispatchEngine 派工引擎
// 所有操作都是纯函数：输入状态不被修改，返回新状态
type DispatchEngine struct {
	constraints []constraint.DispatchConstraint
	scorer      *scorer.Scorer
	parser      timeframe.Parser
	optimizer   *route.Optimizer
	logger      *logger.DispatchLogger
	recorder    Recorder
}

// NewDispatchEngine 创建派工引擎，coords 可为 nil
func NewDispatchEngine(coords geo.Lookup) *DispatchEngine {
	return NewDispatchEngineWithConstraints(coords, constraint.DefaultDispatchConstraints())
}

// NewDispatchEngineWithConstraints 创建带自定义约束的派工引擎
func NewDispatchEngineWithConstraints(coords geo.Lookup, constraints []constraint.DispatchConstraint) *DispatchEngine {
	parser := timeframe.Default
	return &DispatchEngine{
		constraints: constraints,
		scorer:      scorer.New(parser, coords),
		parser:      parser,
		optimizer:   route.NewOptimizer(parser, coords),
		logger:      logger.NewDispatchLogger(),
	}
}

// SetRecorder 设置指标记录器
func (e *DispatchEngine) SetRecorder(r Recorder) {
	e.recorder = r
}

// Placement 一次分配
type Placement struct {
	JobID  string  `json:"job_id"`
	RepID  string  `json:"rep_id"`
	SlotID string  `json:"slot_id"`
	Score  float64 `json:"score"`
}

// UnplacedJob 未能分配的任务
type UnplacedJob struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason"`
}

// Report 批量分配报告
type Report struct {
	Mode         string        `json:"mode"`
	Placements   []Placement   `json:"placements"`
	Unplaced     []UnplacedJob `json:"unplaced,omitempty"`
	Disqualified int           `json:"disqualified"`
}

// Changed 是否产生了分配
func (r *Report) Changed() bool {
	return r != nil && len(r.Placements) > 0
}

// checkState 编程错误（空状态、空名单、无效设置）直接中止整批
func checkState(state *model.DayState) error {
	if state == nil {
		return apperrors.ErrNilState
	}
	if state.Reps == nil {
		return apperrors.ErrNilRoster
	}
	return state.Settings.Validate()
}

// AssignAll 平衡模式：在全部可用代表中为每个任务选择最佳 (代表, 时段)
func (e *DispatchEngine) AssignAll(state *model.DayState) (*model.DayState, *Report, error) {
	if err := checkState(state); err != nil {
		return nil, nil, err
	}
	return e.run(state, ModeBalanced, func(rep *model.Representative) bool {
		return !rep.Locked && !rep.Optimized
	})
}

// AssignToRep 单代表模式：仅向指定代表分配，失败的任务留在队列
// 代表不存在、已锁定或已优化时原样返回输入
func (e *DispatchEngine) AssignToRep(state *model.DayState, repID string) (*model.DayState, *Report, error) {
	if err := checkState(state); err != nil {
		return nil, nil, err
	}
	rep := state.Rep(repID)
	if rep == nil || rep.Locked || rep.Optimized {
		return state, &Report{Mode: ModeSingleRep}, nil
	}
	return e.run(state, ModeSingleRep, func(r *model.Representative) bool {
		return r.ID == repID
	})
}

// run 贪心分配主循环：按排序后的队列反复扫描，直到一轮没有新的分配
// 先放下的任务可能让后面的城市变为相邻，单轮扫描不能保证结果稳定
func (e *DispatchEngine) run(state *model.DayState, mode string, active func(*model.Representative) bool) (*model.DayState, *Report, error) {
	start := time.Now()
	report := &Report{Mode: mode, Placements: []Placement{}}
	e.logger.StartBatch(mode, state.Date, len(state.Unassigned), len(state.Reps))

	next := state.Clone()
	weekday := next.Weekday()
	placed := make(map[string]bool)

	for {
		var unplaced []UnplacedJob
		disqualified, progress := 0, 0
		for _, job := range sortQueue(next.Unassigned) {
			if placed[job.ID] {
				continue
			}
			best, reason, disq := e.bestCandidate(next, job, weekday, active)
			disqualified += disq
			if best == nil {
				unplaced = append(unplaced, UnplacedJob{JobID: job.ID, Reason: reason})
				continue
			}

			rep := next.Reps[best.repIdx]
			slot := &rep.Schedule.Slots[best.slotIdx]
			attach(job, rep, best.breakdown)
			slot.Jobs = append(slot.Jobs, job)
			placed[job.ID] = true
			progress++

			report.Placements = append(report.Placements, Placement{
				JobID: job.ID, RepID: rep.ID, SlotID: slot.ID, Score: job.AssignedScore,
			})
			e.logger.Placed(job.ID, rep.ID, slot.ID, job.AssignedScore)
		}
		if progress == 0 || len(unplaced) == 0 {
			// 报告只反映最终仍留在队列中的任务
			report.Unplaced = unplaced
			report.Disqualified = disqualified
			break
		}
	}
	for _, u := range report.Unplaced {
		e.logger.Unplaced(u.JobID, u.Reason)
	}

	duration := time.Since(start)
	e.logger.BatchComplete(mode, duration, len(report.Placements), len(report.Unplaced))
	if e.recorder != nil {
		e.recorder.RecordBatch(report, duration)
	}

	if len(placed) == 0 {
		return state, report, nil
	}
	remaining := make([]*model.Job, 0, len(next.Unassigned)-len(placed))
	for _, j := range next.Unassigned {
		if !placed[j.ID] {
			remaining = append(remaining, j)
		}
	}
	next.Unassigned = remaining
	return next, report, nil
}

// candidate 候选 (代表, 时段)
type candidate struct {
	repIdx    int
	slotIdx   int
	breakdown model.Breakdown
	effective float64
}

// bestCandidate 在活跃代表中寻找得分最高的 (代表, 时段)，平局取最先者
func (e *DispatchEngine) bestCandidate(state *model.DayState, job *model.Job, weekday string, active func(*model.Representative) bool) (*candidate, string, int) {
	var best *candidate
	reason := "没有可用代表"
	disqualified := 0

	for ri, rep := range state.Reps {
		if !active(rep) {
			continue
		}
		ctx := &constraint.DispatchContext{Settings: &state.Settings, Weekday: weekday, Parser: e.parser}
		if v := constraint.Check(e.constraints, constraint.ScopeRep, job, rep, ctx); v != nil {
			reason = v.Reason
			e.logger.ConstraintViolation(v.Constraint, v.Reason)
			continue
		}

		bonus := 0.0
		if rep.JobCount() < state.Settings.MinJobsPerRep {
			bonus = QuotaBonus
		}

		for si := range rep.Schedule.Slots {
			ctx.Slot = &rep.Schedule.Slots[si]
			if v := constraint.Check(e.constraints, constraint.ScopeSlot, job, rep, ctx); v != nil {
				reason = v.Reason
				continue
			}

			b := e.scorer.Score(job, rep, ctx.Slot.ID, &state.Settings, weekday)
			if b.IsDisqualified() {
				disqualified++
				reason = b.Reason
				e.logger.Disqualified(job.ID, rep.ID, b.Reason)
				// 取消资格与时段无关
				break
			}
			if b.Final <= 0 {
				continue
			}
			if eff := b.Final + bonus; best == nil || eff > best.effective {
				best = &candidate{repIdx: ri, slotIdx: si, breakdown: b, effective: eff}
			}
		}
	}
	return best, reason, disqualified
}

// Distribute 快速铺单：为日程为空的可用代表各分配一个区域合格的任务，不评分
func (e *DispatchEngine) Distribute(state *model.DayState) (*model.DayState, *Report, error) {
	if err := checkState(state); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	report := &Report{Mode: ModeDistribute, Placements: []Placement{}}

	next := state.Clone()
	weekday := next.Weekday()

	for _, rep := range next.Reps {
		if rep.Locked || rep.Optimized || rep.JobCount() > 0 {
			continue
		}
		for qi, job := range next.Unassigned {
			if !region.Eligible(rep, job.City, next.Settings.AllowRegionalInMetro) {
				continue
			}
			si := e.bootstrapSlot(rep, job, &next.Settings, weekday)
			if si < 0 {
				break
			}
			slot := &rep.Schedule.Slots[si]
			job.AssignedRepID = rep.ID
			job.AssignedRepName = rep.Name
			slot.Jobs = append(slot.Jobs, job)
			next.Unassigned = append(next.Unassigned[:qi:qi], next.Unassigned[qi+1:]...)
			report.Placements = append(report.Placements, Placement{JobID: job.ID, RepID: rep.ID, SlotID: slot.ID})
			e.logger.Placed(job.ID, rep.ID, slot.ID, 0)
			break
		}
	}

	if e.recorder != nil {
		e.recorder.RecordBatch(report, time.Since(start))
	}
	if !report.Changed() {
		return state, report, nil
	}
	return next, report, nil
}

// bootstrapSlot 优先要求的时段，否则取第一个通过时段级约束的时段
func (e *DispatchEngine) bootstrapSlot(rep *model.Representative, job *model.Job, settings *model.Settings, weekday string) int {
	ctx := &constraint.DispatchContext{Settings: settings, Weekday: weekday, Parser: e.parser}
	open := func(i int) bool {
		ctx.Slot = &rep.Schedule.Slots[i]
		return constraint.Check(e.constraints, constraint.ScopeSlot, job, rep, ctx) == nil
	}
	if id, ok := e.parser.Slot(job.Timeframe); ok {
		if i := rep.Schedule.SlotIndex(id); i >= 0 && open(i) {
			return i
		}
	}
	for i := range rep.Schedule.Slots {
		if open(i) {
			return i
		}
	}
	return -1
}

// Preview 评分预览：不提交分配，返回明细与全部约束违反
func (e *DispatchEngine) Preview(state *model.DayState, jobID, repID, slotID string) (*model.Breakdown, []constraint.Violation, error) {
	if err := checkState(state); err != nil {
		return nil, nil, err
	}
	loc, ok := state.LocateJob(jobID)
	if !ok {
		return nil, nil, apperrors.NotFound("job", jobID)
	}
	rep := state.Rep(repID)
	if rep == nil {
		return nil, nil, apperrors.NotFound("representative", repID)
	}
	si := rep.Schedule.SlotIndex(slotID)
	if si < 0 {
		return nil, nil, apperrors.NotFound("slot", slotID)
	}

	job := jobAt(state, loc)
	weekday := state.Weekday()
	ctx := &constraint.DispatchContext{Settings: &state.Settings, Weekday: weekday, Parser: e.parser, Slot: &rep.Schedule.Slots[si]}
	violations := make([]constraint.Violation, 0)
	for _, c := range e.constraints {
		if ok, reason := c.Evaluate(job, rep, ctx); !ok {
			violations = append(violations, constraint.Violation{Constraint: c.Name(), Reason: reason})
		}
	}

	b := e.scorer.Score(job, rep, slotID, &state.Settings, weekday)
	return &b, violations, nil
}

// sortQueue 按价值降序，同价值按城市自东向西排序（稳定排序）
func sortQueue(jobs []*model.Job) []*model.Job {
	out := make([]*model.Job, len(jobs))
	copy(out, jobs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return region.OrderIndex(out[i].City) < region.OrderIndex(out[j].City)
	})
	return out
}

// attach 写入分配元数据
func attach(job *model.Job, rep *model.Representative, b model.Breakdown) {
	job.AssignedScore = b.Final
	job.Breakdown = &b
	job.AssignedRepID = rep.ID
	job.AssignedRepName = rep.Name
}

func jobAt(state *model.DayState, loc model.JobLocation) *model.Job {
	if loc.RepIndex < 0 {
		return state.Unassigned[loc.JobIndex]
	}
	return state.Reps[loc.RepIndex].Schedule.Slots[loc.SlotIndex].Jobs[loc.JobIndex]
}
