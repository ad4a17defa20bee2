// Package route 对代表已分配的任务排定拜访顺序
package route

import (
	"fmt"
	"math"
	"sort"

	"github.com/roofdispatch/roofdispatch/pkg/geo"
	"github.com/roofdispatch/roofdispatch/pkg/logger"
	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/timeframe"
)

const (
	// DayStart 每日开始时间（分钟）
	DayStart = 8 * 60
	// JobDuration 每个任务的固定时长（分钟）
	JobDuration = 90

	noHour = 24 // 无法解析时间的任务排在最后
)

// Optimizer 路线优化器
type Optimizer struct {
	parser timeframe.Parser
	coords geo.Lookup
	logger *logger.DispatchLogger
}

// NewOptimizer 创建路线优化器
func NewOptimizer(parser timeframe.Parser, coords geo.Lookup) *Optimizer {
	if parser == nil {
		parser = timeframe.Default
	}
	if coords == nil {
		coords = geo.None{}
	}
	return &Optimizer{
		parser: parser,
		coords: coords,
		logger: logger.NewDispatchLogger(),
	}
}

// BufferMinutes 任务间的行车缓冲，任务越少缓冲越大
func BufferMinutes(jobs int) int {
	switch {
	case jobs <= 3:
		return 30
	case jobs <= 5:
		return 20
	case jobs <= 8:
		return 15
	default:
		return 10
	}
}

// Optimize 重排代表的全部任务并冻结为单一时段
// 代表不存在或日程为空时原样返回输入
func (o *Optimizer) Optimize(state *model.DayState, repID string) *model.DayState {
	if state == nil {
		return state
	}
	idx := state.RepIndex(repID)
	if idx < 0 || state.Reps[idx].JobCount() == 0 {
		return state
	}

	next := state.Clone()
	rep := next.Reps[idx]
	jobs := rep.Schedule.Jobs()
	buffer := BufferMinutes(len(jobs))

	ordered := o.Sequence(rep, jobs)
	stampLabels(ordered, buffer)

	for i := range rep.Schedule.Slots {
		rep.Schedule.Slots[i].Jobs = []*model.Job{}
	}
	rep.Schedule.Slots[0].Jobs = ordered
	rep.Optimized = true

	o.logger.RouteOptimized(rep.ID, len(ordered), buffer)
	return next
}

// Sequence 按要求的开始小时分桶，桶内从常驻地出发做最近邻遍历
// 参考点跨桶延续；无坐标的任务距离视为无穷大，平局保持输入顺序
func (o *Optimizer) Sequence(rep *model.Representative, jobs []*model.Job) []*model.Job {
	buckets := make(map[int][]*model.Job)
	hours := make([]int, 0)
	for _, j := range jobs {
		h := noHour
		if w, ok := o.parser.Window(j.Timeframe); ok {
			h = w.StartHour()
		}
		if _, seen := buckets[h]; !seen {
			hours = append(hours, h)
		}
		buckets[h] = append(buckets[h], j)
	}
	sort.Ints(hours)

	ref, hasRef := geo.HomeCoordinate(o.coords, rep)
	out := make([]*model.Job, 0, len(jobs))
	for _, h := range hours {
		remaining := append([]*model.Job(nil), buckets[h]...)
		for len(remaining) > 0 {
			minIdx, minDist := 0, math.Inf(1)
			for i, j := range remaining {
				d := math.Inf(1)
				if c, ok := geo.JobCoordinate(o.coords, j); ok && hasRef {
					d = ref.DistanceMiles(c)
				}
				if d < minDist {
					minIdx, minDist = i, d
				}
			}
			chosen := remaining[minIdx]
			out = append(out, chosen)
			if c, ok := geo.JobCoordinate(o.coords, chosen); ok {
				ref, hasRef = c, true
			}
			remaining = append(remaining[:minIdx], remaining[minIdx+1:]...)
		}
	}
	return out
}

// Unoptimize 将冻结的任务按原始时间段放回对应时段（默认第一个时段），清除时间标签
// 代表不存在或未优化时原样返回输入
func (o *Optimizer) Unoptimize(state *model.DayState, repID string) *model.DayState {
	if state == nil {
		return state
	}
	idx := state.RepIndex(repID)
	if idx < 0 || !state.Reps[idx].Optimized {
		return state
	}

	next := state.Clone()
	rep := next.Reps[idx]
	jobs := rep.Schedule.Jobs()
	for i := range rep.Schedule.Slots {
		rep.Schedule.Slots[i].Jobs = []*model.Job{}
	}
	for _, j := range jobs {
		j.RouteLabel = ""
		si := 0
		if id, ok := o.parser.Slot(j.Timeframe); ok {
			if i := rep.Schedule.SlotIndex(id); i >= 0 {
				si = i
			}
		}
		rep.Schedule.Slots[si].Jobs = append(rep.Schedule.Slots[si].Jobs, j)
	}
	rep.Optimized = false
	return next
}

// stampLabels 从每日开始时间起依次写入时间标签
func stampLabels(jobs []*model.Job, buffer int) {
	t := DayStart
	for _, j := range jobs {
		j.RouteLabel = fmt.Sprintf("%s - %s", clock(t), clock(t+JobDuration))
		t += JobDuration + buffer
	}
}

// clock 格式化为 "8:00am"
func clock(minutes int) string {
	h, m := (minutes/60)%24, minutes%60
	suffix := "am"
	if h >= 12 {
		suffix = "pm"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d%s", h12, m, suffix)
}
