package model

import "time"

// DateLayout 日期键格式
const DateLayout = "2006-01-02"

// DayState 某一日期的完整派工状态
// 状态只通过生成新值改变，不原地修改
type DayState struct {
	Date       string            `json:"date"` // YYYY-MM-DD
	Reps       []*Representative `json:"reps"`
	Unassigned []*Job            `json:"unassigned"`
	Settings   Settings          `json:"settings"`
}

// NewDayState 创建当日状态，代表日程为空
func NewDayState(date string, reps []*Representative, settings Settings) *DayState {
	d := &DayState{
		Date:       date,
		Reps:       make([]*Representative, len(reps)),
		Unassigned: []*Job{},
		Settings:   settings,
	}
	for i, r := range reps {
		clone := r.Clone()
		clone.Schedule = NewSchedule()
		clone.Optimized = false
		d.Reps[i] = clone
	}
	return d
}

// Weekday 返回日期对应的星期键，日期无效返回空串
func (d *DayState) Weekday() string {
	t, err := time.Parse(DateLayout, d.Date)
	if err != nil {
		return ""
	}
	return WeekdayKey(t.Weekday())
}

// RepIndex 返回代表下标，不存在返回 -1
func (d *DayState) RepIndex(id string) int {
	for i, r := range d.Reps {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Rep 按ID获取代表
func (d *DayState) Rep(id string) *Representative {
	if i := d.RepIndex(id); i >= 0 {
		return d.Reps[i]
	}
	return nil
}

// JobLocation 任务所在位置
type JobLocation struct {
	RepIndex  int // -1 表示在待分配队列
	SlotIndex int
	JobIndex  int
}

// LocateJob 查找任务位置
func (d *DayState) LocateJob(id string) (JobLocation, bool) {
	for i, j := range d.Unassigned {
		if j.ID == id {
			return JobLocation{RepIndex: -1, SlotIndex: -1, JobIndex: i}, true
		}
	}
	for ri, r := range d.Reps {
		for si := range r.Schedule.Slots {
			for ji, j := range r.Schedule.Slots[si].Jobs {
				if j.ID == id {
					return JobLocation{RepIndex: ri, SlotIndex: si, JobIndex: ji}, true
				}
			}
		}
	}
	return JobLocation{}, false
}

// AssignedCount 返回已分配任务总数
func (d *DayState) AssignedCount() int {
	n := 0
	for _, r := range d.Reps {
		n += r.JobCount()
	}
	return n
}

// Clone 深拷贝当日状态
func (d *DayState) Clone() *DayState {
	if d == nil {
		return nil
	}
	clone := &DayState{
		Date:       d.Date,
		Unassigned: CloneJobs(d.Unassigned),
		Settings:   d.Settings,
	}
	if clone.Unassigned == nil {
		clone.Unassigned = []*Job{}
	}
	if d.Reps != nil {
		clone.Reps = make([]*Representative, len(d.Reps))
		for i, r := range d.Reps {
			clone.Reps[i] = r.Clone()
		}
	}
	return clone
}
