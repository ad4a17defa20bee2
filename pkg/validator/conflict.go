// Package validator 提供当日派工状态的不变量校验
package validator

import (
	"fmt"
	"sort"

	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/region"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictDuplicateJob   ConflictType = "duplicate_job"    // 任务出现在多处
	ConflictRepCapacity    ConflictType = "rep_capacity"     // 超过每人上限
	ConflictSlotCapacity   ConflictType = "slot_capacity"    // 超过时段容量
	ConflictCityCount      ConflictType = "city_count"       // 城市数超限
	ConflictTerritory      ConflictType = "territory"        // 区域不符
	ConflictAvailability   ConflictType = "availability"     // 不可用时段
	ConflictOptimized      ConflictType = "optimized_layout" // 已优化日程结构异常
	ConflictAssignmentMeta ConflictType = "assignment_meta"  // 分配元数据与位置不一致
)

// Conflict 冲突信息
type Conflict struct {
	Type     ConflictType `json:"type"`
	Severity string       `json:"severity"` // error/warning
	RepID    string       `json:"rep_id,omitempty"`
	SlotID   string       `json:"slot_id,omitempty"`
	JobID    string       `json:"job_id,omitempty"`
	Message  string       `json:"message"`
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	CheckTerritory    bool // 是否检查区域
	CheckAvailability bool // 是否检查可用性
	CheckMetadata     bool // 是否检查分配元数据
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		CheckTerritory:    true,
		CheckAvailability: true,
		CheckMetadata:     true,
	}
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &ConflictDetector{config: config}
}

// DetectAll 检测所有冲突
// 手动分配允许超出容量，因此容量类冲突为警告
func (d *ConflictDetector) DetectAll(state *model.DayState) []Conflict {
	if state == nil {
		return nil
	}
	var conflicts []Conflict

	conflicts = append(conflicts, d.detectDuplicates(state)...)
	weekday := state.Weekday()
	for _, rep := range state.Reps {
		conflicts = append(conflicts, d.DetectForRep(rep, &state.Settings, weekday)...)
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Severity == "error" && conflicts[j].Severity != "error"
	})
	return conflicts
}

// DetectForRep 检测单个代表的冲突
func (d *ConflictDetector) DetectForRep(rep *model.Representative, settings *model.Settings, weekday string) []Conflict {
	var conflicts []Conflict

	if n := rep.JobCount(); n > settings.MaxJobsPerRep {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictRepCapacity,
			Severity: "warning",
			RepID:    rep.ID,
			Message:  fmt.Sprintf("%s 有 %d 个任务，超过上限 %d", rep.Name, n, settings.MaxJobsPerRep),
		})
	}

	if cities := rep.Cities(); len(cities) > settings.MaxCitiesPerRep {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictCityCount,
			Severity: "warning",
			RepID:    rep.ID,
			Message:  fmt.Sprintf("%s 服务 %d 个城市，超过上限 %d", rep.Name, len(cities), settings.MaxCitiesPerRep),
		})
	}

	if rep.Optimized {
		conflicts = append(conflicts, d.detectOptimizedLayout(rep)...)
	}

	for _, slot := range rep.Schedule.Slots {
		// 已优化日程全部任务集中在首个时段
		if !rep.Optimized && !settings.AllowDoubleBooking && len(slot.Jobs) > settings.MaxJobsPerSlot {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictSlotCapacity,
				Severity: "warning",
				RepID:    rep.ID,
				SlotID:   slot.ID,
				Message:  fmt.Sprintf("时段 %s 有 %d 个任务，超过上限 %d", slot.Label, len(slot.Jobs), settings.MaxJobsPerSlot),
			})
		}
		if d.config.CheckAvailability && !rep.Optimized && len(slot.Jobs) > 0 && rep.IsUnavailable(weekday, slot.ID) {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictAvailability,
				Severity: "warning",
				RepID:    rep.ID,
				SlotID:   slot.ID,
				Message:  fmt.Sprintf("%s 在 %s 不可用", rep.Name, slot.Label),
			})
		}
		for _, job := range slot.Jobs {
			conflicts = append(conflicts, d.detectJob(rep, slot.ID, job, settings)...)
		}
	}

	return conflicts
}

func (d *ConflictDetector) detectJob(rep *model.Representative, slotID string, job *model.Job, settings *model.Settings) []Conflict {
	var conflicts []Conflict
	if d.config.CheckTerritory && !region.Eligible(rep, job.City, settings.AllowRegionalInMetro) {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictTerritory,
			Severity: "warning",
			RepID:    rep.ID,
			SlotID:   slotID,
			JobID:    job.ID,
			Message:  fmt.Sprintf("%s 不在 %s 的服务区域", job.City, rep.Name),
		})
	}
	if d.config.CheckMetadata && job.AssignedRepID != "" && job.AssignedRepID != rep.ID {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictAssignmentMeta,
			Severity: "warning",
			RepID:    rep.ID,
			SlotID:   slotID,
			JobID:    job.ID,
			Message:  fmt.Sprintf("任务记录的代表为 %s", job.AssignedRepID),
		})
	}
	return conflicts
}

// detectDuplicates 任务ID只能出现在队列或某一个 (代表, 时段)
func (d *ConflictDetector) detectDuplicates(state *model.DayState) []Conflict {
	var conflicts []Conflict
	seen := make(map[string]string)
	record := func(jobID, where string) {
		if prev, ok := seen[jobID]; ok {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictDuplicateJob,
				Severity: "error",
				JobID:    jobID,
				Message:  fmt.Sprintf("任务同时出现在 %s 和 %s", prev, where),
			})
			return
		}
		seen[jobID] = where
	}

	for _, j := range state.Unassigned {
		record(j.ID, "待分配队列")
	}
	for _, rep := range state.Reps {
		for _, slot := range rep.Schedule.Slots {
			for _, j := range slot.Jobs {
				record(j.ID, rep.ID+"/"+slot.ID)
			}
		}
	}
	return conflicts
}

func (d *ConflictDetector) detectOptimizedLayout(rep *model.Representative) []Conflict {
	var conflicts []Conflict
	for i, slot := range rep.Schedule.Slots {
		if i > 0 && len(slot.Jobs) > 0 {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictOptimized,
				Severity: "error",
				RepID:    rep.ID,
				SlotID:   slot.ID,
				Message:  "已优化日程的任务必须集中在首个时段",
			})
		}
	}
	return conflicts
}

// HasErrors 是否存在错误级冲突
func HasErrors(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == "error" {
			return true
		}
	}
	return false
}

// Summary 按类型统计冲突
func Summary(conflicts []Conflict) map[ConflictType]int {
	out := make(map[ConflictType]int)
	for _, c := range conflicts {
		out[c.Type]++
	}
	return out
}
