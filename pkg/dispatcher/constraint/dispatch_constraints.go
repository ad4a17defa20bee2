// Package constraint 提供派工硬约束（评分前的预过滤）
package constraint

import (
	"fmt"

	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/region"
	"github.com/roofdispatch/roofdispatch/pkg/timeframe"
)

// Scope 约束作用范围
type Scope string

const (
	ScopeRep  Scope = "rep"  // 代表级：与时段无关
	ScopeSlot Scope = "slot" // 时段级：针对目标时段
)

// DispatchConstraint 派工约束接口
type DispatchConstraint interface {
	Name() string
	Scope() Scope
	Evaluate(job *model.Job, rep *model.Representative, ctx *DispatchContext) (bool, string)
}

// DispatchContext 派工上下文
type DispatchContext struct {
	Settings *model.Settings
	Weekday  string           // 当日星期键
	Slot     *model.Slot      // 目标时段，代表级约束为 nil
	Parser   timeframe.Parser // 时间段解析
}

// BaseDispatchConstraint 基础派工约束
type BaseDispatchConstraint struct {
	name  string
	scope Scope
}

func (b *BaseDispatchConstraint) Name() string { return b.name }
func (b *BaseDispatchConstraint) Scope() Scope { return b.scope }

// =========================================
// 1. TerritoryConstraint 区域资格
// =========================================
type TerritoryConstraint struct {
	BaseDispatchConstraint
}

func NewTerritoryConstraint() *TerritoryConstraint {
	return &TerritoryConstraint{
		BaseDispatchConstraint: BaseDispatchConstraint{name: "Territory", scope: ScopeRep},
	}
}

func (c *TerritoryConstraint) Evaluate(job *model.Job, rep *model.Representative, ctx *DispatchContext) (bool, string) {
	if region.Eligible(rep, job.City, ctx.Settings.AllowRegionalInMetro) {
		return true, ""
	}
	return false, fmt.Sprintf("城市 %s 不在代表服务区域内", job.City)
}

// =========================================
// 2. ClusterConstraint 城市数量与邻接
// =========================================
type ClusterConstraint struct {
	BaseDispatchConstraint
}

func NewClusterConstraint() *ClusterConstraint {
	return &ClusterConstraint{
		BaseDispatchConstraint: BaseDispatchConstraint{name: "Cluster", scope: ScopeRep},
	}
}

func (c *ClusterConstraint) Evaluate(job *model.Job, rep *model.Representative, ctx *DispatchContext) (bool, string) {
	city := job.CityKey()
	cities := rep.Cities()
	if city == "" || cities[city] {
		return true, ""
	}
	if len(cities) >= ctx.Settings.MaxCitiesPerRep {
		return false, fmt.Sprintf("已服务 %d 个城市，达到上限", len(cities))
	}
	if len(cities) > 0 && !region.AdjacentToAny(city, cities) {
		return false, fmt.Sprintf("城市 %s 与已服务城市不相邻", job.City)
	}
	return true, ""
}

// =========================================
// 3. RepCapacityConstraint 每人任务上限
// =========================================
type RepCapacityConstraint struct {
	BaseDispatchConstraint
}

func NewRepCapacityConstraint() *RepCapacityConstraint {
	return &RepCapacityConstraint{
		BaseDispatchConstraint: BaseDispatchConstraint{name: "RepCapacity", scope: ScopeRep},
	}
}

func (c *RepCapacityConstraint) Evaluate(job *model.Job, rep *model.Representative, ctx *DispatchContext) (bool, string) {
	if rep.JobCount() >= ctx.Settings.MaxJobsPerRep {
		return false, "代表今日任务数已满"
	}
	return true, ""
}

// =========================================
// 4. SlotCapacityConstraint 时段容量
// =========================================
type SlotCapacityConstraint struct {
	BaseDispatchConstraint
}

func NewSlotCapacityConstraint() *SlotCapacityConstraint {
	return &SlotCapacityConstraint{
		BaseDispatchConstraint: BaseDispatchConstraint{name: "SlotCapacity", scope: ScopeSlot},
	}
}

func (c *SlotCapacityConstraint) Evaluate(job *model.Job, rep *model.Representative, ctx *DispatchContext) (bool, string) {
	if ctx.Settings.AllowDoubleBooking || ctx.Slot == nil {
		return true, ""
	}
	if len(ctx.Slot.Jobs) >= ctx.Settings.MaxJobsPerSlot {
		return false, "时段已满"
	}
	return true, ""
}

// =========================================
// 5. AvailabilityConstraint 声明的可用时段
// =========================================
type AvailabilityConstraint struct {
	BaseDispatchConstraint
}

func NewAvailabilityConstraint() *AvailabilityConstraint {
	return &AvailabilityConstraint{
		BaseDispatchConstraint: BaseDispatchConstraint{name: "Availability", scope: ScopeSlot},
	}
}

func (c *AvailabilityConstraint) Evaluate(job *model.Job, rep *model.Representative, ctx *DispatchContext) (bool, string) {
	if ctx.Slot == nil || !rep.IsUnavailable(ctx.Weekday, ctx.Slot.ID) {
		return true, ""
	}
	// 允许越界时仍要求当天至少有一个可用时段
	if ctx.Settings.AllowAssignOutsideAvailability && rep.AvailableSlotCount(ctx.Weekday) > 0 {
		return true, ""
	}
	return false, "时段不在代表可用时间内"
}

// =========================================
// 6. StrictTimeframeConstraint 严格时间段
// =========================================
type StrictTimeframeConstraint struct {
	BaseDispatchConstraint
}

func NewStrictTimeframeConstraint() *StrictTimeframeConstraint {
	return &StrictTimeframeConstraint{
		BaseDispatchConstraint: BaseDispatchConstraint{name: "StrictTimeframe", scope: ScopeSlot},
	}
}

func (c *StrictTimeframeConstraint) Evaluate(job *model.Job, rep *model.Representative, ctx *DispatchContext) (bool, string) {
	if !ctx.Settings.StrictTimeframe || ctx.Slot == nil || ctx.Parser == nil {
		return true, ""
	}
	want, ok := ctx.Parser.Slot(job.Timeframe)
	if !ok || want == ctx.Slot.ID {
		return true, ""
	}
	return false, fmt.Sprintf("要求时段 %s，目标时段 %s", want, ctx.Slot.ID)
}

// DefaultDispatchConstraints 返回默认派工约束集合
func DefaultDispatchConstraints() []DispatchConstraint {
	return []DispatchConstraint{
		NewRepCapacityConstraint(),     // 每人上限
		NewTerritoryConstraint(),       // 区域
		NewClusterConstraint(),         // 城市聚集
		NewSlotCapacityConstraint(),    // 时段容量
		NewAvailabilityConstraint(),    // 可用性
		NewStrictTimeframeConstraint(), // 严格时间段
	}
}

// Violation 约束违反
type Violation struct {
	Constraint string `json:"constraint"`
	Reason     string `json:"reason"`
}

// Check 按作用范围依次检查，返回第一个违反
func Check(constraints []DispatchConstraint, scope Scope, job *model.Job, rep *model.Representative, ctx *DispatchContext) *Violation {
	for _, c := range constraints {
		if c.Scope() != scope {
			continue
		}
		if ok, reason := c.Evaluate(job, rep, ctx); !ok {
			return &Violation{Constraint: c.Name(), Reason: reason}
		}
	}
	return nil
}
