package model

import (
	"sort"
	"strings"
)

// SlotDef 全体代表共享的固定时段
type SlotDef struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Window Window `json:"window"`
}

// DefaultSlots 每日四个固定时段
var DefaultSlots = []SlotDef{
	{ID: "s1", Label: "8am-10am", Window: Window{Start: 8 * 60, End: 10 * 60}},
	{ID: "s2", Label: "10am-12pm", Window: Window{Start: 10 * 60, End: 12 * 60}},
	{ID: "s3", Label: "12pm-2pm", Window: Window{Start: 12 * 60, End: 14 * 60}},
	{ID: "s4", Label: "2pm-4pm", Window: Window{Start: 14 * 60, End: 16 * 60}},
}

// SlotDefByID 按ID查找时段定义
func SlotDefByID(id string) (SlotDef, bool) {
	for _, s := range DefaultSlots {
		if s.ID == id {
			return s, true
		}
	}
	return SlotDef{}, false
}

// Slot 代表某一时段内的任务列表
type Slot struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Jobs  []*Job `json:"jobs"`
}

// Schedule 代表当日的时段列表
type Schedule struct {
	Slots []Slot `json:"slots"`
}

// NewSchedule 按固定时段创建空日程
func NewSchedule() Schedule {
	slots := make([]Slot, len(DefaultSlots))
	for i, def := range DefaultSlots {
		slots[i] = Slot{ID: def.ID, Label: def.Label, Jobs: []*Job{}}
	}
	return Schedule{Slots: slots}
}

// SlotIndex 返回时段下标，不存在返回 -1
func (s *Schedule) SlotIndex(id string) int {
	for i := range s.Slots {
		if s.Slots[i].ID == id {
			return i
		}
	}
	return -1
}

// JobCount 返回日程中的任务总数
func (s *Schedule) JobCount() int {
	n := 0
	for i := range s.Slots {
		n += len(s.Slots[i].Jobs)
	}
	return n
}

// Jobs 按时段顺序返回全部任务
func (s *Schedule) Jobs() []*Job {
	out := make([]*Job, 0, s.JobCount())
	for i := range s.Slots {
		out = append(out, s.Slots[i].Jobs...)
	}
	return out
}

// Clone 深拷贝日程
func (s Schedule) Clone() Schedule {
	slots := make([]Slot, len(s.Slots))
	for i, slot := range s.Slots {
		slots[i] = Slot{ID: slot.ID, Label: slot.Label, Jobs: CloneJobs(slot.Jobs)}
		if slots[i].Jobs == nil {
			slots[i].Jobs = []*Job{}
		}
	}
	return Schedule{Slots: slots}
}

// TerritoryRule 严格区域规则（以数据表达的区域例外）
type TerritoryRule struct {
	Region Region `json:"region" yaml:"region"`
	Strict bool   `json:"strict" yaml:"strict"` // 仅服务该区域，设置开关允许时可进入都市圈
}

// Representative 外勤代表
type Representative struct {
	ID          string              `json:"id" yaml:"id"`
	Name        string              `json:"name" yaml:"name"`
	PostalCodes []string            `json:"postal_codes" yaml:"postal_codes"` // 第一个为常驻地
	Skills      map[string]int      `json:"skills,omitempty" yaml:"skills,omitempty"`
	SalesRank   int                 `json:"sales_rank,omitempty" yaml:"sales_rank,omitempty"` // 越小越好，0 表示无排名
	Region      Region              `json:"region" yaml:"region"`
	Territory   *TerritoryRule      `json:"territory,omitempty" yaml:"territory,omitempty"`
	Unavailable map[string][]string `json:"unavailable,omitempty" yaml:"unavailable,omitempty"` // 星期 -> 不可用时段ID
	Locked      bool                `json:"locked" yaml:"locked"`
	Optimized   bool                `json:"optimized" yaml:"-"`
	Weights     *Weights            `json:"weights,omitempty" yaml:"weights,omitempty"`
	Schedule    Schedule            `json:"schedule" yaml:"-"`
}

// HomePostalCode 返回常驻地邮编
func (r *Representative) HomePostalCode() string {
	if len(r.PostalCodes) == 0 {
		return ""
	}
	return strings.TrimSpace(r.PostalCodes[0])
}

// HasPostalCode 检查代表是否声明了该邮编
func (r *Representative) HasPostalCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	for _, c := range r.PostalCodes {
		if strings.TrimSpace(c) == code {
			return true
		}
	}
	return false
}

// SkillLevel 返回技能熟练度（不区分大小写），未声明视为 0
func (r *Representative) SkillLevel(skill string) int {
	if level, ok := r.Skills[skill]; ok {
		return level
	}
	for name, level := range r.Skills {
		if strings.EqualFold(name, skill) {
			return level
		}
	}
	return 0
}

// IsUnavailable 检查某星期的时段是否声明为不可用
func (r *Representative) IsUnavailable(weekday, slotID string) bool {
	if weekday == "" {
		return false
	}
	for _, id := range r.Unavailable[weekday] {
		if id == slotID {
			return true
		}
	}
	return false
}

// AvailableSlotCount 返回某星期可用的时段数
func (r *Representative) AvailableSlotCount(weekday string) int {
	n := 0
	for i := range r.Schedule.Slots {
		if !r.IsUnavailable(weekday, r.Schedule.Slots[i].ID) {
			n++
		}
	}
	return n
}

// JobCount 返回已分配任务数
func (r *Representative) JobCount() int {
	return r.Schedule.JobCount()
}

// Cities 返回日程中已服务城市的集合（规范化）
func (r *Representative) Cities() map[string]bool {
	cities := make(map[string]bool)
	for i := range r.Schedule.Slots {
		for _, j := range r.Schedule.Slots[i].Jobs {
			if key := j.CityKey(); key != "" {
				cities[key] = true
			}
		}
	}
	return cities
}

// CityList 返回排序后的城市列表
func (r *Representative) CityList() []string {
	cities := r.Cities()
	out := make([]string, 0, len(cities))
	for c := range cities {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Clone 深拷贝代表
func (r *Representative) Clone() *Representative {
	if r == nil {
		return nil
	}
	clone := *r
	clone.PostalCodes = append([]string(nil), r.PostalCodes...)
	if r.Skills != nil {
		clone.Skills = make(map[string]int, len(r.Skills))
		for k, v := range r.Skills {
			clone.Skills[k] = v
		}
	}
	if r.Territory != nil {
		t := *r.Territory
		clone.Territory = &t
	}
	if r.Unavailable != nil {
		clone.Unavailable = make(map[string][]string, len(r.Unavailable))
		for k, v := range r.Unavailable {
			clone.Unavailable[k] = append([]string(nil), v...)
		}
	}
	if r.Weights != nil {
		w := *r.Weights
		clone.Weights = &w
	}
	clone.Schedule = r.Schedule.Clone()
	return &clone
}
