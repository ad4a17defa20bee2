package model

import "strings"

// Job 上门检测任务
type Job struct {
	ID         string  `json:"id" yaml:"id"`
	Customer   string  `json:"customer" yaml:"customer"`
	Address    string  `json:"address" yaml:"address"`
	City       string  `json:"city" yaml:"city"`
	PostalCode string  `json:"postal_code" yaml:"postal_code"`
	Notes      string  `json:"notes,omitempty" yaml:"notes,omitempty"`       // 备注，可包含技能关键词与优先标记
	Timeframe  string  `json:"timeframe,omitempty" yaml:"timeframe,omitempty"` // 客户要求的时间段（自由文本）
	Value      float64 `json:"value,omitempty" yaml:"value,omitempty"`       // 任务价值/优先权重

	// 分配元数据
	AssignedScore   float64    `json:"assigned_score,omitempty"`
	Breakdown       *Breakdown `json:"breakdown,omitempty"`
	AssignedRepID   string     `json:"assigned_rep_id,omitempty"`
	AssignedRepName string     `json:"assigned_rep_name,omitempty"`

	// 路线优化后的时间标签，如 "8:00am - 9:30am"
	RouteLabel string `json:"route_label,omitempty"`
}

// FullAddress 返回用于坐标解析的完整地址
func (j *Job) FullAddress() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{j.Address, j.City, j.PostalCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// CityKey 返回规范化的城市名
func (j *Job) CityKey() string {
	return NormalizeCity(j.City)
}

// IsAssigned 检查任务是否带有分配元数据
func (j *Job) IsAssigned() bool {
	return j.AssignedRepID != ""
}

// ClearAssignment 清除分配元数据
func (j *Job) ClearAssignment() {
	j.AssignedScore = 0
	j.Breakdown = nil
	j.AssignedRepID = ""
	j.AssignedRepName = ""
	j.RouteLabel = ""
}

// Clone 深拷贝任务
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	if j.Breakdown != nil {
		b := *j.Breakdown
		clone.Breakdown = &b
	}
	return &clone
}

// CloneJobs 深拷贝任务列表
func CloneJobs(jobs []*Job) []*Job {
	if jobs == nil {
		return nil
	}
	out := make([]*Job, len(jobs))
	for i, j := range jobs {
		out[i] = j.Clone()
	}
	return out
}
