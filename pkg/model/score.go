package model

// DisqualifiedScore 能力不匹配时评分函数返回的哨兵值
const DisqualifiedScore = -1.0

// Breakdown 评分明细（各因子 0-100）
type Breakdown struct {
	Timeframe       float64 `json:"timeframe"`
	Performance     float64 `json:"performance"`
	SkillRoofing    float64 `json:"skillRoofing"`
	SkillSpecialty  float64 `json:"skillSpecialty"`
	DistanceHome    float64 `json:"distanceHome"`
	DistanceCluster float64 `json:"distanceCluster"`

	Weighted        float64 `json:"weighted"`        // 加权平均
	Penalty         float64 `json:"penalty"`         // 不可用时段惩罚
	SpecialistBonus float64 `json:"specialistBonus"` // 专长加分
	Final           float64 `json:"final"`

	Priority     bool     `json:"priority,omitempty"`
	Specialist   bool     `json:"specialist,omitempty"`
	Skills       []string `json:"skills,omitempty"` // 命中的技能标签
	Disqualified bool     `json:"disqualified,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	HomeMiles    *float64 `json:"homeMiles,omitempty"`
	ClusterMiles *float64 `json:"clusterMiles,omitempty"`
}

// IsDisqualified 检查是否被取消资格
func (b *Breakdown) IsDisqualified() bool {
	return b != nil && b.Disqualified
}
