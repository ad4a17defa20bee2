// Package matcher 提供技能关键词、时间段与距离匹配功能
package matcher

import (
	"regexp"
	"strings"

	"github.com/roofdispatch/roofdispatch/pkg/model"
)

const (
	// MaxSkillLevel 技能熟练度上限
	MaxSkillLevel = 3
	// SpecialistLevel 达到该熟练度视为专长
	SpecialistLevel = 3
	// NeutralScore 无可比较信息时的中性分
	NeutralScore = 75.0
)

// keywordTag 关键词到技能标签的映射
type keywordTag struct {
	skill   string
	pattern *regexp.Regexp
}

func newTag(skill string, keywords ...string) keywordTag {
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return keywordTag{
		skill:   skill,
		pattern: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

// SkillMatcher 技能匹配器
type SkillMatcher struct {
	material  []keywordTag // 屋面材料
	specialty []keywordTag // 专项业务
	priority  []string     // 优先标记
}

// NewSkillMatcher 创建技能匹配器
func NewSkillMatcher() *SkillMatcher {
	return &SkillMatcher{
		material: []keywordTag{
			newTag("Tile", "tile", "tiles", "clay", "concrete tile"),
			newTag("Shingle", "shingle", "shingles", "asphalt", "comp"),
			newTag("Metal", "metal", "standing seam"),
			newTag("Flat", "flat", "foam", "tpo", "built-up", "coating", "modified bitumen"),
		},
		specialty: []keywordTag{
			newTag("Insurance", "insurance", "claim", "hail", "storm", "adjuster"),
			newTag("Commercial", "commercial"),
		},
		priority: []string{"priority", "urgent", "vip", "!!"},
	}
}

// MaterialTags 从备注中提取屋面材料技能标签
func (m *SkillMatcher) MaterialTags(notes string) []string {
	return matchTags(m.material, notes)
}

// SpecialtyTags 从备注中提取专项技能标签
func (m *SkillMatcher) SpecialtyTags(notes string) []string {
	return matchTags(m.specialty, notes)
}

// IsPriority 检查备注是否带有优先标记
func (m *SkillMatcher) IsPriority(notes string) bool {
	lower := strings.ToLower(notes)
	for _, marker := range m.priority {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func matchTags(tags []keywordTag, notes string) []string {
	if notes == "" {
		return nil
	}
	lower := strings.ToLower(notes)
	var matched []string
	for _, t := range tags {
		if t.pattern.MatchString(lower) {
			matched = append(matched, t.skill)
		}
	}
	return matched
}

// SkillResult 技能匹配结果
type SkillResult struct {
	Score      float64
	Matched    []string
	Missing    string // 熟练度为0的技能，非空即取消资格
	Specialist bool
}

// MatchSkills 计算代表对标签的熟练度得分（平均熟练度折算为百分制）
func (m *SkillMatcher) MatchSkills(tags []string, rep *model.Representative) SkillResult {
	if len(tags) == 0 {
		return SkillResult{Score: NeutralScore}
	}

	total := 0
	result := SkillResult{Matched: tags}
	for _, tag := range tags {
		level := min(rep.SkillLevel(tag), MaxSkillLevel)
		if level <= 0 {
			result.Missing = tag
			result.Score = 0
			return result
		}
		if level >= SpecialistLevel {
			result.Specialist = true
		}
		total += level
	}

	result.Score = float64(total) / float64(len(tags)) / MaxSkillLevel * 100
	return result
}

// PerformanceMatcher 销售排名评分
type PerformanceMatcher struct{}

// NewPerformanceMatcher 创建排名评分器
func NewPerformanceMatcher() *PerformanceMatcher {
	return &PerformanceMatcher{}
}

// ScoreRank 根据排名评分，rank 为 0 表示无排名
// 非优先任务反转倾向，让排名靠后的代表分到更多任务
func (p *PerformanceMatcher) ScoreRank(rank int, priority bool) float64 {
	var score float64
	switch {
	case rank == 1:
		score = 100
	case rank == 2:
		score = 95
	case rank == 3:
		score = 90
	case rank >= 4 && rank <= 6:
		score = 80
	case rank >= 7 && rank <= 10:
		score = 65
	default:
		score = 50
	}
	if priority {
		return score
	}
	return 100 - score*0.5
}

// TimeframeMatcher 时间段匹配
type TimeframeMatcher struct{}

// NewTimeframeMatcher 创建时间段匹配器
func NewTimeframeMatcher() *TimeframeMatcher {
	return &TimeframeMatcher{}
}

// Score 比较要求窗口与时段窗口
// 完全包含得满分，部分重叠按比例，无重叠低分但不为零
func (t *TimeframeMatcher) Score(requested model.Window, hasWindow bool, slot model.Window) float64 {
	if !hasWindow {
		return NeutralScore
	}
	overlap := requested.Overlap(slot)
	if overlap == 0 {
		return 20
	}
	if overlap == requested.Length() || overlap == slot.Length() {
		return 100
	}
	return 50 + 40*float64(overlap)/float64(slot.Length())
}

// DistanceScale 距离评分刻度（英里）
type DistanceScale struct {
	Near  float64 // 不超过该距离得满分
	Far   float64 // 不低于该距离得最低分
	Floor float64 // 最低分
}

var (
	// HomeScale 常驻地距离刻度（低优先级，封顶）
	HomeScale = DistanceScale{Near: 5, Far: 60, Floor: 20}
	// ClusterScale 与已有任务的聚集距离刻度
	ClusterScale = DistanceScale{Near: 2, Far: 40, Floor: 10}
)

// Score 距离评分（距离越近分数越高）
func (s DistanceScale) Score(miles float64) float64 {
	if miles <= s.Near {
		return 100
	}
	if miles >= s.Far {
		return s.Floor
	}
	return 100 - (miles-s.Near)/(s.Far-s.Near)*(100-s.Floor)
}
