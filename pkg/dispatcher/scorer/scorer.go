// Package scorer 计算任务与代表/时段组合的适配评分
package scorer

import (
	"fmt"
	"math"

	"github.com/roofdispatch/roofdispatch/pkg/dispatcher/matcher"
	"github.com/roofdispatch/roofdispatch/pkg/geo"
	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/timeframe"
)

const (
	// SpecialistBonus 专长加分
	SpecialistBonus = 10.0
	// UnavailablePenalty 不可用时段的基础惩罚，乘以设置中的倍数
	UnavailablePenalty = 25.0

	postalMatchScore  = 90.0 // 坐标未解析但邮编匹配
	unresolvedScore   = 60.0 // 坐标未解析
	sameCityScore     = 85.0 // 无坐标时与已有任务同城
	emptyClusterScore = 100.0
)

// Scorer 评分器
type Scorer struct {
	skills      *matcher.SkillMatcher
	performance *matcher.PerformanceMatcher
	timeframe   *matcher.TimeframeMatcher
	parser      timeframe.Parser
	coords      geo.Lookup
}

// New 创建评分器，coords 为 nil 时所有距离因子退化为中性分
func New(parser timeframe.Parser, coords geo.Lookup) *Scorer {
	if parser == nil {
		parser = timeframe.Default
	}
	if coords == nil {
		coords = geo.None{}
	}
	return &Scorer{
		skills:      matcher.NewSkillMatcher(),
		performance: matcher.NewPerformanceMatcher(),
		timeframe:   matcher.NewTimeframeMatcher(),
		parser:      parser,
		coords:      coords,
	}
}

// Parser 返回评分器使用的时间段解析器
func (s *Scorer) Parser() timeframe.Parser {
	return s.parser
}

// Score 计算 (任务, 代表, 时段) 的评分
// 能力不匹配时返回 Final 为 DisqualifiedScore 的明细
func (s *Scorer) Score(job *model.Job, rep *model.Representative, slotID string, settings *model.Settings, weekday string) model.Breakdown {
	var b model.Breakdown

	material := s.skills.MaterialTags(job.Notes)
	specialty := s.skills.SpecialtyTags(job.Notes)
	b.Skills = append(append([]string{}, material...), specialty...)

	roofing := s.skills.MatchSkills(material, rep)
	if roofing.Missing != "" {
		return disqualify(b, roofing.Missing)
	}
	special := s.skills.MatchSkills(specialty, rep)
	if special.Missing != "" {
		return disqualify(b, special.Missing)
	}
	b.SkillRoofing = roofing.Score
	b.SkillSpecialty = special.Score
	b.Specialist = roofing.Specialist || special.Specialist

	// 时间段
	requested, hasWindow := s.parser.Window(job.Timeframe)
	if def, ok := model.SlotDefByID(slotID); ok {
		b.Timeframe = s.timeframe.Score(requested, hasWindow, def.Window)
	} else {
		b.Timeframe = matcher.NeutralScore
	}

	// 排名
	b.Priority = s.skills.IsPriority(job.Notes)
	b.Performance = s.performance.ScoreRank(rep.SalesRank, b.Priority)

	// 距离
	jobCoord, jobOK := geo.JobCoordinate(s.coords, job)
	home, homeOK := geo.HomeCoordinate(s.coords, rep)
	b.DistanceHome = s.homeScore(&b, job, rep, jobCoord, jobOK, home, homeOK)
	b.DistanceCluster = s.clusterScore(&b, job, rep, jobCoord, jobOK, homeOK)

	if rep.IsUnavailable(weekday, slotID) {
		b.Penalty = UnavailablePenalty * settings.UnavailabilityPenalty
	}

	b.Weighted = weightedAverage(&b, effectiveWeights(rep, settings))
	final := clamp(b.Weighted-b.Penalty, 1, 100)
	if b.Specialist {
		b.SpecialistBonus = math.Min(SpecialistBonus, 100-final)
		final = math.Min(final+SpecialistBonus, 100)
	}
	b.Weighted = round1(b.Weighted)
	b.Final = round1(final)
	return b
}

func (s *Scorer) homeScore(b *model.Breakdown, job *model.Job, rep *model.Representative, jobCoord model.Coordinate, jobOK bool, home model.Coordinate, homeOK bool) float64 {
	if jobOK && homeOK {
		miles := home.DistanceMiles(jobCoord)
		b.HomeMiles = &miles
		return matcher.HomeScale.Score(miles)
	}
	if rep.HasPostalCode(job.PostalCode) {
		return postalMatchScore
	}
	return unresolvedScore
}

// clusterScore 与代表日程中最近任务的距离
func (s *Scorer) clusterScore(b *model.Breakdown, job *model.Job, rep *model.Representative, jobCoord model.Coordinate, jobOK, homeOK bool) float64 {
	existing := make([]*model.Job, 0, rep.JobCount())
	for _, j := range rep.Schedule.Jobs() {
		if j.ID != job.ID {
			existing = append(existing, j)
		}
	}
	if len(existing) == 0 {
		if homeOK {
			return b.DistanceHome
		}
		return emptyClusterScore
	}

	if jobOK {
		nearest := math.Inf(1)
		for _, j := range existing {
			if c, ok := geo.JobCoordinate(s.coords, j); ok {
				nearest = math.Min(nearest, c.DistanceMiles(jobCoord))
			}
		}
		if !math.IsInf(nearest, 1) {
			b.ClusterMiles = &nearest
			return matcher.ClusterScale.Score(nearest)
		}
	}

	city := job.CityKey()
	for _, j := range existing {
		if city != "" && j.CityKey() == city {
			return sameCityScore
		}
	}
	return unresolvedScore
}

func disqualify(b model.Breakdown, skill string) model.Breakdown {
	b.Disqualified = true
	b.Reason = fmt.Sprintf("no proficiency in %s", skill)
	b.Penalty = 100
	b.Final = model.DisqualifiedScore
	return b
}

// effectiveWeights 代表覆盖权重优先，和为 0 时回退到设置
func effectiveWeights(rep *model.Representative, settings *model.Settings) model.Weights {
	if rep.Weights != nil && rep.Weights.Sum() > 0 {
		return *rep.Weights
	}
	return settings.Weights
}

// weightedAverage 按权重和归一化；非优先任务的排名权重减半
func weightedAverage(b *model.Breakdown, w model.Weights) float64 {
	perf := w.Performance
	if !b.Priority {
		perf /= 2
	}
	total := w.Timeframe + perf + w.SkillRoofing + w.SkillSpecialty + w.DistanceHome + w.DistanceCluster
	if total <= 0 {
		return 0
	}
	sum := b.Timeframe*w.Timeframe +
		b.Performance*perf +
		b.SkillRoofing*w.SkillRoofing +
		b.SkillSpecialty*w.SkillSpecialty +
		b.DistanceHome*w.DistanceHome +
		b.DistanceCluster*w.DistanceCluster
	return sum / total
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
