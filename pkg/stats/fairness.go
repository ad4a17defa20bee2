// Package stats 提供当日派工的负载均衡统计
package stats

import (
	"math"
	"sort"

	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// WorkloadMetrics 负载指标
type WorkloadMetrics struct {
	Date       string `json:"date"`
	Assigned   int    `json:"assigned"`
	Unassigned int    `json:"unassigned"`

	// 任务数公平性
	JobGini       float64 `json:"job_gini"`    // 任务数基尼系数 (0=完全均衡, 1=完全不均)
	JobStdDev     float64 `json:"job_std_dev"` // 任务数标准差
	AvgJobsPerRep float64 `json:"avg_jobs_per_rep"`
	MaxJobs       int     `json:"max_jobs"`
	MinJobs       int     `json:"min_jobs"`

	AvgScore   float64   `json:"avg_score"`   // 已分配任务平均得分
	BelowQuota int       `json:"below_quota"` // 未达最低配额的代表数
	RepStats   []RepStat `json:"rep_stats"`

	// 综合评分
	BalanceScore float64 `json:"balance_score"` // 0-100
}

// RepStat 代表统计
type RepStat struct {
	RepID       string   `json:"rep_id"`
	RepName     string   `json:"rep_name"`
	Jobs        int      `json:"jobs"`
	Utilization float64  `json:"utilization"` // 任务数 / 每人上限
	AvgScore    float64  `json:"avg_score"`
	Cities      []string `json:"cities"`
	Locked      bool     `json:"locked,omitempty"`
	Optimized   bool     `json:"optimized,omitempty"`
}

// WorkloadAnalyzer 负载分析器
type WorkloadAnalyzer struct{}

// NewWorkloadAnalyzer 创建负载分析器
func NewWorkloadAnalyzer() *WorkloadAnalyzer {
	return &WorkloadAnalyzer{}
}

// Analyze 分析当日状态的负载均衡
func (f *WorkloadAnalyzer) Analyze(state *model.DayState) *WorkloadMetrics {
	if state == nil {
		return &WorkloadMetrics{}
	}
	metrics := &WorkloadMetrics{
		Date:       state.Date,
		Unassigned: len(state.Unassigned),
		RepStats:   make([]RepStat, 0, len(state.Reps)),
	}
	if len(state.Reps) == 0 {
		return metrics
	}

	counts := make([]float64, 0, len(state.Reps))
	scoreSum, scored := 0.0, 0
	for _, rep := range state.Reps {
		stat := f.calculateRepStat(rep, &state.Settings)
		metrics.RepStats = append(metrics.RepStats, stat)
		counts = append(counts, float64(stat.Jobs))
		metrics.Assigned += stat.Jobs
		if stat.Jobs < state.Settings.MinJobsPerRep {
			metrics.BelowQuota++
		}
		for _, j := range rep.Schedule.Jobs() {
			if j.Breakdown != nil {
				scoreSum += j.AssignedScore
				scored++
			}
		}
	}

	mean := f.calculateMean(counts)
	maxJobs, minJobs := f.calculateRange(counts)
	metrics.AvgJobsPerRep = round2(mean)
	metrics.JobStdDev = round2(math.Sqrt(f.calculateVariance(counts, mean)))
	metrics.MaxJobs, metrics.MinJobs = int(maxJobs), int(minJobs)
	metrics.JobGini = round2(f.calculateGini(counts))
	if scored > 0 {
		metrics.AvgScore = round2(scoreSum / float64(scored))
	}
	metrics.BalanceScore = round2(f.calculateBalanceScore(metrics.JobGini, metrics.JobStdDev, mean))

	sort.SliceStable(metrics.RepStats, func(i, j int) bool {
		return metrics.RepStats[i].Jobs > metrics.RepStats[j].Jobs
	})
	return metrics
}

func (f *WorkloadAnalyzer) calculateRepStat(rep *model.Representative, settings *model.Settings) RepStat {
	stat := RepStat{
		RepID:     rep.ID,
		RepName:   rep.Name,
		Jobs:      rep.JobCount(),
		Cities:    rep.CityList(),
		Locked:    rep.Locked,
		Optimized: rep.Optimized,
	}
	if settings.MaxJobsPerRep > 0 {
		stat.Utilization = round2(float64(stat.Jobs) / float64(settings.MaxJobsPerRep))
	}
	sum, n := 0.0, 0
	for _, j := range rep.Schedule.Jobs() {
		if j.Breakdown != nil {
			sum += j.AssignedScore
			n++
		}
	}
	if n > 0 {
		stat.AvgScore = round2(sum / float64(n))
	}
	return stat
}

// calculateMean 计算平均值
func (f *WorkloadAnalyzer) calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance 计算方差
func (f *WorkloadAnalyzer) calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// calculateRange 计算极值
func (f *WorkloadAnalyzer) calculateRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// calculateGini 计算基尼系数
func (f *WorkloadAnalyzer) calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}
	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// calculateBalanceScore 基尼系数与变异系数的加权评分
func (f *WorkloadAnalyzer) calculateBalanceScore(gini, stdDev, mean float64) float64 {
	const (
		giniWeight = 0.7
		cvWeight   = 0.3
	)

	giniScore := (1 - gini) * 100
	cvScore := 100.0
	if mean > 0 {
		cvScore = math.Max(0, 100-stdDev/mean*100)
	}
	return math.Max(0, math.Min(100, giniWeight*giniScore+cvWeight*cvScore))
}

// Compare 比较两个状态的均衡度
func (f *WorkloadAnalyzer) Compare(before, after *model.DayState) map[string]float64 {
	m1 := f.Analyze(before)
	m2 := f.Analyze(after)

	return map[string]float64{
		"job_gini_diff":      m2.JobGini - m1.JobGini,
		"balance_score_diff": m2.BalanceScore - m1.BalanceScore,
		"assigned_diff":      float64(m2.Assigned - m1.Assigned),
		"before_score":       m1.BalanceScore,
		"after_score":        m2.BalanceScore,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
