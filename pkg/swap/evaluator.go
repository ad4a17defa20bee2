// Package swap 提供代表之间的日程交换
package swap

import (
	"fmt"

	"github.com/roofdispatch/roofdispatch/pkg/dispatcher/scorer"
	"github.com/roofdispatch/roofdispatch/pkg/geo"
	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/timeframe"
	"github.com/roofdispatch/roofdispatch/pkg/validator"
)

// SwapSchedules 交换两名代表的完整日程并清除双方的优化标记，不重新评分
// 任一代表不存在或两者相同时原样返回输入
func SwapSchedules(state *model.DayState, repA, repB string) *model.DayState {
	if state == nil || repA == repB {
		return state
	}
	ia, ib := state.RepIndex(repA), state.RepIndex(repB)
	if ia < 0 || ib < 0 {
		return state
	}

	next := state.Clone()
	a, b := next.Reps[ia], next.Reps[ib]
	a.Schedule, b.Schedule = b.Schedule, a.Schedule
	a.Optimized, b.Optimized = false, false
	restamp(a)
	restamp(b)
	return next
}

// restamp 更新任务记录的代表身份，并清除路线时间标签
func restamp(rep *model.Representative) {
	for _, j := range rep.Schedule.Jobs() {
		j.AssignedRepID = rep.ID
		j.AssignedRepName = rep.Name
		j.RouteLabel = ""
	}
}

// SwapEvaluator 交换评估器
type SwapEvaluator struct {
	scorer           *scorer.Scorer
	conflictDetector *validator.ConflictDetector
}

// NewSwapEvaluator 创建交换评估器
func NewSwapEvaluator(coords geo.Lookup) *SwapEvaluator {
	return &SwapEvaluator{
		scorer:           scorer.New(timeframe.Default, coords),
		conflictDetector: validator.NewConflictDetector(nil),
	}
}

// SwapEvaluation 交换评估结果
type SwapEvaluation struct {
	Feasible       bool        `json:"feasible"`
	Score          float64     `json:"score"`  // 交换后任务平均得分
	Issues         []SwapIssue `json:"issues"` // 问题列表
	Impact         *SwapImpact `json:"impact"` // 影响分析
	Recommendation string      `json:"recommendation"`
}

// SwapIssue 交换问题
type SwapIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // error/warning/info
	RepID    string `json:"rep_id,omitempty"`
	JobID    string `json:"job_id,omitempty"`
	Message  string `json:"message"`
}

// SwapImpact 交换影响
type SwapImpact struct {
	ScoreBefore float64 `json:"score_before"`
	ScoreAfter  float64 `json:"score_after"`
	ScoreChange float64 `json:"score_change"`
}

// EvaluateSwap 评估交换可行性
func (e *SwapEvaluator) EvaluateSwap(state *model.DayState, repA, repB string) *SwapEvaluation {
	result := &SwapEvaluation{
		Feasible: true,
		Score:    100,
		Issues:   make([]SwapIssue, 0),
		Impact:   &SwapImpact{},
	}

	// 1. 基础检查
	simulated := SwapSchedules(state, repA, repB)
	if simulated == state {
		result.Feasible = false
		result.Score = 0
		result.Issues = append(result.Issues, SwapIssue{
			Type:     "invalid_request",
			Severity: "error",
			Message:  "无效的交换请求",
		})
		result.Recommendation = e.generateRecommendation(result)
		return result
	}

	// 2. 重新评分检查能力匹配
	weekday := state.Weekday()
	before := e.meanScore(state, []string{repA, repB}, weekday, nil)
	after := e.meanScore(simulated, []string{repA, repB}, weekday, result)

	// 3. 模拟交换后检测冲突
	for _, conflict := range e.conflictDetector.DetectAll(simulated) {
		if conflict.RepID != repA && conflict.RepID != repB {
			continue
		}
		result.Issues = append(result.Issues, SwapIssue{
			Type:     string(conflict.Type),
			Severity: conflict.Severity,
			RepID:    conflict.RepID,
			JobID:    conflict.JobID,
			Message:  conflict.Message,
		})
		if conflict.Severity == "error" {
			result.Feasible = false
		}
	}

	// 4. 计算影响
	result.Impact.ScoreBefore = before
	result.Impact.ScoreAfter = after
	result.Impact.ScoreChange = after - before
	result.Score = after
	if !result.Feasible {
		result.Score = 0
	}

	result.Recommendation = e.generateRecommendation(result)
	return result
}

// meanScore 代表日程中任务的平均得分；result 非空时记录取消资格
func (e *SwapEvaluator) meanScore(state *model.DayState, repIDs []string, weekday string, result *SwapEvaluation) float64 {
	total, n := 0.0, 0
	for _, id := range repIDs {
		rep := state.Rep(id)
		for _, slot := range rep.Schedule.Slots {
			for _, job := range slot.Jobs {
				b := e.scorer.Score(job, rep, slot.ID, &state.Settings, weekday)
				if b.IsDisqualified() {
					if result != nil {
						result.Feasible = false
						result.Issues = append(result.Issues, SwapIssue{
							Type:     "skill_mismatch",
							Severity: "error",
							RepID:    rep.ID,
							JobID:    job.ID,
							Message:  fmt.Sprintf("%s 无法承接任务 %s: %s", rep.Name, job.ID, b.Reason),
						})
					}
					continue
				}
				total += b.Final
				n++
			}
		}
	}
	if n == 0 {
		return 100
	}
	return total / float64(n)
}

// generateRecommendation 生成交换建议
func (e *SwapEvaluator) generateRecommendation(result *SwapEvaluation) string {
	if !result.Feasible {
		return "不建议进行此交换，存在硬约束冲突"
	}

	switch {
	case result.Impact.ScoreChange >= 5:
		return "推荐，交换后整体匹配度提升"
	case result.Impact.ScoreChange > -5:
		return "可以进行，匹配度变化不大"
	default:
		return "谨慎进行，交换后匹配度明显下降"
	}
}

// CanSwap 快速检查是否可交换
func (e *SwapEvaluator) CanSwap(state *model.DayState, repA, repB string) (bool, string) {
	result := e.EvaluateSwap(state, repA, repB)
	if !result.Feasible {
		if len(result.Issues) > 0 {
			return false, result.Issues[0].Message
		}
		return false, "无法进行交换"
	}
	return true, ""
}
