package swap

import (
	"sort"

	"github.com/roofdispatch/roofdispatch/pkg/geo"
	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// Recommender 交换对象推荐器
type Recommender struct {
	evaluator *SwapEvaluator
}

// NewRecommender 创建交换推荐器
func NewRecommender(coords geo.Lookup) *Recommender {
	return &Recommender{
		evaluator: NewSwapEvaluator(coords),
	}
}

// Recommendation 交换推荐
type Recommendation struct {
	TargetRepID   string  `json:"target_rep_id"`
	TargetRepName string  `json:"target_rep_name"`
	Score         float64 `json:"score"`
	ScoreChange   float64 `json:"score_change"`
	Warnings      int     `json:"warnings"`
	Reason        string  `json:"reason"`
	Rank          int     `json:"rank"`
}

// RecommendOptions 推荐选项
type RecommendOptions struct {
	MaxRecommendations int      // 最大推荐数量
	ExcludeReps        []string // 排除的代表
	IncludeLocked      bool     // 是否考虑已锁定的代表
	MinScore           float64  // 最低得分
}

// DefaultRecommendOptions 返回默认选项
func DefaultRecommendOptions() *RecommendOptions {
	return &RecommendOptions{
		MaxRecommendations: 3,
		MinScore:           50,
	}
}

// RecommendSwapTargets 为代表推荐可交换日程的对象，按交换后得分排序
func (r *Recommender) RecommendSwapTargets(state *model.DayState, repID string, options *RecommendOptions) []Recommendation {
	if options == nil {
		options = DefaultRecommendOptions()
	}
	if state == nil || state.Rep(repID) == nil {
		return nil
	}

	excludeSet := make(map[string]bool)
	excludeSet[repID] = true
	for _, id := range options.ExcludeReps {
		excludeSet[id] = true
	}

	var candidates []Recommendation
	for _, rep := range state.Reps {
		if excludeSet[rep.ID] || (rep.Locked && !options.IncludeLocked) {
			continue
		}

		evaluation := r.evaluator.EvaluateSwap(state, repID, rep.ID)
		if !evaluation.Feasible || evaluation.Score < options.MinScore {
			continue
		}

		warnings := 0
		for _, issue := range evaluation.Issues {
			if issue.Severity == "warning" {
				warnings++
			}
		}
		candidates = append(candidates, Recommendation{
			TargetRepID:   rep.ID,
			TargetRepName: rep.Name,
			Score:         evaluation.Score,
			ScoreChange:   evaluation.Impact.ScoreChange,
			Warnings:      warnings,
			Reason:        evaluation.Recommendation,
		})
	}

	// 排序：得分高者优先，警告少者次之
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Warnings < candidates[j].Warnings
	})

	if options.MaxRecommendations > 0 && len(candidates) > options.MaxRecommendations {
		candidates = candidates[:options.MaxRecommendations]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates
}

// FindBestSwapMatch 找到最佳交换对象
func (r *Recommender) FindBestSwapMatch(state *model.DayState, repID string) *Recommendation {
	recommendations := r.RecommendSwapTargets(state, repID, &RecommendOptions{
		MaxRecommendations: 1,
		MinScore:           50,
	})
	if len(recommendations) == 0 {
		return nil
	}
	return &recommendations[0]
}
