package handler

import (
	"net/http"

	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/swap"
)

// SwapRequest 交换评估请求；不指定对方时返回推荐对象
type SwapRequest struct {
	State      *model.DayState `json:"state,omitempty"`
	RepID      string          `json:"rep_id"`
	OtherRepID string          `json:"other_rep_id,omitempty"`
	Limit      int             `json:"limit,omitempty"`
}

// SwapResponse 交换评估响应
type SwapResponse struct {
	Evaluation      *swap.SwapEvaluation  `json:"evaluation,omitempty"`
	Recommendations []swap.Recommendation `json:"recommendations,omitempty"`
}

// Swaps 评估两名代表交换日程，或为一名代表推荐交换对象
func (h *EngineHandler) Swaps(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.State == nil {
		respondError(w, r, apperrors.ErrNilState)
		return
	}
	resp, err := h.swapAdvice(req.State, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *EngineHandler) swapAdvice(state *model.DayState, req SwapRequest) (*SwapResponse, error) {
	if req.RepID == "" {
		return nil, apperrors.InvalidInput("rep_id", "required")
	}
	if state.Rep(req.RepID) == nil {
		return nil, apperrors.NotFound("representative", req.RepID)
	}
	if req.OtherRepID != "" {
		return &SwapResponse{Evaluation: h.evaluate.EvaluateSwap(state, req.RepID, req.OtherRepID)}, nil
	}

	opts := swap.DefaultRecommendOptions()
	if req.Limit > 0 {
		opts.MaxRecommendations = req.Limit
	}
	recs := h.swaps.RecommendSwapTargets(state, req.RepID, opts)
	if recs == nil {
		recs = []swap.Recommendation{}
	}
	return &SwapResponse{Recommendations: recs}, nil
}

// Swaps 对日期的当前状态做交换评估或推荐
func (h *DayHandler) Swaps(w http.ResponseWriter, r *http.Request) {
	ctx, date := h.dayContext(r)
	var req SwapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := h.prepare(ctx, date); err != nil {
		respondError(w, r, err)
		return
	}
	state, err := h.book.Current(ctx, date)
	if err != nil {
		respondError(w, r, err)
		return
	}
	resp, err := h.base.swapAdvice(state, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
