package handler

import (
	"context"
	"net/http"

	"github.com/roofdispatch/roofdispatch/internal/geocode"
	"github.com/roofdispatch/roofdispatch/pkg/dispatcher"
	"github.com/roofdispatch/roofdispatch/pkg/dispatcher/constraint"
	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/geo"
	"github.com/roofdispatch/roofdispatch/pkg/logger"
	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/stats"
	"github.com/roofdispatch/roofdispatch/pkg/swap"
	"github.com/roofdispatch/roofdispatch/pkg/validator"
)

// Preparer 在执行引擎操作前解析状态中的地址坐标
type Preparer interface {
	Prepare(ctx context.Context, state *model.DayState) (geocode.PrepareResult, error)
}

// WorkloadRecorder 记录当日负载（指标）
type WorkloadRecorder interface {
	RecordWorkload(w *stats.WorkloadMetrics)
}

// RunRequest 无状态执行请求：携带完整当日状态与一个操作
type RunRequest struct {
	State     *model.DayState      `json:"state"`
	Operation dispatcher.Operation `json:"operation"`
	Resolve   bool                 `json:"resolve,omitempty"` // 先解析地址坐标
}

// ScoreRequest 评分预览请求
type ScoreRequest struct {
	State  *model.DayState `json:"state,omitempty"`
	JobID  string          `json:"job_id"`
	RepID  string          `json:"rep_id"`
	SlotID string          `json:"slot_id"`
}

// Result 操作结果
type Result struct {
	State     *model.DayState        `json:"state"`
	Changed   bool                   `json:"changed"`
	Report    *dispatcher.Report     `json:"report,omitempty"`
	Conflicts []validator.Conflict   `json:"conflicts"`
	Stats     *stats.WorkloadMetrics `json:"stats"`
	Geocode   *geocode.PrepareResult `json:"geocode,omitempty"`
	History   *HistoryStatus         `json:"history,omitempty"`
}

// HistoryStatus 撤销/重做可用性
type HistoryStatus struct {
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

// ScoreResponse 评分预览响应
type ScoreResponse struct {
	Breakdown  *model.Breakdown       `json:"breakdown"`
	Violations []constraint.Violation `json:"violations"`
	Eligible   bool                   `json:"eligible"`
}

// EngineHandler 无状态引擎接口
type EngineHandler struct {
	engine   *dispatcher.DispatchEngine
	preparer Preparer // 可为 nil
	detector *validator.ConflictDetector
	analyzer *stats.WorkloadAnalyzer
	swaps    *swap.Recommender
	evaluate *swap.SwapEvaluator
}

// NewEngineHandler 创建引擎处理器，coords 为评分使用的坐标查询（可为 nil）
func NewEngineHandler(engine *dispatcher.DispatchEngine, preparer Preparer, coords geo.Lookup) *EngineHandler {
	return &EngineHandler{
		engine:   engine,
		preparer: preparer,
		detector: validator.NewConflictDetector(validator.DefaultDetectorConfig()),
		analyzer: stats.NewWorkloadAnalyzer(),
		swaps:    swap.NewRecommender(coords),
		evaluate: swap.NewSwapEvaluator(coords),
	}
}

// Register 注册路由
func (h *EngineHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/engine/run", h.Run)
	mux.HandleFunc("POST /api/v1/engine/score", h.Score)
	mux.HandleFunc("POST /api/v1/engine/swaps", h.Swaps)
	mux.HandleFunc("GET /api/v1/regions", h.Regions)
	mux.HandleFunc("GET /api/v1/cities/{city}", h.City)
}

// Run 执行一次状态转换并返回新状态
func (h *EngineHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.State == nil {
		respondError(w, r, apperrors.ErrNilState)
		return
	}

	var prepared *geocode.PrepareResult
	if req.Resolve && h.preparer != nil {
		res, err := h.preparer.Prepare(r.Context(), req.State)
		if err != nil {
			respondError(w, r, apperrors.Wrap(err, apperrors.CodeTimeout, "地址解析被中断"))
			return
		}
		prepared = &res
	}

	next, report, err := h.engine.Run(req.State, req.Operation)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logger.WithContext(r.Context()).Info().
		Str("operation", string(req.Operation.Type)).
		Str("date", next.Date).
		Bool("changed", next != req.State).
		Msg("引擎操作完成")

	result := h.result(next, next != req.State, report)
	result.Geocode = prepared
	respondJSON(w, http.StatusOK, result)
}

// Score 评分预览（不提交）
func (h *EngineHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.State == nil {
		respondError(w, r, apperrors.ErrNilState)
		return
	}
	resp, err := h.preview(req.State, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *EngineHandler) preview(state *model.DayState, req ScoreRequest) (*ScoreResponse, error) {
	if req.JobID == "" || req.RepID == "" || req.SlotID == "" {
		return nil, apperrors.InvalidInput("job_id/rep_id/slot_id", "required")
	}
	b, violations, err := h.engine.Preview(state, req.JobID, req.RepID, req.SlotID)
	if err != nil {
		return nil, err
	}
	return &ScoreResponse{
		Breakdown:  b,
		Violations: violations,
		Eligible:   len(violations) == 0 && !b.IsDisqualified(),
	}, nil
}

// result 组装结果：附带不变量检查与负载统计
func (h *EngineHandler) result(state *model.DayState, changed bool, report *dispatcher.Report) *Result {
	conflicts := h.detector.DetectAll(state)
	if conflicts == nil {
		conflicts = []validator.Conflict{}
	}
	return &Result{
		State:     state,
		Changed:   changed,
		Report:    report,
		Conflicts: conflicts,
		Stats:     h.analyzer.Analyze(state),
	}
}
