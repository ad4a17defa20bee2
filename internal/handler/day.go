package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/roofdispatch/roofdispatch/internal/geocode"
	"github.com/roofdispatch/roofdispatch/internal/repository"
	"github.com/roofdispatch/roofdispatch/pkg/dispatcher"
	"github.com/roofdispatch/roofdispatch/pkg/history"
	"github.com/roofdispatch/roofdispatch/pkg/logger"
	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// DayLister 列出已保存的日期
type DayLister interface {
	ListDates(ctx context.Context, filter repository.ListFilter) ([]repository.DaySummary, error)
}

// DayHandler 按日期维护状态与撤销/重做历史
type DayHandler struct {
	base     *EngineHandler
	book     *history.Book
	lister   DayLister        // 可为 nil
	workload WorkloadRecorder // 可为 nil
}

// NewDayHandler 创建日期处理器
func NewDayHandler(engine *EngineHandler, book *history.Book, lister DayLister, workload WorkloadRecorder) *DayHandler {
	return &DayHandler{
		base:     engine,
		book:     book,
		lister:   lister,
		workload: workload,
	}
}

// Register 注册路由
func (h *DayHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/days", h.List)
	mux.HandleFunc("GET /api/v1/days/{date}", h.Get)
	mux.HandleFunc("DELETE /api/v1/days/{date}", h.Reset)
	mux.HandleFunc("POST /api/v1/days/{date}/operations", h.Apply)
	mux.HandleFunc("POST /api/v1/days/{date}/score", h.Score)
	mux.HandleFunc("POST /api/v1/days/{date}/swaps", h.Swaps)
	mux.HandleFunc("POST /api/v1/days/{date}/undo", h.Undo)
	mux.HandleFunc("POST /api/v1/days/{date}/redo", h.Redo)
}

// List 列出已保存的日期
func (h *DayHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"days": []repository.DaySummary{}})
		return
	}

	q := r.URL.Query()
	filter := repository.DefaultListFilter().WithDateRange(q.Get("start_date"), q.Get("end_date"))
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		filter = filter.WithLimit(v)
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		filter.Offset = v
	}

	days, err := h.lister.ListDates(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"days": days})
}

// Get 返回日期的当前状态，首次访问时按名单创建
func (h *DayHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, date := h.dayContext(r)
	state, err := h.book.Current(ctx, date)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.respond(w, r, date, state, false, nil, nil)
}

// Apply 对日期的当前状态执行一次操作；无操作不进入历史
func (h *DayHandler) Apply(w http.ResponseWriter, r *http.Request) {
	ctx, date := h.dayContext(r)
	var op dispatcher.Operation
	if err := decodeJSON(w, r, &op); err != nil {
		respondError(w, r, err)
		return
	}

	prepared, err := h.prepare(ctx, date)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var report *dispatcher.Report
	state, changed, err := h.book.Apply(ctx, date, func(current *model.DayState) (*model.DayState, error) {
		next, rep, err := h.base.engine.Run(current, op)
		report = rep
		return next, err
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	logger.WithContext(ctx).Info().
		Str("operation", string(op.Type)).
		Bool("changed", changed).
		Msg("当日操作完成")
	h.respond(w, r, date, state, changed, report, prepared)
}

// Score 对日期的当前状态做评分预览
func (h *DayHandler) Score(w http.ResponseWriter, r *http.Request) {
	ctx, date := h.dayContext(r)
	var req ScoreRequest
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
	resp, err := h.base.preview(state, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Reset 丢弃日期历史并返回重新播种的状态
func (h *DayHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx, date := h.dayContext(r)
	if err := h.book.Reset(ctx, date); err != nil {
		respondError(w, r, err)
		return
	}
	state, err := h.book.Current(ctx, date)
	if err != nil {
		respondError(w, r, err)
		return
	}
	logger.WithContext(ctx).Info().Msg("当日派工状态已重置")
	h.respond(w, r, date, state, true, nil, nil)
}

// Undo 撤销
func (h *DayHandler) Undo(w http.ResponseWriter, r *http.Request) {
	ctx, date := h.dayContext(r)
	state, moved, err := h.book.Undo(ctx, date)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.respond(w, r, date, state, moved, nil, nil)
}

// Redo 重做
func (h *DayHandler) Redo(w http.ResponseWriter, r *http.Request) {
	ctx, date := h.dayContext(r)
	state, moved, err := h.book.Redo(ctx, date)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.respond(w, r, date, state, moved, nil, nil)
}

func (h *DayHandler) dayContext(r *http.Request) (context.Context, string) {
	date := r.PathValue("date")
	return logger.ContextWithDate(r.Context(), date), date
}

// prepare 解析当前状态中的地址；失败的地址退化为中性分
func (h *DayHandler) prepare(ctx context.Context, date string) (*geocode.PrepareResult, error) {
	if h.base.preparer == nil {
		return nil, nil
	}
	state, err := h.book.Current(ctx, date)
	if err != nil {
		return nil, err
	}
	res, err := h.base.preparer.Prepare(ctx, state)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (h *DayHandler) respond(w http.ResponseWriter, r *http.Request, date string, state *model.DayState, changed bool, report *dispatcher.Report, prepared *geocode.PrepareResult) {
	canUndo, canRedo, err := h.book.Status(r.Context(), date)
	if err != nil {
		respondError(w, r, err)
		return
	}
	result := h.base.result(state, changed, report)
	result.Geocode = prepared
	result.History = &HistoryStatus{CanUndo: canUndo, CanRedo: canRedo}
	if h.workload != nil {
		h.workload.RecordWorkload(result.Stats)
	}
	respondJSON(w, http.StatusOK, result)
}
