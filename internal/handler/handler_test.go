package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roofdispatch/roofdispatch/internal/geocode"
	"github.com/roofdispatch/roofdispatch/internal/repository"
	"github.com/roofdispatch/roofdispatch/internal/roster"
	"github.com/roofdispatch/roofdispatch/pkg/dispatcher"
	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/history"
	"github.com/roofdispatch/roofdispatch/pkg/model"
	"github.com/roofdispatch/roofdispatch/pkg/stats"
)

const monday = "2024-06-03"

type fakePreparer struct{ calls int }

func (p *fakePreparer) Prepare(ctx context.Context, state *model.DayState) (geocode.PrepareResult, error) {
	p.calls++
	return geocode.PrepareResult{Total: 1, Resolved: 1}, nil
}

type fakeLister struct{ filter repository.ListFilter }

func (l *fakeLister) ListDates(ctx context.Context, filter repository.ListFilter) ([]repository.DaySummary, error) {
	l.filter = filter
	return []repository.DaySummary{{Date: monday, States: 3, Cursor: 2}}, nil
}

type fakeWorkload struct{ last *stats.WorkloadMetrics }

func (f *fakeWorkload) RecordWorkload(w *stats.WorkloadMetrics) { f.last = w }

type fixture struct {
	mux      *http.ServeMux
	preparer *fakePreparer
	lister   *fakeLister
	workload *fakeWorkload
}

func newFixture() *fixture {
	f := &fixture{preparer: &fakePreparer{}, lister: &fakeLister{}, workload: &fakeWorkload{}}
	engine := NewEngineHandler(dispatcher.NewDispatchEngine(nil), f.preparer, nil)
	book := history.NewBook(roster.Default().Seeder(), nil, 10)
	f.mux = http.NewServeMux()
	engine.Register(f.mux)
	NewDayHandler(engine, book, f.lister, f.workload).Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) Result {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	code, _ := body["code"].(string)
	return code
}

func metroJobs() []*model.Job {
	return []*model.Job{
		{ID: "j1", Customer: "A", Address: "1 Main St", City: "Mesa", PostalCode: "85201", Timeframe: "8am-10am"},
		{ID: "j2", Customer: "B", Address: "2 Mill Ave", City: "Tempe", PostalCode: "85281", Timeframe: "10am-12pm"},
	}
}

func statelessState() *model.DayState {
	reps := []*model.Representative{
		{ID: "a", Name: "Alpha", PostalCodes: []string{"85201"}, Region: model.RegionMetro},
		{ID: "b", Name: "Bravo", PostalCodes: []string{"85004"}, Region: model.RegionMetro},
	}
	state := model.NewDayState(monday, reps, model.DefaultSettings())
	state.Unassigned = metroJobs()
	return state
}

func TestEngineRun(t *testing.T) {
	f := newFixture()

	res := decodeResult(t, f.do(t, http.MethodPost, "/api/v1/engine/run", RunRequest{
		State:     statelessState(),
		Operation: dispatcher.Operation{Type: dispatcher.OpAssignAll},
		Resolve:   true,
	}))
	assert.True(t, res.Changed)
	require.NotNil(t, res.Report)
	assert.Len(t, res.Report.Placements, 2)
	assert.Empty(t, res.State.Unassigned)
	assert.Empty(t, res.Conflicts)
	require.NotNil(t, res.Stats)
	assert.Equal(t, 2, res.Stats.Assigned)
	require.NotNil(t, res.Geocode)
	assert.Equal(t, 1, f.preparer.calls)

	// 无效ID：无操作
	res = decodeResult(t, f.do(t, http.MethodPost, "/api/v1/engine/run", RunRequest{
		State:     statelessState(),
		Operation: dispatcher.Operation{Type: dispatcher.OpSwap, RepID: "a", OtherRep: "nobody"},
	}))
	assert.False(t, res.Changed)
	assert.Nil(t, res.Geocode)
}

func TestEngineRun_Errors(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   apperrors.Code
	}{
		{"缺少状态", RunRequest{Operation: dispatcher.Operation{Type: dispatcher.OpAssignAll}}, http.StatusBadRequest, apperrors.CodeInvalidState},
		{"未知操作", RunRequest{State: statelessState(), Operation: dispatcher.Operation{Type: "teleport"}}, http.StatusBadRequest, apperrors.CodeUnknownOperation},
		{"请求体无效", "not an object", http.StatusBadRequest, apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/engine/run", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.code), errorCode(t, rec))
		})
	}

	rec := f.do(t, http.MethodGet, "/api/v1/engine/run", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEngineScore(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/engine/score", ScoreRequest{State: statelessState(), JobID: "j2", RepID: "a", SlotID: "s2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ScoreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Breakdown)
	assert.Equal(t, 100.0, resp.Breakdown.Timeframe)
	assert.True(t, resp.Eligible)

	rec = f.do(t, http.MethodPost, "/api/v1/engine/score", ScoreRequest{State: statelessState(), JobID: "j2", RepID: "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/engine/score", ScoreRequest{State: statelessState(), JobID: "missing", RepID: "a", SlotID: "s1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDayLifecycle(t *testing.T) {
	f := newFixture()
	base := "/api/v1/days/" + monday

	res := decodeResult(t, f.do(t, http.MethodGet, base, nil))
	assert.Len(t, res.State.Reps, 4)
	assert.False(t, res.History.CanUndo)

	res = decodeResult(t, f.do(t, http.MethodPost, base+"/operations", dispatcher.Operation{Type: dispatcher.OpAddJobs, Jobs: metroJobs()}))
	assert.True(t, res.Changed)
	assert.Len(t, res.State.Unassigned, 2)
	assert.True(t, res.History.CanUndo)

	res = decodeResult(t, f.do(t, http.MethodPost, base+"/operations", dispatcher.Operation{Type: dispatcher.OpAssignAll}))
	assert.True(t, res.Changed)
	assert.Empty(t, res.State.Unassigned)
	require.NotNil(t, f.workload.last)
	assert.Equal(t, monday, f.workload.last.Date)

	// 重复执行为无操作，不进入历史
	res = decodeResult(t, f.do(t, http.MethodPost, base+"/operations", dispatcher.Operation{Type: dispatcher.OpAssignAll}))
	assert.False(t, res.Changed)

	res = decodeResult(t, f.do(t, http.MethodPost, base+"/undo", nil))
	assert.True(t, res.Changed)
	assert.Len(t, res.State.Unassigned, 2)
	assert.True(t, res.History.CanRedo)

	res = decodeResult(t, f.do(t, http.MethodPost, base+"/redo", nil))
	assert.True(t, res.Changed)
	assert.Empty(t, res.State.Unassigned)
	assert.False(t, res.History.CanRedo)

	res = decodeResult(t, f.do(t, http.MethodPost, base+"/redo", nil))
	assert.False(t, res.Changed)

	rec := f.do(t, http.MethodPost, base+"/score", ScoreRequest{JobID: "j1", RepID: "rep-flagstaff", SlotID: "s1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preview ScoreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.False(t, preview.Eligible, "strict north territory rejects a metro job")
	assert.NotEmpty(t, preview.Violations)
	assert.Positive(t, f.preparer.calls)
}

func TestDay_InvalidDate(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/days/06-03-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperrors.CodeInvalidInput), errorCode(t, rec))
}

func TestDay_InvalidSettings(t *testing.T) {
	f := newFixture()
	bad := model.DefaultSettings()
	bad.MaxJobsPerRep = 0

	rec := f.do(t, http.MethodPost, "/api/v1/days/"+monday+"/operations", dispatcher.Operation{Type: dispatcher.OpApplySettings, Settings: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperrors.CodeInvalidSettings), errorCode(t, rec))
}

func TestDayList(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/days?limit=5&offset=10&start_date=2024-06-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Days []repository.DaySummary `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Days, 1)
	assert.Equal(t, 5, f.lister.filter.Limit)
	assert.Equal(t, 10, f.lister.filter.Offset)
	assert.Equal(t, "2024-06-01", f.lister.filter.StartDate)

	noStore := http.NewServeMux()
	engine := NewEngineHandler(dispatcher.NewDispatchEngine(nil), nil, nil)
	NewDayHandler(engine, history.NewBook(roster.Default().Seeder(), nil, 10), nil, nil).Register(noStore)
	rec = httptest.NewRecorder()
	noStore.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/days", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"days":[]}`, rec.Body.String())
}

func TestEngineSwaps(t *testing.T) {
	f := newFixture()
	state := statelessState()
	state.Unassigned = nil
	state.Rep("a").Schedule.Slots[0].Jobs = metroJobs()[:1]

	rec := f.do(t, http.MethodPost, "/api/v1/engine/swaps", SwapRequest{State: state, RepID: "a", OtherRepID: "b"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SwapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Evaluation)
	assert.NotEmpty(t, resp.Evaluation.Recommendation)

	rec = f.do(t, http.MethodPost, "/api/v1/engine/swaps", SwapRequest{State: state, RepID: "a"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = SwapResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Evaluation)
	for _, r := range resp.Recommendations {
		assert.NotEqual(t, "a", r.TargetRepID)
	}

	tests := []struct {
		name   string
		body   SwapRequest
		status int
	}{
		{"缺少代表", SwapRequest{State: state}, http.StatusBadRequest},
		{"代表不存在", SwapRequest{State: state, RepID: "nobody"}, http.StatusNotFound},
		{"缺少状态", SwapRequest{RepID: "a"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/engine/swaps", tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestDaySwaps(t *testing.T) {
	f := newFixture()
	base := "/api/v1/days/" + monday

	rec := f.do(t, http.MethodPost, base+"/swaps", SwapRequest{RepID: "rep-mesa", OtherRepID: "rep-phoenix"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SwapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Evaluation)

	rec = f.do(t, http.MethodPost, base+"/swaps", SwapRequest{RepID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDayReset(t *testing.T) {
	f := newFixture()
	base := "/api/v1/days/" + monday

	decodeResult(t, f.do(t, http.MethodPost, base+"/operations", dispatcher.Operation{Type: dispatcher.OpAddJobs, Jobs: metroJobs()}))

	res := decodeResult(t, f.do(t, http.MethodDelete, base, nil))
	assert.Empty(t, res.State.Unassigned)
	assert.False(t, res.History.CanUndo)

	rec := f.do(t, http.MethodDelete, "/api/v1/days/tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegions(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/regions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Regions map[model.Region][]string `json:"regions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Regions[model.RegionMetro], "mesa")
	assert.Contains(t, body.Regions[model.RegionNorth], "flagstaff")

	rec = f.do(t, http.MethodGet, "/api/v1/cities/Mesa", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info CityInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, model.RegionMetro, info.Region)
	assert.Contains(t, info.Neighbors, "tempe")
}
