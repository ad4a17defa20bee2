package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/model"
)

type rowFunc func(dest ...interface{}) error

func (f rowFunc) Scan(dest ...interface{}) error { return f(dest...) }

func TestEncodeDecodeState(t *testing.T) {
	state := model.NewDayState("2024-06-03", []*model.Representative{
		{ID: "r1", Name: "Rita", Skills: map[string]int{"Tile": 3}, Territory: &model.TerritoryRule{Region: model.RegionNorth, Strict: true}},
	}, model.DefaultSettings())
	state.Reps[0].Optimized = true
	state.Reps[0].Schedule.Slots[0].Jobs = []*model.Job{{ID: "j1", City: "Mesa", AssignedScore: 88.5, RouteLabel: "8:00am - 9:30am"}}

	payloads, err := encodeStates([]*model.DayState{state})
	require.NoError(t, err)
	require.Len(t, payloads, 1)

	got, err := scanState(rowFunc(func(dest ...interface{}) error {
		*(dest[0].(*[]byte)) = payloads[0]
		return nil
	}))
	require.NoError(t, err)

	assert.Equal(t, "2024-06-03", got.Date)
	assert.True(t, got.Reps[0].Optimized, "optimized flag must survive persistence")
	assert.Equal(t, "8:00am - 9:30am", got.Reps[0].Schedule.Slots[0].Jobs[0].RouteLabel)
	assert.True(t, got.Reps[0].Territory.Strict)
	assert.NotNil(t, got.Unassigned)
	assert.Equal(t, state.Settings, got.Settings)
}

func TestEncodeStates_Nil(t *testing.T) {
	_, err := encodeStates([]*model.DayState{nil})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidState))
}

func TestScanState_Errors(t *testing.T) {
	_, err := scanState(rowFunc(func(dest ...interface{}) error { return errors.New("conn reset") }))
	assert.True(t, apperrors.Is(err, apperrors.CodeDatabaseError))

	_, err = scanState(rowFunc(func(dest ...interface{}) error {
		*(dest[0].(*[]byte)) = []byte("{bad json")
		return nil
	}))
	assert.True(t, apperrors.Is(err, apperrors.CodeInternal))
}

func TestPQErrorCodes(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
	missing := &pq.Error{Code: "42P01"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(missing))
	assert.True(t, IsUndefinedTable(missing))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}

func TestClampCursor(t *testing.T) {
	tests := []struct {
		name   string
		cursor int
		n      int
		want   int
	}{
		{"范围内", 1, 3, 1},
		{"负数", -1, 3, 2},
		{"越界", 5, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampCursor(tt.cursor, tt.n))
		})
	}
}

func TestListFilter(t *testing.T) {
	f := DefaultListFilter().WithLimit(5).WithDateRange("2024-06-01", "2024-06-30")
	assert.Equal(t, 5, f.Limit)
	assert.Equal(t, "2024-06-01", f.StartDate)
	assert.Equal(t, "2024-06-30", f.EndDate)
}
