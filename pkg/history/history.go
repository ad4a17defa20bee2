// Package history 提供当日状态的撤销/重做历史
package history

import (
	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// DefaultLimit 默认保留的历史状态数
const DefaultLimit = 50

// History 状态历史：追加时截断“未来”状态
type History struct {
	states []*model.DayState
	cursor int
	limit  int
}

// New 以初始状态创建历史
func New(initial *model.DayState, limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{states: []*model.DayState{initial}, limit: limit}
}

// Restore 从持久化的状态列表恢复历史
func Restore(states []*model.DayState, cursor, limit int) (*History, error) {
	if len(states) == 0 {
		return nil, apperrors.ErrNilState
	}
	if cursor < 0 || cursor >= len(states) {
		return nil, apperrors.InvalidInput("cursor", "out of range")
	}
	h := New(states[0], limit)
	h.states = append([]*model.DayState(nil), states...)
	h.cursor = cursor
	h.trim()
	return h, nil
}

// Current 当前状态
func (h *History) Current() *model.DayState {
	return h.states[h.cursor]
}

// Push 记录新状态；空值或与当前相同的值视为无操作
func (h *History) Push(next *model.DayState) bool {
	if next == nil || next == h.Current() {
		return false
	}
	h.states = append(h.states[:h.cursor+1:h.cursor+1], next)
	h.cursor = len(h.states) - 1
	h.trim()
	return true
}

// trim 丢弃超出上限的最旧状态
func (h *History) trim() {
	if over := len(h.states) - h.limit; over > 0 {
		h.states = append([]*model.DayState(nil), h.states[over:]...)
		h.cursor -= over
		if h.cursor < 0 {
			h.cursor = 0
		}
	}
}

// Undo 回到上一个状态
func (h *History) Undo() (*model.DayState, bool) {
	if !h.CanUndo() {
		return h.Current(), false
	}
	h.cursor--
	return h.Current(), true
}

// Redo 前进到下一个状态
func (h *History) Redo() (*model.DayState, bool) {
	if !h.CanRedo() {
		return h.Current(), false
	}
	h.cursor++
	return h.Current(), true
}

// CanUndo 是否可撤销
func (h *History) CanUndo() bool { return h.cursor > 0 }

// CanRedo 是否可重做
func (h *History) CanRedo() bool { return h.cursor < len(h.states)-1 }

// Len 历史长度
func (h *History) Len() int { return len(h.states) }

// Snapshot 返回全部状态与游标（用于持久化）
func (h *History) Snapshot() ([]*model.DayState, int) {
	return append([]*model.DayState(nil), h.states...), h.cursor
}

// mark 记录当前位置，供持久化失败时回滚
type mark struct {
	states []*model.DayState
	cursor int
}

func (h *History) mark() mark {
	return mark{states: append([]*model.DayState(nil), h.states...), cursor: h.cursor}
}

func (h *History) rollback(m mark) {
	h.states, h.cursor = m.states, m.cursor
}
