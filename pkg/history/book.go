package history

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/logger"
	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// Seeder 为首次访问的日期生成初始状态
type Seeder func(date string) (*model.DayState, error)

// Store 历史持久化
type Store interface {
	LoadHistory(ctx context.Context, date string) ([]*model.DayState, int, error)
	SaveHistory(ctx context.Context, date string, states []*model.DayState, cursor int) error
}

// Eraser 可删除已持久化历史的存储
type Eraser interface {
	DeleteDates(ctx context.Context, dates []string) (int64, error)
}

// Transition 状态转换（纯函数）
type Transition func(*model.DayState) (*model.DayState, error)

// Book 按日期管理历史，同一时刻只有一个编辑作用于某日期
type Book struct {
	mu    sync.Mutex
	days  map[string]*History
	seed  Seeder
	store Store // 可为 nil
	limit int
}

// NewBook 创建历史簿
func NewBook(seed Seeder, store Store, limit int) *Book {
	return &Book{
		days:  make(map[string]*History),
		seed:  seed,
		store: store,
		limit: limit,
	}
}

// Current 返回日期的当前状态，首次访问时创建
func (b *Book) Current(ctx context.Context, date string) (*model.DayState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, err := b.day(ctx, date)
	if err != nil {
		return nil, err
	}
	return h.Current(), nil
}

// Apply 对当前状态执行转换并记录；无操作不进入历史
func (b *Book) Apply(ctx context.Context, date string, fn Transition) (*model.DayState, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, err := b.day(ctx, date)
	if err != nil {
		return nil, false, err
	}

	next, err := fn(h.Current())
	if err != nil {
		return nil, false, err
	}
	m := h.mark()
	if !h.Push(next) {
		return h.Current(), false, nil
	}
	if err := b.persist(ctx, date, h); err != nil {
		h.rollback(m)
		return nil, false, err
	}
	return next, true, nil
}

// Undo 撤销
func (b *Book) Undo(ctx context.Context, date string) (*model.DayState, bool, error) {
	return b.move(ctx, date, (*History).Undo)
}

// Redo 重做
func (b *Book) Redo(ctx context.Context, date string) (*model.DayState, bool, error) {
	return b.move(ctx, date, (*History).Redo)
}

func (b *Book) move(ctx context.Context, date string, step func(*History) (*model.DayState, bool)) (*model.DayState, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, err := b.day(ctx, date)
	if err != nil {
		return nil, false, err
	}
	m := h.mark()
	state, moved := step(h)
	if moved {
		if err := b.persist(ctx, date, h); err != nil {
			h.rollback(m)
			return nil, false, err
		}
	}
	return state, moved, nil
}

// Status 撤销/重做可用性
func (b *Book) Status(ctx context.Context, date string) (canUndo, canRedo bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, err := b.day(ctx, date)
	if err != nil {
		return false, false, err
	}
	return h.CanUndo(), h.CanRedo(), nil
}

// Reset 丢弃日期的全部历史，下次访问时重新播种
func (b *Book) Reset(ctx context.Context, date string) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return apperrors.InvalidInput("date", "expected YYYY-MM-DD")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if eraser, ok := b.store.(Eraser); ok {
		if _, err := eraser.DeleteDates(ctx, []string{date}); err != nil {
			return err
		}
	}
	delete(b.days, date)
	return nil
}

// day 获取或创建日期历史，调用方持有锁
func (b *Book) day(ctx context.Context, date string) (*History, error) {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, apperrors.InvalidInput("date", "expected YYYY-MM-DD")
	}
	if h, ok := b.days[date]; ok {
		return h, nil
	}

	if b.store != nil {
		states, cursor, err := b.store.LoadHistory(ctx, date)
		if err != nil {
			return nil, err
		}
		if len(states) > 0 {
			h, err := Restore(states, cursor, b.limit)
			if err != nil {
				return nil, err
			}
			b.days[date] = h
			return h, nil
		}
	}

	initial, err := b.seed(date)
	if err != nil {
		return nil, err
	}
	if initial == nil {
		return nil, apperrors.ErrNilState
	}
	h := New(initial, b.limit)
	b.days[date] = h
	logger.WithContext(logger.ContextWithDate(ctx, date)).Info().
		Int("reps", len(initial.Reps)).
		Msg("创建当日派工状态")
	return h, nil
}

func (b *Book) persist(ctx context.Context, date string, h *History) error {
	if b.store == nil {
		return nil
	}
	states, cursor := h.Snapshot()
	return b.store.SaveHistory(ctx, date, states, cursor)
}
