package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/logger"
	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// schema 每日历史快照表
const schema = `
CREATE TABLE IF NOT EXISTS day_history (
	date       TEXT        NOT NULL,
	seq        INTEGER     NOT NULL,
	state      JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (date, seq)
);
CREATE TABLE IF NOT EXISTS day_cursor (
	date       TEXT        PRIMARY KEY,
	cursor_idx INTEGER     NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// DaySummary 已保存日期的概要
type DaySummary struct {
	Date      string    `json:"date"`
	States    int       `json:"states"`
	Cursor    int       `json:"cursor"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DayStateRepository 当日状态历史仓储，实现 history.Store
type DayStateRepository struct {
	db TxDB
}

// NewDayStateRepository 创建当日状态仓储
func NewDayStateRepository(db TxDB) *DayStateRepository {
	return &DayStateRepository{db: db}
}

// EnsureSchema 创建所需的表
func (r *DayStateRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "创建历史表失败")
	}
	return nil
}

// LoadHistory 加载日期的全部历史状态与游标，无记录时返回空
func (r *DayStateRepository) LoadHistory(ctx context.Context, date string) ([]*model.DayState, int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT state FROM day_history WHERE date = $1 ORDER BY seq`, date)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询历史失败")
	}
	defer rows.Close()

	states := make([]*model.DayState, 0)
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, 0, err
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取历史失败")
	}
	if len(states) == 0 {
		return nil, 0, nil
	}

	cursor := len(states) - 1
	err = r.db.QueryRowContext(ctx, `SELECT cursor_idx FROM day_cursor WHERE date = $1`, date).Scan(&cursor)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询历史游标失败")
	}
	return states, clampCursor(cursor, len(states)), nil
}

// SaveHistory 在事务中整体替换日期的历史
func (r *DayStateRepository) SaveHistory(ctx context.Context, date string, states []*model.DayState, cursor int) error {
	payloads, err := encodeStates(states)
	if err != nil {
		return err
	}

	err = r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM day_history WHERE date = $1`, date); err != nil {
			return err
		}
		for seq, payload := range payloads {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO day_history (date, seq, state) VALUES ($1, $2, $3)`,
				date, seq, payload); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO day_cursor (date, cursor_idx, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (date) DO UPDATE SET cursor_idx = EXCLUDED.cursor_idx, updated_at = NOW()`,
			date, cursor)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return apperrors.New(apperrors.CodeAlreadyExists, "历史正在被并发写入").WithCause(err)
		}
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "保存历史失败")
	}

	logger.Debug().
		Str("date", date).
		Int("states", len(states)).
		Int("cursor", cursor).
		Msg("历史已保存")
	return nil
}

// DeleteDates 删除多个日期的历史
func (r *DayStateRepository) DeleteDates(ctx context.Context, dates []string) (int64, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	var removed int64
	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM day_history WHERE date = ANY($1)`, pq.Array(dates))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM day_cursor WHERE date = ANY($1)`, pq.Array(dates)); err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "删除历史失败")
	}
	return removed, nil
}

// ListDates 列出已保存的日期
func (r *DayStateRepository) ListDates(ctx context.Context, filter ListFilter) ([]DaySummary, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argIdx := 1

	if filter.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("h.date >= $%d", argIdx))
		args = append(args, filter.StartDate)
		argIdx++
	}
	if filter.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("h.date <= $%d", argIdx))
		args = append(args, filter.EndDate)
		argIdx++
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListFilter().Limit
	}

	query := fmt.Sprintf(`
		SELECT h.date, COUNT(*), COALESCE(c.cursor_idx, COUNT(*) - 1), COALESCE(c.updated_at, MAX(h.created_at))
		FROM day_history h
		LEFT JOIN day_cursor c ON c.date = h.date
		WHERE %s
		GROUP BY h.date, c.cursor_idx, c.updated_at
		ORDER BY h.date DESC
		LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询日期列表失败")
	}
	defer rows.Close()

	out := make([]DaySummary, 0)
	for rows.Next() {
		var s DaySummary
		if err := rows.Scan(&s.Date, &s.States, &s.Cursor, &s.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取日期列表失败")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// encodeStates 序列化状态列表
func encodeStates(states []*model.DayState) ([][]byte, error) {
	out := make([][]byte, len(states))
	for i, s := range states {
		if s == nil {
			return nil, apperrors.ErrNilState
		}
		b, err := json.Marshal(s)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "序列化状态失败")
		}
		out[i] = b
	}
	return out, nil
}

// scanState 读取一行 JSONB 状态
func scanState(row Scanner) (*model.DayState, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取状态失败")
	}
	return decodeState(payload)
}

func decodeState(payload []byte) (*model.DayState, error) {
	var state model.DayState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "解析状态失败")
	}
	if state.Unassigned == nil {
		state.Unassigned = []*model.Job{}
	}
	return &state, nil
}

// clampCursor 游标越界时指向最新状态
func clampCursor(cursor, n int) int {
	if cursor < 0 || cursor >= n {
		return n - 1
	}
	return cursor
}
