// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ListFilter 列表查询过滤器
type ListFilter struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Offset    int    `json:"offset"`
	Limit     int    `json:"limit"`
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{Offset: 0, Limit: 30}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithDateRange 设置日期范围
func (f ListFilter) WithDateRange(start, end string) ListFilter {
	f.StartDate = start
	f.EndDate = end
	return f
}

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxDB 支持事务的数据库
type TxDB interface {
	DB
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}

// PostgreSQL 错误码
const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
)

// isPQCode 检查是否为指定的 PostgreSQL 错误
func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == code
	}
	return false
}

// IsUniqueViolation 唯一约束冲突
func IsUniqueViolation(err error) bool {
	return isPQCode(err, pgUniqueViolation)
}

// IsUndefinedTable 表不存在
func IsUndefinedTable(err error) bool {
	return isPQCode(err, pgUndefinedTable)
}
