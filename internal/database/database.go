// Package database 管理调度历史所用的 PostgreSQL 连接
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roofdispatch/roofdispatch/internal/config"
	"github.com/roofdispatch/roofdispatch/pkg/logger"

	_ "github.com/lib/pq" // PostgreSQL 驱动
)

const maxLoggedQuery = 200

// DB 带慢查询日志的连接
type DB struct {
	*sql.DB
	slow time.Duration
}

// New 打开连接并在启动阶段重试 ping
func New(cfg *config.DatabaseConfig) (*DB, error) {
	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := ping(conn, cfg.ConnectRetries); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Dur("slow_query", cfg.SlowQuery).
		Msg("历史库已连接")

	return &DB{DB: conn, slow: cfg.SlowQuery}, nil
}

// ping 数据库可能晚于服务启动，按线性退避重试
func ping(conn *sql.DB, retries int) error {
	if retries < 1 {
		retries = 1
	}
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = conn.PingContext(ctx)
		cancel()
		if err == nil {
			return nil
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("历史库暂不可达")
		if attempt < retries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	return fmt.Errorf("数据库连接测试失败: %w", err)
}

// Close 关闭连接
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	logger.Info().Msg("关闭历史库连接")
	return db.DB.Close()
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction 在事务中执行 fn，fn 出错或 panic 时回滚
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("事务回滚失败: %v (原始错误: %w)", rbErr, err)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("事务提交失败: %w", err)
	}
	return nil
}

// ExecContext 执行语句
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	defer db.timed(query, time.Now())
	return db.DB.ExecContext(ctx, query, args...)
}

// QueryContext 执行查询
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	defer db.timed(query, time.Now())
	return db.DB.QueryContext(ctx, query, args...)
}

// QueryRowContext 查询单行
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	defer db.timed(query, time.Now())
	return db.DB.QueryRowContext(ctx, query, args...)
}

func (db *DB) timed(query string, start time.Time) {
	d := time.Since(start)
	if db.slow <= 0 || d <= db.slow {
		return
	}
	if len(query) > maxLoggedQuery {
		query = query[:maxLoggedQuery] + "..."
	}
	logger.Warn().Str("query", query).Dur("duration", d).Msg("慢SQL查询")
}
