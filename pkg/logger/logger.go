// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化全局日志器，只生效一次
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))
		logger = New(cfg, openOutput(cfg))
	})
}

// New 按配置在 w 上构建日志器，不影响全局日志器
func New(cfg Config, w io.Writer) zerolog.Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: cfg.TimeFormat}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// openOutput 打开输出目标；日志文件无法打开时退回 stdout
func openOutput(cfg Config) io.Writer {
	switch cfg.Output {
	case "stderr":
		return os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return os.Stdout
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}

// parseLevel 解析日志级别，未知值按 info 处理
func parseLevel(level string) zerolog.Level {
	if level == "warning" {
		level = "warn"
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// ctxKey 上下文键类型
type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	dateKey      ctxKey = "date"
)

// ContextWithRequestID 将请求ID写入上下文
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextWithDate 将派工日期写入上下文
func ContextWithDate(ctx context.Context, date string) context.Context {
	return context.WithValue(ctx, dateKey, date)
}

// RequestID 从上下文读取请求ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	if reqID, ok := ctx.Value(requestIDKey).(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	// 派工日期
	if date, ok := ctx.Value(dateKey).(string); ok {
		l = l.With().Str("date", date).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// DispatchLogger 派工引擎专用日志器
type DispatchLogger struct {
	base *zerolog.Logger
}

// NewDispatchLogger 创建派工引擎日志器
func NewDispatchLogger() *DispatchLogger {
	l := Get().With().Str("component", "dispatcher").Logger()
	return &DispatchLogger{base: &l}
}

// StartBatch 记录批量分配开始
func (l *DispatchLogger) StartBatch(mode, date string, jobs, reps int) {
	l.base.Info().
		Str("mode", mode).
		Str("date", date).
		Int("jobs", jobs).
		Int("reps", reps).
		Msg("开始分配任务")
}

// Placed 记录一次分配
func (l *DispatchLogger) Placed(jobID, repID, slotID string, score float64) {
	l.base.Debug().
		Str("job_id", jobID).
		Str("rep_id", repID).
		Str("slot_id", slotID).
		Float64("score", score).
		Msg("任务已分配")
}

// Unplaced 记录无法分配的任务
func (l *DispatchLogger) Unplaced(jobID, reason string) {
	l.base.Debug().
		Str("job_id", jobID).
		Str("reason", reason).
		Msg("任务留在待分配队列")
}

// Disqualified 记录能力不匹配
func (l *DispatchLogger) Disqualified(jobID, repID, reason string) {
	l.base.Debug().
		Str("job_id", jobID).
		Str("rep_id", repID).
		Str("reason", reason).
		Msg("候选被取消资格")
}

// ConstraintViolation 记录约束违反
func (l *DispatchLogger) ConstraintViolation(constraint, details string) {
	l.base.Debug().
		Str("constraint", constraint).
		Str("details", details).
		Msg("约束违反")
}

// BatchComplete 记录批量分配完成
func (l *DispatchLogger) BatchComplete(mode string, duration time.Duration, placed, unplaced int) {
	l.base.Info().
		Str("mode", mode).
		Dur("duration", duration).
		Int("placed", placed).
		Int("unplaced", unplaced).
		Msg("任务分配完成")
}

// RouteOptimized 记录路线优化
func (l *DispatchLogger) RouteOptimized(repID string, jobs, buffer int) {
	l.base.Info().
		Str("rep_id", repID).
		Int("jobs", jobs).
		Int("buffer_minutes", buffer).
		Msg("路线已优化")
}
