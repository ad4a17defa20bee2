// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	API      APIConfig      `yaml:"api"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Engine   EngineConfig   `yaml:"engine"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name      string `yaml:"name"`
	Env       string `yaml:"env"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json 或 console
}

// DatabaseConfig 数据库配置，未启用时历史仅保存在内存
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectRetries  int           `yaml:"connect_retries"`
	SlowQuery       time.Duration `yaml:"slow_query"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置（坐标缓存）
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	TTL      time.Duration `yaml:"ttl"`
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `yaml:"rate_limit"` // 每客户端每秒请求数
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`
	Keys      []string      `yaml:"keys"` // 为空时不校验API密钥
}

// GeocoderConfig 地址坐标解析配置
type GeocoderConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BaseURL     string        `yaml:"base_url"`
	UserAgent   string        `yaml:"user_agent"`
	RatePerSec  float64       `yaml:"rate_per_sec"`
	Timeout     time.Duration `yaml:"timeout"`
	Suffix      string        `yaml:"suffix"` // 追加到查询地址的区域后缀，如 "AZ, USA"
	Concurrency int           `yaml:"concurrency"`
}

// EngineConfig 派工引擎配置
type EngineConfig struct {
	RosterFile   string `yaml:"roster_file"` // 为空时使用内置名单
	HistoryLimit int    `yaml:"history_limit"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置，存在 .env 文件时先载入
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:      getEnv("APP_NAME", "roofdispatch"),
			Env:       getEnv("APP_ENV", "development"),
			Port:      getEnvInt("APP_PORT", 7012),
			LogLevel:  getEnv("APP_LOG_LEVEL", "info"),
			LogFormat: getEnv("APP_LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "roofdispatch"),
			User:            getEnv("DB_USER", "roofdispatch"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnectRetries:  getEnvInt("DB_CONNECT_RETRIES", 3),
			SlowQuery:       getEnvDuration("DB_SLOW_QUERY", 100*time.Millisecond),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
			TTL:      getEnvDuration("REDIS_GEOCODE_TTL", 30*24*time.Hour),
		},
		API: APIConfig{
			RateLimit: getEnvInt("API_RATE_LIMIT", 50),
			Burst:     getEnvInt("API_RATE_BURST", 100),
			Timeout:   getEnvDuration("API_TIMEOUT", 30*time.Second),
			Keys:      getEnvList("API_KEYS"),
		},
		Geocoder: GeocoderConfig{
			Enabled:     getEnvBool("GEOCODER_ENABLED", false),
			BaseURL:     getEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
			UserAgent:   getEnv("GEOCODER_USER_AGENT", "roofdispatch/1.0"),
			RatePerSec:  getEnvFloat("GEOCODER_RATE", 1),
			Timeout:     getEnvDuration("GEOCODER_TIMEOUT", 5*time.Second),
			Suffix:      getEnv("GEOCODER_SUFFIX", "AZ, USA"),
			Concurrency: getEnvInt("GEOCODER_CONCURRENCY", 4),
		},
		Engine: EngineConfig{
			RosterFile:   getEnv("ENGINE_ROSTER_FILE", ""),
			HistoryLimit: getEnvInt("ENGINE_HISTORY_LIMIT", 50),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("APP_PORT 无效: %d", c.App.Port)
	}
	if c.Geocoder.RatePerSec <= 0 {
		return fmt.Errorf("GEOCODER_RATE 必须大于 0")
	}
	if c.Engine.HistoryLimit <= 0 {
		return fmt.Errorf("ENGINE_HISTORY_LIMIT 必须大于 0")
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
