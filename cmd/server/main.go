// RoofDispatch 屋面检测派工服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roofdispatch/roofdispatch/internal/config"
	"github.com/roofdispatch/roofdispatch/internal/database"
	"github.com/roofdispatch/roofdispatch/internal/geocode"
	"github.com/roofdispatch/roofdispatch/internal/handler"
	"github.com/roofdispatch/roofdispatch/internal/metrics"
	"github.com/roofdispatch/roofdispatch/internal/middleware"
	"github.com/roofdispatch/roofdispatch/internal/repository"
	"github.com/roofdispatch/roofdispatch/internal/roster"
	"github.com/roofdispatch/roofdispatch/pkg/dispatcher"
	"github.com/roofdispatch/roofdispatch/pkg/geo"
	"github.com/roofdispatch/roofdispatch/pkg/history"
	"github.com/roofdispatch/roofdispatch/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
	})

	fmt.Printf("RoofDispatch 派工引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	ctx := context.Background()
	m := metrics.New()

	// ========================================
	// 名单与持久化
	// ========================================

	rs, err := roster.Load(cfg.Engine.RosterFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载名单失败")
	}

	var (
		store  history.Store
		lister handler.DayLister
		db     *database.DB
	)
	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("连接数据库失败")
		}
		defer db.Close()

		repo := repository.NewDayStateRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("初始化数据表失败")
		}
		store, lister = repo, repo
	}
	book := history.NewBook(rs.Seeder(), store, cfg.Engine.HistoryLimit)

	// ========================================
	// 坐标解析
	// ========================================

	var cache geocode.Cache
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr()).Msg("Redis 不可用，坐标缓存仅在内存中")
		} else {
			cache = geocode.NewRedisCache(rdb, cfg.Redis.TTL)
		}
	}

	var resolver geo.Resolver
	if cfg.Geocoder.Enabled {
		resolver = geocode.NewClient(geocode.ClientConfig{
			BaseURL:    cfg.Geocoder.BaseURL,
			UserAgent:  cfg.Geocoder.UserAgent,
			RatePerSec: cfg.Geocoder.RatePerSec,
			Timeout:    cfg.Geocoder.Timeout,
			Suffix:     cfg.Geocoder.Suffix,
		})
	}
	geocoder := geocode.NewService(resolver, cache, cfg.Geocoder.Concurrency)
	geocoder.SetObserver(m)
	if cfg.Redis.TTL > 0 {
		geocoder.SetMissTTL(cfg.Redis.TTL / 30)
	}

	engine := dispatcher.NewDispatchEngine(geocoder.Lookup())
	engine.SetRecorder(m)

	var preparer handler.Preparer
	if resolver != nil || cache != nil {
		preparer = geocoder
	}

	// ========================================
	// 路由
	// ========================================

	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":"%s","service":"%s"}`, status, cfg.App.Name)
	})

	// 版本信息端点
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	engineHandler := handler.NewEngineHandler(engine, preparer, geocoder.Lookup())
	engineHandler.Register(mux)
	handler.NewDayHandler(engineHandler, book, lister, m).Register(mux)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
	}

	// ========================================
	// 中间件
	// ========================================

	// 执行顺序：recovery -> requestID -> securityHeaders -> cors -> rateLimit -> auth -> timeout -> logging -> handler
	limiter := middleware.NewRateLimiter(float64(cfg.API.RateLimit), cfg.API.Burst)
	var h http.Handler = middleware.Logging(m)(mux)
	h = http.TimeoutHandler(h, cfg.API.Timeout, `{"error":true,"code":"TIMEOUT","message":"请求超时"}`)
	h = middleware.APIKeyAuth(cfg.API.Keys, "/health", "/version", cfg.Metrics.Path)(h)
	h = limiter.Middleware(h)
	h = middleware.Recovery(middleware.RequestID(middleware.SecurityHeaders(middleware.CORS(h))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("env", cfg.App.Env).
			Str("version", Version).
			Int("reps", len(rs.Reps)).
			Bool("database", store != nil).
			Bool("redis_cache", cache != nil).
			Bool("geocoder", resolver != nil).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		return
	}

	logger.Info().Msg("服务器已关闭")
}
