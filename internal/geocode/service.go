package geocode

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/geo"
	"github.com/roofdispatch/roofdispatch/pkg/logger"
	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// 命中来源
const (
	SourceMemory = "memory"
	SourceCache  = "cache"
	SourceRemote = "remote"
)

// Observer 解析结果观察者（指标）
type Observer interface {
	ObserveGeocode(source string, ok bool)
}

// 默认的负缓存时长与共享上游查询超时
const (
	DefaultMissTTL      = 24 * time.Hour
	DefaultFetchTimeout = 30 * time.Second
)

// Service 分层解析：内存 -> 二级缓存 -> 上游，同一地址的并发请求合并
type Service struct {
	memory      *geo.MemoryCache
	misses      sync.Map // 地址键 -> 负缓存到期时间
	missTTL     time.Duration
	timeout     time.Duration
	now         func() time.Time
	cache       Cache    // 可为 nil
	resolver    geo.Resolver
	group       singleflight.Group
	concurrency int
	observer    Observer
}

// NewService 创建解析服务
func NewService(resolver geo.Resolver, cache Cache, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{
		memory:      geo.NewMemoryCache(),
		missTTL:     DefaultMissTTL,
		timeout:     DefaultFetchTimeout,
		now:         time.Now,
		cache:       cache,
		resolver:    resolver,
		concurrency: concurrency,
	}
}

// SetMissTTL 设置内存负缓存时长，应与二级缓存的负缓存时长一致
func (s *Service) SetMissTTL(d time.Duration) {
	if d > 0 {
		s.missTTL = d
	}
}

// SetObserver 设置观察者
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// Lookup 返回评分与路线优化使用的只读坐标查询
func (s *Service) Lookup() geo.Lookup {
	return s.memory
}

// Resolve 解析单个地址
func (s *Service) Resolve(ctx context.Context, address string) (model.Coordinate, error) {
	key := geo.Key(address)
	if key == "" {
		return model.Coordinate{}, ErrNoResult
	}
	if c, ok := s.memory.Coordinate(address); ok {
		s.observe(SourceMemory, true)
		return c, nil
	}
	if s.knownMiss(key) {
		s.observe(SourceMemory, false)
		return model.Coordinate{}, ErrNoResult
	}

	// 共享查询不跟随任一调用方的取消，各调用方只停止等待
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.fetch(fctx, address, key)
	})
	select {
	case <-ctx.Done():
		return model.Coordinate{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return model.Coordinate{}, r.Err
		}
		return r.Val.(model.Coordinate), nil
	}
}

func (s *Service) knownMiss(key string) bool {
	v, ok := s.misses.Load(key)
	if !ok {
		return false
	}
	if s.now().Before(v.(time.Time)) {
		return true
	}
	s.misses.CompareAndDelete(key, v)
	return false
}

func (s *Service) rememberMiss(key string) {
	s.misses.Store(key, s.now().Add(s.missTTL))
}

// fetch 查询二级缓存与上游，并回填
func (s *Service) fetch(ctx context.Context, address, key string) (model.Coordinate, error) {
	if s.cache != nil {
		entry, ok, err := s.cache.Get(ctx, address)
		if err != nil {
			logger.Warn().Err(err).Str("address", address).Msg("读取坐标缓存失败")
		} else if ok {
			s.observe(SourceCache, !entry.Miss)
			if entry.Miss {
				s.rememberMiss(key)
				return model.Coordinate{}, ErrNoResult
			}
			s.memory.Set(address, entry.Coord)
			return entry.Coord, nil
		}
	}

	if s.resolver == nil {
		return model.Coordinate{}, ErrNoResult
	}
	coord, err := s.resolver.Resolve(ctx, address)
	if errors.Is(err, ErrNoResult) {
		s.observe(SourceRemote, false)
		s.rememberMiss(key)
		s.store(ctx, address, Entry{Miss: true})
		return model.Coordinate{}, err
	}
	if err != nil {
		s.observe(SourceRemote, false)
		return model.Coordinate{}, apperrors.GeocodeFailed(address, err)
	}

	s.observe(SourceRemote, true)
	s.memory.Set(address, coord)
	s.store(ctx, address, Entry{Coord: coord})
	return coord, nil
}

func (s *Service) store(ctx context.Context, address string, e Entry) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, address, e); err != nil {
		logger.Warn().Err(err).Str("address", address).Msg("写入坐标缓存失败")
	}
}

func (s *Service) observe(source string, ok bool) {
	if s.observer != nil {
		s.observer.ObserveGeocode(source, ok)
	}
}

// PrepareResult 预解析结果
type PrepareResult struct {
	Total    int `json:"total"`
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
}

// Prepare 并发解析当日状态中的全部地址（有并发上限）
// 单个地址失败只记录日志，评分退化为中性分
func (s *Service) Prepare(ctx context.Context, state *model.DayState) (PrepareResult, error) {
	addrs := geo.Addresses(state)
	res := PrepareResult{Total: len(addrs)}
	if len(addrs) == 0 {
		return res, nil
	}

	var resolved, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, addr := range addrs {
		g.Go(func() error {
			if _, err := s.Resolve(gctx, addr); err != nil {
				atomic.AddInt64(&failed, 1)
				if !errors.Is(err, ErrNoResult) {
					logger.WithContext(ctx).Warn().Err(err).Str("address", addr).Msg("地址解析失败")
				}
				return nil
			}
			atomic.AddInt64(&resolved, 1)
			return nil
		})
	}
	_ = g.Wait()

	res.Resolved, res.Failed = int(resolved), int(failed)
	return res, ctx.Err()
}
