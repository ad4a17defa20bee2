// Package geo 坐标查询接口与只读缓存
package geo

import (
	"context"
	"strings"
	"sync"

	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// Lookup 只读坐标查询，评分与路线优化使用
// 未命中时返回 false，调用方退化为中性分
type Lookup interface {
	Coordinate(address string) (model.Coordinate, bool)
}

// Resolver 地址解析器（可能阻塞）
type Resolver interface {
	Resolve(ctx context.Context, address string) (model.Coordinate, error)
}

// Key 规范化地址缓存键
func Key(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

// MemoryCache 进程内坐标缓存
type MemoryCache struct {
	mu     sync.RWMutex
	coords map[string]model.Coordinate
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{coords: make(map[string]model.Coordinate)}
}

// Coordinate 查询坐标
func (c *MemoryCache) Coordinate(address string) (model.Coordinate, bool) {
	key := Key(address)
	if key == "" {
		return model.Coordinate{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	coord, ok := c.coords[key]
	return coord, ok
}

// Set 写入坐标
func (c *MemoryCache) Set(address string, coord model.Coordinate) {
	key := Key(address)
	if key == "" {
		return
	}
	c.mu.Lock()
	c.coords[key] = coord
	c.mu.Unlock()
}

// Len 返回缓存条目数
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.coords)
}

// None 不提供任何坐标的查询
type None struct{}

// Coordinate 始终未命中
func (None) Coordinate(string) (model.Coordinate, bool) {
	return model.Coordinate{}, false
}

// JobCoordinate 查询任务坐标
func JobCoordinate(l Lookup, job *model.Job) (model.Coordinate, bool) {
	if l == nil || job == nil {
		return model.Coordinate{}, false
	}
	return l.Coordinate(job.FullAddress())
}

// HomeCoordinate 查询代表常驻地坐标（以常驻邮编解析）
func HomeCoordinate(l Lookup, rep *model.Representative) (model.Coordinate, bool) {
	if l == nil || rep == nil {
		return model.Coordinate{}, false
	}
	home := rep.HomePostalCode()
	if home == "" {
		return model.Coordinate{}, false
	}
	return l.Coordinate(home)
}

// Addresses 收集当日状态中需要解析的全部地址（去重，保持首次出现顺序）
func Addresses(state *model.DayState) []string {
	if state == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	add := func(addr string) {
		k := Key(addr)
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, addr)
	}
	for _, r := range state.Reps {
		add(r.HomePostalCode())
		for _, j := range r.Schedule.Jobs() {
			add(j.FullAddress())
		}
	}
	for _, j := range state.Unassigned {
		add(j.FullAddress())
	}
	return out
}
