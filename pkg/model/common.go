// Package model 定义派工引擎的核心数据模型
package model

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Region 区域标识
type Region string

const (
	RegionNorth   Region = "north"   // 北部
	RegionSouth   Region = "south"   // 南部
	RegionMetro   Region = "metro"   // 都市圈
	RegionUnknown Region = "unknown" // 未知（不限区域）
)

// Normalize 规范化区域值，空值视为未知
func (r Region) Normalize() Region {
	switch Region(strings.ToLower(strings.TrimSpace(string(r)))) {
	case RegionNorth:
		return RegionNorth
	case RegionSouth:
		return RegionSouth
	case RegionMetro:
		return RegionMetro
	default:
		return RegionUnknown
	}
}

// NewID 生成新的标识
func NewID() string {
	return uuid.NewString()
}

// Coordinate 经纬度坐标
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceMiles 计算两个坐标之间的距离（英里）
// 使用 Haversine 公式
func (c Coordinate) DistanceMiles(other Coordinate) float64 {
	const earthRadius = 3958.8 // 地球半径（英里）

	lat1Rad := c.Lat * math.Pi / 180
	lat2Rad := other.Lat * math.Pi / 180
	deltaLat := (other.Lat - c.Lat) * math.Pi / 180
	deltaLng := (other.Lng - c.Lng) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	cc := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * cc
}

// Window 时间窗口（距午夜的分钟数，左闭右开）
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Length 返回窗口长度（分钟）
func (w Window) Length() int {
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

// Overlap 返回两个窗口重叠的分钟数
func (w Window) Overlap(other Window) int {
	start := max(w.Start, other.Start)
	end := min(w.End, other.End)
	if end <= start {
		return 0
	}
	return end - start
}

// StartHour 返回窗口开始的小时
func (w Window) StartHour() int {
	return w.Start / 60
}

// WeekdayKey 返回星期的小写英文键（用于不可用时段表）
func WeekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// NormalizeCity 规范化城市名：小写、去首尾空格、合并空白
func NormalizeCity(city string) string {
	return strings.Join(strings.Fields(strings.ToLower(city)), " ")
}
