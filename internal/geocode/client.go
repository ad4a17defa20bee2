// Package geocode 将地址解析为坐标：Nominatim 客户端、Redis 缓存与批量预解析
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/roofdispatch/roofdispatch/pkg/logger"
	"github.com/roofdispatch/roofdispatch/pkg/model"
)

// ErrNoResult 地址没有匹配结果
var ErrNoResult = errors.New("geocode: no result")

// ClientConfig 客户端配置
type ClientConfig struct {
	BaseURL    string
	UserAgent  string
	RatePerSec float64
	Timeout    time.Duration
	Suffix     string // 追加到查询地址末尾的区域限定
}

// Client Nominatim 搜索客户端，出站请求按配置限速
type Client struct {
	baseURL   string
	userAgent string
	suffix    string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient 创建客户端
func NewClient(cfg ClientConfig) *Client {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		suffix:    strings.TrimSpace(cfg.Suffix),
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve 解析地址，等待限速器放行
func (c *Client) Resolve(ctx context.Context, address string) (model.Coordinate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.Coordinate{}, err
	}

	params := url.Values{}
	params.Add("q", c.query(address))
	params.Add("format", "json")
	params.Add("limit", "1")
	params.Add("countrycodes", "us")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return model.Coordinate{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error().Err(err).Str("address", address).Msg("nominatim 请求失败")
		return model.Coordinate{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		logger.Error().Int("status", resp.StatusCode).Str("address", address).Msg("nominatim 上游错误")
		return model.Coordinate{}, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return model.Coordinate{}, fmt.Errorf("解析 nominatim 响应失败: %w", err)
	}
	if len(results) == 0 {
		return model.Coordinate{}, ErrNoResult
	}
	return parseCoordinate(results[0])
}

// query 邮编等短地址追加区域限定，避免跨州匹配
func (c *Client) query(address string) string {
	address = strings.TrimSpace(address)
	if c.suffix == "" || strings.Contains(strings.ToLower(address), strings.ToLower(c.suffix)) {
		return address
	}
	return address + ", " + c.suffix
}

func parseCoordinate(r searchResult) (model.Coordinate, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("无效纬度 %q: %w", r.Lat, err)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("无效经度 %q: %w", r.Lon, err)
	}
	return model.Coordinate{Lat: lat, Lng: lng}, nil
}
