// Package cache 提供行情与分析结果的缓存层，支持内存和Redis两种后端。
// 所有值以JSON存取，键按数据类别加前缀。
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss 缓存未命中
var ErrMiss = errors.New("cache: miss")

// IsMiss reports whether the error is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// Cacher defines the interface for cache operations
type Cacher interface {
	// 行情数据
	SetDailyBars(ctx context.Context, tsCode string, bars interface{}, expiration time.Duration) error
	GetDailyBars(ctx context.Context, tsCode string, dest interface{}) error
	SetStockInfo(ctx context.Context, tsCode string, info interface{}, expiration time.Duration) error
	GetStockInfo(ctx context.Context, tsCode string, dest interface{}) error
	SetQuote(ctx context.Context, symbol string, quote interface{}, expiration time.Duration) error
	GetQuote(ctx context.Context, symbol string, dest interface{}) error

	// 分析报告，按股票代码和回测年数区分
	SetReport(ctx context.Context, tsCode string, years int, report interface{}, expiration time.Duration) error
	GetReport(ctx context.Context, tsCode string, years int, dest interface{}) error

	// 锁
	AcquireLock(ctx context.Context, name string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error

	// 限流
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// NewCacher creates a new cache instance based on the backend name
func NewCacher(backend string, cfg *Config) (Cacher, error) {
	if backend == "redis" {
		return NewRedisCache(cfg)
	}
	return NewMemoryCache(0), nil
}

// TTLUntilMidnight 返回到下一个自然日零点(北京时间)的时长。
// 日线数据当天收盘后不再变化，缓存到次日即可。
func TTLUntilMidnight(now time.Time) time.Duration {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return next.Sub(local)
}

// 缓存键前缀
const (
	keyDaily     = "daily:"
	keyStockInfo = "stock:"
	keyQuote     = "quote:"
	keyReport    = "report:"
	keyLock      = "lock:"
	keyRateLimit = "ratelimit:"
)

func reportKey(tsCode string, years int) string {
	return fmt.Sprintf("%s%s:%dy", keyReport, tsCode, years)
}
