package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"aquant/internal/logger"
)

// RedisCache represents Redis cache implementation
type RedisCache struct {
	client *redis.Client
	prefix string
}

// Config represents Redis configuration
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(cfg *Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", "addr", cfg.Addr)
	return &RedisCache{client: client, prefix: "aquant:"}, nil
}

// set stores a JSON-serialized value
func (r *RedisCache) set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, data, expiration).Err()
}

// get retrieves a value and unmarshals it into dest
func (r *RedisCache) get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetDailyBars 缓存日线数据
func (r *RedisCache) SetDailyBars(ctx context.Context, tsCode string, bars interface{}, expiration time.Duration) error {
	return r.set(ctx, keyDaily+tsCode, bars, expiration)
}

// GetDailyBars 读取日线数据缓存
func (r *RedisCache) GetDailyBars(ctx context.Context, tsCode string, dest interface{}) error {
	return r.get(ctx, keyDaily+tsCode, dest)
}

// SetStockInfo 缓存股票基础信息
func (r *RedisCache) SetStockInfo(ctx context.Context, tsCode string, info interface{}, expiration time.Duration) error {
	return r.set(ctx, keyStockInfo+tsCode, info, expiration)
}

// GetStockInfo 读取股票基础信息缓存
func (r *RedisCache) GetStockInfo(ctx context.Context, tsCode string, dest interface{}) error {
	return r.get(ctx, keyStockInfo+tsCode, dest)
}

// SetQuote 缓存实时报价
func (r *RedisCache) SetQuote(ctx context.Context, symbol string, quote interface{}, expiration time.Duration) error {
	return r.set(ctx, keyQuote+symbol, quote, expiration)
}

// GetQuote 读取实时报价缓存
func (r *RedisCache) GetQuote(ctx context.Context, symbol string, dest interface{}) error {
	return r.get(ctx, keyQuote+symbol, dest)
}

// SetReport 缓存分析报告
func (r *RedisCache) SetReport(ctx context.Context, tsCode string, years int, report interface{}, expiration time.Duration) error {
	return r.set(ctx, reportKey(tsCode, years), report, expiration)
}

// GetReport 读取分析报告缓存
func (r *RedisCache) GetReport(ctx context.Context, tsCode string, years int, dest interface{}) error {
	return r.get(ctx, reportKey(tsCode, years), dest)
}

// AcquireLock 通过SETNX获取锁
func (r *RedisCache) AcquireLock(ctx context.Context, name string, expiration time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.prefix+keyLock+name, 1, expiration).Result()
}

// ReleaseLock 释放锁
func (r *RedisCache) ReleaseLock(ctx context.Context, name string) error {
	return r.client.Del(ctx, r.prefix+keyLock+name).Err()
}

// CheckRateLimit 基于有序集合的滑动窗口限流，超出限制时返回false
func (r *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.prefix + keyRateLimit + key
	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()

	// Remove expired entries
	err := r.client.ZRemRangeByScore(ctx, fullKey, "0", fmt.Sprintf("%d", windowStart)).Err()
	if err != nil {
		return false, err
	}

	// Count current entries
	count, err := r.client.ZCard(ctx, fullKey).Result()
	if err != nil {
		return false, err
	}

	// Check if limit exceeded
	if int(count) >= limit {
		return false, nil
	}

	// Add current request
	err = r.client.ZAdd(ctx, fullKey, redis.Z{Score: float64(now), Member: now}).Err()
	if err != nil {
		return false, err
	}

	// Set expiration
	err = r.client.Expire(ctx, fullKey, window).Err()
	if err != nil {
		return false, err
	}

	return true, nil
}

// HealthCheck performs a health check on Redis
func (r *RedisCache) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
