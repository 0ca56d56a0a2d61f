package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryCache implements an in-memory cache with TTL support and LRU eviction
type MemoryCache struct {
	items    map[string]*memoryItem
	limits   map[string][]time.Time
	mu       sync.Mutex
	maxSize  int
	stopChan chan struct{}
	stopped  bool
}

// memoryItem represents an item in memory cache
type memoryItem struct {
	data       []byte
	expiration time.Time
	accessed   time.Time
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 10000 // Default max size
	}

	mc := &MemoryCache{
		items:    make(map[string]*memoryItem),
		limits:   make(map[string][]time.Time),
		maxSize:  maxSize,
		stopChan: make(chan struct{}),
	}

	// Start cleanup goroutine
	go mc.cleanupLoop()

	return mc
}

// set stores a JSON-serialized value
func (mc *MemoryCache) set(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	// Check if we need to evict items
	if len(mc.items) >= mc.maxSize {
		mc.evictLRU()
	}

	expirationTime := time.Now().Add(expiration)
	if expiration <= 0 {
		expirationTime = time.Now().Add(24 * time.Hour) // Default 24 hour expiration
	}

	mc.items[key] = &memoryItem{
		data:       data,
		expiration: expirationTime,
		accessed:   time.Now(),
	}

	return nil
}

// get retrieves a value and unmarshals it into dest
func (mc *MemoryCache) get(key string, dest interface{}) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, exists := mc.items[key]
	if !exists {
		return ErrMiss
	}

	// Check if item has expired
	if time.Now().After(item.expiration) {
		delete(mc.items, key)
		return ErrMiss
	}

	// Update access time
	item.accessed = time.Now()
	return json.Unmarshal(item.data, dest)
}

// SetDailyBars 缓存日线数据
func (mc *MemoryCache) SetDailyBars(ctx context.Context, tsCode string, bars interface{}, expiration time.Duration) error {
	return mc.set(keyDaily+tsCode, bars, expiration)
}

// GetDailyBars 读取日线数据缓存
func (mc *MemoryCache) GetDailyBars(ctx context.Context, tsCode string, dest interface{}) error {
	return mc.get(keyDaily+tsCode, dest)
}

// SetStockInfo 缓存股票基础信息
func (mc *MemoryCache) SetStockInfo(ctx context.Context, tsCode string, info interface{}, expiration time.Duration) error {
	return mc.set(keyStockInfo+tsCode, info, expiration)
}

// GetStockInfo 读取股票基础信息缓存
func (mc *MemoryCache) GetStockInfo(ctx context.Context, tsCode string, dest interface{}) error {
	return mc.get(keyStockInfo+tsCode, dest)
}

// SetQuote 缓存实时报价
func (mc *MemoryCache) SetQuote(ctx context.Context, symbol string, quote interface{}, expiration time.Duration) error {
	return mc.set(keyQuote+symbol, quote, expiration)
}

// GetQuote 读取实时报价缓存
func (mc *MemoryCache) GetQuote(ctx context.Context, symbol string, dest interface{}) error {
	return mc.get(keyQuote+symbol, dest)
}

// SetReport 缓存分析报告
func (mc *MemoryCache) SetReport(ctx context.Context, tsCode string, years int, report interface{}, expiration time.Duration) error {
	return mc.set(reportKey(tsCode, years), report, expiration)
}

// GetReport 读取分析报告缓存
func (mc *MemoryCache) GetReport(ctx context.Context, tsCode string, years int, dest interface{}) error {
	return mc.get(reportKey(tsCode, years), dest)
}

// AcquireLock 获取锁，锁已被持有时返回false
func (mc *MemoryCache) AcquireLock(ctx context.Context, name string, expiration time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := keyLock + name
	if item, exists := mc.items[key]; exists && time.Now().Before(item.expiration) {
		return false, nil
	}

	mc.items[key] = &memoryItem{
		data:       []byte("1"),
		expiration: time.Now().Add(expiration),
		accessed:   time.Now(),
	}
	return true, nil
}

// ReleaseLock 释放锁
func (mc *MemoryCache) ReleaseLock(ctx context.Context, name string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	delete(mc.items, keyLock+name)
	return nil
}

// CheckRateLimit 滑动窗口限流，超出限制时返回false
func (mc *MemoryCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-window)

	fullKey := keyRateLimit + key
	stamps := mc.limits[fullKey]

	// Remove expired entries
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		mc.limits[fullKey] = kept
		return false, nil
	}

	mc.limits[fullKey] = append(kept, now)
	return true, nil
}

// HealthCheck performs a health check
func (mc *MemoryCache) HealthCheck(ctx context.Context) error {
	return nil
}

// Size returns the current number of items in the cache
func (mc *MemoryCache) Size() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return len(mc.items)
}

// evictLRU evicts the least recently used item; caller holds the lock
func (mc *MemoryCache) evictLRU() {
	if len(mc.items) == 0 {
		return
	}

	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, item := range mc.items {
		if first || item.accessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.accessed
			first = false
		}
	}

	if oldestKey != "" {
		delete(mc.items, oldestKey)
	}
}

// cleanupLoop runs periodic cleanup of expired items
func (mc *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute) // Cleanup every 5 minutes
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.cleanup()
		case <-mc.stopChan:
			return
		}
	}
}

// cleanup removes expired items
func (mc *MemoryCache) cleanup() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	for key, item := range mc.items {
		if now.After(item.expiration) {
			delete(mc.items, key)
		}
	}
}

// Close closes the memory cache
func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if !mc.stopped {
		close(mc.stopChan)
		mc.stopped = true
	}

	return nil
}
