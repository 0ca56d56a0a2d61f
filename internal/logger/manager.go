package logger

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// LogManager 日志管理器
type LogManager struct {
	config   Config
	loggers  map[string]Logger
	cleaners map[string]*LogCleaner
	mu       sync.RWMutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewLogManager 创建日志管理器
func NewLogManager(config Config) *LogManager {
	return &LogManager{
		config:   config,
		loggers:  make(map[string]Logger),
		cleaners: make(map[string]*LogCleaner),
		stopChan: make(chan struct{}),
	}
}

// Start 启动日志管理器
func (lm *LogManager) Start() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	// 启动日志清理器
	for name, cleaner := range lm.cleaners {
		lm.wg.Add(1)
		go func(n string, c *LogCleaner) {
			defer lm.wg.Done()
			c.Start(lm.stopChan)
		}(name, cleaner)
	}

	return nil
}

// Stop 停止日志管理器
func (lm *LogManager) Stop() error {
	close(lm.stopChan)
	lm.wg.Wait()
	return nil
}

// GetLogger 获取指定名称的日志器
func (lm *LogManager) GetLogger(name string) Logger {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	if logger, exists := lm.loggers[name]; exists {
		return logger
	}

	// 返回默认日志器
	return globalLogger
}

// AddLogger 添加日志器
func (lm *LogManager) AddLogger(name string, logger Logger) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.loggers[name] = logger
}

// AddCleaner 添加日志清理器
func (lm *LogManager) AddCleaner(name string, cleaner *LogCleaner) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.cleaners[name] = cleaner
}

// LogCleaner 过期文件清理器，用于日志目录和导出目录
type LogCleaner struct {
	dir           string
	maxAge        time.Duration
	maxFiles      int
	checkInterval time.Duration
	pattern       string
	mu            sync.Mutex
}

// NewLogCleaner 创建清理器
func NewLogCleaner(dir string, maxAge time.Duration, maxFiles int, pattern string) *LogCleaner {
	return &LogCleaner{
		dir:           dir,
		maxAge:        maxAge,
		maxFiles:      maxFiles,
		checkInterval: 1 * time.Hour,
		pattern:       pattern,
	}
}

// Start 启动清理器
func (lc *LogCleaner) Start(stopChan <-chan struct{}) {
	ticker := time.NewTicker(lc.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lc.cleanup()
		case <-stopChan:
			return
		}
	}
}

// cleanup 执行清理
func (lc *LogCleaner) cleanup() {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	// 获取文件列表
	files, err := lc.matchedFiles()
	if err != nil {
		fmt.Printf("Failed to list files for cleanup: %v\n", err)
		return
	}

	// 按修改时间排序（最新的在前）
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime().After(files[j].ModTime())
	})

	now := time.Now()
	deletedCount := 0

	for i, file := range files {
		shouldDelete := false

		// 检查文件年龄
		if lc.maxAge > 0 && now.Sub(file.ModTime()) > lc.maxAge {
			shouldDelete = true
		}

		// 检查文件数量限制
		if lc.maxFiles > 0 && i >= lc.maxFiles {
			shouldDelete = true
		}

		if shouldDelete {
			filePath := filepath.Join(lc.dir, file.Name())
			if err := os.RemoveAll(filePath); err != nil {
				fmt.Printf("Failed to delete file %s: %v\n", filePath, err)
			} else {
				deletedCount++
			}
		}
	}

	if deletedCount > 0 {
		fmt.Printf("Cleaned up %d old files in %s\n", deletedCount, lc.dir)
	}
}

// matchedFiles 获取匹配的文件列表
func (lc *LogCleaner) matchedFiles() ([]fs.FileInfo, error) {
	var files []fs.FileInfo

	entries, err := os.ReadDir(lc.dir)
	if err != nil {
		return nil, err
	}

	// 目录也参与清理，导出目录按日期分层
	for _, entry := range entries {
		// 检查文件名模式
		if lc.pattern != "" {
			matched, err := filepath.Match(lc.pattern, entry.Name())
			if err != nil || !matched {
				continue
			}
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, info)
	}

	return files, nil
}

// 全局日志管理器
var globalLogManager *LogManager

// InitLogManager 初始化全局日志管理器
func InitLogManager(config Config) error {
	globalLogManager = NewLogManager(config)
	return globalLogManager.Start()
}

// GetLogManager 获取全局日志管理器
func GetLogManager() *LogManager {
	return globalLogManager
}

// StopLogManager 停止全局日志管理器
func StopLogManager() error {
	if globalLogManager != nil {
		return globalLogManager.Stop()
	}
	return nil
}
