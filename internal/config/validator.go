package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator 配置验证器
type Validator struct {
	config *Config
}

// NewValidator 创建配置验证器
func NewValidator(config *Config) *Validator {
	return &Validator{
		config: config,
	}
}

// Validate 验证配置
func (v *Validator) Validate() error {
	var errors []string

	// 验证应用配置
	if err := v.validateApp(); err != nil {
		errors = append(errors, fmt.Sprintf("应用配置错误: %v", err))
	}

	// 验证服务器配置
	if err := v.validateServer(); err != nil {
		errors = append(errors, fmt.Sprintf("服务器配置错误: %v", err))
	}

	// 验证数据库配置
	if err := v.validateDatabase(); err != nil {
		errors = append(errors, fmt.Sprintf("数据库配置错误: %v", err))
	}

	// 验证缓存配置
	if err := v.validateCache(); err != nil {
		errors = append(errors, fmt.Sprintf("缓存配置错误: %v", err))
	}

	// 验证认证配置
	if err := v.validateAuth(); err != nil {
		errors = append(errors, fmt.Sprintf("认证配置错误: %v", err))
	}

	// 验证数据源配置
	if err := v.validateProvider(); err != nil {
		errors = append(errors, fmt.Sprintf("数据源配置错误: %v", err))
	}

	// 验证分析配置
	if err := v.validateAnalysis(); err != nil {
		errors = append(errors, fmt.Sprintf("分析配置错误: %v", err))
	}

	// 验证批量分析配置
	if err := v.validateBatch(); err != nil {
		errors = append(errors, fmt.Sprintf("批量分析配置错误: %v", err))
	}

	// 验证定时任务配置
	if err := v.validateScheduler(); err != nil {
		errors = append(errors, fmt.Sprintf("定时任务配置错误: %v", err))
	}

	// 验证导出配置
	if err := v.validateExport(); err != nil {
		errors = append(errors, fmt.Sprintf("导出配置错误: %v", err))
	}

	// 验证日志配置
	if err := v.validateLogging(); err != nil {
		errors = append(errors, fmt.Sprintf("日志配置错误: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("配置验证失败:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

// validateApp 验证应用配置
func (v *Validator) validateApp() error {
	app := v.config.App

	if app.Name == "" {
		return fmt.Errorf("应用名称不能为空")
	}

	if app.Version == "" {
		return fmt.Errorf("应用版本不能为空")
	}

	validEnvironments := []string{"development", "staging", "production"}
	valid := false
	for _, env := range validEnvironments {
		if app.Env == env {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("无效的环境: %s, 有效值: %v", app.Env, validEnvironments)
	}

	return nil
}

// validateServer 验证服务器配置
func (v *Validator) validateServer() error {
	server := v.config.Server

	if server.Port < 1 || server.Port > 65535 {
		return fmt.Errorf("无效的端口号: %d", server.Port)
	}

	if server.Host == "" {
		return fmt.Errorf("服务器地址不能为空")
	}

	if server.ReadTimeout <= 0 {
		return fmt.Errorf("读取超时必须大于0")
	}

	if server.WriteTimeout <= 0 {
		return fmt.Errorf("写入超时必须大于0")
	}

	return nil
}

// validateDatabase 验证数据库配置
func (v *Validator) validateDatabase() error {
	db := v.config.Database

	if db.Host == "" {
		return fmt.Errorf("数据库地址不能为空")
	}

	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("无效的数据库端口: %d", db.Port)
	}

	if db.User == "" {
		return fmt.Errorf("数据库用户不能为空")
	}

	if db.DBName == "" {
		return fmt.Errorf("数据库名称不能为空")
	}

	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	valid := false
	for _, mode := range validSSLModes {
		if db.SSLMode == mode {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("无效的SSL模式: %s", db.SSLMode)
	}

	if db.MaxIdle > db.MaxOpen {
		return fmt.Errorf("空闲连接数不能超过最大连接数")
	}

	return nil
}

// validateCache 验证缓存配置
func (v *Validator) validateCache() error {
	cache := v.config.Cache

	if cache.Backend != "memory" && cache.Backend != "redis" {
		return fmt.Errorf("无效的缓存后端: %s, 有效值: memory, redis", cache.Backend)
	}

	if cache.Backend == "redis" && v.config.Redis.Addr == "" {
		return fmt.Errorf("使用redis缓存时必须配置redis地址")
	}

	return nil
}

// validateAuth 验证认证配置
func (v *Validator) validateAuth() error {
	auth := v.config.Auth

	if v.config.App.Env == "production" && auth.SecretKey == "" {
		return fmt.Errorf("生产环境必须配置JWT密钥")
	}

	if auth.SecretKey != "" && len(auth.SecretKey) < 16 {
		return fmt.Errorf("JWT密钥长度至少16个字符")
	}

	if auth.TokenDuration <= 0 {
		return fmt.Errorf("令牌有效期必须大于0")
	}

	if auth.MaxLoginAttempts < 1 {
		return fmt.Errorf("最大登录尝试次数至少为1")
	}

	if auth.LockDuration <= 0 {
		return fmt.Errorf("锁定时长必须大于0")
	}

	return nil
}

// validateProvider 验证数据源配置
func (v *Validator) validateProvider() error {
	provider := v.config.Provider

	if provider.Tushare.BaseURL == "" {
		return fmt.Errorf("tushare接口地址不能为空")
	}

	if _, err := url.Parse(provider.Tushare.BaseURL); err != nil {
		return fmt.Errorf("无效的tushare接口地址: %s", provider.Tushare.BaseURL)
	}

	if provider.Tushare.RateLimit <= 0 {
		return fmt.Errorf("tushare请求速率必须大于0")
	}

	if provider.Tushare.Timeout <= 0 {
		return fmt.Errorf("tushare请求超时必须大于0")
	}

	if provider.Banexg.Enabled {
		if provider.Banexg.Exchange == "" {
			return fmt.Errorf("启用行情源时交易所不能为空")
		}
		if provider.Banexg.Env != "test" && provider.Banexg.Env != "prod" {
			return fmt.Errorf("无效的行情源环境: %s, 有效值: test, prod", provider.Banexg.Env)
		}
	}

	return nil
}

// validateAnalysis 验证分析配置
func (v *Validator) validateAnalysis() error {
	analysis := v.config.Analysis

	if analysis.Years < 1 {
		return fmt.Errorf("回测年数至少为1")
	}

	if analysis.MinBars < 1 {
		return fmt.Errorf("最小K线数量至少为1")
	}

	if analysis.Backtest.InitialCapital < 0 {
		return fmt.Errorf("初始资金不能为负数")
	}

	w := analysis.Signal.Weights
	if w.MaMacd < 0 || w.Bollinger < 0 || w.Volume < 0 || w.Kdj < 0 || w.Rsi < 0 {
		return fmt.Errorf("策略权重不能为负数")
	}

	return nil
}

// validateBatch 验证批量分析配置
func (v *Validator) validateBatch() error {
	batch := v.config.Batch

	if batch.Workers < 1 {
		return fmt.Errorf("并发数至少为1")
	}

	if batch.MaxWatch < 1 {
		return fmt.Errorf("观察名单上限至少为1")
	}

	return nil
}

// validateScheduler 验证定时任务配置
func (v *Validator) validateScheduler() error {
	scheduler := v.config.Scheduler

	if scheduler.Enabled && scheduler.DailyScanCron == "" {
		return fmt.Errorf("启用定时任务时cron表达式不能为空")
	}

	return nil
}

// validateExport 验证导出配置
func (v *Validator) validateExport() error {
	export := v.config.Export

	if export.Dir == "" {
		return fmt.Errorf("导出目录不能为空")
	}

	return nil
}

// validateLogging 验证日志配置
func (v *Validator) validateLogging() error {
	logging := v.config.Logging

	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	valid := false
	for _, level := range validLevels {
		if logging.Level == level {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("无效的日志级别: %s", logging.Level)
	}

	if logging.Format != "json" && logging.Format != "text" {
		return fmt.Errorf("无效的日志格式: %s", logging.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	valid = false
	for _, output := range validOutputs {
		if logging.Output == output {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("无效的日志输出: %s", logging.Output)
	}

	if logging.Output == "file" && logging.Filename == "" {
		return fmt.Errorf("输出到文件时必须配置文件名")
	}

	return nil
}
