package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"aquant/internal/backtest"
	"aquant/internal/indicator"
	"aquant/internal/signal"
)

// Config represents the application configuration
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	Auth       AuthConfig       `yaml:"auth"`
	Provider   ProviderConfig   `yaml:"provider"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Batch      BatchConfig      `yaml:"batch"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Export     ExportConfig     `yaml:"export"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	CORS       CORSConfig       `yaml:"cors"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	DBName   string        `yaml:"dbname"`
	SSLMode  string        `yaml:"sslmode"`
	MaxOpen  int           `yaml:"max_open"`
	MaxIdle  int           `yaml:"max_idle"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Backend  string        `yaml:"backend"` // memory, redis
	QuoteTTL time.Duration `yaml:"quote_ttl"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	SecretKey        string        `yaml:"secret_key"`
	TokenDuration    time.Duration `yaml:"token_duration"`
	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	LockDuration     time.Duration `yaml:"lock_duration"`
}

// ProviderConfig represents market data provider configuration
type ProviderConfig struct {
	Tushare TushareConfig `yaml:"tushare"`
	Banexg  BanexgConfig  `yaml:"banexg"`
}

// TushareConfig represents the tushare.pro client configuration
type TushareConfig struct {
	Token     string        `yaml:"token"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // 每秒请求数
	RateBurst int           `yaml:"rate_burst"`
}

// BanexgConfig represents the crypto quote provider configuration
type BanexgConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Exchange  string `yaml:"exchange"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Env       string `yaml:"env"` // test, prod
}

// AnalysisConfig represents analysis pipeline configuration
type AnalysisConfig struct {
	Years     int              `yaml:"years"`    // 回测年数
	MinBars   int              `yaml:"min_bars"` // 低于该K线数量时返回中性结果
	Indicator indicator.Config `yaml:"indicator"`
	Signal    signal.Config    `yaml:"signal"`
	Backtest  backtest.Config  `yaml:"backtest"`
}

// BatchConfig represents batch analysis configuration
type BatchConfig struct {
	Workers  int `yaml:"workers"`
	MaxWatch int `yaml:"max_watch"` // 观察名单上限
}

// SchedulerConfig represents scheduled task configuration
type SchedulerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DailyScanCron string `yaml:"daily_scan_cron"`
	CodesFile     string `yaml:"codes_file"`
}

// ExportConfig represents report export configuration
type ExportConfig struct {
	Dir      string        `yaml:"dir"`
	MaxAge   time.Duration `yaml:"max_age"`
	MaxFiles int           `yaml:"max_files"`
}

// MonitoringConfig represents monitoring configuration
type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPath    string `yaml:"prometheus_path"`
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// RateLimitConfig represents rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	Filename string `yaml:"filename"`
}

// Load loads configuration from a YAML file, applies defaults and
// environment variable overrides
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)
	applyEnvOverrides(&config)

	return &config, nil
}

// Default returns a configuration with all defaults and environment
// overrides applied, for running without a config file
func Default() *Config {
	var config Config
	applyDefaults(&config)
	applyEnvOverrides(&config)
	return &config
}

// applyDefaults 应用默认配置值
func applyDefaults(config *Config) {
	if config.App.Name == "" {
		config.App.Name = "aquant"
	}
	if config.App.Version == "" {
		config.App.Version = "1.0.0"
	}
	if config.App.Env == "" {
		config.App.Env = "development"
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 15 * time.Second
	}
	if config.Server.MaxHeaderBytes == 0 {
		config.Server.MaxHeaderBytes = 1 << 20
	}

	if config.Database.Host == "" {
		config.Database.Host = "localhost"
	}
	if config.Database.Port == 0 {
		config.Database.Port = 5432
	}
	if config.Database.User == "" {
		config.Database.User = "aquant"
	}
	if config.Database.DBName == "" {
		config.Database.DBName = "aquant"
	}
	if config.Database.SSLMode == "" {
		config.Database.SSLMode = "disable"
	}
	if config.Database.MaxOpen == 0 {
		config.Database.MaxOpen = 25
	}
	if config.Database.MaxIdle == 0 {
		config.Database.MaxIdle = 5
	}
	if config.Database.Timeout == 0 {
		config.Database.Timeout = 5 * time.Second
	}

	if config.Redis.Addr == "" {
		config.Redis.Addr = "localhost:6379"
	}
	if config.Redis.PoolSize == 0 {
		config.Redis.PoolSize = 10
	}

	if config.Cache.Backend == "" {
		config.Cache.Backend = "memory"
	}
	if config.Cache.QuoteTTL == 0 {
		config.Cache.QuoteTTL = 5 * time.Second
	}

	if config.Auth.TokenDuration == 0 {
		config.Auth.TokenDuration = 24 * time.Hour
	}
	if config.Auth.MaxLoginAttempts == 0 {
		config.Auth.MaxLoginAttempts = 5
	}
	if config.Auth.LockDuration == 0 {
		config.Auth.LockDuration = 15 * time.Minute
	}

	if config.Provider.Tushare.BaseURL == "" {
		config.Provider.Tushare.BaseURL = "http://api.tushare.pro"
	}
	if config.Provider.Tushare.Timeout == 0 {
		config.Provider.Tushare.Timeout = 30 * time.Second
	}
	if config.Provider.Tushare.RateLimit == 0 {
		config.Provider.Tushare.RateLimit = 2
	}
	if config.Provider.Tushare.RateBurst == 0 {
		config.Provider.Tushare.RateBurst = 5
	}
	if config.Provider.Banexg.Exchange == "" {
		config.Provider.Banexg.Exchange = "binance"
	}
	if config.Provider.Banexg.Env == "" {
		config.Provider.Banexg.Env = "prod"
	}

	if config.Analysis.Years == 0 {
		config.Analysis.Years = 1
	}
	if config.Analysis.MinBars == 0 {
		config.Analysis.MinBars = 61
	}

	if config.Batch.Workers == 0 {
		config.Batch.Workers = 4
	}
	if config.Batch.MaxWatch == 0 {
		config.Batch.MaxWatch = 20
	}

	if config.Scheduler.DailyScanCron == "" {
		// 交易日15:30收盘后扫描
		config.Scheduler.DailyScanCron = "0 30 15 * * MON-FRI"
	}

	if config.Export.Dir == "" {
		config.Export.Dir = "exports"
	}
	if config.Export.MaxAge == 0 {
		config.Export.MaxAge = 30 * 24 * time.Hour
	}
	if config.Export.MaxFiles == 0 {
		config.Export.MaxFiles = 200
	}

	if config.Monitoring.PrometheusPath == "" {
		config.Monitoring.PrometheusPath = "/metrics"
	}

	if config.RateLimit.RequestsPerMinute == 0 {
		config.RateLimit.RequestsPerMinute = 120
	}
	if config.RateLimit.Burst == 0 {
		config.RateLimit.Burst = 30
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}
}

// applyEnvOverrides 应用环境变量覆盖，敏感值支持ENC:加密前缀
func applyEnvOverrides(config *Config) {
	em := NewEnvManager("", "")

	config.App.Env = em.GetString("ENV", config.App.Env)

	config.Server.Port = em.GetInt("SERVER_PORT", config.Server.Port)
	config.Server.Host = em.GetString("SERVER_HOST", config.Server.Host)

	config.Database.Host = em.GetString("DATABASE_HOST", config.Database.Host)
	config.Database.Port = em.GetInt("DATABASE_PORT", config.Database.Port)
	config.Database.User = em.GetString("DATABASE_USER", config.Database.User)
	config.Database.Password = em.GetEncryptedString("DATABASE_PASSWORD", config.Database.Password)
	config.Database.DBName = em.GetString("DATABASE_DBNAME", config.Database.DBName)
	config.Database.SSLMode = em.GetString("DATABASE_SSLMODE", config.Database.SSLMode)

	config.Redis.Addr = em.GetString("REDIS_ADDR", config.Redis.Addr)
	config.Redis.Password = em.GetEncryptedString("REDIS_PASSWORD", config.Redis.Password)

	config.Auth.SecretKey = em.GetEncryptedString("AUTH_SECRET", config.Auth.SecretKey)

	config.Provider.Tushare.Token = em.GetEncryptedString("TUSHARE_TOKEN", config.Provider.Tushare.Token)
	config.Provider.Banexg.APIKey = em.GetEncryptedString("BANEXG_API_KEY", config.Provider.Banexg.APIKey)
	config.Provider.Banexg.APISecret = em.GetEncryptedString("BANEXG_API_SECRET", config.Provider.Banexg.APISecret)

	config.Logging.Level = em.GetString("LOG_LEVEL", config.Logging.Level)

	// 兼容不带前缀的TUSHARE_TOKEN
	if config.Provider.Tushare.Token == "" {
		config.Provider.Tushare.Token = os.Getenv("TUSHARE_TOKEN")
	}
}
