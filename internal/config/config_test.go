package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	configContent := `
app:
  name: "aquant-test"
  version: "0.9.0"
  env: "production"

server:
  port: 9000
  host: "127.0.0.1"

database:
  host: "db.internal"
  port: 5433
  user: "quant"
  dbname: "quant_test"

provider:
  tushare:
    token: "file-token"
    timeout: 10s

analysis:
  years: 3
  backtest:
    initial_capital: 50000
`

	configPath := writeTempConfig(t, configContent)

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// 验证配置值
	if config.App.Name != "aquant-test" {
		t.Errorf("Expected app name 'aquant-test', got '%s'", config.App.Name)
	}

	if config.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", config.Server.Port)
	}

	if config.Database.Host != "db.internal" {
		t.Errorf("Expected database host 'db.internal', got '%s'", config.Database.Host)
	}

	if config.Provider.Tushare.Token != "file-token" {
		t.Errorf("Expected tushare token from file, got '%s'", config.Provider.Tushare.Token)
	}

	if config.Analysis.Years != 3 {
		t.Errorf("Expected 3 years, got %d", config.Analysis.Years)
	}

	if config.Analysis.Backtest.InitialCapital != 50000 {
		t.Errorf("Expected initial capital 50000, got %v", config.Analysis.Backtest.InitialCapital)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	configPath := writeTempConfig(t, "app:\n  name: minimal\n")

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", config.Server.Port)
	}
	if config.Database.Port != 5432 {
		t.Errorf("Expected default database port 5432, got %d", config.Database.Port)
	}
	if config.Cache.Backend != "memory" {
		t.Errorf("Expected default cache backend 'memory', got '%s'", config.Cache.Backend)
	}
	if config.Auth.MaxLoginAttempts != 5 {
		t.Errorf("Expected 5 max login attempts, got %d", config.Auth.MaxLoginAttempts)
	}
	if config.Auth.LockDuration != 15*time.Minute {
		t.Errorf("Expected 15m lock duration, got %v", config.Auth.LockDuration)
	}
	if config.Provider.Tushare.BaseURL != "http://api.tushare.pro" {
		t.Errorf("Expected default tushare url, got '%s'", config.Provider.Tushare.BaseURL)
	}
	if config.Analysis.MinBars != 61 {
		t.Errorf("Expected default min bars 61, got %d", config.Analysis.MinBars)
	}
	if config.Batch.Workers != 4 {
		t.Errorf("Expected default 4 workers, got %d", config.Batch.Workers)
	}
	if config.Scheduler.DailyScanCron != "0 30 15 * * MON-FRI" {
		t.Errorf("Unexpected default scan cron: '%s'", config.Scheduler.DailyScanCron)
	}
}

func TestLoadWithEnvironmentOverride(t *testing.T) {
	// 设置环境变量
	t.Setenv("AQUANT_SERVER_PORT", "9090")
	t.Setenv("AQUANT_DATABASE_HOST", "db.example.com")
	t.Setenv("AQUANT_TUSHARE_TOKEN", "env-token")

	configContent := `
server:
  port: 8080
  host: "localhost"

database:
  host: "localhost"
  port: 5432
`

	configPath := writeTempConfig(t, configContent)

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// 验证环境变量覆盖
	if config.Server.Port != 9090 {
		t.Errorf("Expected port 9090 (from env), got %d", config.Server.Port)
	}

	if config.Database.Host != "db.example.com" {
		t.Errorf("Expected database host 'db.example.com' (from env), got '%s'", config.Database.Host)
	}

	if config.Provider.Tushare.Token != "env-token" {
		t.Errorf("Expected tushare token 'env-token' (from env), got '%s'", config.Provider.Tushare.Token)
	}
}

func TestBareTushareTokenFallback(t *testing.T) {
	t.Setenv("TUSHARE_TOKEN", "bare-token")

	config := Default()
	if config.Provider.Tushare.Token != "bare-token" {
		t.Errorf("Expected bare TUSHARE_TOKEN fallback, got '%s'", config.Provider.Tushare.Token)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Auth.SecretKey = "0123456789abcdef"

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "valid config",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid port",
			mutate:      func(c *Config) { c.Server.Port = -1 },
			expectError: true,
		},
		{
			name:        "empty app name",
			mutate:      func(c *Config) { c.App.Name = "" },
			expectError: true,
		},
		{
			name:        "invalid environment",
			mutate:      func(c *Config) { c.App.Env = "qa" },
			expectError: true,
		},
		{
			name:        "production requires secret",
			mutate:      func(c *Config) { c.App.Env = "production"; c.Auth.SecretKey = "" },
			expectError: true,
		},
		{
			name:        "short secret",
			mutate:      func(c *Config) { c.Auth.SecretKey = "short" },
			expectError: true,
		},
		{
			name:        "redis cache without addr",
			mutate:      func(c *Config) { c.Cache.Backend = "redis"; c.Redis.Addr = "" },
			expectError: true,
		},
		{
			name:        "negative strategy weight",
			mutate:      func(c *Config) { c.Analysis.Signal.Weights.Rsi = -1 },
			expectError: true,
		},
		{
			name:        "zero batch workers",
			mutate:      func(c *Config) { c.Batch.Workers = 0 },
			expectError: true,
		},
		{
			name:        "file logging without filename",
			mutate:      func(c *Config) { c.Logging.Output = "file" },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := *valid
			tt.mutate(&config)

			err := NewValidator(&config).Validate()
			if tt.expectError && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no validation error, got: %v", err)
			}
		})
	}
}

func TestEnvManagerEncryption(t *testing.T) {
	t.Setenv("AQUANT_ENCRYPTION_KEY", "unit-test-key")

	em := NewEnvManager("", "")

	if err := em.SetEncryptedString("SECRET_VALUE", "tushare-token-123"); err != nil {
		t.Fatalf("Failed to set encrypted value: %v", err)
	}

	// 环境变量中应为密文
	raw := os.Getenv("AQUANT_SECRET_VALUE")
	if raw == "" || raw == "tushare-token-123" {
		t.Errorf("Expected encrypted value in env, got '%s'", raw)
	}
	if len(raw) < 4 || raw[:4] != "ENC:" {
		t.Errorf("Expected ENC: prefix, got '%s'", raw)
	}

	// 读取时应解密
	got := em.GetEncryptedString("SECRET_VALUE", "")
	if got != "tushare-token-123" {
		t.Errorf("Expected decrypted value, got '%s'", got)
	}

	// 未加密的值原样返回
	t.Setenv("AQUANT_PLAIN_VALUE", "plain")
	if got := em.GetEncryptedString("PLAIN_VALUE", ""); got != "plain" {
		t.Errorf("Expected plain value, got '%s'", got)
	}
}

func TestConfigWatcher(t *testing.T) {
	configPath := writeTempConfig(t, "server:\n  port: 8080\n")

	watcher := NewConfigWatcher(configPath, 50*time.Millisecond)

	// 设置变更回调
	changed := make(chan *Config, 1)
	watcher.AddCallback(func(config *Config) error {
		select {
		case changed <- config:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go watcher.Start(ctx)

	// 等待watcher启动并记录初始修改时间
	time.Sleep(100 * time.Millisecond)

	// 修改配置文件
	newContent := "server:\n  port: 9090\n"
	if err := os.WriteFile(configPath, []byte(newContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	// 某些文件系统的mtime精度为1秒
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(configPath, future, future); err != nil {
		t.Fatalf("Failed to bump mtime: %v", err)
	}

	// 等待变更检测
	select {
	case config := <-changed:
		if config.Server.Port != 9090 {
			t.Errorf("Expected reloaded port 9090, got %d", config.Server.Port)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change should be detected")
	}

	if !watcher.IsRunning() {
		t.Error("watcher should still be running")
	}

	cancel()
}
