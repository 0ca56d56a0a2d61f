package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aquant/internal/analysis"
	"aquant/internal/api"
	"aquant/internal/auth"
	"aquant/internal/batch"
	"aquant/internal/cache"
	"aquant/internal/config"
	"aquant/internal/database"
	"aquant/internal/export"
	"aquant/internal/logger"
	"aquant/internal/monitoring"
	"aquant/internal/provider"
	"aquant/internal/scheduler"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "配置文件路径")
		migrateUp  = flag.Bool("migrate", false, "启动前运行数据库迁移")
	)
	flag.Parse()

	// .env可选，缺失不报错
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := config.NewValidator(cfg).Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logCfg := logger.Config{
		Level:    logger.LogLevel(cfg.Logging.Level),
		Format:   logger.LogFormat(cfg.Logging.Format),
		Output:   cfg.Logging.Output,
		Filename: cfg.Logging.Filename,
	}
	logger.Init(logCfg)
	lg := logger.GetGlobalLogger()

	// 后台清理过期的滚动日志与导出文件
	logManager := logger.NewLogManager(logCfg)
	if cfg.Logging.Output == "file" && cfg.Logging.Filename != "" {
		logManager.AddCleaner("logs",
			logger.NewLogCleaner(filepath.Dir(cfg.Logging.Filename), 30*24*time.Hour, 0, "*.log*"))
	}
	logManager.AddCleaner("exports",
		logger.NewLogCleaner(cfg.Export.Dir, cfg.Export.MaxAge, cfg.Export.MaxFiles, ""))
	if err := logManager.Start(); err != nil {
		lg.Warn("Failed to start log manager", "error", err.Error())
	}
	defer logManager.Stop()

	// 配置文件存在时监听变更，热更新日志级别
	if _, err := os.Stat(*configPath); err == nil {
		watcher := config.NewConfigWatcher(*configPath, 30*time.Second)
		watcher.AddCallback(func(updated *config.Config) error {
			logger.SetLevel(logger.LogLevel(updated.Logging.Level))
			return nil
		})
		watchCtx, cancelWatch := context.WithCancel(context.Background())
		defer cancelWatch()
		go func() {
			if err := watcher.Start(watchCtx); err != nil && err != context.Canceled {
				lg.Warn("Configuration watcher stopped", "error", err.Error())
			}
		}()
	}

	metrics := monitoring.NewMetrics()

	// 数据库缺失时降级运行：无账号体系、无历史落库
	db := connectDatabase(cfg, lg)
	if db != nil {
		defer db.Close()
		if *migrateUp {
			runMigrations(db, lg)
		}
	}

	cacher, err := cache.NewCacher(cfg.Cache.Backend, &cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		lg.Warn("Cache backend unavailable, falling back to memory", "error", err.Error())
		cacher = cache.NewMemoryCache(0)
	}
	defer cacher.Close()

	var prov provider.DataProvider = provider.NewTushare(provider.TushareConfig{
		Token:     cfg.Provider.Tushare.Token,
		BaseURL:   cfg.Provider.Tushare.BaseURL,
		Timeout:   cfg.Provider.Tushare.Timeout,
		RateLimit: cfg.Provider.Tushare.RateLimit,
		RateBurst: cfg.Provider.Tushare.RateBurst,
	}, lg)

	// 启用币对报价源后，BTC/USDT这类符号分流到banexg做行情与搜索
	if cfg.Provider.Banexg.Enabled {
		crypto, err := provider.NewBanexgQuotes(provider.BanexgConfig{
			Exchange:  cfg.Provider.Banexg.Exchange,
			APIKey:    cfg.Provider.Banexg.APIKey,
			APISecret: cfg.Provider.Banexg.APISecret,
			Env:       cfg.Provider.Banexg.Env,
		})
		if err != nil {
			lg.Warn("Crypto quote provider unavailable, stock data only", "error", err.Error())
		} else {
			prov = provider.NewMux(prov, crypto)
		}
	}
	defer prov.Close()

	svc := analysis.NewService(analysis.Config{
		Years:     cfg.Analysis.Years,
		MinBars:   cfg.Analysis.MinBars,
		Indicator: cfg.Analysis.Indicator,
		Signal:    cfg.Analysis.Signal,
		Backtest:  cfg.Analysis.Backtest,
	}, prov, cacher, db, metrics, lg)

	runner := batch.NewRunner(batch.Config{
		Workers:  cfg.Batch.Workers,
		MaxWatch: cfg.Batch.MaxWatch,
	}, svc, db, metrics, lg)

	var users *auth.UserService
	if db != nil {
		users = auth.NewUserService(db, auth.ServiceConfig{
			MaxLoginAttempts: cfg.Auth.MaxLoginAttempts,
			LockDuration:     cfg.Auth.LockDuration,
		})
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = startScheduler(cfg, runner, lg)
		defer sched.Stop()
	}

	server, err := api.NewServer(cfg, api.Deps{
		Analysis:  svc,
		Runner:    runner,
		Users:     users,
		DB:        db,
		Cacher:    cacher,
		Metrics:   metrics,
		Scheduler: sched,
	})
	if err != nil {
		lg.Fatal("Failed to create API server", "error", err.Error())
	}

	go func() {
		if err := server.Start(); err != nil {
			lg.Fatal("API server failed", "error", err.Error())
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	lg.Info("Received shutdown signal", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		lg.Error("Shutdown error", "error", err.Error())
	}
}

// loadConfig falls back to defaults when the config file is absent
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("Config file %s not found, using defaults", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

func connectDatabase(cfg *config.Config, lg logger.Logger) *database.DB {
	db, err := database.NewConnection(&database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxOpen:  cfg.Database.MaxOpen,
		MaxIdle:  cfg.Database.MaxIdle,
		Timeout:  cfg.Database.Timeout,
	})
	if err != nil {
		lg.Warn("Database unavailable, running without persistence", "error", err.Error())
		return nil
	}
	return db
}

func runMigrations(db *database.DB, lg logger.Logger) {
	migrator, err := database.NewMigrator(db, "migrations")
	if err != nil {
		lg.Fatal("Failed to create migrator", "error", err.Error())
	}
	defer migrator.Close()
	if err := migrator.Up(); err != nil {
		lg.Fatal("Database migration failed", "error", err.Error())
	}
}

func startScheduler(cfg *config.Config, runner *batch.Runner, lg logger.Logger) *scheduler.Scheduler {
	exporter := export.NewExporter(export.Config{Dir: cfg.Export.Dir})
	scan := scheduler.NewDailyScan(cfg.Scheduler.CodesFile, cfg.Analysis.Years, runner, exporter, lg)

	sched := scheduler.NewScheduler()
	sched.RegisterHandler(scheduler.TaskTypeDailyScan, scan)
	if err := sched.AddTask(scheduler.TaskTypeDailyScan, cfg.Scheduler.DailyScanCron); err != nil {
		lg.Error("Failed to schedule daily scan", "error", err.Error())
		return sched
	}
	sched.Start()
	lg.Info("Scheduler started", "daily_scan_cron", cfg.Scheduler.DailyScanCron)
	return sched
}
