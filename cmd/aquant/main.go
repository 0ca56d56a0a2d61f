// aquant 命令行工具：不依赖Postgres与Redis，直接拉取行情跑完整分析
// 流水线并在终端输出报告。
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"aquant/internal/analysis"
	"aquant/internal/batch"
	"aquant/internal/cache"
	"aquant/internal/config"
	"aquant/internal/export"
	"aquant/internal/logger"
	"aquant/internal/provider"
	"aquant/internal/signal"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "配置文件路径")
		code       = flag.String("code", "", "股票代码，如 600036 或 600036.SH")
		codesFile  = flag.String("file", "", "批量分析的代码文件，每行一个代码")
		years      = flag.Int("years", 0, "回溯年数，0取配置默认值")
		mode       = flag.String("mode", "all", "输出模式: all | combined | best")
		doExport   = flag.Bool("export", false, "导出日线与回测汇总Parquet文件")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("加载配置失败: %v", err)
		}
		cfg = loaded
	}

	// CLI只向终端打日志，级别调高避免干扰报告输出
	logger.Init(logger.Config{
		Level:  logger.LevelWarn,
		Format: logger.FormatText,
		Output: "stderr",
	})
	lg := logger.GetGlobalLogger()

	if cfg.Provider.Tushare.Token == "" {
		log.Fatal("缺少tushare token：设置 TUSHARE_TOKEN 环境变量或写入配置文件")
	}

	prov := provider.NewTushare(provider.TushareConfig{
		Token:     cfg.Provider.Tushare.Token,
		BaseURL:   cfg.Provider.Tushare.BaseURL,
		Timeout:   cfg.Provider.Tushare.Timeout,
		RateLimit: cfg.Provider.Tushare.RateLimit,
		RateBurst: cfg.Provider.Tushare.RateBurst,
	}, lg)
	defer prov.Close()

	svc := analysis.NewService(analysis.Config{
		Years:     cfg.Analysis.Years,
		MinBars:   cfg.Analysis.MinBars,
		Indicator: cfg.Analysis.Indicator,
		Signal:    cfg.Analysis.Signal,
		Backtest:  cfg.Analysis.Backtest,
	}, prov, cache.NewMemoryCache(0), nil, nil, lg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	switch {
	case *code != "":
		runSingle(ctx, svc, cfg, *code, *years, *mode, *doExport)
	case *codesFile != "":
		runBatch(ctx, svc, cfg, *codesFile, *years)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runSingle(ctx context.Context, svc *analysis.Service, cfg *config.Config, code string, years int, mode string, doExport bool) {
	report, err := svc.Analyze(ctx, code, years)
	if err != nil {
		log.Fatalf("分析失败: %v", err)
	}

	printReport(report, mode)

	if doExport {
		exporter := export.NewExporter(export.Config{Dir: cfg.Export.Dir})
		if path, err := exporter.WriteBacktests(report.TsCode, report.Strategies); err != nil {
			log.Printf("导出回测汇总失败: %v", err)
		} else {
			fmt.Printf("\n回测汇总已导出: %s\n", path)
		}
	}
}

func runBatch(ctx context.Context, svc *analysis.Service, cfg *config.Config, codesFile string, years int) {
	codes, err := readCodes(codesFile)
	if err != nil {
		log.Fatalf("读取代码文件失败: %v", err)
	}
	if len(codes) == 0 {
		log.Fatal("代码文件为空")
	}

	runner := batch.NewRunner(batch.Config{
		Workers:  cfg.Batch.Workers,
		MaxWatch: cfg.Batch.MaxWatch,
	}, svc, nil, nil, logger.GetGlobalLogger())

	report, err := runner.Run(ctx, codes, years, func(ev batch.Progress) {
		fmt.Printf("[%d/%d] %s", ev.Done, ev.Total, ev.TsCode)
		if ev.Err != "" {
			fmt.Printf("  失败: %s", ev.Err)
		}
		fmt.Println()
	})
	if err != nil {
		log.Fatalf("批量分析失败: %v", err)
	}

	fmt.Printf("\n共%d只，成功%d，失败%d，耗时%s\n",
		report.Total, report.Succeeded, report.Failed, report.Elapsed.Round(time.Second))

	if len(report.WatchList) == 0 {
		fmt.Println("\n没有满足买点条件的股票")
		return
	}
	fmt.Println("\n========== 买点观察名单 ==========")
	for i, entry := range report.WatchList {
		fmt.Printf("%d. %s %s  评分%.1f(%s)\n", i+1, entry.TsCode, entry.Name, entry.Score, entry.Grade)
		for _, reason := range entry.Reasons {
			fmt.Printf("   - %s\n", reason)
		}
	}
}

func printReport(report *analysis.Report, mode string) {
	title := report.TsCode
	if report.Name != "" {
		title += " " + report.Name
	}
	fmt.Printf("==================== %s ====================\n", title)
	if report.Latest != nil {
		fmt.Printf("最新价: %.2f  (%s)\n", report.Latest.Price, report.Latest.Time.Format("2006-01-02 15:04"))
	}
	fmt.Printf("样本: %d根日K / %d年\n", report.Bars, report.Years)

	if report.Neutral {
		fmt.Println("\n历史数据不足，无法给出有效结论，建议观望")
		return
	}

	fmt.Println("\n---------- 当前信号 ----------")
	for _, strat := range strategiesFor(mode, report) {
		sig, err := report.Signals.Signal(strat)
		if err != nil {
			continue
		}
		fmt.Printf("%-10s %s\n", strat, signalText(sig))
	}
	fmt.Printf("综合加权得分: %+.1f\n", report.Signals.Score)

	if lines := report.Patterns.Describe(); len(lines) > 0 {
		fmt.Println("\n---------- 形态解读 ----------")
		for _, line := range lines {
			fmt.Println(line)
		}
	}

	fmt.Println("\n---------- 策略回测 ----------")
	for _, strat := range strategiesFor(mode, report) {
		res, ok := report.Strategies[strat]
		if !ok || res == nil {
			continue
		}
		fmt.Printf("%-10s 交易%2d次  胜率%5.1f%%  总收益%+7.2f%%  年化%+7.2f%%  最大回撤%6.2f%%  夏普%5.2f\n",
			res.Strategy, res.TradeCount, res.WinRate, res.TotalReturn, res.AnnualReturn,
			res.MaxDrawdown, res.SharpeRatio)
	}

	if report.Score != nil {
		s := report.Score
		fmt.Println("\n---------- 综合评分 ----------")
		fmt.Printf("趋势: %.0f  %s\n", s.Trend.Score, s.Trend.Text)
		fmt.Printf("RSI:  %.0f  %s\n", s.RSI.Score, s.RSI.Text)
		fmt.Printf("量能: %.0f  %s\n", s.Volume.Score, s.Volume.Text)
		fmt.Printf("策略: 胜率%.0f + 年化%.0f + 夏普%.0f  %s\n",
			s.StrategyWinRate, s.StrategyReturn, s.StrategySharpe, s.StrategyText)
		fmt.Printf("\n总分 %.1f  评级 %s\n", s.Total, s.Grade)
		fmt.Printf("建议: %s\n", s.Advice)
	}
}

// strategiesFor selects the signal columns to print for the given mode
func strategiesFor(mode string, report *analysis.Report) []signal.Strategy {
	switch strings.ToLower(mode) {
	case "combined":
		return []signal.Strategy{signal.Combined}
	case "best":
		if best := report.Best(); best != nil {
			return []signal.Strategy{best.Strategy}
		}
		return []signal.Strategy{signal.Combined}
	default:
		return signal.All()
	}
}

func signalText(sig signal.Signal) string {
	switch sig {
	case signal.StrongBuy:
		return "强烈买入 ↑↑"
	case signal.Buy:
		return "买入 ↑"
	case signal.Sell:
		return "卖出 ↓"
	case signal.StrongSell:
		return "强烈卖出 ↓↓"
	default:
		return "持有/观望 -"
	}
}

func readCodes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var codes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes = append(codes, line)
	}
	return codes, scanner.Err()
}
