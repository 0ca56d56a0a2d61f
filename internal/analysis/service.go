// Package analysis orchestrates the full advisory pipeline for one
// instrument: fetch daily history, derive indicators, evaluate the six
// strategy signals, backtest each column and grade the outcome.
//
// The service itself holds no mutable state between calls; concurrency
// happens one level up in the batch runner.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"aquant/internal/backtest"
	"aquant/internal/cache"
	"aquant/internal/database"
	"aquant/internal/indicator"
	"aquant/internal/logger"
	"aquant/internal/market"
	"aquant/internal/monitoring"
	"aquant/internal/provider"
	"aquant/internal/scoring"
	"aquant/internal/signal"
)

// Config tunes the analysis pipeline
type Config struct {
	Years   int // 回测年数
	MinBars int // 低于该K线数量时返回中性结果

	Indicator indicator.Config
	Signal    signal.Config
	Backtest  backtest.Config
}

// DefaultConfig returns the standard pipeline parameters. MinBars is the
// longest indicator window (60) plus one signal warm-up bar.
func DefaultConfig() Config {
	return Config{
		Years:     1,
		MinBars:   61,
		Indicator: indicator.DefaultConfig(),
		Signal:    signal.DefaultConfig(),
		Backtest:  backtest.DefaultConfig(),
	}
}

// Report is the complete advisory output for one instrument
type Report struct {
	TsCode      string                              `json:"ts_code"`
	Name        string                              `json:"name,omitempty"`
	Latest      *market.Quote                       `json:"latest,omitempty"`
	Bars        int                                 `json:"bars"`
	Years       int                                 `json:"years"`
	Neutral     bool                                `json:"neutral"` // 数据不足，仅给出中性结论
	Signals     signal.Set                          `json:"signals"`
	Patterns    scoring.Patterns                    `json:"patterns"`
	Strategies  map[signal.Strategy]*backtest.Result `json:"strategies"`
	Score       *scoring.Score                      `json:"score"`
	GeneratedAt time.Time                           `json:"generated_at"`
}

// Best returns the report's best-performing backtested strategy, nil when
// nothing traded.
func (r *Report) Best() *backtest.Result {
	return scoring.BestResult(r.Strategies)
}

// Service runs the advisory pipeline. DB and metrics are optional: the
// CLI runs with neither.
type Service struct {
	cfg   Config
	prov  provider.DataProvider
	cache cache.Cacher
	db    *database.DB

	indicators *indicator.Engine
	signals    *signal.Engine
	backtester *backtest.Engine
	scorer     *scoring.Engine

	metrics *monitoring.Metrics
	log     logger.Logger
	alog    *logger.AnalysisLogger
}

// NewService wires the pipeline
func NewService(cfg Config, prov provider.DataProvider, cacher cache.Cacher, db *database.DB, metrics *monitoring.Metrics, log logger.Logger) *Service {
	if cfg.Years <= 0 {
		cfg.Years = 1
	}
	if cfg.MinBars <= 0 {
		cfg.MinBars = 61
	}
	if cacher == nil {
		cacher = cache.NewMemoryCache(0)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Service{
		cfg:        cfg,
		prov:       prov,
		cache:      cacher,
		db:         db,
		indicators: indicator.NewEngine(cfg.Indicator),
		signals:    signal.NewEngine(cfg.Signal),
		backtester: backtest.NewEngine(cfg.Backtest),
		scorer:     scoring.NewEngine(),
		metrics:    metrics,
		log:        log,
		alog:       logger.NewAnalysisLogger(log),
	}
}

// Analyze runs the full pipeline for one instrument. years<=0 falls back
// to the configured default. 数据不足返回中性报告而非错误；结构性校验
// 失败（日期乱序、字段缺失）才返回错误。
func (s *Service) Analyze(ctx context.Context, code string, years int) (*Report, error) {
	start := time.Now()
	report, err := s.analyze(ctx, code, years)

	if s.metrics != nil {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "error"
		case report.Neutral:
			outcome = "neutral"
		}
		s.metrics.RecordAnalysis(outcome, time.Since(start))
	}
	if err == nil {
		s.alog.LogAnalysis(report.TsCode, report.Bars, report.Score.Total, report.Score.Grade, time.Since(start))
	}
	return report, err
}

func (s *Service) analyze(ctx context.Context, code string, years int) (*Report, error) {
	tsCode := market.NormalizeCode(code)
	if tsCode == "" {
		return nil, fmt.Errorf("empty instrument code")
	}
	if years <= 0 {
		years = s.cfg.Years
	}

	// 当日报告直接命中缓存
	var cached Report
	if err := s.cache.GetReport(ctx, tsCode, years, &cached); err == nil {
		s.recordCache("report", "hit")
		return &cached, nil
	}
	s.recordCache("report", "miss")

	series, err := s.loadSeries(ctx, tsCode, years)
	if err != nil {
		return nil, err
	}

	report := &Report{
		TsCode:      tsCode,
		Bars:        len(series),
		Years:       years,
		Strategies:  make(map[signal.Strategy]*backtest.Result, len(signal.All())),
		GeneratedAt: time.Now(),
	}
	s.attachInfo(ctx, report)

	// 数据不足：中性结果，不算失败
	if len(series) < s.cfg.MinBars {
		report.Neutral = true
		report.Patterns = scoring.PatternsFrom(indicator.Row{})
		report.Score = s.scorer.Score(report.Patterns, nanValue(), nanValue(), nil)
		s.store(ctx, report)
		return report, nil
	}

	rows, err := s.indicators.Compute(series)
	if err != nil {
		return nil, fmt.Errorf("indicator computation for %s: %w", tsCode, err)
	}

	sets := s.signals.Compute(rows)
	report.Signals = sets[len(sets)-1]

	for _, strat := range signal.All() {
		column, err := signal.Column(sets, strat)
		if err != nil {
			return nil, err
		}
		result, err := s.backtester.Run(series, column, strat)
		if err != nil {
			return nil, fmt.Errorf("backtest %s for %s: %w", strat, tsCode, err)
		}
		report.Strategies[strat] = result
	}

	last := rows[len(rows)-1]
	report.Patterns = scoring.PatternsFrom(last)
	report.Score = s.scorer.Score(report.Patterns, last.RSI, last.VolRatio, report.Strategies)

	s.store(ctx, report)
	return report, nil
}

// loadSeries fetches bars through cache and provider, writing fresh data
// through to the database when one is attached.
func (s *Service) loadSeries(ctx context.Context, tsCode string, years int) (market.Series, error) {
	var series market.Series
	if err := s.cache.GetDailyBars(ctx, fmt.Sprintf("%s:%dy", tsCode, years), &series); err == nil {
		s.recordCache("bars", "hit")
		return series, nil
	}
	s.recordCache("bars", "miss")

	end := time.Now()
	startDate := end.AddDate(-years, 0, 0)

	series, err := s.prov.Daily(ctx, tsCode, startDate, end)
	if err != nil {
		s.recordProvider(err)
		return nil, err
	}
	s.recordProvider(nil)

	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("series for %s: %w", tsCode, err)
	}

	if s.db != nil {
		if err := s.db.UpsertDailyBars(ctx, series); err != nil {
			s.log.Warn("Failed to persist daily bars", "ts_code", tsCode, "error", err.Error())
		}
	}

	ttl := cache.TTLUntilMidnight(time.Now())
	if err := s.cache.SetDailyBars(ctx, fmt.Sprintf("%s:%dy", tsCode, years), series, ttl); err != nil {
		s.log.Warn("Failed to cache daily bars", "ts_code", tsCode, "error", err.Error())
	}
	return series, nil
}

// attachInfo fills the instrument name and latest quote, best effort.
func (s *Service) attachInfo(ctx context.Context, report *Report) {
	if s.db != nil {
		if info, err := s.db.GetStockInfo(ctx, report.TsCode); err == nil && info != nil {
			report.Name = info.Name
		}
	}
	if report.Name == "" {
		if info, err := s.prov.Info(ctx, report.TsCode); err == nil && info != nil {
			report.Name = info.Name
			if s.db != nil {
				if err := s.db.UpsertStockInfo(ctx, []market.StockInfo{*info}); err != nil {
					s.log.Warn("Failed to persist stock info", "ts_code", report.TsCode, "error", err.Error())
				}
			}
		}
	}

	if quote, err := s.prov.Latest(ctx, report.TsCode); err == nil {
		report.Latest = quote
	}
}

// store caches the finished report until end of day and persists it when
// a database is attached.
func (s *Service) store(ctx context.Context, report *Report) {
	ttl := cache.TTLUntilMidnight(time.Now())
	if err := s.cache.SetReport(ctx, report.TsCode, report.Years, report, ttl); err != nil {
		s.log.Warn("Failed to cache report", "ts_code", report.TsCode, "error", err.Error())
	}

	if s.db == nil {
		return
	}
	payload, err := encodeReport(report)
	if err != nil {
		s.log.Warn("Failed to encode report", "ts_code", report.TsCode, "error", err.Error())
		return
	}
	rec := &database.ReportRecord{
		TsCode:         report.TsCode,
		Grade:          report.Score.Grade,
		TotalScore:     report.Score.Total,
		Action:         string(report.Score.Action),
		CombinedSignal: int(report.Signals.Combined),
		Payload:        payload,
	}
	if err := s.db.InsertReport(ctx, rec); err != nil {
		s.log.Warn("Failed to persist report", "ts_code", report.TsCode, "error", err.Error())
	}
}

func (s *Service) recordCache(kind, result string) {
	if s.metrics != nil {
		s.metrics.RecordCacheOp(kind, result)
	}
}

func (s *Service) recordProvider(err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordProviderRequest(s.prov.Name(), status)
}

// Search matches instruments by code prefix or name substring. The
// local instrument table answers first; the provider fills in when the
// table has no match yet.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]market.StockInfo, error) {
	if limit <= 0 {
		limit = 10
	}

	if s.db != nil {
		infos, err := s.db.SearchStocks(ctx, query, limit)
		if err != nil {
			s.log.Warn("Local instrument search failed", "query", query, "error", err.Error())
		} else if len(infos) > 0 {
			return infos, nil
		}
	}

	infos, err := s.prov.Search(ctx, query, limit)
	s.recordProvider(err)
	if err != nil {
		return nil, err
	}
	if s.db != nil && len(infos) > 0 {
		if err := s.db.UpsertStockInfo(ctx, infos); err != nil {
			s.log.Warn("Failed to persist searched instruments", "query", query, "error", err.Error())
		}
	}
	return infos, nil
}

// IsNotFound reports whether the analysis failure was an unknown
// instrument rather than an infrastructure problem.
func IsNotFound(err error) bool {
	return errors.Is(err, provider.ErrNotFound)
}

func encodeReport(report *Report) (json.RawMessage, error) {
	return json.Marshal(report)
}

func nanValue() float64 {
	return math.NaN()
}
