// Package batch fans the analysis pipeline out over a list of instrument
// codes. Every code is analyzed independently; one failure becomes one
// error entry and never aborts the job.
package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aquant/internal/analysis"
	"aquant/internal/database"
	"aquant/internal/logger"
	"aquant/internal/market"
	"aquant/internal/monitoring"
	"aquant/internal/scoring"
	"aquant/internal/signal"
)

// Config tunes the batch fan-out
type Config struct {
	Workers  int
	MaxWatch int // 观察名单上限
}

// DefaultConfig returns the standard fan-out parameters
func DefaultConfig() Config {
	return Config{Workers: 4, MaxWatch: 20}
}

// Outcome is the per-code result inside a batch report. Exactly one of
// Report/Err is set.
type Outcome struct {
	TsCode   string           `json:"ts_code"`
	Report   *analysis.Report `json:"report,omitempty"`
	Err      string           `json:"error,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// WatchEntry is one buy-point candidate on the watch list
type WatchEntry struct {
	TsCode  string   `json:"ts_code"`
	Name    string   `json:"name,omitempty"`
	Score   float64  `json:"score"`
	Grade   string   `json:"grade"`
	Reasons []string `json:"reasons"`
}

// Report is the aggregate outcome of one batch job
type Report struct {
	JobID      uuid.UUID     `json:"job_id"`
	Total      int           `json:"total"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Outcomes   []Outcome     `json:"outcomes"`
	WatchList  []WatchEntry  `json:"watch_list"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Progress is one progress event published while a job runs
type Progress struct {
	JobID     uuid.UUID `json:"job_id"`
	TsCode    string    `json:"ts_code"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Err       string    `json:"error,omitempty"`
}

// ProgressFunc receives progress events. Called from worker goroutines.
type ProgressFunc func(Progress)

// Runner executes batch analysis jobs
type Runner struct {
	cfg     Config
	svc     *analysis.Service
	db      *database.DB
	metrics *monitoring.Metrics
	blog    *logger.BatchLogger
}

// NewRunner creates a batch runner. db and metrics may be nil.
func NewRunner(cfg Config, svc *analysis.Service, db *database.DB, metrics *monitoring.Metrics, log logger.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.MaxWatch <= 0 {
		cfg.MaxWatch = DefaultConfig().MaxWatch
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Runner{
		cfg:     cfg,
		svc:     svc,
		db:      db,
		metrics: metrics,
		blog:    logger.NewBatchLogger(log),
	}
}

// Run analyzes all codes with a bounded worker pool and returns the
// aggregate report. progress may be nil. 取消上下文后未开始的代码会
// 记为取消错误，已开始的分析照常完成。
func (r *Runner) Run(ctx context.Context, codes []string, years int, progress ProgressFunc) (*Report, error) {
	jobID := uuid.New()
	started := time.Now()

	normalized := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		tsCode := market.NormalizeCode(code)
		if tsCode == "" || seen[tsCode] {
			continue
		}
		seen[tsCode] = true
		normalized = append(normalized, tsCode)
	}

	if r.metrics != nil {
		r.metrics.BatchJobStarted()
		defer r.metrics.BatchJobFinished()
	}
	if r.db != nil {
		if err := r.db.CreateJob(ctx, jobID, len(normalized)); err != nil {
			return nil, err
		}
	}

	jobs := make(chan string)
	outcomes := make([]Outcome, 0, len(normalized))

	var mu sync.Mutex
	var done, succeeded, failed int

	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tsCode := range jobs {
				outcome := r.analyzeOne(ctx, tsCode, years)

				mu.Lock()
				outcomes = append(outcomes, outcome)
				done++
				if outcome.Err == "" {
					succeeded++
				} else {
					failed++
				}
				ev := Progress{
					JobID: jobID, TsCode: tsCode,
					Done: done, Total: len(normalized),
					Succeeded: succeeded, Failed: failed,
					Err: outcome.Err,
				}
				mu.Unlock()

				if progress != nil {
					progress(ev)
				}
				if r.db != nil {
					if err := r.db.UpdateJobProgress(ctx, jobID, ev.Succeeded, ev.Failed); err != nil {
						logger.Warn("Failed to update job progress", "job_id", jobID.String(), "error", err.Error())
					}
				}
			}
		}()
	}

	for _, tsCode := range normalized {
		jobs <- tsCode
	}
	close(jobs)
	wg.Wait()

	// worker完成顺序不确定，按代码排序保证报告确定性
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].TsCode < outcomes[j].TsCode
	})

	report := &Report{
		JobID:      jobID,
		Total:      len(normalized),
		Succeeded:  succeeded,
		Failed:     failed,
		Outcomes:   outcomes,
		WatchList:  r.buildWatchList(outcomes),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	report.Elapsed = report.FinishedAt.Sub(started)

	if r.db != nil {
		status := "completed"
		if failed == len(normalized) && len(normalized) > 0 {
			status = "failed"
		}
		if err := r.db.FinishJob(ctx, jobID, status, succeeded, failed); err != nil {
			logger.Warn("Failed to finish job", "job_id", jobID.String(), "error", err.Error())
		}
	}

	r.blog.LogJob(jobID.String(), report.Total, succeeded, failed, report.Elapsed)
	return report, nil
}

// analyzeOne isolates a single code: panics and errors both degrade to an
// error outcome.
func (r *Runner) analyzeOne(ctx context.Context, tsCode string, years int) (outcome Outcome) {
	start := time.Now()
	outcome = Outcome{TsCode: tsCode}
	defer func() {
		outcome.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			outcome.Report = nil
			outcome.Err = "panic during analysis"
			logger.Error("Recovered analysis panic", "ts_code", tsCode, "panic", rec)
		}
	}()

	if err := ctx.Err(); err != nil {
		outcome.Err = err.Error()
		return outcome
	}

	report, err := r.svc.Analyze(ctx, tsCode, years)
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}
	outcome.Report = report
	return outcome
}

// buildWatchList applies the buy-point rules to the successful outcomes:
// 最优策略当前信号看多、综合信号看多、RSI超卖且RSI策略胜率≥60、或总分≥65。
func (r *Runner) buildWatchList(outcomes []Outcome) []WatchEntry {
	var watch []WatchEntry
	for _, outcome := range outcomes {
		if outcome.Report == nil || outcome.Report.Neutral {
			continue
		}
		if len(watch) >= r.cfg.MaxWatch {
			break
		}

		report := outcome.Report
		var reasons []string

		if best := report.Best(); best != nil {
			if sig, err := report.Signals.Signal(best.Strategy); err == nil && sig >= signal.Buy {
				reasons = append(reasons, "最优策略"+string(best.Strategy)+"发出买入信号")
			}
		}
		if report.Signals.Combined >= signal.Buy {
			reasons = append(reasons, "综合信号看多")
		}
		if rsiRes, ok := report.Strategies[signal.Rsi]; ok && rsiRes != nil {
			if report.Patterns.RSI == scoring.PatternOversold && rsiRes.TradeCount > 0 && rsiRes.WinRate >= 60 {
				reasons = append(reasons, "RSI超卖且该策略历史胜率较高")
			}
		}
		if report.Score != nil && report.Score.Total >= 65 {
			reasons = append(reasons, "综合评分达到买入档")
		}

		if len(reasons) == 0 {
			continue
		}
		entry := WatchEntry{
			TsCode:  report.TsCode,
			Name:    report.Name,
			Reasons: reasons,
		}
		if report.Score != nil {
			entry.Score = report.Score.Total
			entry.Grade = report.Score.Grade
		}
		watch = append(watch, entry)
	}
	return watch
}
