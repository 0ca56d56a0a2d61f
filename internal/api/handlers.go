package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aquant/internal/analysis"
	"aquant/internal/batch"
	"aquant/internal/cache"
	"aquant/internal/database"
	"aquant/internal/logger"
	"aquant/internal/scheduler"
	"aquant/internal/signal"
)

// jobState is the lifecycle of an in-flight batch job
type jobState string

const (
	jobPending   jobState = "pending"
	jobRunning   jobState = "running"
	jobCompleted jobState = "completed"
	jobFailed    jobState = "failed"
)

// jobEntry tracks one submitted batch job in memory
type jobEntry struct {
	id        uuid.UUID
	state     jobState
	total     int
	done      int
	succeeded int
	failed    int
	report    *batch.Report
	err       string
	createdAt time.Time

	mu sync.Mutex
}

// jobView is the JSON projection of a job entry
type jobView struct {
	JobID     string        `json:"job_id"`
	State     jobState      `json:"state"`
	Total     int           `json:"total"`
	Done      int           `json:"done"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Report    *batch.Report `json:"report,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

func (j *jobEntry) view() *jobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &jobView{
		JobID:     j.id.String(),
		State:     j.state,
		Total:     j.total,
		Done:      j.done,
		Succeeded: j.succeeded,
		Failed:    j.failed,
		Report:    j.report,
		Error:     j.err,
		CreatedAt: j.createdAt,
	}
}

// jobStore keeps submitted jobs in memory for status polling and the
// progress stream. 进程重启后历史任务只能查数据库。
type jobStore struct {
	jobs map[string]*jobEntry
	mu   sync.RWMutex
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*jobEntry)}
}

func (s *jobStore) put(entry *jobEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[entry.id.String()] = entry
}

func (s *jobStore) get(id string) (*jobEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.jobs[id]
	return entry, ok
}

// Handlers bundles the HTTP handlers and their dependencies
type Handlers struct {
	svc    *analysis.Service
	runner *batch.Runner
	jobs   *jobStore
	ws     *WebSocketHandler
	db     *database.DB
	cacher cache.Cacher
	sched  *scheduler.Scheduler

	maxBatchCodes int
	batchTimeout  time.Duration
}

// NewHandlers creates the handler set. db, cacher and sched may be nil,
// the health report then marks them as absent.
func NewHandlers(svc *analysis.Service, runner *batch.Runner, jobs *jobStore, ws *WebSocketHandler, db *database.DB, cacher cache.Cacher, sched *scheduler.Scheduler) *Handlers {
	return &Handlers{
		svc:           svc,
		runner:        runner,
		jobs:          jobs,
		ws:            ws,
		db:            db,
		cacher:        cacher,
		sched:         sched,
		maxBatchCodes: 20,
		batchTimeout:  30 * time.Minute,
	}
}

// Analyze handles GET /api/v1/analyze/:code
// @Summary 单只股票分析
// @Description 运行指标、信号、回测与评分流水线，返回完整分析报告
// @Tags analysis
// @Param code path string true "股票代码，如 600036 或 600036.SH"
// @Param years query int false "回溯年数，默认取配置值" default(1)
// @Success 200 {object} Response{data=analysis.Report}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /api/v1/analyze/{code} [get]
func (h *Handlers) Analyze(c *gin.Context) {
	code := c.Param("code")
	years := parseYears(c.Query("years"))

	report, err := h.svc.Analyze(c.Request.Context(), code, years)
	if err != nil {
		status := http.StatusInternalServerError
		if analysis.IsNotFound(err) {
			status = http.StatusNotFound
		}
		respondError(c, status, err)
		return
	}
	respondOK(c, report)
}

// BatchSubmit handles POST /api/v1/batch
// @Summary 提交批量分析任务
// @Description 异步分析最多20只股票，返回任务ID供查询与订阅进度
// @Tags batch
// @Accept json
// @Param request body BatchRequest true "代码列表"
// @Success 202 {object} Response{data=BatchSubmitted}
// @Failure 400 {object} Response
// @Security BearerAuth
// @Router /api/v1/batch [post]
func (h *Handlers) BatchSubmit(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if len(req.Codes) > h.maxBatchCodes {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "too many codes, limit is " + strconv.Itoa(h.maxBatchCodes),
		})
		return
	}

	entry := &jobEntry{
		id:        uuid.New(),
		state:     jobPending,
		total:     len(req.Codes),
		createdAt: time.Now(),
	}
	h.jobs.put(entry)

	go h.runBatch(entry, req.Codes, req.Years)

	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data:    BatchSubmitted{JobID: entry.id.String()},
	})
}

// runBatch drives one job to completion off the request goroutine
func (h *Handlers) runBatch(entry *jobEntry, codes []string, years int) {
	ctx, cancel := context.WithTimeout(context.Background(), h.batchTimeout)
	defer cancel()

	entry.mu.Lock()
	entry.state = jobRunning
	entry.mu.Unlock()

	report, err := h.runner.Run(ctx, codes, years, func(ev batch.Progress) {
		entry.mu.Lock()
		entry.done = ev.Done
		entry.succeeded = ev.Succeeded
		entry.failed = ev.Failed
		entry.total = ev.Total
		entry.mu.Unlock()
		if h.ws != nil {
			h.ws.PublishProgress(ev)
		}
	})

	entry.mu.Lock()
	if err != nil {
		entry.state = jobFailed
		entry.err = err.Error()
	} else {
		entry.state = jobCompleted
		entry.report = report
		entry.total = report.Total
		entry.done = report.Total
		entry.succeeded = report.Succeeded
		entry.failed = report.Failed
	}
	entry.mu.Unlock()

	if err != nil {
		logger.Error("Batch job failed", "job_id", entry.id.String(), "error", err.Error())
	}
	if h.ws != nil {
		h.ws.PublishDone(entry.id.String(), entry.view())
	}
}

// BatchStatus handles GET /api/v1/batch/:id
// @Summary 查询批量任务状态
// @Tags batch
// @Param id path string true "任务ID"
// @Success 200 {object} Response{data=jobView}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /api/v1/batch/{id} [get]
func (h *Handlers) BatchStatus(c *gin.Context) {
	entry, ok := h.jobs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "job not found"})
		return
	}
	respondOK(c, entry.view())
}

// Strategies handles GET /api/v1/strategies
// @Summary 策略列表
// @Description 返回六个固定策略及综合信号权重
// @Tags analysis
// @Success 200 {object} Response{data=[]StrategyDescriptor}
// @Router /api/v1/strategies [get]
func (h *Handlers) Strategies(c *gin.Context) {
	weights := signal.DefaultConfig().Weights
	weightOf := map[signal.Strategy]float64{
		signal.MaMacd:    weights.MaMacd,
		signal.Bollinger: weights.Bollinger,
		signal.Volume:    weights.Volume,
		signal.Kdj:       weights.Kdj,
		signal.Rsi:       weights.Rsi,
	}
	describe := map[signal.Strategy]string{
		signal.MaMacd:    "均线多头排列叠加MACD金叉死叉",
		signal.Bollinger: "布林带上下轨突破回归",
		signal.Volume:    "量比放大配合价格方向",
		signal.Kdj:       "KDJ超买超卖与金叉死叉",
		signal.Rsi:       "RSI超买超卖区间",
		signal.Combined:  "五策略加权合成信号",
	}

	out := make([]StrategyDescriptor, 0, len(signal.All()))
	for _, strat := range signal.All() {
		out = append(out, StrategyDescriptor{
			Key:         strat,
			Description: describe[strat],
			Weight:      weightOf[strat],
		})
	}
	respondOK(c, out)
}

// Search handles GET /api/v1/search
// @Summary 股票搜索
// @Description 按代码前缀或名称模糊匹配
// @Tags analysis
// @Param q query string true "查询串"
// @Param limit query int false "返回上限" default(10)
// @Success 200 {object} Response{data=[]market.StockInfo}
// @Router /api/v1/search [get]
func (h *Handlers) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "query parameter q is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	infos, err := h.svc.Search(c.Request.Context(), query, limit)
	if err != nil {
		respondError(c, http.StatusBadGateway, err)
		return
	}
	respondOK(c, infos)
}

// Health handles GET /health
// @Summary 健康检查
// @Tags system
// @Success 200 {object} Response
// @Router /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "disabled"
	}

	if h.cacher != nil {
		if err := h.cacher.HealthCheck(ctx); err != nil {
			checks["cache"] = err.Error()
			healthy = false
		} else {
			checks["cache"] = "ok"
		}
	} else {
		checks["cache"] = "disabled"
	}

	// 定时任务失败只展示不降级
	if h.sched != nil {
		tasks := h.sched.ListTasks()
		summaries := make([]gin.H, 0, len(tasks))
		for _, task := range tasks {
			summary := gin.H{"type": task.Type, "status": task.Status}
			if task.Error != "" {
				summary["error"] = task.Error
			}
			if !task.LastRunTime.IsZero() {
				summary["last_run"] = task.LastRunTime
			}
			summaries = append(summaries, summary)
		}
		checks["scheduler"] = summaries
	} else {
		checks["scheduler"] = "disabled"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, Response{
		Success: healthy,
		Data: gin.H{
			"status": map[bool]string{true: "healthy", false: "degraded"}[healthy],
			"checks": checks,
			"time":   time.Now(),
		},
	})
}

// parseYears clamps the years query parameter into a sane range
func parseYears(raw string) int {
	years, err := strconv.Atoi(raw)
	if err != nil || years <= 0 {
		return 0
	}
	if years > 10 {
		years = 10
	}
	return years
}
