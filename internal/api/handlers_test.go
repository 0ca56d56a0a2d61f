package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"aquant/internal/analysis"
	"aquant/internal/batch"
	"aquant/internal/cache"
	"aquant/internal/config"
	"aquant/internal/market"
	"aquant/internal/provider"
	"aquant/internal/testutils"

	"github.com/gin-gonic/gin"
)

// fixtureProvider serves deterministic bars for the test universe
type fixtureProvider struct {
	series map[string]market.Series
}

func (f *fixtureProvider) Name() string { return "fixture" }
func (f *fixtureProvider) Close() error { return nil }

func (f *fixtureProvider) Daily(ctx context.Context, tsCode string, start, end time.Time) (market.Series, error) {
	series, ok := f.series[tsCode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrNotFound, tsCode)
	}
	return series, nil
}

func (f *fixtureProvider) Info(ctx context.Context, tsCode string) (*market.StockInfo, error) {
	return &market.StockInfo{TsCode: tsCode, Name: "测试银行"}, nil
}

func (f *fixtureProvider) Search(ctx context.Context, query string, limit int) ([]market.StockInfo, error) {
	return []market.StockInfo{{TsCode: "600036.SH", Name: "招商银行"}}, nil
}

func (f *fixtureProvider) Latest(ctx context.Context, tsCode string) (*market.Quote, error) {
	series := f.series[tsCode]
	last, ok := series.Last()
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrNotFound, tsCode)
	}
	return &market.Quote{Symbol: tsCode, Price: last.Close, Time: last.Date}, nil
}

func newTestServer(t *testing.T) (*Server, *testutils.HTTPTestHelper) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock := testutils.NewMockData(5)
	prov := &fixtureProvider{series: map[string]market.Series{
		"600036.SH": mock.TrendingBars("600036.SH", 260, 30, 0.001),
	}}

	svc := analysis.NewService(analysis.DefaultConfig(), prov, cache.NewMemoryCache(0), nil, nil, nil)
	runner := batch.NewRunner(batch.DefaultConfig(), svc, nil, nil, nil)

	cfg := config.Default()
	cfg.App.Env = "production" // 测试时不注册swagger路由
	cfg.RateLimit.Enabled = false

	server, err := NewServer(cfg, Deps{
		Analysis: svc,
		Runner:   runner,
		Cacher:   cache.NewMemoryCache(0),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	suite := testutils.NewTestSuite(t, nil)
	t.Cleanup(suite.TearDown)
	helper := testutils.NewHTTPTestHelper(suite)
	helper.Router = server.Router()

	return server, helper
}

func TestHealthEndpoint(t *testing.T) {
	_, helper := newTestServer(t)

	resp := helper.GET("/health", nil)
	resp.AssertStatus(http.StatusOK).AssertContains("healthy")
	// 未接数据库时标记为disabled而不是故障
	resp.AssertContains("disabled")
}

func TestStrategiesEndpoint(t *testing.T) {
	_, helper := newTestServer(t)

	var envelope struct {
		Success bool                 `json:"success"`
		Data    []StrategyDescriptor `json:"data"`
	}
	resp := helper.GET("/api/v1/strategies", nil)
	resp.AssertStatus(http.StatusOK)
	if err := resp.GetJSON(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !envelope.Success {
		t.Fatal("expected success envelope")
	}
	if len(envelope.Data) != 6 {
		t.Fatalf("expected 6 strategies, got %d", len(envelope.Data))
	}

	var totalWeight float64
	for _, desc := range envelope.Data {
		if desc.Description == "" {
			t.Errorf("strategy %s missing description", desc.Key)
		}
		totalWeight += desc.Weight
	}
	if totalWeight != 100 {
		t.Errorf("independent strategy weights should sum to 100, got %v", totalWeight)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	_, helper := newTestServer(t)

	resp := helper.GET("/api/v1/analyze/600036?years=1", nil)
	resp.AssertStatus(http.StatusOK)

	var envelope struct {
		Success bool             `json:"success"`
		Data    *analysis.Report `json:"data"`
	}
	if err := resp.GetJSON(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if envelope.Data == nil || envelope.Data.TsCode != "600036.SH" {
		t.Fatalf("unexpected report payload: %+v", envelope.Data)
	}
	if envelope.Data.Score == nil {
		t.Error("report missing score")
	}
}

func TestAnalyzeEndpointUnknownCode(t *testing.T) {
	_, helper := newTestServer(t)

	resp := helper.GET("/api/v1/analyze/999997", nil)
	resp.AssertStatus(http.StatusNotFound)
	resp.AssertContains("not found")
}

func TestSearchEndpoint(t *testing.T) {
	_, helper := newTestServer(t)

	helper.GET("/api/v1/search", nil).AssertStatus(http.StatusBadRequest)

	resp := helper.GET("/api/v1/search?q=6000", nil)
	resp.AssertStatus(http.StatusOK).AssertContains("600036.SH")
}

func TestBatchLifecycle(t *testing.T) {
	_, helper := newTestServer(t)

	resp := helper.POST("/api/v1/batch", BatchRequest{Codes: []string{"600036"}, Years: 1}, nil)
	resp.AssertStatus(http.StatusAccepted)

	var submitted struct {
		Success bool           `json:"success"`
		Data    BatchSubmitted `json:"data"`
	}
	if err := resp.GetJSON(&submitted); err != nil {
		t.Fatalf("failed to decode submit response: %v", err)
	}
	if submitted.Data.JobID == "" {
		t.Fatal("missing job id")
	}

	// 任务异步执行，轮询直至完成
	deadline := time.Now().Add(10 * time.Second)
	var status struct {
		Success bool     `json:"success"`
		Data    *jobView `json:"data"`
	}
	for {
		resp := helper.GET("/api/v1/batch/"+submitted.Data.JobID, nil)
		resp.AssertStatus(http.StatusOK)
		if err := resp.GetJSON(&status); err != nil {
			t.Fatalf("failed to decode status response: %v", err)
		}
		if status.Data.State == jobCompleted || status.Data.State == jobFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch job did not finish, state %s", status.Data.State)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if status.Data.State != jobCompleted {
		t.Fatalf("expected completed job, got %s (%s)", status.Data.State, status.Data.Error)
	}
	if status.Data.Succeeded != 1 || status.Data.Failed != 0 {
		t.Errorf("expected 1 ok / 0 failed, got %d / %d", status.Data.Succeeded, status.Data.Failed)
	}
	if status.Data.Report == nil || len(status.Data.Report.Outcomes) != 1 {
		t.Error("completed job missing report")
	}
}

func TestBatchRejectsOversizedRequest(t *testing.T) {
	_, helper := newTestServer(t)

	codes := make([]string, 21)
	for i := range codes {
		codes[i] = fmt.Sprintf("6%05d", i)
	}
	helper.POST("/api/v1/batch", map[string]interface{}{"codes": codes}, nil).
		AssertStatus(http.StatusBadRequest)
}

func TestBatchStatusUnknownJob(t *testing.T) {
	_, helper := newTestServer(t)
	helper.GET("/api/v1/batch/does-not-exist", nil).AssertStatus(http.StatusNotFound)
}
