// Package testutils 提供测试基础设施：内存数据库、HTTP测试助手与行情模拟数据。
package testutils

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aquant/internal/cache"
	"aquant/internal/database"
	"aquant/internal/logger"
	"aquant/internal/market"
)

// TestConfig 测试配置
type TestConfig struct {
	LogLevel logger.LogLevel
	TempDir  string
}

// DefaultTestConfig 默认测试配置
func DefaultTestConfig() *TestConfig {
	return &TestConfig{
		LogLevel: logger.LevelError, // 测试时减少日志输出
		TempDir:  "",
	}
}

// TestSuite 测试套件
type TestSuite struct {
	T       *testing.T
	Config  *TestConfig
	DB      *database.DB
	Cache   cache.Cacher
	Logger  logger.Logger
	TempDir string
	Cleanup []func()
}

// NewTestSuite 创建测试套件
func NewTestSuite(t *testing.T, config *TestConfig) *TestSuite {
	if config == nil {
		config = DefaultTestConfig()
	}

	tempDir, err := os.MkdirTemp("", "aquant_test_*")
	require.NoError(t, err)
	if config.TempDir == "" {
		config.TempDir = tempDir
	}

	testLogger := logger.NewLogger(logger.Config{
		Level:  config.LogLevel,
		Format: logger.FormatText,
		Output: "stdout",
	})

	suite := &TestSuite{
		T:       t,
		Config:  config,
		Logger:  testLogger,
		TempDir: tempDir,
		Cache:   cache.NewMemoryCache(1000),
		Cleanup: []func(){},
	}

	suite.AddCleanup(func() {
		os.RemoveAll(tempDir)
	})

	suite.setupMemoryDB()

	return suite
}

// AddCleanup 添加清理函数
func (s *TestSuite) AddCleanup(cleanup func()) {
	s.Cleanup = append(s.Cleanup, cleanup)
}

// TearDown 清理测试环境
func (s *TestSuite) TearDown() {
	for i := len(s.Cleanup) - 1; i >= 0; i-- {
		s.Cleanup[i]()
	}
}

// setupMemoryDB 内存SQLite代替Postgres，够用即可
func (s *TestSuite) setupMemoryDB() {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(s.T, err)

	s.DB = &database.DB{DB: db}
	s.AddCleanup(func() {
		if s.DB != nil {
			s.DB.Close()
		}
	})
}

// CreateTempFile 创建临时文件
func (s *TestSuite) CreateTempFile(name, content string) string {
	filePath := filepath.Join(s.TempDir, name)
	err := os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(s.T, err)
	return filePath
}

// CreateTempDir 创建临时目录
func (s *TestSuite) CreateTempDir(name string) string {
	dirPath := filepath.Join(s.TempDir, name)
	err := os.MkdirAll(dirPath, 0755)
	require.NoError(s.T, err)
	return dirPath
}

// HTTPTestHelper HTTP测试助手
type HTTPTestHelper struct {
	Router *gin.Engine
	Suite  *TestSuite
}

// NewHTTPTestHelper 创建HTTP测试助手
func NewHTTPTestHelper(suite *TestSuite) *HTTPTestHelper {
	gin.SetMode(gin.TestMode)
	return &HTTPTestHelper{
		Router: gin.New(),
		Suite:  suite,
	}
}

// GET 发送GET请求
func (h *HTTPTestHelper) GET(path string, headers map[string]string) *HTTPResponse {
	return h.Request("GET", path, nil, headers)
}

// POST 发送POST请求
func (h *HTTPTestHelper) POST(path string, body interface{}, headers map[string]string) *HTTPResponse {
	return h.Request("POST", path, body, headers)
}

// Request 发送HTTP请求
func (h *HTTPTestHelper) Request(method, path string, body interface{}, headers map[string]string) *HTTPResponse {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(h.Suite.T, err)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	h.Router.ServeHTTP(w, req)

	return &HTTPResponse{
		StatusCode: w.Code,
		Body:       w.Body.Bytes(),
		Headers:    w.Header(),
		suite:      h.Suite,
	}
}

// HTTPResponse HTTP响应
type HTTPResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	suite      *TestSuite
}

// AssertStatus 断言状态码
func (r *HTTPResponse) AssertStatus(expectedStatus int) *HTTPResponse {
	assert.Equal(r.suite.T, expectedStatus, r.StatusCode)
	return r
}

// AssertContains 断言响应包含指定内容
func (r *HTTPResponse) AssertContains(substring string) *HTTPResponse {
	assert.Contains(r.suite.T, string(r.Body), substring)
	return r
}

// GetJSON 获取JSON响应
func (r *HTTPResponse) GetJSON(target interface{}) error {
	return json.Unmarshal(r.Body, target)
}

// GetString 获取字符串响应
func (r *HTTPResponse) GetString() string {
	return string(r.Body)
}

// MockData 行情模拟数据生成器，固定种子保证可复现
type MockData struct {
	rand *rand.Rand
}

// NewMockData 创建模拟数据生成器
func NewMockData(seed int64) *MockData {
	if seed == 0 {
		seed = 42
	}
	return &MockData{rand: rand.New(rand.NewSource(seed))}
}

// TrendingBars 生成带漂移的日线序列，drift为日均涨跌幅
func (m *MockData) TrendingBars(tsCode string, n int, start float64, drift float64) market.Series {
	series := make(market.Series, n)
	price := start
	day := tradingDayStart(n)

	for i := 0; i < n; i++ {
		change := drift + (m.rand.Float64()-0.5)*0.02
		open := price
		close := price * (1 + change)
		high := open
		if close > high {
			high = close
		}
		high *= 1 + m.rand.Float64()*0.005
		low := open
		if close < low {
			low = close
		}
		low *= 1 - m.rand.Float64()*0.005

		series[i] = market.PriceBar{
			TsCode: tsCode,
			Date:   day,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: 1e6 * (0.5 + m.rand.Float64()),
			Amount: 1e8 * (0.5 + m.rand.Float64()),
		}

		price = close
		day = nextTradingDay(day)
	}
	return series
}

// FlatBars 生成横盘序列
func (m *MockData) FlatBars(tsCode string, n int, price float64) market.Series {
	return m.TrendingBars(tsCode, n, price, 0)
}

// tradingDayStart returns a weekday start date n trading days back
func tradingDayStart(n int) time.Time {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -((n/5)*7 + n%5))
}

// nextTradingDay skips weekends
func nextTradingDay(day time.Time) time.Time {
	day = day.AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}
