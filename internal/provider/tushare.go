package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"aquant/internal/logger"
	"aquant/internal/market"
)

const tushareDateLayout = "20060102"

// TushareConfig configures the tushare.pro client
type TushareConfig struct {
	Token     string
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // 每秒请求数
	RateBurst int
}

// Tushare is a client for the tushare.pro JSON-RPC style endpoint. All
// calls go through a shared rate limiter: 免费档接口有每分钟调用上限。
type Tushare struct {
	cfg     TushareConfig
	client  *http.Client
	limiter *rate.Limiter
	plog    *logger.ProviderLogger
}

// NewTushare creates a tushare.pro provider
func NewTushare(cfg TushareConfig, log logger.Logger) *Tushare {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://api.tushare.pro"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}
	return &Tushare{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		plog:    logger.NewProviderLogger(log),
	}
}

// Name implements DataProvider
func (t *Tushare) Name() string { return "tushare" }

// Close implements DataProvider
func (t *Tushare) Close() error { return nil }

// tushareRequest is the wire request envelope
type tushareRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

// tushareResponse is the wire response envelope. Data rows come as
// positional arrays matching the fields list.
type tushareResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Fields []string          `json:"fields"`
		Items  []json.RawMessage `json:"items"`
	} `json:"data"`
}

// call posts one API request and decodes the positional row set into
// field-indexed string maps.
func (t *Tushare) call(ctx context.Context, apiName string, params map[string]string, fields string) ([]map[string]string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, wrapErr(t.Name(), apiName, err)
	}

	body, err := json.Marshal(tushareRequest{
		APIName: apiName,
		Token:   t.cfg.Token,
		Params:  params,
		Fields:  fields,
	})
	if err != nil {
		return nil, wrapErr(t.Name(), apiName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr(t.Name(), apiName, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.plog.LogFetch(t.Name(), apiName, params["ts_code"], 0, time.Since(start), err)
		return nil, wrapErr(t.Name(), apiName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		t.plog.LogFetch(t.Name(), apiName, params["ts_code"], 0, time.Since(start), err)
		return nil, wrapErr(t.Name(), apiName, err)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapErr(t.Name(), apiName, err)
	}

	var tr tushareResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, wrapErr(t.Name(), apiName, fmt.Errorf("decode response: %w", err))
	}
	if tr.Code != 0 {
		err := fmt.Errorf("api error %d: %s", tr.Code, tr.Msg)
		if strings.Contains(tr.Msg, "token") {
			err = fmt.Errorf("%w: %s", ErrAuth, tr.Msg)
		}
		t.plog.LogFetch(t.Name(), apiName, params["ts_code"], 0, time.Since(start), err)
		return nil, wrapErr(t.Name(), apiName, err)
	}

	rows := make([]map[string]string, 0, len(tr.Data.Items))
	for _, item := range tr.Data.Items {
		var cols []interface{}
		if err := json.Unmarshal(item, &cols); err != nil {
			return nil, wrapErr(t.Name(), apiName, fmt.Errorf("decode row: %w", err))
		}
		row := make(map[string]string, len(tr.Data.Fields))
		for i, field := range tr.Data.Fields {
			if i >= len(cols) || cols[i] == nil {
				continue
			}
			switch v := cols[i].(type) {
			case string:
				row[field] = v
			case float64:
				row[field] = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				row[field] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}

	t.plog.LogFetch(t.Name(), apiName, params["ts_code"], len(rows), time.Since(start), nil)
	return rows, nil
}

// Daily implements DataProvider. tushare返回按日期倒序，这里统一转为
// 旧到新的顺序。
func (t *Tushare) Daily(ctx context.Context, tsCode string, start, end time.Time) (market.Series, error) {
	rows, err := t.call(ctx, "daily", map[string]string{
		"ts_code":    tsCode,
		"start_date": start.Format(tushareDateLayout),
		"end_date":   end.Format(tushareDateLayout),
	}, "ts_code,trade_date,open,high,low,close,vol,amount")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, wrapErr(t.Name(), "daily", fmt.Errorf("%w: %s", ErrNotFound, tsCode))
	}

	series := make(market.Series, 0, len(rows))
	for _, row := range rows {
		bar, err := barFromRow(row)
		if err != nil {
			return nil, wrapErr(t.Name(), "daily", err)
		}
		series = append(series, bar)
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
	return series, nil
}

func barFromRow(row map[string]string) (market.PriceBar, error) {
	date, err := time.Parse(tushareDateLayout, row["trade_date"])
	if err != nil {
		return market.PriceBar{}, fmt.Errorf("bad trade_date %q: %w", row["trade_date"], err)
	}
	bar := market.PriceBar{TsCode: row["ts_code"], Date: market.Day(date)}

	for _, f := range []struct {
		field string
		dst   *float64
	}{
		{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low},
		{"close", &bar.Close}, {"vol", &bar.Volume}, {"amount", &bar.Amount},
	} {
		v, err := strconv.ParseFloat(row[f.field], 64)
		if err != nil {
			return market.PriceBar{}, fmt.Errorf("bad %s %q on %s: %w",
				f.field, row[f.field], row["trade_date"], err)
		}
		*f.dst = v
	}
	return bar, nil
}

// Info implements DataProvider
func (t *Tushare) Info(ctx context.Context, tsCode string) (*market.StockInfo, error) {
	rows, err := t.call(ctx, "stock_basic", map[string]string{
		"ts_code":     tsCode,
		"list_status": "L",
	}, "ts_code,name,industry,market,list_date")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return stockInfoFromRow(rows[0]), nil
}

// Search implements DataProvider. tushare没有模糊查询接口，拉取列表后
// 在本地做前缀匹配。
func (t *Tushare) Search(ctx context.Context, query string, limit int) ([]market.StockInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := t.call(ctx, "stock_basic", map[string]string{
		"list_status": "L",
	}, "ts_code,name,industry,market,list_date")
	if err != nil {
		return nil, err
	}

	query = strings.ToUpper(strings.TrimSpace(query))
	var out []market.StockInfo
	for _, row := range rows {
		if len(out) >= limit {
			break
		}
		if strings.HasPrefix(strings.ToUpper(row["ts_code"]), query) ||
			strings.HasPrefix(row["name"], query) {
			out = append(out, *stockInfoFromRow(row))
		}
	}
	return out, nil
}

// Latest implements DataProvider, served from the most recent daily bar.
func (t *Tushare) Latest(ctx context.Context, tsCode string) (*market.Quote, error) {
	end := time.Now()
	series, err := t.Daily(ctx, tsCode, end.AddDate(0, 0, -14), end)
	if err != nil {
		return nil, err
	}
	last, ok := series.Last()
	if !ok {
		return nil, wrapErr(t.Name(), "daily", fmt.Errorf("%w: %s", ErrNotFound, tsCode))
	}
	return &market.Quote{
		Symbol: tsCode,
		Price:  last.Close,
		Time:   last.Date,
	}, nil
}

func stockInfoFromRow(row map[string]string) *market.StockInfo {
	return &market.StockInfo{
		TsCode:   row["ts_code"],
		Name:     row["name"],
		Industry: row["industry"],
		Market:   row["market"],
		ListDate: row["list_date"],
	}
}
