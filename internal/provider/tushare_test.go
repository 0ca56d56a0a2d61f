package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// tushareStub fakes the tushare.pro endpoint with canned positional rows
func tushareStub(t *testing.T, handler func(req tushareRequest) (int, string, [][]interface{}, []string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tushareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		code, msg, items, fields := handler(req)

		rawItems := make([]json.RawMessage, len(items))
		for i, item := range items {
			data, _ := json.Marshal(item)
			rawItems[i] = data
		}
		resp := map[string]interface{}{
			"code": code,
			"msg":  msg,
			"data": map[string]interface{}{
				"fields": fields,
				"items":  rawItems,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(url string) *Tushare {
	return NewTushare(TushareConfig{
		Token:     "test-token",
		BaseURL:   url,
		Timeout:   5 * time.Second,
		RateLimit: 100,
		RateBurst: 100,
	}, nil)
}

func TestTushareDaily(t *testing.T) {
	dailyFields := []string{"ts_code", "trade_date", "open", "high", "low", "close", "vol", "amount"}

	// tushare返回倒序，客户端需要转为旧到新
	srv := tushareStub(t, func(req tushareRequest) (int, string, [][]interface{}, []string) {
		if req.APIName != "daily" {
			t.Errorf("expected api_name daily, got %q", req.APIName)
		}
		if req.Token != "test-token" {
			t.Errorf("token not forwarded, got %q", req.Token)
		}
		if req.Params["ts_code"] != "600036.SH" {
			t.Errorf("unexpected ts_code param: %q", req.Params["ts_code"])
		}
		return 0, "", [][]interface{}{
			{"600036.SH", "20240104", 32.5, 33.0, 32.1, 32.8, 120000.0, 3.9e6},
			{"600036.SH", "20240103", 32.0, 32.6, 31.8, 32.5, 100000.0, 3.2e6},
			{"600036.SH", "20240102", 31.5, 32.2, 31.4, 32.0, 90000.0, 2.9e6},
		}, dailyFields
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	series, err := client.Daily(context.Background(), "600036.SH",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Daily failed: %v", err)
	}

	if len(series) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(series))
	}
	if !series[0].Date.Before(series[2].Date) {
		t.Error("series not sorted ascending by date")
	}
	if series[0].Close != 32.0 {
		t.Errorf("expected oldest close 32.0, got %v", series[0].Close)
	}
	if series[2].Volume != 120000 {
		t.Errorf("expected newest volume 120000, got %v", series[2].Volume)
	}
	if err := series.Validate(); err != nil {
		t.Errorf("parsed series failed validation: %v", err)
	}
}

func TestTushareDailyEmpty(t *testing.T) {
	srv := tushareStub(t, func(req tushareRequest) (int, string, [][]interface{}, []string) {
		return 0, "", nil, []string{"ts_code", "trade_date"}
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Daily(context.Background(), "999999.SH", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty result, got %v", err)
	}
}

func TestTushareAuthError(t *testing.T) {
	srv := tushareStub(t, func(req tushareRequest) (int, string, [][]interface{}, []string) {
		return 2002, "token不对，请确认", nil, nil
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Daily(context.Background(), "600036.SH", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}

	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatal("expected provider.Error wrapper")
	}
	if provErr.Provider != "tushare" || provErr.API != "daily" {
		t.Errorf("unexpected error context: %+v", provErr)
	}
}

func TestTushareSearch(t *testing.T) {
	basicFields := []string{"ts_code", "name", "industry", "market", "list_date"}
	srv := tushareStub(t, func(req tushareRequest) (int, string, [][]interface{}, []string) {
		return 0, "", [][]interface{}{
			{"600036.SH", "招商银行", "银行", "主板", "20020409"},
			{"600000.SH", "浦发银行", "银行", "主板", "19991110"},
			{"000001.SZ", "平安银行", "银行", "主板", "19910403"},
		}, basicFields
	})
	defer srv.Close()

	client := newTestClient(srv.URL)

	infos, err := client.Search(context.Background(), "6000", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 prefix matches, got %d", len(infos))
	}

	infos, err = client.Search(context.Background(), "招商", 10)
	if err != nil {
		t.Fatalf("Search by name failed: %v", err)
	}
	if len(infos) != 1 || infos[0].TsCode != "600036.SH" {
		t.Fatalf("expected single match 600036.SH, got %+v", infos)
	}

	infos, err = client.Search(context.Background(), "60", 1)
	if err != nil {
		t.Fatalf("Search with limit failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("limit not applied, got %d results", len(infos))
	}
}

func TestTushareLatest(t *testing.T) {
	dailyFields := []string{"ts_code", "trade_date", "open", "high", "low", "close", "vol", "amount"}
	srv := tushareStub(t, func(req tushareRequest) (int, string, [][]interface{}, []string) {
		return 0, "", [][]interface{}{
			{"600036.SH", "20240105", 33.0, 33.5, 32.9, 33.2, 110000.0, 3.6e6},
			{"600036.SH", "20240104", 32.5, 33.0, 32.1, 32.8, 120000.0, 3.9e6},
		}, dailyFields
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	quote, err := client.Latest(context.Background(), "600036.SH")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if quote.Price != 33.2 {
		t.Errorf("expected latest close 33.2, got %v", quote.Price)
	}
	if quote.Symbol != "600036.SH" {
		t.Errorf("unexpected symbol %q", quote.Symbol)
	}
}
