package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// 市场数据校验错误
var (
	// ErrMissingField K线缺少必需的价格或成交量字段
	ErrMissingField = errors.New("bar missing required field")
	// ErrBadOrder K线日期非严格递增
	ErrBadOrder = errors.New("bars not in strictly ascending date order")
	// ErrInsufficientData 历史数据不足，无法完成分析
	ErrInsufficientData = errors.New("insufficient data")
)

// StockInfo represents basic listing information for an instrument
type StockInfo struct {
	TsCode   string `json:"ts_code" db:"ts_code"`
	Name     string `json:"name" db:"name"`
	Industry string `json:"industry,omitempty" db:"industry"`
	Market   string `json:"market,omitempty" db:"market"`
	ListDate string `json:"list_date,omitempty" db:"list_date"`
}

// PriceBar represents one daily OHLCV bar. Date carries no time component.
type PriceBar struct {
	TsCode string    `json:"ts_code" db:"ts_code"`
	Date   time.Time `json:"date" db:"trade_date"`
	Open   float64   `json:"open" db:"open"`
	High   float64   `json:"high" db:"high"`
	Low    float64   `json:"low" db:"low"`
	Close  float64   `json:"close" db:"close"`
	Volume float64   `json:"volume" db:"volume"`
	Amount float64   `json:"amount" db:"amount"`
}

// Series is an ordered daily bar sequence for a single instrument,
// oldest bar first.
type Series []PriceBar

// Quote represents a lightweight realtime price snapshot
type Quote struct {
	Symbol string    `json:"symbol"`
	Name   string    `json:"name,omitempty"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// Day truncates t to a calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Validate checks structural integrity of the series: every bar carries
// positive finite prices, non-negative volume and amount, a date, and
// dates are strictly ascending with no duplicates. An empty series is
// valid. 价格为0的K线会让回测除零，必须在指标计算前拦截。
func (s Series) Validate() error {
	for i, bar := range s {
		if bar.Date.IsZero() {
			return fmt.Errorf("bar %d: %w: date", i, ErrMissingField)
		}
		prices := []struct {
			name  string
			value float64
		}{
			{"open", bar.Open},
			{"high", bar.High},
			{"low", bar.Low},
			{"close", bar.Close},
		}
		for _, f := range prices {
			if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value <= 0 {
				return fmt.Errorf("bar %d (%s): %w: %s", i, bar.Date.Format("2006-01-02"), ErrMissingField, f.name)
			}
		}
		// 停牌日成交量可以为0，但不能为负或缺失
		quantities := []struct {
			name  string
			value float64
		}{
			{"volume", bar.Volume},
			{"amount", bar.Amount},
		}
		for _, f := range quantities {
			if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
				return fmt.Errorf("bar %d (%s): %w: %s", i, bar.Date.Format("2006-01-02"), ErrMissingField, f.name)
			}
		}
		if i > 0 && !s[i-1].Date.Before(bar.Date) {
			return fmt.Errorf("bar %d (%s): %w", i, bar.Date.Format("2006-01-02"), ErrBadOrder)
		}
	}
	return nil
}

// Closes returns the close column of the series.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, bar := range s {
		out[i] = bar.Close
	}
	return out
}

// Dates returns the date column of the series.
func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s))
	for i, bar := range s {
		out[i] = bar.Date
	}
	return out
}

// Last returns the most recent bar. ok is false for an empty series.
func (s Series) Last() (PriceBar, bool) {
	if len(s) == 0 {
		return PriceBar{}, false
	}
	return s[len(s)-1], true
}

// Span returns the calendar-day distance between the first and last bar.
func (s Series) Span() int {
	if len(s) < 2 {
		return 0
	}
	return int(s[len(s)-1].Date.Sub(s[0].Date).Hours() / 24)
}
