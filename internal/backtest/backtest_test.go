package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"aquant/internal/market"
	"aquant/internal/signal"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func mkSeries(closes ...float64) market.Series {
	s := make(market.Series, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		s[i] = market.PriceBar{
			TsCode: "600519.SH",
			Date:   base.AddDate(0, 0, i),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 1000,
			Amount: c * 1000,
		}
	}
	return s
}

func sigs(vals ...int) []signal.Signal {
	out := make([]signal.Signal, len(vals))
	for i, v := range vals {
		out[i] = signal.Signal(v)
	}
	return out
}

func TestRunSingleTradeScenario(t *testing.T) {
	series := mkSeries(10, 11, 12, 11, 13, 14, 12, 15, 16, 14)
	column := sigs(0, 0, 1, 0, 0, -1, 0, 0, 0, 0)

	eng := NewEngine(DefaultConfig())
	res, err := eng.Run(series, column, signal.MaMacd)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TradeCount != 1 || len(res.Trades) != 1 {
		t.Fatalf("expected exactly one trade, got %d", res.TradeCount)
	}
	tr := res.Trades[0]
	if tr.EntryPrice != 12 || tr.ExitPrice != 14 {
		t.Errorf("expected entry 12 exit 14, got %v/%v", tr.EntryPrice, tr.ExitPrice)
	}
	if !tr.EntryDate.Equal(series[2].Date) || !tr.ExitDate.Equal(series[5].Date) {
		t.Errorf("unexpected trade dates: %v → %v", tr.EntryDate, tr.ExitDate)
	}
	if !almostEqual(tr.ReturnPct, 100.0/6.0) {
		t.Errorf("expected return %v%%, got %v%%", 100.0/6.0, tr.ReturnPct)
	}
	if tr.HoldDays != 3 {
		t.Errorf("expected 3 hold days, got %d", tr.HoldDays)
	}

	// 权益曲线：买入前持平，持仓期随价格波动，卖出后持平
	if len(res.EquityCurve) != len(series) {
		t.Fatalf("curve length %d != series length %d", len(res.EquityCurve), len(series))
	}
	shares := 100000.0 / 12.0
	wantCurve := []float64{
		100000, 100000, 100000,
		shares * 11, shares * 13, shares * 14,
		shares * 14, shares * 14, shares * 14, shares * 14,
	}
	for i, want := range wantCurve {
		if !almostEqual(res.EquityCurve[i].Value, want) {
			t.Errorf("equity[%d]: expected %v, got %v", i, want, res.EquityCurve[i].Value)
		}
	}

	if !almostEqual(res.FinalValue, shares*14) {
		t.Errorf("expected final value %v, got %v", shares*14, res.FinalValue)
	}
	if !almostEqual(res.TotalReturn, 100.0/6.0) {
		t.Errorf("expected total return %v, got %v", 100.0/6.0, res.TotalReturn)
	}
	if res.WinCount != 1 || res.LossCount != 0 || res.WinRate != 100 {
		t.Errorf("unexpected win/loss stats: %+v", res)
	}
	if res.ProfitFactor != 0 {
		t.Errorf("no losing trades should give profit factor 0, got %v", res.ProfitFactor)
	}
	if !almostEqual(res.MaxDrawdown, 100.0/12.0) {
		t.Errorf("expected max drawdown %v, got %v", 100.0/12.0, res.MaxDrawdown)
	}
	if res.TotalDays != 9 || res.TradingDays != 3 || !almostEqual(res.AvgHoldDays, 3) {
		t.Errorf("unexpected day counts: total=%d trading=%d avg=%v",
			res.TotalDays, res.TradingDays, res.AvgHoldDays)
	}
	if res.AnnualReturn <= 0 || math.IsInf(res.AnnualReturn, 0) || math.IsNaN(res.AnnualReturn) {
		t.Errorf("annual return should be positive and finite, got %v", res.AnnualReturn)
	}
	if !res.StartDate.Equal(series[0].Date) || !res.EndDate.Equal(series[9].Date) {
		t.Errorf("unexpected date span: %v → %v", res.StartDate, res.EndDate)
	}
}

func TestRunLengthMismatch(t *testing.T) {
	eng := NewEngine(DefaultConfig())
	_, err := eng.Run(mkSeries(10, 11), sigs(0), signal.Rsi)
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestRunRejectsBrokenSeries(t *testing.T) {
	series := mkSeries(10, 11, 12)
	series[1].Close = math.NaN()
	eng := NewEngine(DefaultConfig())
	if _, err := eng.Run(series, sigs(0, 0, 0), signal.Rsi); !errors.Is(err, market.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}

func TestRunNeutralResult(t *testing.T) {
	series := mkSeries(10, 11, 12, 13)
	eng := NewEngine(DefaultConfig())
	res, err := eng.Run(series, sigs(0, 0, 0, 0), signal.Kdj)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TradeCount != 0 || len(res.Trades) != 0 {
		t.Errorf("expected no trades, got %d", res.TradeCount)
	}
	if res.FinalValue != 100000 {
		t.Errorf("expected final value equal to initial capital, got %v", res.FinalValue)
	}
	if len(res.EquityCurve) != len(series) {
		t.Fatalf("neutral result must keep one equity point per bar, got %d", len(res.EquityCurve))
	}
	for i, p := range res.EquityCurve {
		if p.Value != 100000 {
			t.Errorf("equity[%d]: expected flat 100000, got %v", i, p.Value)
		}
	}
	if res.TotalReturn != 0 || res.AnnualReturn != 0 || res.SharpeRatio != 0 ||
		res.MaxDrawdown != 0 || res.WinRate != 0 || res.ProfitFactor != 0 {
		t.Errorf("neutral result must zero all metrics: %+v", res)
	}
	if !res.StartDate.IsZero() || !res.EndDate.IsZero() || res.TotalDays != 0 {
		t.Errorf("neutral result must not carry a date span: %+v", res)
	}
}

func TestRunEmptySeries(t *testing.T) {
	eng := NewEngine(DefaultConfig())
	res, err := eng.Run(market.Series{}, nil, signal.Volume)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.TradeCount != 0 || len(res.EquityCurve) != 0 {
		t.Errorf("empty series should yield empty neutral result: %+v", res)
	}
	if res.FinalValue != 100000 {
		t.Errorf("expected initial capital, got %v", res.FinalValue)
	}
}

func TestRunForcedLiquidation(t *testing.T) {
	series := mkSeries(10, 10, 12, 13)
	column := sigs(0, 1, 0, 0)

	eng := NewEngine(DefaultConfig())
	res, err := eng.Run(series, column, signal.Volume)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TradeCount != 1 {
		t.Fatalf("expected forced liquidation trade, got %d trades", res.TradeCount)
	}
	tr := res.Trades[0]
	if !tr.ExitDate.Equal(series[3].Date) {
		t.Errorf("forced exit must land on the last bar, got %v", tr.ExitDate)
	}
	if tr.ExitPrice != 13 {
		t.Errorf("expected exit at last close 13, got %v", tr.ExitPrice)
	}
	if !almostEqual(tr.ReturnPct, 30) {
		t.Errorf("expected +30%%, got %v", tr.ReturnPct)
	}
	if !almostEqual(res.FinalValue, 130000) {
		t.Errorf("expected final value 130000, got %v", res.FinalValue)
	}
}

func TestRunIgnoresRedundantSignals(t *testing.T) {
	// 持仓时的买入信号与空仓时的卖出信号都不生效
	series := mkSeries(10, 11, 12, 11)
	column := sigs(1, 1, -1, -1)

	eng := NewEngine(DefaultConfig())
	res, err := eng.Run(series, column, signal.MaMacd)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TradeCount != 1 {
		t.Fatalf("expected a single trade, got %d", res.TradeCount)
	}
	tr := res.Trades[0]
	if tr.EntryPrice != 10 || tr.ExitPrice != 12 {
		t.Errorf("expected entry 10 exit 12, got %v/%v", tr.EntryPrice, tr.ExitPrice)
	}
	if !almostEqual(res.FinalValue, 120000) {
		t.Errorf("expected 120000, got %v", res.FinalValue)
	}
}

func TestRunStrongSignals(t *testing.T) {
	// ±2与±1等效处理
	series := mkSeries(10, 12, 11)
	column := sigs(2, 0, -2)

	eng := NewEngine(DefaultConfig())
	res, err := eng.Run(series, column, signal.Combined)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.TradeCount != 1 {
		t.Fatalf("expected one trade, got %d", res.TradeCount)
	}
	if !almostEqual(res.Trades[0].ReturnPct, 10) {
		t.Errorf("expected +10%%, got %v", res.Trades[0].ReturnPct)
	}
}

func TestRunCumulativeReturnAbs(t *testing.T) {
	series := mkSeries(10, 12, 10, 11)
	column := sigs(1, -1, 1, -1)

	eng := NewEngine(DefaultConfig())
	res, err := eng.Run(series, column, signal.Rsi)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TradeCount != 2 {
		t.Fatalf("expected two trades, got %d", res.TradeCount)
	}
	// return_abs是截至平仓时的累计盈亏
	if !almostEqual(res.Trades[0].ReturnAbs, 20000) {
		t.Errorf("trade 1 abs: expected 20000, got %v", res.Trades[0].ReturnAbs)
	}
	if !almostEqual(res.Trades[1].ReturnAbs, 32000) {
		t.Errorf("trade 2 abs: expected cumulative 32000, got %v", res.Trades[1].ReturnAbs)
	}
	if !almostEqual(res.FinalValue, 132000) {
		t.Errorf("expected 132000, got %v", res.FinalValue)
	}

	// 不重叠不变量
	if res.Trades[0].ExitDate.After(res.Trades[1].EntryDate) {
		t.Error("consecutive trades must not overlap")
	}

	// 夏普比率独立复算：日收益[0.2, 0, 0.1]
	mean := 0.1
	std := math.Sqrt(0.02 / 3.0)
	want := (mean - 0.03/252) / std * math.Sqrt(252)
	if !almostEqual(res.SharpeRatio, want) {
		t.Errorf("expected sharpe %v, got %v", want, res.SharpeRatio)
	}
}

func TestRunLossMetrics(t *testing.T) {
	series := mkSeries(10, 9, 10, 8)
	column := sigs(1, -1, 1, -1)

	eng := NewEngine(DefaultConfig())
	res, err := eng.Run(series, column, signal.Bollinger)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.WinCount != 0 || res.LossCount != 2 || res.WinRate != 0 {
		t.Errorf("unexpected win/loss stats: %+v", res)
	}
	if res.AvgWin != 0 {
		t.Errorf("no winning trades should leave avg win 0, got %v", res.AvgWin)
	}
	if !almostEqual(res.AvgLoss, -15) {
		t.Errorf("expected avg loss -15, got %v", res.AvgLoss)
	}
	if res.ProfitFactor != 0 {
		t.Errorf("all-loss run should have zero profit factor, got %v", res.ProfitFactor)
	}
	if !almostEqual(res.MaxDrawdown, 28) {
		t.Errorf("expected max drawdown 28, got %v", res.MaxDrawdown)
	}
	if !almostEqual(res.FinalValue, 72000) {
		t.Errorf("expected 72000, got %v", res.FinalValue)
	}
}

func TestRunProfitFactor(t *testing.T) {
	series := mkSeries(10, 12, 12, 9, 10, 12)
	column := sigs(1, -1, 1, -1, 1, -1)

	eng := NewEngine(DefaultConfig())
	res, err := eng.Run(series, column, signal.MaMacd)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.TradeCount != 3 || res.WinCount != 2 || res.LossCount != 1 {
		t.Fatalf("unexpected trade partition: %+v", res)
	}
	// 盈利累计28000，亏损累计-10000 → 2.8
	if !almostEqual(res.ProfitFactor, 2.8) {
		t.Errorf("expected profit factor 2.8, got %v", res.ProfitFactor)
	}
	if !almostEqual(res.AvgWin, 20) {
		t.Errorf("expected avg win 20, got %v", res.AvgWin)
	}
	if !almostEqual(res.AvgLoss, -25) {
		t.Errorf("expected avg loss -25, got %v", res.AvgLoss)
	}
	if !almostEqual(res.MaxDrawdown, 25) {
		t.Errorf("expected max drawdown 25, got %v", res.MaxDrawdown)
	}
}

func TestRunDeterminism(t *testing.T) {
	series := mkSeries(10, 11, 12, 11, 13, 14, 12, 15, 16, 14)
	column := sigs(0, 1, -1, 1, 0, -1, 1, 0, 0, -1)

	eng := NewEngine(DefaultConfig())
	a, err := eng.Run(series, column, signal.Kdj)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	b, err := eng.Run(series, column, signal.Kdj)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if a.FinalValue != b.FinalValue || a.TradeCount != b.TradeCount ||
		a.SharpeRatio != b.SharpeRatio || a.MaxDrawdown != b.MaxDrawdown {
		t.Error("identical runs must produce identical results")
	}
}

func TestConfigWithDefaults(t *testing.T) {
	eng := NewEngine(Config{})
	if eng.Config().InitialCapital != 100000 || eng.Config().RiskFreeRate != 0.03 {
		t.Errorf("zero config should normalize to defaults: %+v", eng.Config())
	}

	custom := NewEngine(Config{InitialCapital: 50000})
	if custom.Config().InitialCapital != 50000 {
		t.Errorf("explicit capital lost: %+v", custom.Config())
	}
	if custom.Config().RiskFreeRate != 0.03 {
		t.Errorf("unset rate should default: %+v", custom.Config())
	}
}

func TestAnnualize(t *testing.T) {
	if got := annualize(10, 0); got != 0 {
		t.Errorf("zero day span should annualize to 0, got %v", got)
	}
	// 一年期收益年化等于自身
	if got := annualize(10, 365); !almostEqual(got, 10) {
		t.Errorf("expected 10, got %v", got)
	}
	// 半年10% → (1.1^2-1)*100 = 21%
	if got := annualize(10, 182); !almostEqual(got, (math.Pow(1.1, 365.0/182.0)-1)*100) {
		t.Errorf("unexpected annualization: %v", got)
	}
}
