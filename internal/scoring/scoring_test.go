package scoring

import (
	"math"
	"testing"

	"aquant/internal/backtest"
	"aquant/internal/signal"
)

func bullPatterns() Patterns {
	return Patterns{MA: PatternBull, MACD: PatternBull, RSI: PatternNormal, Volume: PatternNormal}
}

func result(strat signal.Strategy, trades int, totalReturn, winRate, annual, sharpe float64) *backtest.Result {
	return &backtest.Result{
		Strategy:     strat,
		TradeCount:   trades,
		TotalReturn:  totalReturn,
		WinRate:      winRate,
		AnnualReturn: annual,
		SharpeRatio:  sharpe,
	}
}

func TestScoreScenario(t *testing.T) {
	// 多头趋势30 + RSI低位20 + 量能正常10 + 胜率20 + 年化8 + 夏普8 = 96 → A
	results := map[signal.Strategy]*backtest.Result{
		signal.MaMacd: result(signal.MaMacd, 5, 40, 70, 20, 1.5),
	}

	eng := NewEngine()
	s := eng.Score(bullPatterns(), 45, 1.0, results)

	if s.Trend.Score != 30 || s.RSI.Score != 20 || s.Volume.Score != 10 {
		t.Errorf("unexpected dimension scores: %+v", s)
	}
	if s.StrategyWinRate != 20 || s.StrategyReturn != 8 || s.StrategySharpe != 8 {
		t.Errorf("unexpected strategy scores: %+v", s)
	}
	if s.Total != 96 {
		t.Errorf("expected total 96, got %v", s.Total)
	}
	if s.Grade != "A" || s.Action != ActionBuy || s.Advice != "强烈推荐买入" {
		t.Errorf("expected grade A buy, got %s/%s/%s", s.Grade, s.Action, s.Advice)
	}
	if s.BestStrategy != signal.MaMacd {
		t.Errorf("expected best strategy MA+MACD, got %v", s.BestStrategy)
	}
	if s.StrategyText != "MA+MACD: 胜率70%/年化+20.0%/SR1.5" {
		t.Errorf("unexpected strategy text: %q", s.StrategyText)
	}
}

func TestGradeBands(t *testing.T) {
	eng := NewEngine()
	nan := math.NaN()

	// 全部未知：趋势5 + RSI10 + 量能5 = 20 → E
	s := eng.Score(Patterns{MA: PatternUnknown, MACD: PatternUnknown}, nan, nan, nil)
	if s.Total != 20 || s.Grade != "E" || s.Action != ActionAvoid {
		t.Errorf("expected 20/E/avoid, got %v/%s/%s", s.Total, s.Grade, s.Action)
	}
	if s.StrategyText != "无回测数据" {
		t.Errorf("expected 无回测数据, got %q", s.StrategyText)
	}

	// 20+10+5 = 35 → D边界
	s = eng.Score(Patterns{MA: PatternBull, MACD: PatternBear}, nan, nan, nil)
	if s.Total != 35 || s.Grade != "D" || s.Action != ActionWait {
		t.Errorf("expected 35/D/wait, got %v/%s/%s", s.Total, s.Grade, s.Action)
	}

	// 30+20+5 = 55 → C
	s = eng.Score(bullPatterns(), 45, nan, nil)
	if s.Total != 55 || s.Grade != "C" || s.Action != ActionHold {
		t.Errorf("expected 55/C/hold, got %v/%s/%s", s.Total, s.Grade, s.Action)
	}

	// 30+20+10+12 = 72 → B
	results := map[signal.Strategy]*backtest.Result{
		signal.Kdj: result(signal.Kdj, 2, 5, 50, 0, 0),
	}
	s = eng.Score(bullPatterns(), 45, 1.0, results)
	if s.Total != 72 || s.Grade != "B" || s.Action != ActionBuy {
		t.Errorf("expected 72/B/buy, got %v/%s/%s", s.Total, s.Grade, s.Action)
	}
}

func TestRSIDimension(t *testing.T) {
	tests := []struct {
		rsi   float64
		score float64
		text  string
	}{
		{25, 16, "超卖(25)"},
		{45, 20, "低位(45)"},
		{65, 14, "中位(65)"},
		{75, 6, "超买(75)"},
		{math.NaN(), 10, "无数据"},
	}
	for _, test := range tests {
		d := rsiScore(test.rsi)
		if d.Score != test.score {
			t.Errorf("rsi %v: expected score %v, got %v", test.rsi, test.score, d.Score)
		}
		if d.Text != test.text {
			t.Errorf("rsi %v: expected text %q, got %q", test.rsi, test.text, d.Text)
		}
	}
}

func TestVolumeDimension(t *testing.T) {
	tests := []struct {
		ratio float64
		score float64
		text  string
	}{
		{0.5, 5, "缩量(0.5)"},
		{1.0, 10, "正常(1.0)"},
		{2.0, 8, "放量(2.0)"},
		{3.0, 4, "异常(3.0)"},
		{math.NaN(), 5, "无数据"},
	}
	for _, test := range tests {
		d := volumeScore(test.ratio)
		if d.Score != test.score {
			t.Errorf("ratio %v: expected score %v, got %v", test.ratio, test.score, d.Score)
		}
		if d.Text != test.text {
			t.Errorf("ratio %v: expected text %q, got %q", test.ratio, test.text, d.Text)
		}
	}
}

func TestTrendDimension(t *testing.T) {
	tests := []struct {
		ma, macd string
		score    float64
		text     string
	}{
		{PatternBull, PatternBull, 30, "多头趋势"},
		{PatternBull, PatternBear, 20, "均线多头"},
		{PatternBear, PatternBull, 15, "MACD多头"},
		{PatternBear, PatternBear, 5, "空头趋势"},
		{PatternUnknown, PatternBull, 5, "空头趋势"},
	}
	for _, test := range tests {
		d := trendScore(Patterns{MA: test.ma, MACD: test.macd})
		if d.Score != test.score || d.Text != test.text {
			t.Errorf("%s/%s: expected %v %q, got %v %q",
				test.ma, test.macd, test.score, test.text, d.Score, d.Text)
		}
	}
}

func TestStrategyBuckets(t *testing.T) {
	eng := NewEngine()
	tests := []struct {
		winRate, annual, sharpe             float64
		wantWinRate, wantReturn, wantSharpe float64
	}{
		{70, 40, 2.5, 20, 10, 10},
		{65, 30, 2, 20, 8, 8},
		{55, 15, 1, 16, 6, 4},
		{50, 5, 0.5, 12, 4, 0},
		{40, 0.5, 0.2, 8, 4, 4},
		{30, -5, -1, 4, 0, 0},
	}
	for _, test := range tests {
		results := map[signal.Strategy]*backtest.Result{
			signal.Volume: result(signal.Volume, 3, 10, test.winRate, test.annual, test.sharpe),
		}
		s := eng.Score(bullPatterns(), 45, 1.0, results)
		if s.StrategyWinRate != test.wantWinRate {
			t.Errorf("winrate %v: expected %v, got %v", test.winRate, test.wantWinRate, s.StrategyWinRate)
		}
		if s.StrategyReturn != test.wantReturn {
			t.Errorf("annual %v: expected %v, got %v", test.annual, test.wantReturn, s.StrategyReturn)
		}
		if s.StrategySharpe != test.wantSharpe {
			t.Errorf("sharpe %v: expected %v, got %v", test.sharpe, test.wantSharpe, s.StrategySharpe)
		}
	}
}

func TestStrategyScoreNoValidTrades(t *testing.T) {
	eng := NewEngine()
	results := map[signal.Strategy]*backtest.Result{
		signal.MaMacd: result(signal.MaMacd, 0, 0, 0, 0, 0),
		signal.Kdj:    result(signal.Kdj, 0, 0, 0, 0, 0),
	}
	s := eng.Score(bullPatterns(), 45, 1.0, results)
	if s.StrategyWinRate != 0 || s.StrategyReturn != 0 || s.StrategySharpe != 0 {
		t.Errorf("expected zero strategy scores, got %+v", s)
	}
	if s.StrategyText != "无有效交易" {
		t.Errorf("expected 无有效交易, got %q", s.StrategyText)
	}
	if s.BestStrategy != "" {
		t.Errorf("expected no best strategy, got %v", s.BestStrategy)
	}
}

func TestBestResult(t *testing.T) {
	results := map[signal.Strategy]*backtest.Result{
		signal.MaMacd:    result(signal.MaMacd, 2, 10, 50, 5, 0.5),
		signal.Bollinger: result(signal.Bollinger, 3, 25, 60, 12, 1.1),
		signal.Kdj:       result(signal.Kdj, 0, 99, 100, 99, 9),
	}

	best := BestResult(results)
	if best == nil || best.Strategy != signal.Bollinger {
		t.Fatalf("expected Bollinger as best, got %+v", best)
	}

	// 并列时按固定顺序取先出现者
	results[signal.Volume] = result(signal.Volume, 2, 25, 60, 12, 1.1)
	best = BestResult(results)
	if best.Strategy != signal.Bollinger {
		t.Errorf("tie should keep canonical order winner, got %v", best.Strategy)
	}

	if BestResult(nil) != nil {
		t.Error("nil map should give nil best")
	}
	if BestResult(map[signal.Strategy]*backtest.Result{signal.Rsi: nil}) != nil {
		t.Error("nil entries should be skipped")
	}
}
