package signal

import (
	"math"
	"testing"

	"aquant/internal/indicator"
)

// neutralRow 返回所有指标列均未定义的行，测试按需填充关心的列。
func neutralRow(close float64) indicator.Row {
	nan := math.NaN()
	r := indicator.Row{}
	r.Close = close
	r.MA5, r.MA10, r.MA20, r.MA60 = nan, nan, nan, nan
	r.DIF, r.DEA, r.MACD = nan, nan, nan
	r.RSI = nan
	r.BollMid, r.BollUpper, r.BollLower, r.BollPos = nan, nan, nan, nan
	r.K, r.D, r.J = nan, nan, nan
	r.VolRatio = nan
	r.High20, r.Low20 = nan, nan
	return r
}

func TestMaMacdRule(t *testing.T) {
	// 均线金叉 + DIF在DEA上方 → 买入
	prev := neutralRow(10)
	prev.MA5, prev.MA20 = 9, 10
	cur := neutralRow(11)
	cur.MA5, cur.MA20 = 11, 10
	cur.DIF, cur.DEA = 1, 0.5
	if got := maMacdRule(prev, cur); got != Buy {
		t.Errorf("MA cross up with DIF above: expected Buy, got %v", got)
	}

	// 均线金叉但DIF在DEA下方 → 不买
	cur.DIF, cur.DEA = 0.5, 1
	if got := maMacdRule(prev, cur); got != Hold {
		t.Errorf("MA cross up without MACD confirmation: expected Hold, got %v", got)
	}

	// MACD金叉 + MA5在MA20上方 → 买入
	prev = neutralRow(10)
	prev.DIF, prev.DEA = 0.4, 0.5
	cur = neutralRow(11)
	cur.DIF, cur.DEA = 0.7, 0.55
	cur.MA5, cur.MA20 = 11, 10
	if got := maMacdRule(prev, cur); got != Buy {
		t.Errorf("DIF cross up with MA5 above: expected Buy, got %v", got)
	}

	// 均线死叉 → 卖出
	prev = neutralRow(10)
	prev.MA5, prev.MA20 = 10.5, 10
	cur = neutralRow(9)
	cur.MA5, cur.MA20 = 9.5, 10
	if got := maMacdRule(prev, cur); got != Sell {
		t.Errorf("MA cross down: expected Sell, got %v", got)
	}

	// 均线未定义时MACD死叉单独触发卖出
	prev = neutralRow(10)
	prev.DIF, prev.DEA = 0.6, 0.5
	cur = neutralRow(9)
	cur.DIF, cur.DEA = 0.4, 0.5
	if got := maMacdRule(prev, cur); got != Sell {
		t.Errorf("DIF cross down alone: expected Sell, got %v", got)
	}

	// 全部未定义 → 不触发
	if got := maMacdRule(neutralRow(10), neutralRow(11)); got != Hold {
		t.Errorf("undefined inputs: expected Hold, got %v", got)
	}
}

func TestBollingerRule(t *testing.T) {
	tests := []struct {
		name     string
		prevPos  float64
		curPos   float64
		expected Signal
	}{
		{"bounce off lower band", 0.05, 0.3, Buy},
		{"bounce but already mid", 0.05, 0.6, Hold},
		{"still under lower band", 0.05, 0.08, Hold},
		{"fall from upper band", 0.95, 0.8, Sell},
		{"fall below mid", 0.95, 0.4, Hold},
		{"no movement", 0.5, 0.5, Hold},
		{"undefined prev", math.NaN(), 0.3, Hold},
		{"undefined cur", 0.05, math.NaN(), Hold},
	}
	for _, test := range tests {
		prev := neutralRow(10)
		prev.BollPos = test.prevPos
		cur := neutralRow(10)
		cur.BollPos = test.curPos
		if got := bollingerRule(prev, cur); got != test.expected {
			t.Errorf("%s: expected %v, got %v", test.name, test.expected, got)
		}
	}
}

func TestKdjRule(t *testing.T) {
	tests := []struct {
		name                     string
		prevK, prevD, curK, curD float64
		expected                 Signal
	}{
		{"gold cross deep oversold", 20, 25, 28, 26, Buy},
		{"gold cross low zone", 40, 45, 48, 46, Buy},
		{"gold cross high zone", 52, 58, 60, 59, Hold},
		{"dead cross overbought", 80, 75, 72, 74, Sell},
		{"dead cross high zone", 60, 55, 52, 54, Sell},
		{"dead cross low zone", 45, 40, 38, 42, Hold},
		{"no cross", 60, 50, 62, 52, Hold},
		{"undefined", math.NaN(), 50, 60, 50, Hold},
	}
	for _, test := range tests {
		prev := neutralRow(10)
		prev.K, prev.D = test.prevK, test.prevD
		cur := neutralRow(10)
		cur.K, cur.D = test.curK, test.curD
		if got := kdjRule(prev, cur); got != test.expected {
			t.Errorf("%s: expected %v, got %v", test.name, test.expected, got)
		}
	}
}

func TestRsiRule(t *testing.T) {
	tests := []struct {
		name     string
		prevRSI  float64
		curRSI   float64
		expected Signal
	}{
		{"rising oversold", 20, 25, Buy},
		{"falling oversold", 25, 20, Hold},
		{"rising mid", 45, 50, Hold},
		{"falling overbought", 80, 75, Sell},
		{"rising overbought", 75, 80, Hold},
		{"undefined prev", math.NaN(), 25, Hold},
	}
	for _, test := range tests {
		prev := neutralRow(10)
		prev.RSI = test.prevRSI
		cur := neutralRow(10)
		cur.RSI = test.curRSI
		if got := rsiRule(prev, cur); got != test.expected {
			t.Errorf("%s: expected %v, got %v", test.name, test.expected, got)
		}
	}
}

func TestVolumeRule(t *testing.T) {
	// 放量突破前一日20日高点 → 买入
	prev := neutralRow(10)
	prev.High20 = 12
	cur := neutralRow(12.5)
	cur.VolRatio = 2.5
	if got := volumeRule(prev, cur); got != Buy {
		t.Errorf("volume breakout: expected Buy, got %v", got)
	}

	// 突破但量能不足 → 不买
	cur.VolRatio = 1.2
	if got := volumeRule(prev, cur); got != Hold {
		t.Errorf("breakout without volume: expected Hold, got %v", got)
	}

	// 跌破前一日20日低点 → 卖出
	prev = neutralRow(10)
	prev.Low20 = 9
	cur = neutralRow(8.5)
	cur.VolRatio = 1.0
	if got := volumeRule(prev, cur); got != Sell {
		t.Errorf("break below channel: expected Sell, got %v", got)
	}

	// 量能枯竭即使通道未定义也卖出（或关系的另一支）
	prev = neutralRow(10)
	cur = neutralRow(10)
	cur.VolRatio = 0.3
	if got := volumeRule(prev, cur); got != Sell {
		t.Errorf("volume dry-up alone: expected Sell, got %v", got)
	}

	// 全部未定义 → 不触发
	if got := volumeRule(neutralRow(10), neutralRow(10)); got != Hold {
		t.Errorf("undefined inputs: expected Hold, got %v", got)
	}
}

func TestCombinedScoreScenario(t *testing.T) {
	// MA+MACD和布林同时买入，其余中性 → 得分50，综合信号为弱买
	prev := neutralRow(10)
	prev.MA5, prev.MA20 = 9, 10
	prev.BollPos = 0.05
	cur := neutralRow(11)
	cur.MA5, cur.MA20 = 11, 10
	cur.DIF, cur.DEA = 1, 0.5
	cur.BollPos = 0.3

	eng := NewEngine(DefaultConfig())
	sets := eng.Compute([]indicator.Row{prev, cur})

	set := sets[1]
	if set.MaMacd != Buy || set.Bollinger != Buy {
		t.Fatalf("expected MaMacd and Bollinger Buy, got %+v", set)
	}
	if set.Kdj != Hold || set.Rsi != Hold || set.Volume != Hold {
		t.Fatalf("expected remaining strategies Hold, got %+v", set)
	}
	if set.Score != 50 {
		t.Errorf("expected score 50, got %v", set.Score)
	}
	if set.Combined != Buy {
		t.Errorf("expected combined Buy, got %v", set.Combined)
	}
}

func TestBucketBoundaries(t *testing.T) {
	eng := NewEngine(DefaultConfig())
	tests := []struct {
		score    float64
		expected Signal
	}{
		{100, StrongBuy},
		{60, StrongBuy},
		{59.9, Buy},
		{40, Buy},
		{39.9, Hold},
		{0, Hold},
		{-39.9, Hold},
		{-40, Sell},
		{-59.9, Sell},
		{-60, StrongSell},
		{-100, StrongSell},
	}
	for _, test := range tests {
		if got := eng.bucket(test.score); got != test.expected {
			t.Errorf("score %v: expected %v, got %v", test.score, test.expected, got)
		}
	}
}

func TestComputeFirstBarNeutral(t *testing.T) {
	row := neutralRow(10)
	row.MA5, row.MA20 = 11, 10
	row.DIF, row.DEA = 1, 0.5

	eng := NewEngine(DefaultConfig())
	sets := eng.Compute([]indicator.Row{row})
	if len(sets) != 1 {
		t.Fatalf("expected 1 set, got %d", len(sets))
	}
	if sets[0] != (Set{}) {
		t.Errorf("bar 0 must be neutral, got %+v", sets[0])
	}
}

func TestComputeEmpty(t *testing.T) {
	eng := NewEngine(DefaultConfig())
	if sets := eng.Compute(nil); len(sets) != 0 {
		t.Errorf("expected empty result, got %d sets", len(sets))
	}
}

func TestCustomWeights(t *testing.T) {
	cfg := Config{
		Weights:         Weights{MaMacd: 100},
		StrongThreshold: 90,
		WeakThreshold:   50,
	}
	prev := neutralRow(10)
	prev.MA5, prev.MA20 = 9, 10
	cur := neutralRow(11)
	cur.MA5, cur.MA20 = 11, 10
	cur.DIF, cur.DEA = 1, 0.5

	eng := NewEngine(cfg)
	sets := eng.Compute([]indicator.Row{prev, cur})
	if sets[1].Score != 100 {
		t.Errorf("expected score 100, got %v", sets[1].Score)
	}
	if sets[1].Combined != StrongBuy {
		t.Errorf("expected StrongBuy at custom threshold, got %v", sets[1].Combined)
	}
}
