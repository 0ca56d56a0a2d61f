package scoring

import (
	"fmt"
	"math"

	"aquant/internal/backtest"
	"aquant/internal/signal"
)

// Action is the advisory verdict attached to a grade.
type Action string

const (
	ActionBuy   Action = "buy"
	ActionHold  Action = "hold"
	ActionWait  Action = "wait"
	ActionAvoid Action = "avoid"
)

// Dimension is one scored group with its display text.
type Dimension struct {
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// Score is the composite 0-100 advisory result.
//
// 维度构成：趋势30分 + RSI20分 + 成交量10分 + 策略表现40分
// (胜率20 + 年化收益10 + 夏普10)。
type Score struct {
	Trend           Dimension       `json:"trend"`
	RSI             Dimension       `json:"rsi"`
	Volume          Dimension       `json:"volume"`
	StrategyWinRate float64         `json:"strategy_winrate"`
	StrategyReturn  float64         `json:"strategy_return"`
	StrategySharpe  float64         `json:"strategy_sharpe"`
	StrategyText    string          `json:"strategy_text"`
	BestStrategy    signal.Strategy `json:"best_strategy,omitempty"`
	Total           float64         `json:"total"`
	Grade           string          `json:"grade"`
	Advice          string          `json:"advice"`
	Action          Action          `json:"action"`
}

// Engine buckets indicator and backtest outcomes into the advisory score.
// The threshold tables are fixed; stateless and safe for concurrent use.
type Engine struct{}

// NewEngine creates a scoring engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Score grades the instrument. rsi and volRatio are the latest indicator
// values, NaN when undefined; results may be nil or hold zero valid
// strategies, both degrade gracefully instead of failing.
func (e *Engine) Score(patterns Patterns, rsi, volRatio float64, results map[signal.Strategy]*backtest.Result) *Score {
	s := &Score{
		Trend:  trendScore(patterns),
		RSI:    rsiScore(rsi),
		Volume: volumeScore(volRatio),
	}
	e.strategyScore(s, results)

	s.Total = s.Trend.Score + s.RSI.Score + s.Volume.Score +
		s.StrategyWinRate + s.StrategyReturn + s.StrategySharpe

	switch {
	case s.Total >= 80:
		s.Grade, s.Advice, s.Action = "A", "强烈推荐买入", ActionBuy
	case s.Total >= 65:
		s.Grade, s.Advice, s.Action = "B", "可以买入", ActionBuy
	case s.Total >= 50:
		s.Grade, s.Advice, s.Action = "C", "谨慎买入，控制仓位", ActionHold
	case s.Total >= 35:
		s.Grade, s.Advice, s.Action = "D", "观望为主", ActionWait
	default:
		s.Grade, s.Advice, s.Action = "E", "不建议买入", ActionAvoid
	}
	return s
}

// trendScore 均线与MACD形态共振打分，形态未知按空头处理。
func trendScore(p Patterns) Dimension {
	switch {
	case p.MA == PatternBull && p.MACD == PatternBull:
		return Dimension{Score: 30, Text: "多头趋势"}
	case p.MA == PatternBull && p.MACD == PatternBear:
		return Dimension{Score: 20, Text: "均线多头"}
	case p.MA == PatternBear && p.MACD == PatternBull:
		return Dimension{Score: 15, Text: "MACD多头"}
	default:
		return Dimension{Score: 5, Text: "空头趋势"}
	}
}

// rsiScore 低位区间得分最高，超买最低。
func rsiScore(rsi float64) Dimension {
	if math.IsNaN(rsi) {
		return Dimension{Score: 10, Text: "无数据"}
	}
	switch {
	case rsi < 30:
		return Dimension{Score: 16, Text: fmt.Sprintf("超卖(%.0f)", rsi)}
	case rsi < 50:
		return Dimension{Score: 20, Text: fmt.Sprintf("低位(%.0f)", rsi)}
	case rsi < 70:
		return Dimension{Score: 14, Text: fmt.Sprintf("中位(%.0f)", rsi)}
	default:
		return Dimension{Score: 6, Text: fmt.Sprintf("超买(%.0f)", rsi)}
	}
}

// volumeScore 量比温和放大得分最高，异常放量反而扣分。
func volumeScore(volRatio float64) Dimension {
	if math.IsNaN(volRatio) {
		return Dimension{Score: 5, Text: "无数据"}
	}
	switch {
	case volRatio < 0.7:
		return Dimension{Score: 5, Text: fmt.Sprintf("缩量(%.1f)", volRatio)}
	case volRatio < 1.5:
		return Dimension{Score: 10, Text: fmt.Sprintf("正常(%.1f)", volRatio)}
	case volRatio < 2.5:
		return Dimension{Score: 8, Text: fmt.Sprintf("放量(%.1f)", volRatio)}
	default:
		return Dimension{Score: 4, Text: fmt.Sprintf("异常(%.1f)", volRatio)}
	}
}

// strategyScore 从有成交的策略中选总收益最高者，按胜率/年化/夏普分档。
func (e *Engine) strategyScore(s *Score, results map[signal.Strategy]*backtest.Result) {
	if len(results) == 0 {
		s.StrategyText = "无回测数据"
		return
	}

	best := BestResult(results)
	if best == nil {
		s.StrategyText = "无有效交易"
		return
	}

	switch wr := best.WinRate; {
	case wr >= 65:
		s.StrategyWinRate = 20
	case wr >= 55:
		s.StrategyWinRate = 16
	case wr >= 50:
		s.StrategyWinRate = 12
	case wr >= 40:
		s.StrategyWinRate = 8
	default:
		s.StrategyWinRate = 4
	}

	switch ar := best.AnnualReturn; {
	case ar > 30:
		s.StrategyReturn = 10
	case ar > 15:
		s.StrategyReturn = 8
	case ar > 5:
		s.StrategyReturn = 6
	case ar > 0:
		s.StrategyReturn = 4
	default:
		s.StrategyReturn = 0
	}

	switch sr := best.SharpeRatio; {
	case sr > 2:
		s.StrategySharpe = 10
	case sr > 1:
		s.StrategySharpe = 8
	case sr > 0.5:
		s.StrategySharpe = 6
	case sr > 0:
		s.StrategySharpe = 4
	default:
		s.StrategySharpe = 0
	}

	s.BestStrategy = best.Strategy
	s.StrategyText = fmt.Sprintf("%s: 胜率%.0f%%/年化%+.1f%%/SR%.1f",
		best.Strategy, best.WinRate, best.AnnualReturn, best.SharpeRatio)
}

// BestResult returns the highest-total-return result among those with at
// least one closed trade, scanning strategies in canonical order so that
// ties resolve deterministically. Returns nil when no strategy traded.
func BestResult(results map[signal.Strategy]*backtest.Result) *backtest.Result {
	var best *backtest.Result
	for _, strat := range signal.All() {
		res, ok := results[strat]
		if !ok || res == nil || res.TradeCount == 0 {
			continue
		}
		if best == nil || res.TotalReturn > best.TotalReturn {
			best = res
		}
	}
	return best
}
