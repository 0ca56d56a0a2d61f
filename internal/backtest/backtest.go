// Package backtest simulates single-position trading of one signal column
// over a daily price series and derives performance and risk statistics
// from the resulting trade ledger and equity curve.
package backtest

import (
	"fmt"
	"time"

	"aquant/internal/market"
	"aquant/internal/signal"
)

// Config holds the simulation parameters. The zero value falls back to
// the defaults.
type Config struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	RiskFreeRate   float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
}

// DefaultConfig returns the standard 10万初始资金 with a 3% annual
// risk-free rate.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 100000,
		RiskFreeRate:   0.03,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitialCapital <= 0 {
		c.InitialCapital = def.InitialCapital
	}
	if c.RiskFreeRate <= 0 {
		c.RiskFreeRate = def.RiskFreeRate
	}
	return c
}

// Trade is one closed round trip. ReturnAbs is the cumulative profit of
// the whole run measured against initial capital at the moment of exit,
// not the isolated profit of this trade.
type Trade struct {
	EntryDate  time.Time `json:"entry_date"`
	EntryPrice float64   `json:"entry_price"`
	ExitDate   time.Time `json:"exit_date"`
	ExitPrice  float64   `json:"exit_price"`
	ReturnPct  float64   `json:"return_pct"`
	ReturnAbs  float64   `json:"return_abs"`
	HoldDays   int       `json:"hold_days"`
}

// EquityPoint is the mark-to-market account value at one bar.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Result is the complete outcome of one backtest run.
type Result struct {
	Strategy     signal.Strategy `json:"strategy_name"`
	Trades       []Trade         `json:"trades"`
	TradeCount   int             `json:"trade_count"`
	TotalReturn  float64         `json:"total_return"`
	AnnualReturn float64         `json:"annual_return"`
	FinalValue   float64         `json:"final_value"`
	WinCount     int             `json:"win_count"`
	LossCount    int             `json:"loss_count"`
	WinRate      float64         `json:"win_rate"`
	AvgWin       float64         `json:"avg_win"`
	AvgLoss      float64         `json:"avg_loss"`
	ProfitFactor float64         `json:"profit_factor"`
	MaxDrawdown  float64         `json:"max_drawdown"`
	SharpeRatio  float64         `json:"sharpe_ratio"`
	AvgHoldDays  float64         `json:"avg_hold_days"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	TotalDays    int             `json:"total_days"`
	TradingDays  int             `json:"trading_days"`
	EquityCurve  []EquityPoint   `json:"equity_curve"`
}

// Engine runs signal-column backtests. Stateless across calls and safe
// for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates a backtest engine with the given parameters.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Config returns the effective parameters.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run simulates the signal column over the series. Position state machine:
// FLAT买入需signal≥+1，LONG卖出需signal≤-1，全仓进出，收盘价成交。
// 序列结束仍持仓则按最后一根收盘强制平仓。
//
// The equity curve gains exactly one point per bar. A run with no closed
// trades yields the neutral result: zeroed metrics, final value equal to
// initial capital and a flat full-length curve.
func (e *Engine) Run(series market.Series, signals []signal.Signal, strategy signal.Strategy) (*Result, error) {
	if len(series) != len(signals) {
		return nil, fmt.Errorf("series has %d bars but signal column has %d", len(series), len(signals))
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	capital := e.cfg.InitialCapital
	var shares float64
	long := false
	var entryDate time.Time
	var entryPrice float64

	curve := make([]EquityPoint, 0, len(series))
	trades := []Trade{}

	for i, bar := range series {
		price := bar.Close

		// 权益点先于信号处理记录
		if long {
			curve = append(curve, EquityPoint{Date: bar.Date, Value: shares * price})
		} else {
			curve = append(curve, EquityPoint{Date: bar.Date, Value: capital})
		}

		sig := signals[i]
		switch {
		case sig >= signal.Buy && !long:
			shares = capital / price
			entryPrice = price
			entryDate = bar.Date
			long = true
		case sig <= signal.Sell && long:
			capital = shares * price
			trades = append(trades, e.closeTrade(entryDate, entryPrice, bar.Date, price, capital))
			shares = 0
			long = false
		}
	}

	// 强制平仓
	if long {
		last := series[len(series)-1]
		capital = shares * last.Close
		trades = append(trades, e.closeTrade(entryDate, entryPrice, last.Date, last.Close, capital))
	}

	return e.buildResult(strategy, series, trades, curve, capital), nil
}

func (e *Engine) closeTrade(entryDate time.Time, entryPrice float64, exitDate time.Time, exitPrice, capitalAfter float64) Trade {
	return Trade{
		EntryDate:  entryDate,
		EntryPrice: entryPrice,
		ExitDate:   exitDate,
		ExitPrice:  exitPrice,
		ReturnPct:  (exitPrice - entryPrice) / entryPrice * 100,
		ReturnAbs:  capitalAfter - e.cfg.InitialCapital,
		HoldDays:   int(exitDate.Sub(entryDate).Hours() / 24),
	}
}
