// Package signal turns indicator rows into per-strategy trading signals.
// Each rule looks at one bar and its immediate predecessor only; any
// undefined indicator input makes the affected predicate false instead of
// firing a spurious signal.
package signal

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy identifies one of the six fixed signal columns.
type Strategy string

const (
	MaMacd    Strategy = "MA+MACD"
	Bollinger Strategy = "Bollinger"
	Kdj       Strategy = "KDJ"
	Rsi       Strategy = "RSI"
	Volume    Strategy = "Volume"
	Combined  Strategy = "Combined"
)

// ErrUnknownStrategy 请求了六个固定策略之外的键
var ErrUnknownStrategy = errors.New("unknown strategy key")

// All returns the six strategies in their canonical order.
func All() []Strategy {
	return []Strategy{MaMacd, Bollinger, Kdj, Rsi, Volume, Combined}
}

// Independent returns the five single-indicator strategies, excluding Combined.
func Independent() []Strategy {
	return []Strategy{MaMacd, Bollinger, Kdj, Rsi, Volume}
}

// Parse resolves a strategy key case-insensitively. Unknown keys are
// rejected by name.
func Parse(key string) (Strategy, error) {
	for _, s := range All() {
		if strings.EqualFold(strings.TrimSpace(key), string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, key)
}

// Signal is a five-level trade direction attached to one bar.
type Signal int

const (
	StrongSell Signal = -2
	Sell       Signal = -1
	Hold       Signal = 0
	Buy        Signal = 1
	StrongBuy  Signal = 2
)

// String implements fmt.Stringer for log output.
func (s Signal) String() string {
	switch s {
	case StrongSell:
		return "strong_sell"
	case Sell:
		return "sell"
	case Hold:
		return "hold"
	case Buy:
		return "buy"
	case StrongBuy:
		return "strong_buy"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Set carries all six signals of one bar plus the weighted combined score.
// JSON字段名与分析报告的信号快照保持一致。
type Set struct {
	MaMacd    Signal  `json:"signal"`
	Bollinger Signal  `json:"signal_boll"`
	Kdj       Signal  `json:"signal_kdj"`
	Rsi       Signal  `json:"signal_rsi"`
	Volume    Signal  `json:"signal_volume"`
	Combined  Signal  `json:"signal_combined"`
	Score     float64 `json:"score_combined"`
}

// Signal returns the signal stored for the given strategy.
func (s Set) Signal(strategy Strategy) (Signal, error) {
	switch strategy {
	case MaMacd:
		return s.MaMacd, nil
	case Bollinger:
		return s.Bollinger, nil
	case Kdj:
		return s.Kdj, nil
	case Rsi:
		return s.Rsi, nil
	case Volume:
		return s.Volume, nil
	case Combined:
		return s.Combined, nil
	default:
		return Hold, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// Column extracts one strategy's signal column from per-bar sets.
func Column(sets []Set, strategy Strategy) ([]Signal, error) {
	if _, err := (Set{}).Signal(strategy); err != nil {
		return nil, err
	}
	out := make([]Signal, len(sets))
	for i, set := range sets {
		out[i], _ = set.Signal(strategy)
	}
	return out, nil
}
