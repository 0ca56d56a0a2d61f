// Package scoring aggregates the current indicator snapshot and the best
// backtested strategy into a 0-100 advisory score with a letter grade.
package scoring

import (
	"aquant/internal/indicator"
)

// 形态取值
const (
	PatternBull       = "bull"
	PatternBear       = "bear"
	PatternOversold   = "oversold"
	PatternOverbought = "overbought"
	PatternNormal     = "normal"
	PatternHigh       = "high"
	PatternLow        = "low"
	PatternUnknown    = "unknown"
)

// Patterns is the qualitative technical picture of a single bar.
type Patterns struct {
	MA     string `json:"ma"`
	MACD   string `json:"macd"`
	RSI    string `json:"rsi"`
	Volume string `json:"volume"`
}

// PatternsFrom buckets the bar's indicator values. Undefined inputs map to
// PatternUnknown rather than being guessed.
func PatternsFrom(row indicator.Row) Patterns {
	p := Patterns{
		MA:     PatternUnknown,
		MACD:   PatternUnknown,
		RSI:    PatternUnknown,
		Volume: PatternUnknown,
	}

	if indicator.Defined(row.MA5) && indicator.Defined(row.MA20) {
		if row.MA5 > row.MA20 {
			p.MA = PatternBull
		} else {
			p.MA = PatternBear
		}
	}

	if indicator.Defined(row.DIF) && indicator.Defined(row.DEA) {
		if row.DIF > row.DEA {
			p.MACD = PatternBull
		} else {
			p.MACD = PatternBear
		}
	}

	if indicator.Defined(row.RSI) {
		switch {
		case row.RSI < 30:
			p.RSI = PatternOversold
		case row.RSI > 70:
			p.RSI = PatternOverbought
		default:
			p.RSI = PatternNormal
		}
	}

	if indicator.Defined(row.VolRatio) {
		switch {
		case row.VolRatio > 1.5:
			p.Volume = PatternHigh
		case row.VolRatio < 0.7:
			p.Volume = PatternLow
		default:
			p.Volume = PatternNormal
		}
	}

	return p
}

// Describe renders the pattern as Chinese display lines. 趋势行只在均线与
// MACD形态都已识别时输出。
func (p Patterns) Describe() []string {
	desc := make([]string, 0, 3)

	switch {
	case p.MA == PatternBull && p.MACD == PatternBull:
		desc = append(desc, "趋势: 多头 (MA5>MA20, DIF>DEA)")
	case p.MA == PatternBull && p.MACD == PatternBear:
		desc = append(desc, "趋势: 均线多头 (MA5>MA20, DIF<DEA)")
	case p.MA == PatternBear && p.MACD == PatternBull:
		desc = append(desc, "趋势: MACD多头 (MA5<MA20, DIF>DEA)")
	case p.MA == PatternBear && p.MACD == PatternBear:
		desc = append(desc, "趋势: 空头 (MA5<MA20, DIF<DEA)")
	}

	switch p.RSI {
	case PatternOversold:
		desc = append(desc, "RSI: 超卖区 (<30)")
	case PatternOverbought:
		desc = append(desc, "RSI: 超买区 (>70)")
	default:
		desc = append(desc, "RSI: 正常区间 (30-70)")
	}

	switch p.Volume {
	case PatternHigh:
		desc = append(desc, "成交量: 放量 (量比>1.5)")
	case PatternLow:
		desc = append(desc, "成交量: 缩量 (量比<0.7)")
	default:
		desc = append(desc, "成交量: 正常")
	}

	return desc
}
