package signal

import (
	"aquant/internal/indicator"
)

// 规则区间常量，与各指标的惯用超买超卖区一致。
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
	kdjLowZone    = 50.0
	kdjHighZone   = 50.0
	bollLowBand   = 0.1
	bollMidBand   = 0.5
	bollHighBand  = 0.9
	volBreakout   = 2.0
	volDryUp      = 0.5
)

// Weights are the combined-score contributions of the five independent
// strategies.
type Weights struct {
	MaMacd    float64 `yaml:"ma_macd" json:"ma_macd"`
	Bollinger float64 `yaml:"bollinger" json:"bollinger"`
	Volume    float64 `yaml:"volume" json:"volume"`
	Kdj       float64 `yaml:"kdj" json:"kdj"`
	Rsi       float64 `yaml:"rsi" json:"rsi"`
}

// Config holds the combined-signal weighting and bucketing thresholds.
// The zero value falls back to the defaults.
type Config struct {
	Weights         Weights `yaml:"weights" json:"weights"`
	StrongThreshold float64 `yaml:"strong_threshold" json:"strong_threshold"`
	WeakThreshold   float64 `yaml:"weak_threshold" json:"weak_threshold"`
}

// DefaultConfig returns the standard 30/20/20/15/15 weighting with the
// 60/40 strength buckets.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			MaMacd:    30,
			Bollinger: 20,
			Volume:    20,
			Kdj:       15,
			Rsi:       15,
		},
		StrongThreshold: 60,
		WeakThreshold:   40,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Weights == (Weights{}) {
		c.Weights = def.Weights
	}
	if c.StrongThreshold <= 0 {
		c.StrongThreshold = def.StrongThreshold
	}
	if c.WeakThreshold <= 0 {
		c.WeakThreshold = def.WeakThreshold
	}
	return c
}

// Engine derives per-bar signal sets from indicator rows. Stateless and
// safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates a signal engine with the given weighting.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Compute evaluates all six strategies over the rows and returns one Set
// per bar. Bar 0 has no predecessor and never emits a non-zero signal.
func (e *Engine) Compute(rows []indicator.Row) []Set {
	sets := make([]Set, len(rows))
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]

		set := Set{
			MaMacd:    maMacdRule(prev, cur),
			Bollinger: bollingerRule(prev, cur),
			Kdj:       kdjRule(prev, cur),
			Rsi:       rsiRule(prev, cur),
			Volume:    volumeRule(prev, cur),
		}
		set.Score = e.cfg.Weights.MaMacd*float64(set.MaMacd) +
			e.cfg.Weights.Bollinger*float64(set.Bollinger) +
			e.cfg.Weights.Volume*float64(set.Volume) +
			e.cfg.Weights.Kdj*float64(set.Kdj) +
			e.cfg.Weights.Rsi*float64(set.Rsi)
		set.Combined = e.bucket(set.Score)

		sets[i] = set
	}
	return sets
}

// bucket maps the weighted score onto the five-level combined signal.
func (e *Engine) bucket(score float64) Signal {
	switch {
	case score >= e.cfg.StrongThreshold:
		return StrongBuy
	case score >= e.cfg.WeakThreshold:
		return Buy
	case score <= -e.cfg.StrongThreshold:
		return StrongSell
	case score <= -e.cfg.WeakThreshold:
		return Sell
	default:
		return Hold
	}
}

// defined reports whether every given value is usable.
func defined(vs ...float64) bool {
	for _, v := range vs {
		if !indicator.Defined(v) {
			return false
		}
	}
	return true
}

// crossUp reports a crossing: at or below the reference on the previous
// bar, strictly above on the current one. Undefined inputs never cross.
func crossUp(prevV, prevRef, curV, curRef float64) bool {
	return defined(prevV, prevRef, curV, curRef) && prevV <= prevRef && curV > curRef
}

func crossDown(prevV, prevRef, curV, curRef float64) bool {
	return defined(prevV, prevRef, curV, curRef) && prevV >= prevRef && curV < curRef
}

// maMacdRule 均线与MACD共振：金叉需另一指标同向确认，死叉单边即卖。
func maMacdRule(prev, cur indicator.Row) Signal {
	maCrossUp := crossUp(prev.MA5, prev.MA20, cur.MA5, cur.MA20)
	maCrossDown := crossDown(prev.MA5, prev.MA20, cur.MA5, cur.MA20)
	difCrossUp := crossUp(prev.DIF, prev.DEA, cur.DIF, cur.DEA)
	difCrossDown := crossDown(prev.DIF, prev.DEA, cur.DIF, cur.DEA)
	difAbove := defined(cur.DIF, cur.DEA) && cur.DIF > cur.DEA
	maAbove := defined(cur.MA5, cur.MA20) && cur.MA5 > cur.MA20

	switch {
	case maCrossUp && difAbove:
		return Buy
	case difCrossUp && maAbove:
		return Buy
	case maCrossDown || difCrossDown:
		return Sell
	default:
		return Hold
	}
}

// bollingerRule 布林带位置反弹：从下轨回升买入，从上轨回落卖出。
func bollingerRule(prev, cur indicator.Row) Signal {
	if !defined(prev.BollPos, cur.BollPos) {
		return Hold
	}
	if prev.BollPos < bollLowBand && cur.BollPos >= bollLowBand && cur.BollPos < bollMidBand {
		return Buy
	}
	if prev.BollPos > bollHighBand && cur.BollPos <= bollHighBand && cur.BollPos > bollMidBand {
		return Sell
	}
	return Hold
}

// kdjRule KD金叉且K处于低位买入，死叉且K处于高位卖出。
func kdjRule(prev, cur indicator.Row) Signal {
	if crossUp(prev.K, prev.D, cur.K, cur.D) && cur.K < kdjLowZone {
		return Buy
	}
	if crossDown(prev.K, prev.D, cur.K, cur.D) && cur.K > kdjHighZone {
		return Sell
	}
	return Hold
}

// rsiRule 超卖区回升买入，超买区回落卖出。
func rsiRule(prev, cur indicator.Row) Signal {
	if !defined(prev.RSI, cur.RSI) {
		return Hold
	}
	if prev.RSI < cur.RSI && cur.RSI < rsiOversold {
		return Buy
	}
	if prev.RSI > cur.RSI && cur.RSI > rsiOverbought {
		return Sell
	}
	return Hold
}

// volumeRule 放量突破20日高点买入；跌破20日低点或量能枯竭卖出。
// 卖出条件为或关系，两个谓词各自独立评估。
func volumeRule(prev, cur indicator.Row) Signal {
	if defined(prev.High20, cur.VolRatio) &&
		cur.Close > prev.High20 && cur.VolRatio > volBreakout {
		return Buy
	}
	breakLow := defined(prev.Low20) && cur.Close < prev.Low20
	dryUp := defined(cur.VolRatio) && cur.VolRatio < volDryUp
	if breakLow || dryUp {
		return Sell
	}
	return Hold
}
