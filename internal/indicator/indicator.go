// Package indicator derives technical indicator columns from a daily price
// series in a single forward pass. Every recursive indicator is modeled as a
// small fold state updated once per bar, and rolling statistics run on
// incremental window structures instead of whole-series recomputation.
//
// A value is undefined (NaN) until its lookback window is satisfied or when
// its denominator degenerates to zero; undefined never silently becomes zero.
package indicator

import (
	"math"

	"aquant/internal/market"
)

// 均线阶梯固定为5/10/20/60日，对应Row的四个均线字段。
const (
	MAShort   = 5
	MAMedium  = 10
	MALong    = 20
	MAQuarter = 60
)

// Config holds the tunable indicator parameters. The zero value of any
// field falls back to its default, so Config{} behaves like DefaultConfig().
type Config struct {
	MACDFast       int     `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow       int     `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal     int     `yaml:"macd_signal" json:"macd_signal"`
	RSIPeriod      int     `yaml:"rsi_period" json:"rsi_period"`
	BollPeriod     int     `yaml:"boll_period" json:"boll_period"`
	BollStdMult    float64 `yaml:"boll_std_mult" json:"boll_std_mult"`
	KDJPeriod      int     `yaml:"kdj_period" json:"kdj_period"`
	VolumeWindow   int     `yaml:"volume_window" json:"volume_window"`
	BreakoutWindow int     `yaml:"breakout_window" json:"breakout_window"`
}

// DefaultConfig returns the standard parameter set.
func DefaultConfig() Config {
	return Config{
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		RSIPeriod:      14,
		BollPeriod:     20,
		BollStdMult:    2.0,
		KDJPeriod:      9,
		VolumeWindow:   5,
		BreakoutWindow: 20,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MACDFast <= 0 {
		c.MACDFast = def.MACDFast
	}
	if c.MACDSlow <= 0 {
		c.MACDSlow = def.MACDSlow
	}
	if c.MACDSignal <= 0 {
		c.MACDSignal = def.MACDSignal
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = def.RSIPeriod
	}
	if c.BollPeriod <= 0 {
		c.BollPeriod = def.BollPeriod
	}
	if c.BollStdMult <= 0 {
		c.BollStdMult = def.BollStdMult
	}
	if c.KDJPeriod <= 0 {
		c.KDJPeriod = def.KDJPeriod
	}
	if c.VolumeWindow <= 0 {
		c.VolumeWindow = def.VolumeWindow
	}
	if c.BreakoutWindow <= 0 {
		c.BreakoutWindow = def.BreakoutWindow
	}
	return c
}

// Row is a price bar augmented with its derived indicator columns.
// Undefined values are NaN.
type Row struct {
	market.PriceBar

	MA5  float64 `json:"ma5"`
	MA10 float64 `json:"ma10"`
	MA20 float64 `json:"ma20"`
	MA60 float64 `json:"ma60"`

	DIF  float64 `json:"dif"`
	DEA  float64 `json:"dea"`
	MACD float64 `json:"macd"`

	RSI float64 `json:"rsi"`

	BollMid   float64 `json:"boll_mid"`
	BollUpper float64 `json:"boll_upper"`
	BollLower float64 `json:"boll_lower"`
	BollPos   float64 `json:"boll_pos"`

	K float64 `json:"k"`
	D float64 `json:"d"`
	J float64 `json:"j"`

	VolRatio float64 `json:"vol_ratio"`

	// 突破通道：含当根K线的滚动最高/最低，信号端取前一根的值
	High20 float64 `json:"high20"`
	Low20  float64 `json:"low20"`
}

// Defined reports whether an indicator value is usable.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// Engine computes indicator rows from price series. It is stateless across
// calls and safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an indicator engine with the given parameters.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Config returns the effective parameter set.
func (e *Engine) Config() Config {
	return e.cfg
}

// Compute transforms the series into indicator rows of the same length and
// order. The series must pass market.Series.Validate; structural violations
// are the only hard failures, per-bar window gaps just yield NaN fields.
func (e *Engine) Compute(series market.Series) ([]Row, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}

	cfg := e.cfg
	rows := make([]Row, len(series))

	ma5 := newRollingMean(MAShort)
	ma10 := newRollingMean(MAMedium)
	ma20 := newRollingMean(MALong)
	ma60 := newRollingMean(MAQuarter)
	emaFast := newEMA(cfg.MACDFast)
	emaSlow := newEMA(cfg.MACDSlow)
	emaSignal := newEMA(cfg.MACDSignal)
	rsi := newRSI(cfg.RSIPeriod)
	bollMean := newRollingMean(cfg.BollPeriod)
	bollStd := newRollingStd(cfg.BollPeriod)
	kdj := newKDJ(cfg.KDJPeriod)
	volMean := newRollingMean(cfg.VolumeWindow)
	highMax := newRollingMax(cfg.BreakoutWindow)
	lowMin := newRollingMin(cfg.BreakoutWindow)

	nan := math.NaN()
	for i, bar := range series {
		row := Row{PriceBar: bar}

		row.MA5 = ma5.Push(bar.Close)
		row.MA10 = ma10.Push(bar.Close)
		row.MA20 = ma20.Push(bar.Close)
		row.MA60 = ma60.Push(bar.Close)

		fast := emaFast.Push(bar.Close)
		slow := emaSlow.Push(bar.Close)
		row.DIF = fast - slow
		row.DEA = emaSignal.Push(row.DIF)
		row.MACD = (row.DIF - row.DEA) * 2

		row.RSI = rsi.Push(bar.Close)

		mid := bollMean.Push(bar.Close)
		sd := bollStd.Push(bar.Close)
		if Defined(mid) && Defined(sd) {
			row.BollMid = mid
			row.BollUpper = mid + cfg.BollStdMult*sd
			row.BollLower = mid - cfg.BollStdMult*sd
			if width := row.BollUpper - row.BollLower; width != 0 {
				row.BollPos = (bar.Close - row.BollLower) / width
			} else {
				row.BollPos = nan
			}
		} else {
			row.BollMid = nan
			row.BollUpper = nan
			row.BollLower = nan
			row.BollPos = nan
		}

		row.K, row.D, row.J = kdj.Push(bar.High, bar.Low, bar.Close)

		if vm := volMean.Push(bar.Volume); Defined(vm) && vm != 0 {
			row.VolRatio = bar.Volume / vm
		} else {
			row.VolRatio = nan
		}

		row.High20 = highMax.Push(bar.High)
		row.Low20 = lowMin.Push(bar.Low)

		rows[i] = row
	}
	return rows, nil
}
