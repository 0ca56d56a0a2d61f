package indicator

import "math"

// emaState 指数移动平均的递推状态，首个值作为种子。
type emaState struct {
	alpha  float64
	value  float64
	primed bool
}

func newEMA(span int) *emaState {
	return &emaState{alpha: 2.0 / (float64(span) + 1.0)}
}

// Push folds the next value into the average and returns the updated EMA.
func (e *emaState) Push(v float64) float64 {
	if !e.primed {
		e.value = v
		e.primed = true
		return e.value
	}
	e.value += e.alpha * (v - e.value)
	return e.value
}

// rsiState 相对强弱指标状态：涨跌幅分离后各自做EMA平滑。
type rsiState struct {
	gain      *emaState
	loss      *emaState
	prevClose float64
	primed    bool
}

func newRSI(period int) *rsiState {
	return &rsiState{
		gain: newEMA(period),
		loss: newEMA(period),
	}
}

// Push folds the next close and returns the RSI. The first bar has no
// prior close, so its delta counts as zero; the value stays NaN until a
// net move in either direction has been seen. A zero average loss with
// positive average gain saturates at 100.
func (r *rsiState) Push(close float64) float64 {
	var delta float64
	if r.primed {
		delta = close - r.prevClose
	}
	r.prevClose = close
	r.primed = true

	var g, l float64
	if delta > 0 {
		g = delta
	} else if delta < 0 {
		l = -delta
	}
	avgGain := r.gain.Push(g)
	avgLoss := r.loss.Push(l)

	if avgLoss == 0 {
		if avgGain > 0 {
			return 100
		}
		return math.NaN()
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// kdjState 随机指标状态。K/D从50起步递推；RSV未定义的K线不推进状态，
// 当根输出NaN，但已有的K/D在后续K线上继续生效。
type kdjState struct {
	lowMin  *monotonicWindow
	highMax *monotonicWindow
	k       float64
	d       float64
}

func newKDJ(period int) *kdjState {
	return &kdjState{
		lowMin:  newRollingMin(period),
		highMax: newRollingMax(period),
		k:       50,
		d:       50,
	}
}

// Push folds the next bar and returns K, D and J. All three are NaN while
// the lookback window is filling or when the window's high-low range is zero.
func (s *kdjState) Push(high, low, close float64) (float64, float64, float64) {
	lo := s.lowMin.Push(low)
	hi := s.highMax.Push(high)
	if math.IsNaN(lo) || math.IsNaN(hi) || hi == lo {
		nan := math.NaN()
		return nan, nan, nan
	}
	rsv := (close - lo) / (hi - lo) * 100
	s.k = s.k*2.0/3.0 + rsv/3.0
	s.d = s.d*2.0/3.0 + s.k/3.0
	return s.k, s.d, 3*s.k - 2*s.d
}
