package indicator

import "math"

// rollingMean 维护固定窗口的算术平均，窗口未满时返回NaN。
type rollingMean struct {
	window int
	buf    []float64
	head   int
	count  int
	sum    float64
}

func newRollingMean(window int) *rollingMean {
	return &rollingMean{
		window: window,
		buf:    make([]float64, window),
	}
}

// Push adds the next value and returns the trailing mean, or NaN while
// the window is still filling.
func (r *rollingMean) Push(v float64) float64 {
	if r.count == r.window {
		r.sum -= r.buf[r.head]
	} else {
		r.count++
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.window
	r.sum += v
	if r.count < r.window {
		return math.NaN()
	}
	return r.sum / float64(r.window)
}

// rollingStd 维护固定窗口的样本标准差(n-1)，窗口未满时返回NaN。
type rollingStd struct {
	window int
	buf    []float64
	head   int
	count  int
	sum    float64
	sumSq  float64
}

func newRollingStd(window int) *rollingStd {
	return &rollingStd{
		window: window,
		buf:    make([]float64, window),
	}
}

// Push adds the next value and returns the trailing sample standard
// deviation, or NaN while the window is still filling.
func (r *rollingStd) Push(v float64) float64 {
	if r.count == r.window {
		old := r.buf[r.head]
		r.sum -= old
		r.sumSq -= old * old
	} else {
		r.count++
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.window
	r.sum += v
	r.sumSq += v * v
	if r.count < r.window || r.window < 2 {
		return math.NaN()
	}
	n := float64(r.window)
	variance := (r.sumSq - r.sum*r.sum/n) / (n - 1)
	// 浮点抵消可能产生轻微负值
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// monotonicWindow 用单调双端队列维护固定窗口的最值，均摊O(1)。
type monotonicWindow struct {
	window int
	max    bool
	idx    []int
	val    []float64
	n      int
}

func newRollingMax(window int) *monotonicWindow {
	return &monotonicWindow{window: window, max: true}
}

func newRollingMin(window int) *monotonicWindow {
	return &monotonicWindow{window: window, max: false}
}

// Push adds the next value and returns the window extremum, or NaN while
// the window is still filling.
func (w *monotonicWindow) Push(v float64) float64 {
	i := w.n
	w.n++

	// 淘汰滑出窗口的下标
	lo := i - w.window + 1
	for len(w.idx) > 0 && w.idx[0] < lo {
		w.idx = w.idx[1:]
		w.val = w.val[1:]
	}

	// 淘汰被新值支配的队尾
	for len(w.val) > 0 {
		tail := w.val[len(w.val)-1]
		if (w.max && tail <= v) || (!w.max && tail >= v) {
			w.idx = w.idx[:len(w.idx)-1]
			w.val = w.val[:len(w.val)-1]
			continue
		}
		break
	}

	w.idx = append(w.idx, i)
	w.val = append(w.val, v)

	if w.n < w.window {
		return math.NaN()
	}
	return w.val[0]
}
