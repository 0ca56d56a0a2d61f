package indicator

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRollingMean(t *testing.T) {
	rm := newRollingMean(3)
	inputs := []float64{1, 2, 3, 4, 5}
	expected := []float64{math.NaN(), math.NaN(), 2, 3, 4}

	for i, v := range inputs {
		got := rm.Push(v)
		want := expected[i]
		if math.IsNaN(want) {
			if !math.IsNaN(got) {
				t.Errorf("push %d: expected NaN, got %v", i, got)
			}
			continue
		}
		if !almostEqual(got, want) {
			t.Errorf("push %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestRollingStd(t *testing.T) {
	rs := newRollingStd(3)

	// 窗口未满返回NaN
	if got := rs.Push(1); !math.IsNaN(got) {
		t.Errorf("push 0: expected NaN, got %v", got)
	}
	if got := rs.Push(2); !math.IsNaN(got) {
		t.Errorf("push 1: expected NaN, got %v", got)
	}

	// 样本标准差(n-1)
	if got := rs.Push(3); !almostEqual(got, 1) {
		t.Errorf("std(1,2,3): expected 1, got %v", got)
	}
	if got := rs.Push(4); !almostEqual(got, 1) {
		t.Errorf("std(2,3,4): expected 1, got %v", got)
	}
	want := math.Sqrt(129.0 / 9.0)
	if got := rs.Push(10); !almostEqual(got, want) {
		t.Errorf("std(3,4,10): expected %v, got %v", want, got)
	}
}

func TestRollingStdConstant(t *testing.T) {
	rs := newRollingStd(3)
	for i := 0; i < 10; i++ {
		got := rs.Push(7.5)
		if i < 2 {
			continue
		}
		if got != 0 {
			t.Errorf("push %d: constant series should have zero std, got %v", i, got)
		}
	}
}

func TestMonotonicWindowMax(t *testing.T) {
	w := newRollingMax(3)
	inputs := []float64{5, 3, 4, 2, 1, 6}
	expected := []float64{math.NaN(), math.NaN(), 5, 4, 4, 6}

	for i, v := range inputs {
		got := w.Push(v)
		want := expected[i]
		if math.IsNaN(want) {
			if !math.IsNaN(got) {
				t.Errorf("push %d: expected NaN, got %v", i, got)
			}
			continue
		}
		if got != want {
			t.Errorf("push %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestMonotonicWindowMin(t *testing.T) {
	w := newRollingMin(3)
	inputs := []float64{5, 3, 4, 2, 1, 6}
	expected := []float64{math.NaN(), math.NaN(), 3, 2, 1, 1}

	for i, v := range inputs {
		got := w.Push(v)
		want := expected[i]
		if math.IsNaN(want) {
			if !math.IsNaN(got) {
				t.Errorf("push %d: expected NaN, got %v", i, got)
			}
			continue
		}
		if got != want {
			t.Errorf("push %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestMonotonicWindowExpiry(t *testing.T) {
	// 峰值滑出窗口后最值应回落
	w := newRollingMax(2)
	w.Push(100)
	if got := w.Push(1); got != 100 {
		t.Errorf("expected 100, got %v", got)
	}
	if got := w.Push(2); got != 2 {
		t.Errorf("peak should expire, expected 2, got %v", got)
	}
}
