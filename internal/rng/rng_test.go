package rng

import "testing"

func TestNewDistinctWorkers(t *testing.T) {
	a := New(1000, 0)
	b := New(1000, 1)
	if a.Uint64() == b.Uint64() {
		t.Fatalf("distinct workers produced identical streams")
	}
}

func TestTruncExpSupport(t *testing.T) {
	r := New(42, 0)
	const lower, upper = 0.5, 2.0
	for i := 0; i < 10000; i++ {
		v := TruncExp(r, lower, upper, 1.3)
		if v < lower || v > upper {
			t.Fatalf("draw %v outside [%v, %v]", v, lower, upper)
		}
	}
}

func TestTruncExpMeanConverges(t *testing.T) {
	r := New(7, 3)
	const lower, upper, rate = 0.0, 50.0, 1.0
	const n = 200000
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += TruncExp(r, lower, upper, rate)
	}
	mean := sum / n
	// untruncated Exponential(1) has mean 1; with upper=50 the
	// truncation is negligible.
	if mean < 0.95 || mean > 1.05 {
		t.Fatalf("mean %v far from expected ~1.0", mean)
	}
}

func TestBoundsFinite(t *testing.T) {
	if !BoundsFinite(0, 10) {
		t.Fatalf("expected finite bounds to report true")
	}
}
