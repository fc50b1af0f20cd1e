package muint

import "testing"

func approxEqual(a, b, reltol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	denom := a
	if denom < 0 {
		denom = -denom
	}
	return d <= reltol*denom
}

func TestIntegratorSingleInterval(t *testing.T) {
	m := New(0.5, 10)
	got := m.At(0, 10)
	want := 8.01347589
	if !approxEqual(got, want, 1e-6) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestIntegratorZeroMu(t *testing.T) {
	m := New(0, 10)
	if got := m.At(2, 7); got != 5 {
		t.Fatalf("got %v, want 5", got)
	}
}

// TestIntegratorAbuttingIntervals checks that splitting [0,10] into
// abutting sub-intervals and summing their integrals reproduces the
// single-interval result, confirming the memoized exp(mu*t1) carries
// forward correctly.
func TestIntegratorAbuttingIntervals(t *testing.T) {
	whole := New(0.5, 10).At(0, 10)

	m := New(0.5, 10)
	sum := m.At(0, 3) + m.At(3, 6) + m.At(6, 10)

	if !approxEqual(sum, whole, 1e-9) {
		t.Fatalf("split sum %v, want %v", sum, whole)
	}
}
