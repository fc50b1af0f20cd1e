package rpd1

import (
	"math"
	"testing"

	"github.com/HHildenbrandt/remphasis"
)

// eightTipTree is a fixed 8-tip tree with no missing branches: soc=2
// plus 6 observed branching events at absolute times 1..6.
func eightTipTree() remphasis.Tree {
	tree := make(remphasis.Tree, 6)
	for i := range tree {
		tree[i] = remphasis.Node{Brts: float64(i + 1), N: float64(2 + i), TExt: remphasis.TipSentinel}
	}
	return tree
}

// TestLogLikHandComputed checks LogLik against a value computed
// independently (constant speciation rate of 0.5, since lambdaN is
// zero, so the likelihood reduces to a product of constant rates
// minus a closed-form integral).
func TestLogLikHandComputed(t *testing.T) {
	m := New()
	pars := []float64{0.1, 0.5, 0.0}
	got := m.LogLik(nil, pars, eightTipTree())
	want := -20.35888308335967
	if math.Abs(got-want) > 1e-10 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSpeciationRateClampedAtZero(t *testing.T) {
	m := New()
	pars := []float64{0.1, 0.0, -1.0}
	got := m.SpeciationRate(nil, 0, pars, eightTipTree())
	if got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestSamplingProbFinite(t *testing.T) {
	m := New()
	pars := []float64{0.1, 0.5, 0.0}
	got := m.SamplingProb(nil, pars, eightTipTree())
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("sampling prob not finite: %v", got)
	}
}

func TestNHRateNonNegativeComponents(t *testing.T) {
	m := New()
	pars := []float64{0.1, 0.5, 0.0}
	tree := eightTipTree()
	got := m.NHRate(nil, 3.5, pars, tree)
	if got < 0 {
		t.Fatalf("nh_rate went negative: %v", got)
	}
}

func TestBounds(t *testing.T) {
	m := New()
	if len(m.LowerBound()) != NParams || len(m.UpperBound()) != NParams {
		t.Fatalf("bounds length mismatch with NParams=%d", NParams)
	}
}
