package rpd5c

import (
	"math"
	"testing"

	"github.com/HHildenbrandt/remphasis"
)

func sampleTree() remphasis.Tree {
	tree := remphasis.Tree{
		{Brts: 1, N: 2, TExt: remphasis.TipSentinel},
		{Brts: 2, N: 3, TExt: remphasis.TipSentinel},
		{Brts: 4, N: 3, TExt: remphasis.TipSentinel},
	}
	tree.RecomputePD()
	return tree
}

func TestLogLikFinite(t *testing.T) {
	m := New()
	pars := []float64{0.1, 0.5, 0.0, 0.01}
	got := m.LogLik(nil, pars, sampleTree())
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("loglik not finite: %v", got)
	}
}

func TestSamplingProbFinite(t *testing.T) {
	m := New()
	pars := []float64{0.1, 0.5, 0.0, 0.01}
	got := m.SamplingProb(nil, pars, sampleTree())
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("sampling prob not finite: %v", got)
	}
}

func TestCalculatePDAtMatchesRecomputePD(t *testing.T) {
	tree := sampleTree()
	got := calculatePDAt(tree, tree[len(tree)-1].Brts)
	want := tree[len(tree)-1].PD
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBounds(t *testing.T) {
	m := New()
	if len(m.LowerBound()) != NParams || len(m.UpperBound()) != NParams {
		t.Fatalf("bounds length mismatch with NParams=%d", NParams)
	}
}
