package estep

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/HHildenbrandt/remphasis"
	"github.com/HHildenbrandt/remphasis/augment"
)

// birthModel is a minimal pure-birth model good enough to drive the
// E-step's bookkeeping without depending on a concrete models/*
// package.
type birthModel struct {
	lambda       float64
	threadsafe   bool
	zeroWeightAt int
	calls        int
}

func (m *birthModel) NParams() int       { return 1 }
func (m *birthModel) IsThreadsafe() bool { return m.threadsafe }

func (m *birthModel) SpeciationRate(state *any, t float64, pars []float64, tree remphasis.Tree) float64 {
	return m.lambda
}

func (m *birthModel) NHRate(state *any, t float64, pars []float64, tree remphasis.Tree) float64 {
	n := tree[0].N
	for _, node := range tree {
		if node.Brts > t {
			break
		}
		n = node.N
	}
	return m.lambda * n
}

func (m *birthModel) ExtinctionTime(rng *rand.Rand, state *any, tSpec float64, pars []float64, tree remphasis.Tree) float64 {
	return remphasis.TipSentinel
}

func (m *birthModel) LogLik(state *any, pars []float64, tree remphasis.Tree) float64 {
	return -1.0 // constant, finite: weights are driven by SamplingProb
}

func (m *birthModel) SamplingProb(state *any, pars []float64, tree remphasis.Tree) float64 {
	return -1.0
}

func (m *birthModel) LowerBound() []float64 { return nil }
func (m *birthModel) UpperBound() []float64 { return nil }
func (m *birthModel) FreeState(state *any)      { *state = nil }
func (m *birthModel) InvalidateState(state *any) {}

func testBrts() []float64 {
	return []float64{10, 6, 3}
}

func TestRunAcceptsNTrees(t *testing.T) {
	model := &birthModel{lambda: 0.05, threadsafe: true}
	cfg := Config{N: 5, MaxN: 200, SOC: 2, MaxMissing: 10000, MaxLambda: 500, NumWorkers: 4, Variant: augment.Continuous}
	res, err := Run(cfg, []float64{}, testBrts(), model)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trees) != cfg.N {
		t.Fatalf("got %d trees, want %d", len(res.Trees), cfg.N)
	}
	if len(res.Weights) != cfg.N {
		t.Fatalf("got %d weights, want %d", len(res.Weights), cfg.N)
	}
	if math.IsNaN(res.Fhat) || math.IsInf(res.Fhat, 0) {
		t.Fatalf("fhat not finite: %v", res.Fhat)
	}
}

func TestRunEqualWeightsNormalizeToOne(t *testing.T) {
	model := &birthModel{lambda: 0.05, threadsafe: true}
	cfg := Config{N: 4, MaxN: 200, SOC: 2, MaxMissing: 10000, MaxLambda: 500, NumWorkers: 1, Variant: augment.Continuous}
	res, err := Run(cfg, []float64{}, testBrts(), model)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// LogLik - SamplingProb is constant across every accepted tree
	// here, so every weight should normalize to exactly 1.
	for i, w := range res.Weights {
		if math.Abs(w-1.0) > 1e-9 {
			t.Fatalf("weight[%d] = %v, want 1.0", i, w)
		}
	}
}

func TestRunMaxAttemptsExceeded(t *testing.T) {
	model := &birthModel{lambda: 0.05, threadsafe: true}
	cfg := Config{N: 1000, MaxN: 3, SOC: 2, MaxMissing: 10000, MaxLambda: 500, NumWorkers: 2, Variant: augment.Continuous}
	_, err := Run(cfg, []float64{}, testBrts(), model)
	if !errors.Is(err, remphasis.ErrMaxAttemptsExceeded) {
		t.Fatalf("got %v, want ErrMaxAttemptsExceeded", err)
	}
}

// TestRunSingleThreadedWhenModelNotThreadsafe checks that a model
// reporting IsThreadsafe() == false still produces a correct result,
// regardless of NumWorkers requested.
func TestRunSingleThreadedWhenModelNotThreadsafe(t *testing.T) {
	model := &birthModel{lambda: 0.05, threadsafe: false}
	cfg := Config{N: 3, MaxN: 100, SOC: 2, MaxMissing: 10000, MaxLambda: 500, NumWorkers: 8, Variant: augment.Continuous}
	res, err := Run(cfg, []float64{}, testBrts(), model)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trees) != cfg.N {
		t.Fatalf("got %d trees, want %d", len(res.Trees), cfg.N)
	}
}

// panicLogLikModel panics out of LogLik on every call, to exercise
// the worker pool's panic recovery.
type panicLogLikModel struct {
	birthModel
}

func (m *panicLogLikModel) LogLik(state *any, pars []float64, tree remphasis.Tree) float64 {
	panic("boom")
}

func TestRunRecoversModelPanic(t *testing.T) {
	model := &panicLogLikModel{birthModel{lambda: 0.05, threadsafe: true}}
	cfg := Config{N: 5, MaxN: 200, SOC: 2, MaxMissing: 10000, MaxLambda: 500, NumWorkers: 4, Variant: augment.Continuous}
	_, err := Run(cfg, []float64{}, testBrts(), model)
	if !errors.Is(err, remphasis.ErrModelFailure) {
		t.Fatalf("got %v, want ErrModelFailure", err)
	}
}

func TestInplaceCumsumOfDiff(t *testing.T) {
	ages := []float64{10, 6, 3}
	inplaceCumsumOfDiff(ages)
	want := []float64{4, 7, 10}
	for i := range want {
		if math.Abs(ages[i]-want[i]) > 1e-9 {
			t.Fatalf("got %v, want %v", ages, want)
		}
	}
}
