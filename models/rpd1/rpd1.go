// Package rpd1 implements the rpd1 diversification model: a
// birth-death process whose per-lineage speciation rate is a linear
// function of the current lineage count (lambda0 + lambdaN*N) and a
// constant extinction rate mu.
//
// Grounded on emphasis_rpd1.cpp.
package rpd1

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/HHildenbrandt/remphasis"
	"github.com/HHildenbrandt/remphasis/internal/logsum"
	"github.com/HHildenbrandt/remphasis/internal/muint"
	"github.com/HHildenbrandt/remphasis/internal/rng"
)

// NParams is the number of free parameters: mu, lambda0, lambdaN.
const NParams = 3

// Model is the rpd1 diversification model. Its state is unused; the
// per-tree state pointer is always nil.
type Model struct{}

// New returns an rpd1 Model.
func New() *Model { return &Model{} }

func (*Model) NParams() int       { return NParams }
func (*Model) IsThreadsafe() bool { return true }

// speciationRate returns max(0, lambda0 + lambdaN*n).
func speciationRate(pars []float64, n float64) float64 {
	return math.Max(0, pars[1]+pars[2]*n)
}

// nodeAt returns the node covering time t: the first node whose Brts
// is >= t, clamped to the tree's last node.
func nodeAt(tree remphasis.Tree, t float64) remphasis.Node {
	i := sort.Search(len(tree), func(i int) bool { return tree[i].Brts >= t })
	if i >= len(tree) {
		i = len(tree) - 1
	}
	return tree[i]
}

func (*Model) SpeciationRate(state *any, t float64, pars []float64, tree remphasis.Tree) float64 {
	return speciationRate(pars, nodeAt(tree, t).N)
}

// NHRate returns lambda(t)*N(t)*(1 - exp(-mu*(tEnd-t))), the
// non-homogeneous thinning rate used by augmentation.
//
// Grounded on emphasis_rpd1.cpp's emp_nh_rate.
func (*Model) NHRate(state *any, t float64, pars []float64, tree remphasis.Tree) float64 {
	node := nodeAt(tree, t)
	n := node.N
	lambda := math.Max(0, pars[1]+pars[2]*n)
	tEnd := tree[len(tree)-1].Brts
	return lambda * n * (1 - math.Exp(-pars[0]*(tEnd-t)))
}

func (*Model) ExtinctionTime(r *rand.Rand, state *any, tSpec float64, pars []float64, tree remphasis.Tree) float64 {
	tEnd := tree[len(tree)-1].Brts
	return tSpec + rng.TruncExp(r, 0, tEnd-tSpec, pars[0])
}

// LogLik returns the complete-data log-likelihood of tree under pars.
//
// Grounded on emphasis_rpd1.cpp's emp_loglik: a product of per-node
// speciation rates (accumulated via logsum to avoid overflow), a
// cex*log(mu) term for extinctions, minus the integral of the total
// event rate over time.
func (*Model) LogLik(state *any, pars []float64, tree remphasis.Tree) float64 {
	logSR := logsum.New()
	cex := 0
	var inte float64
	var prevBrts float64
	for _, node := range tree {
		sr := speciationRate(pars, node.N)
		if node.IsExtinction() {
			cex++
		} else {
			logSR.Add(sr)
		}
		inte += (node.Brts - prevBrts) * node.N * (sr + pars[0])
		prevBrts = node.Brts
	}
	return float64(cex)*math.Log(pars[0]) + logSR.Result() - inte
}

// SamplingProb returns the log density that augmentation would have
// produced exactly this tree.
//
// Grounded on emphasis_rpd1.cpp's emp_sampling_prob, with the
// intensity integral from emp_intensity inlined via internal/muint.
func (*Model) SamplingProb(state *any, pars []float64, tree remphasis.Tree) float64 {
	tEnd := tree[len(tree)-1].Brts
	mu := pars[0]
	integrator := muint.New(mu, tEnd)

	var inte float64
	var prevBrts float64
	for _, node := range tree {
		sr := speciationRate(pars, node.N)
		inte += node.N * sr * integrator.At(prevBrts, node.Brts)
		prevBrts = node.Brts
	}

	logg := -inte
	tips := tree[0].N
	for _, node := range tree {
		if node.IsTip() {
			tips++
		}
		if node.IsMissing() {
			sr := speciationRate(pars, node.N)
			lifespan := node.TExt - node.Brts
			logg += math.Log(node.N*mu*sr) - mu*lifespan - math.Log(node.N+tips)
		}
	}
	return logg
}

func (*Model) LowerBound() []float64 { return []float64{1e-8, 1e-8, -1.0} }
func (*Model) UpperBound() []float64 { return []float64{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64} }

func (*Model) FreeState(state *any)      { *state = nil }
func (*Model) InvalidateState(state *any) {}
