// Package rpd5c implements the rpd5c diversification model: the same
// diversity-dependent speciation rate as rpd5 (lambda0 + lambdaN*N +
// lambdaPD*PD/N) but with its likelihood and sampling-probability
// integrals evaluated by direct numerical accumulation over the
// observed intervals rather than rpd5's closed-form antiderivative.
//
// Grounded on emphasis_rpd5c.cpp.
package rpd5c

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/HHildenbrandt/remphasis"
	"github.com/HHildenbrandt/remphasis/internal/logsum"
	"github.com/HHildenbrandt/remphasis/internal/muint"
	"github.com/HHildenbrandt/remphasis/internal/rng"
)

// NParams is the number of free parameters: mu, lambda0, lambdaN, lambdaPD.
const NParams = 4

// Model is the rpd5c diversification model. Its state is unused; the
// per-tree state pointer is always nil.
type Model struct{}

// New returns an rpd5c Model.
func New() *Model { return &Model{} }

func (*Model) NParams() int       { return NParams }
func (*Model) IsThreadsafe() bool { return true }

func nodeAt(tree remphasis.Tree, t float64) remphasis.Node {
	i := sort.Search(len(tree), func(i int) bool { return tree[i].Brts >= t })
	if i >= len(tree) {
		i = len(tree) - 1
	}
	return tree[i]
}

func speciationRate(pars []float64, n, pd float64) float64 {
	return math.Max(0, pars[1]+pars[2]*n+pars[3]*pd/n)
}

func (*Model) SpeciationRate(state *any, t float64, pars []float64, tree remphasis.Tree) float64 {
	node := nodeAt(tree, t)
	return speciationRate(pars, node.N, node.PD)
}

// NHRate recomputes PD at t directly (rather than reading a stored
// node's PD) since t generally falls strictly inside an interval
// during augmentation's thinning search.
//
// Grounded on emphasis_rpd5c.cpp's emp_nh_rate.
func (*Model) NHRate(state *any, t float64, pars []float64, tree remphasis.Tree) float64 {
	node := nodeAt(tree, t)
	pd := calculatePDAt(tree, t)
	lambda := speciationRate(pars, node.N, pd)
	tEnd := tree[len(tree)-1].Brts
	return lambda * node.N * (1 - math.Exp(-pars[0]*(tEnd-t)))
}

// calculatePDAt returns the accumulated missing-species PD as of time
// t, a partial run of Tree.RecomputePD stopped at t.
//
// Grounded on model_helpers.hpp's detail::calculate_pd(t, n, tree).
func calculatePDAt(tree remphasis.Tree, t float64) float64 {
	var sum float64
	var prevBrts float64
	n := tree[0].N
	for _, node := range tree {
		if node.Brts > t {
			break
		}
		if node.IsMissing() {
			sum += (node.Brts - prevBrts) * n
			n++
			prevBrts = node.Brts
		}
	}
	return sum
}

func (*Model) ExtinctionTime(r *rand.Rand, state *any, tSpec float64, pars []float64, tree remphasis.Tree) float64 {
	tEnd := tree[len(tree)-1].Brts
	return tSpec + rng.TruncExp(r, 0, tEnd-tSpec, pars[0])
}

// LogLik returns the complete-data log-likelihood of tree under pars.
//
// Grounded on emphasis_rpd5c.cpp's emp_loglik: unlike rpd5, the final
// node's speciation rate never enters the product of per-node rates,
// since it marks the tree's present-day boundary rather than an
// observed event.
func (*Model) LogLik(state *any, pars []float64, tree remphasis.Tree) float64 {
	logSR := logsum.New()
	cex := 0
	var inte float64
	var prevBrts float64
	last := len(tree) - 1
	for i, node := range tree {
		sr := speciationRate(pars, node.N, node.PD)
		if node.IsExtinction() {
			cex++
		} else if i != last {
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
// Grounded on emphasis_rpd5c.cpp's emp_sampling_prob.
func (*Model) SamplingProb(state *any, pars []float64, tree remphasis.Tree) float64 {
	mu := pars[0]
	tEnd := tree[len(tree)-1].Brts
	integrator := muint.New(mu, tEnd)

	var inte, logg float64
	var prevBrts float64
	tips := tree[0].N
	var ne float64

	for _, node := range tree {
		lambda := speciationRate(pars, node.N, node.PD)
		inte += node.N * lambda * integrator.At(prevBrts, node.Brts)
		if node.IsTip() {
			tips++
		}
		if node.IsExtinction() {
			ne--
		}
		if node.IsMissing() {
			lifespan := node.TExt - node.Brts
			logg += math.Log(node.N*mu*lambda) - mu*lifespan - math.Log(2*tips+ne)
			ne++
		}
		prevBrts = node.Brts
	}
	return logg - inte
}

func (*Model) LowerBound() []float64 {
	return []float64{1e-8, 1e-8, -100.0, -100.0}
}

func (*Model) UpperBound() []float64 {
	return []float64{100.0, 100.0, 100.0, 100.0}
}

func (*Model) FreeState(state *any)      { *state = nil }
func (*Model) InvalidateState(state *any) {}
