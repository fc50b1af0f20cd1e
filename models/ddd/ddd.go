// Package ddd implements a diversity-dependent diversification model:
// linear decline of the per-lineage speciation rate with lineage
// count (lambda0 + lambdaN*N) and a constant extinction rate mu,
// without a phylogenetic-diversity term.
//
// Grounded on emphasis_ddd.cpp.
package ddd

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/HHildenbrandt/remphasis"
	"github.com/HHildenbrandt/remphasis/internal/logsum"
	"github.com/HHildenbrandt/remphasis/internal/rng"
)

// NParams is the number of free parameters: mu, lambda0, lambdaN.
const NParams = 3

// Model is the ddd diversification model. Its state is unused; the
// per-tree state pointer is always nil.
type Model struct{}

// New returns a ddd Model.
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

func speciationRate(pars []float64, n float64) float64 {
	return math.Max(0, pars[1]+pars[2]*n)
}

func (*Model) SpeciationRate(state *any, t float64, pars []float64, tree remphasis.Tree) float64 {
	return speciationRate(pars, nodeAt(tree, t).N)
}

func (*Model) NHRate(state *any, t float64, pars []float64, tree remphasis.Tree) float64 {
	n := nodeAt(tree, t).N
	lambda := speciationRate(pars, n)
	tEnd := tree[len(tree)-1].Brts
	return lambda * n * (1 - math.Exp(-pars[0]*(tEnd-t)))
}

func (*Model) ExtinctionTime(r *rand.Rand, state *any, tSpec float64, pars []float64, tree remphasis.Tree) float64 {
	tEnd := tree[len(tree)-1].Brts
	return tSpec + rng.TruncExp(r, 0, tEnd-tSpec, pars[0])
}

// intensity returns the integral of the total speciation rate over
// the tree's time span, evaluated in closed form since lambda is
// piecewise constant between events and mu is constant.
//
// Grounded on emphasis_ddd.cpp's emp_intensity.
func intensity(pars []float64, tree remphasis.Tree) float64 {
	maxBrts := tree[len(tree)-1].Brts
	expMaxTerm := math.Exp(-pars[0]*maxBrts) / pars[0]

	var sumSigma float64
	expBrtsM1 := 1.0
	var prevBrts float64
	for _, node := range tree {
		lambda := speciationRate(pars, node.N)
		wt := node.Brts - prevBrts
		expBrts := math.Exp(pars[0] * node.Brts)
		sigma := node.N * lambda * (wt - expMaxTerm*(expBrts-expBrtsM1))
		sumSigma += sigma
		expBrtsM1 = expBrts
		prevBrts = node.Brts
	}
	return sumSigma
}

// LogLik returns the complete-data log-likelihood of tree under pars.
//
// Grounded on emphasis_ddd.cpp's emp_loglik.
func (*Model) LogLik(state *any, pars []float64, tree remphasis.Tree) float64 {
	var sumInte float64
	sumRho := logsum.New()
	var prevSumRho logsum.Accumulator
	var prevBrts float64

	for _, node := range tree {
		wt := node.Brts - prevBrts
		lambda := speciationRate(pars, node.N)
		sumInte += node.N * (pars[0] + lambda) * wt

		prevSumRho = sumRho
		var to float64 = 1.0
		if node.IsExtinction() {
			to = 0.0
		}
		sumRho.Add(lambda*to + pars[0]*(1-to))
		prevBrts = node.Brts
	}
	return prevSumRho.Result() - sumInte
}

// SamplingProb returns the log density that augmentation would have
// produced exactly this tree.
//
// Grounded on emphasis_ddd.cpp's emp_sampling_prob.
func (m *Model) SamplingProb(state *any, pars []float64, tree remphasis.Tree) float64 {
	logg := -intensity(pars, tree)

	var nb, ne float64
	no := tree[0].N

	type missing struct {
		node       remphasis.Node
		nb, no, ne float64
	}
	var latent []missing

	for _, node := range tree {
		switch {
		case node.IsExtinction():
			ne++
		case node.IsTip():
			no++
		default:
			latent = append(latent, missing{node: node, nb: node.N, no: no, ne: nb - ne})
			nb++
		}
	}

	for _, l := range latent {
		lambda := speciationRate(pars, l.node.N)
		lifespan := l.node.TExt - l.node.Brts
		logg += math.Log(l.nb*pars[0]*lambda) - pars[0]*lifespan - math.Log(2*l.no+l.ne)
	}
	return logg
}

func (*Model) LowerBound() []float64 { return []float64{1e-8, 1e-8, -1.0} }
func (*Model) UpperBound() []float64 { return []float64{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64} }

func (*Model) FreeState(state *any)      { *state = nil }
func (*Model) InvalidateState(state *any) {}
