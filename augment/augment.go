// Package augment samples a latent, fully resolved phylogeny from a
// reconstructed one by non-homogeneous Poisson thinning: candidate
// speciation times are drawn from a homogeneous Poisson process at an
// envelope rate lambda_max and accepted with probability
// nh_rate(t)/lambda_max.
//
// Grounded on augment_tree.cpp's do_augment_tree and
// do_augment_tree_cont.
package augment

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/optimize"

	"github.com/HHildenbrandt/remphasis"
	"github.com/HHildenbrandt/remphasis/state"
)

// A Variant selects how the thinning envelope lambda_max is computed
// over an interval.
type Variant int

const (
	// Numerical maximizes NHRate over the interval with a bounded
	// 1-D search, grounded on do_augment_tree/maximize_lambda.
	Numerical Variant = iota

	// Continuous takes the envelope as the larger of NHRate at the
	// interval's two endpoints, grounded on do_augment_tree_cont.
	Continuous
)

// Tree augments input with latent speciation/extinction pairs under
// model at parameters pars, returning the fully resolved tree.
//
// Augmentation walks forward in time from 0 to the tree's present
// day, proposing candidate speciation times at rate lambda_max over
// each inter-branching interval and thinning them down to the true
// rate nh_rate(t). Accepted candidates get a sampled extinction time
// and are spliced into the tree with InsertSpecies.
func Tree(rng *rand.Rand, pars []float64, input remphasis.Tree, model remphasis.Model, maxMissing int, maxLambda float64, variant Variant) (remphasis.Tree, error) {
	tree := input.Clone()
	if len(tree) == 0 {
		return tree, nil
	}

	g := state.New(model)
	defer g.Close()
	g.Invalidate()

	present := tree.Present()
	numMissing := 0

	var lambda2 float64
	dirty := true

	cbt := 0.0
	for cbt < present {
		nextBt := nextBranchingTime(tree, cbt)

		var lambdaMax float64
		switch variant {
		case Continuous:
			lambda1 := lambda2
			if dirty {
				lambda1 = math.Max(0, model.NHRate(g.Ptr(), cbt, pars, tree))
			}
			lambda2 = math.Max(0, model.NHRate(g.Ptr(), nextBt, pars, tree))
			lambdaMax = math.Max(lambda1, lambda2)
			dirty = false
		default:
			lambdaMax = maximizeNHRate(g.Ptr(), cbt, nextBt, pars, tree, model)
		}

		if lambdaMax > maxLambda {
			return nil, fmt.Errorf("augment: %w: lambda_max %g at t=%g", remphasis.ErrAugmentationLambda, lambdaMax, cbt)
		}
		if lambdaMax <= 0 {
			cbt = nextBt
			continue
		}

		u1 := rng.Float64()
		nextSpeciation := cbt - math.Log(u1)/lambdaMax

		if nextSpeciation < nextBt {
			u2 := rng.Float64()
			accept := math.Max(0, model.NHRate(g.Ptr(), nextSpeciation, pars, tree)) / lambdaMax
			if u2 < accept {
				extinction := model.ExtinctionTime(rng, g.Ptr(), nextSpeciation, pars, tree)
				tree.InsertSpecies(nextSpeciation, extinction)
				numMissing++
				if numMissing > maxMissing {
					return nil, fmt.Errorf("augment: %w: %d latent species", remphasis.ErrAugmentationOverrun, numMissing)
				}
				dirty = true
				g.Invalidate()
			}
		}
		cbt = math.Min(nextSpeciation, nextBt)
	}

	return tree, nil
}

// nextBranchingTime returns the smallest observed branching time
// strictly greater than cbt, or the tree's final branching time if
// none remains.
//
// Grounded on augment_tree.cpp's get_next_bt.
func nextBranchingTime(tree remphasis.Tree, cbt float64) float64 {
	for _, node := range tree {
		if node.Brts > cbt {
			return node.Brts
		}
	}
	return tree[len(tree)-1].Brts
}

// maximizeNHRate bounds NHRate's maximum over [t0, t1] with a 1-D
// Nelder-Mead search, falling back to the better of the two endpoint
// values when the search underperforms them.
//
// gonum's optimize package has no native support for box constraints,
// so out-of-bounds candidates are penalized to +Inf in the (negated,
// since optimize minimizes) objective.
//
// Grounded on augment_tree.cpp's maximize_lambda, which wraps NLopt's
// bounded Subplex.
func maximizeNHRate(s *any, t0, t1 float64, pars []float64, tree remphasis.Tree, model remphasis.Model) float64 {
	lo, hi := math.Min(t0, t1), math.Max(t0, t1)

	negRate := func(x []float64) float64 {
		if x[0] < lo || x[0] > hi {
			return math.Inf(1)
		}
		return -math.Max(0, model.NHRate(s, x[0], pars, tree))
	}

	problem := optimize.Problem{Func: negRate}
	result, err := optimize.Minimize(problem, []float64{(lo + hi) / 2}, nil, &optimize.NelderMead{})

	best := math.Max(0, model.NHRate(s, lo, pars, tree))
	if v := math.Max(0, model.NHRate(s, hi, pars, tree)); v > best {
		best = v
	}
	if err == nil && result != nil && -result.F > best {
		best = -result.F
	}
	return best
}
