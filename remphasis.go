// Package remphasis implements Monte-Carlo Expectation-Maximization
// estimation of stochastic birth-death diversification models from a
// reconstructed phylogeny.
//
// The observed data are a finite, strictly increasing sequence of
// branching times. The latent data are the full tree, including
// species that went extinct or were never sampled. Because the
// likelihood requires an intractable integral over all possible
// completions of the tree, the estimator samples many augmented
// trees, weights them by importance, and maximizes a weighted
// complete-data log-likelihood.
package remphasis

import "math/rand/v2"

// TipSentinel is the t_ext value of a present-day tip node.
const TipSentinel = 1e10

// ExtinctSentinel is the t_ext value of an extinction node.
const ExtinctSentinel = 0.0

// DefaultMaxMissingBranches bounds the number of latent species an
// augmentation may insert before it is rejected as an overrun.
const DefaultMaxMissingBranches = 10000

// DefaultMaxLambda bounds the thinning envelope an augmentation may
// reach before it is rejected as a lambda overrun.
const DefaultMaxLambda = 500.0

// A Model is a stochastic birth-death diversification model that
// tree augmentation and the MCEM driver can query.
//
// Every method receives the augmented tree built so far and a
// pointer to the model's opaque per-tree state. A nil *state pointer
// is never passed; callers go through a state.Guard that owns the
// pointee.
type Model interface {
	// NParams returns the number of free parameters of the model.
	NParams() int

	// IsThreadsafe reports whether distinct goroutines may call the
	// non-state-mutating methods concurrently, each with its own
	// state pointer.
	IsThreadsafe() bool

	// SpeciationRate returns the instantaneous per-lineage
	// speciation rate lambda(t). Implementations clamp negative
	// values to zero.
	SpeciationRate(state *any, t float64, pars []float64, tree Tree) float64

	// NHRate returns the non-homogeneous thinning rate used by
	// augmentation: lambda(t)*N(t)*(1-exp(-mu*(tEnd-t))). Values at
	// or below zero are treated as zero by augmentation; NHRate
	// itself need not clamp.
	NHRate(state *any, t float64, pars []float64, tree Tree) float64

	// ExtinctionTime samples an extinction time for a newly
	// inserted latent species that speciated at tSpec.
	ExtinctionTime(rng *rand.Rand, state *any, tSpec float64, pars []float64, tree Tree) float64

	// LogLik returns the complete-data log-likelihood of the
	// (possibly augmented) tree.
	LogLik(state *any, pars []float64, tree Tree) float64

	// SamplingProb returns the log density that augmentation would
	// have produced exactly this augmented tree.
	SamplingProb(state *any, pars []float64, tree Tree) float64

	// LowerBound and UpperBound return optimizer hints; either may
	// be empty to signal "no hint".
	LowerBound() []float64
	UpperBound() []float64

	// FreeState releases any resources referenced by *state and
	// sets *state to nil. Called at most once per state pointer.
	FreeState(state *any)

	// InvalidateState drops any cached derivative data held in
	// *state without releasing the state itself.
	InvalidateState(state *any)
}
