// Package estep implements the weighted E-step of the MCEM driver: it
// augments a reconstructed phylogeny many times in parallel, keeps
// the first N accepted augmentations, and normalizes their importance
// weights.
//
// Grounded on E_step.cpp's E_step.
package estep

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HHildenbrandt/remphasis"
	"github.com/HHildenbrandt/remphasis/augment"
	"github.com/HHildenbrandt/remphasis/internal/rng"
	"github.com/HHildenbrandt/remphasis/state"
)

// A Result holds the weighted sample of augmented trees produced by
// one E-step, along with bookkeeping about rejected attempts.
type Result struct {
	// Trees and Weights are parallel slices: Weights[i] is the
	// normalized importance weight of Trees[i], summing to a
	// value proportional to exp(Fhat).
	Trees   []remphasis.Tree
	Weights []float64

	// Fhat is the log of the mean raw importance weight, the
	// E-step's estimate of the observed-data log-likelihood.
	Fhat float64

	RejectedOverruns    int
	RejectedLambda      int
	RejectedZeroWeights int
	Rejected            int

	Elapsed time.Duration
}

// Config bundles the tuning parameters of an E-step run.
type Config struct {
	N          int // number of augmentations to accept
	MaxN       int // maximum augmentation attempts
	SOC        int // number of lineages at the stem/crown (1 or 2)
	MaxMissing int
	MaxLambda  float64
	NumWorkers int // 0 means runtime.NumCPU()
	Variant    augment.Variant
}

// Run performs one E-step: augment.Tree is called up to cfg.MaxN
// times across a worker pool, the first cfg.N accepted results are
// kept, and their importance weights are normalized.
func Run(cfg Config, pars []float64, brts []float64, model remphasis.Model) (*Result, error) {
	if !model.IsThreadsafe() {
		cfg.NumWorkers = 1
	}
	if cfg.NumWorkers == 0 {
		cfg.NumWorkers = runtime.NumCPU()
	}

	if cfg.N <= 0 {
		return &Result{}, nil
	}

	initTree := createTree(brts, float64(cfg.SOC))

	var mu sync.Mutex
	var stop atomic.Bool
	res := &Result{}
	var rawWeights []float64
	var accepted []remphasis.Tree
	var firstErr error

	start := time.Now()

	work := make(chan int, cfg.NumWorkers*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.NumWorkers; w++ {
		wg.Add(1)
		worker := w
		go func() {
			defer wg.Done()
			r := rng.New(time.Now().UnixNano(), worker)
			for range work {
				if stop.Load() {
					continue
				}
				attempt(&mu, &stop, res, &accepted, &rawWeights, &firstErr, r, pars, initTree, model, cfg)
			}
		}()
	}
	for i := 0; i < cfg.MaxN; i++ {
		work <- i
	}
	close(work)
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("estep: %w", firstErr)
	}

	if len(accepted) < cfg.N {
		return nil, fmt.Errorf("estep: %w: accepted %d of %d after %d attempts", remphasis.ErrMaxAttemptsExceeded, len(accepted), cfg.N, cfg.MaxN)
	}

	res.Trees = accepted
	res.Weights, res.Fhat = normalizeWeights(rawWeights)
	res.Rejected = res.RejectedLambda + res.RejectedOverruns + res.RejectedZeroWeights
	res.Elapsed = time.Since(start)
	return res, nil
}

// attempt runs one augmentation-and-weighting attempt, recovering any
// panic raised by a Model method and converting it into
// remphasis.ErrModelFailure stored in the shared first-error slot, so
// that a single misbehaving model call doesn't crash the whole
// process but is instead re-raised from the calling goroutine once
// the parallel region ends.
func attempt(mu *sync.Mutex, stop *atomic.Bool, res *Result, accepted *[]remphasis.Tree, rawWeights *[]float64, firstErr *error, r *rand.Rand, pars []float64, initTree remphasis.Tree, model remphasis.Model, cfg Config) {
	defer func() {
		if p := recover(); p != nil {
			mu.Lock()
			if *firstErr == nil {
				*firstErr = fmt.Errorf("%w: %v", remphasis.ErrModelFailure, p)
			}
			stop.Store(true)
			mu.Unlock()
		}
	}()

	tree, err := augment.Tree(r, pars, initTree, model, cfg.MaxMissing, cfg.MaxLambda, cfg.Variant)
	if err != nil {
		recordRejection(mu, res, err)
		return
	}

	g := state.New(model)
	g.Invalidate()
	logf := model.LogLik(g.Ptr(), pars, tree)
	logg := model.SamplingProb(g.Ptr(), pars, tree)
	g.Close()
	logW := logf - logg

	if math.IsInf(logW, 0) || math.IsNaN(logW) || math.Exp(logW) <= 0 {
		mu.Lock()
		res.RejectedZeroWeights++
		mu.Unlock()
		return
	}

	tree.RecomputePD()

	mu.Lock()
	if !stop.Load() {
		*accepted = append(*accepted, tree)
		*rawWeights = append(*rawWeights, logW)
		if len(*accepted) == cfg.N {
			stop.Store(true)
		}
	}
	mu.Unlock()
}

func recordRejection(mu *sync.Mutex, res *Result, err error) {
	mu.Lock()
	defer mu.Unlock()
	switch {
	case errors.Is(err, remphasis.ErrAugmentationOverrun):
		res.RejectedOverruns++
	case errors.Is(err, remphasis.ErrAugmentationLambda):
		res.RejectedLambda++
	}
}

// normalizeWeights converts raw log-weights into normalized weights
// summing to len(weights)*exp(fhat-maxLogW)... in practice callers
// only need the weights (which sum to a constant independent of
// scale) and fhat (the log mean raw weight).
//
// Grounded on E_step.cpp's post-loop normalization block.
func normalizeWeights(logWeights []float64) ([]float64, float64) {
	maxLogW := logWeights[0]
	for _, w := range logWeights[1:] {
		if w > maxLogW {
			maxLogW = w
		}
	}
	weights := make([]float64, len(logWeights))
	var sumW float64
	for i, w := range logWeights {
		weights[i] = math.Exp(w - maxLogW)
		sumW += weights[i]
	}
	fhat := math.Log(sumW/float64(len(logWeights))) + maxLogW
	return weights, fhat
}

// createTree builds the initial (unaugmented) tree from a sequence of
// branching times expressed as ages (time before present, decreasing)
// and a starting lineage count soc (species on crown: 1 or 2).
//
// Grounded on E_step.cpp's create_tree and inplace_cumsum_of_diff.
func createTree(brts []float64, soc float64) remphasis.Tree {
	ages := append([]float64(nil), brts...)
	inplaceCumsumOfDiff(ages)

	tree := make(remphasis.Tree, len(ages))
	for i, t := range ages {
		tree[i] = remphasis.Node{Brts: t, N: soc + float64(i), TExt: remphasis.TipSentinel}
	}
	tree.Sort()
	return tree
}

// inplaceCumsumOfDiff converts a strictly decreasing sequence of ages
// (time before present) into absolute branching times, in place.
//
// Grounded on E_step.cpp's inplace_cumsum_of_diff: each element
// becomes the running sum of successive backward differences, and
// the final element absorbs the remaining total.
func inplaceCumsumOfDiff(ages []float64) {
	if len(ages) == 0 {
		return
	}
	var sum float64
	for i := 1; i < len(ages); i++ {
		sum += ages[i-1] - ages[i]
		ages[i-1] = sum
	}
	ages[len(ages)-1] += sum
}
