// Package mstep implements the MCEM driver's M-step: maximizing the
// weighted complete-data log-likelihood over a pool of augmented
// trees with a derivative-free, box-constrained optimizer.
//
// Grounded on M_step.cpp's M_step.
package mstep

import (
	"math"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/HHildenbrandt/remphasis"
	"github.com/HHildenbrandt/remphasis/state"
)

// A Result holds the outcome of one M-step optimization.
type Result struct {
	// Estimates are the maximizing parameters found, starting from
	// the M-step's initial guess.
	Estimates []float64

	// MinF is the objective value (negative weighted
	// log-likelihood) at Estimates.
	MinF float64

	// Status reports the optimizer's termination condition.
	Status optimize.Status

	Elapsed time.Duration
}

// Config bundles the tuning parameters of an M-step run. A nil Lower
// or Upper falls back to the model's own LowerBound/UpperBound.
type Config struct {
	Lower      []float64
	Upper      []float64
	NumWorkers int // 0 means runtime.NumCPU()

	// Xtol is the optimizer's relative function-value convergence
	// tolerance (xtol_rel in the reference NLopt Subplex call). 0
	// falls back to gonum/optimize's own default converger.
	Xtol float64
}

// Run maximizes the weighted log-likelihood
//
//	Q(pars) = sum_i weights[i] * model.LogLik(pars, trees[i])
//
// over pars, starting the search at initial, and returns the
// maximizing estimates.
//
// gonum's optimize package minimizes, and the reference
// implementation's NLopt Subplex also minimizes, so the objective
// passed to the optimizer is -Q. Box constraints are not native to
// gonum/optimize's Nelder-Mead, so out-of-bounds candidates are
// penalized to +Inf. cfg.Xtol, when set, is honored as the
// optimizer's relative convergence tolerance via an
// optimize.FunctionConverge, the closest gonum equivalent to NLopt
// Subplex's xtol_rel stopping rule.
func Run(cfg Config, initial []float64, trees []remphasis.Tree, weights []float64, model remphasis.Model) (*Result, error) {
	lower := cfg.Lower
	if len(lower) == 0 {
		lower = model.LowerBound()
	}
	upper := cfg.Upper
	if len(upper) == 0 {
		upper = model.UpperBound()
	}

	numWorkers := cfg.NumWorkers
	if numWorkers == 0 {
		numWorkers = runtime.NumCPU()
	}
	if !model.IsThreadsafe() {
		numWorkers = 1
	}

	states := make([]*state.Guard, len(trees))
	for i := range trees {
		states[i] = state.New(model)
		states[i].Invalidate()
	}
	defer func() {
		for _, g := range states {
			g.Close()
		}
	}()

	start := time.Now()

	objective := func(pars []float64) float64 {
		if outOfBounds(pars, lower, upper) {
			return math.Inf(1)
		}

		var q float64
		if numWorkers <= 1 {
			for i, tree := range trees {
				q += model.LogLik(states[i].Ptr(), pars, tree) * weights[i]
			}
		} else {
			q = parallelQ(numWorkers, pars, trees, weights, states, model)
		}
		return -q
	}

	var settings *optimize.Settings
	if cfg.Xtol > 0 {
		settings = &optimize.Settings{
			Converger: &optimize.FunctionConverge{
				Relative:   cfg.Xtol,
				Iterations: 100,
			},
		}
	}

	problem := optimize.Problem{Func: objective}
	result, err := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, err
	}

	return &Result{
		Estimates: result.X,
		MinF:      result.F,
		Status:    result.Status,
		Elapsed:   time.Since(start),
	}, nil
}

// parallelQ evaluates the weighted log-likelihood sum across trees
// using numWorkers goroutines, mirroring M_step.cpp's OpenMP
// parallel-for reduction.
func parallelQ(numWorkers int, pars []float64, trees []remphasis.Tree, weights []float64, states []*state.Guard, model remphasis.Model) float64 {
	n := len(trees)
	if numWorkers > n {
		numWorkers = n
	}
	partials := make([]float64, numWorkers)
	var wg sync.WaitGroup
	chunk := (n + numWorkers - 1) / numWorkers
	for w := 0; w < numWorkers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			var sum float64
			for i := lo; i < hi; i++ {
				sum += model.LogLik(states[i].Ptr(), pars, trees[i]) * weights[i]
			}
			partials[w] = sum
		}(w, lo, hi)
	}
	wg.Wait()

	var total float64
	for _, p := range partials {
		total += p
	}
	return total
}

// outOfBounds reports whether pars violates lower or upper, either of
// which may be shorter than pars or empty to mean "no bound on the
// remaining components".
func outOfBounds(pars, lower, upper []float64) bool {
	for i, v := range pars {
		if i < len(lower) && v < lower[i] {
			return true
		}
		if i < len(upper) && v > upper[i] {
			return true
		}
	}
	return false
}
