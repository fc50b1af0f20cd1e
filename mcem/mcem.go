// Package mcem drives one iteration of Monte-Carlo
// Expectation-Maximization: an E-step sampling a weighted pool of
// augmented trees, followed by an M-step maximizing their weighted
// log-likelihood.
//
// Grounded on mcem.cpp's mcem. The reference implementation returns
// immediately after the E-step, before its M-step call, dead code
// left behind by an abandoned debugging return; this package always
// runs the M-step when the E-step produces trees.
package mcem

import (
	"errors"
	"fmt"

	"github.com/HHildenbrandt/remphasis"
	"github.com/HHildenbrandt/remphasis/estep"
	"github.com/HHildenbrandt/remphasis/mstep"
)

// A Result holds one MCEM iteration's E-step and M-step outcomes.
type Result struct {
	E *estep.Result
	M *mstep.Result
}

// Config bundles one MCEM iteration's E-step and M-step tuning
// parameters.
type Config struct {
	E estep.Config
	M mstep.Config
}

// Run performs one MCEM iteration at the current parameter estimate
// pars: augment brts into a weighted pool of N trees, then maximize
// their weighted log-likelihood starting from pars.
//
// If the E-step produces no trees, Run returns ErrNoTrees and a nil
// Result; this can only happen if cfg.E.N is zero, since estep.Run
// otherwise fails outright with ErrMaxAttemptsExceeded rather than
// returning an empty pool.
func Run(cfg Config, pars []float64, brts []float64, model remphasis.Model) (*Result, error) {
	e, err := estep.Run(cfg.E, pars, brts, model)
	if err != nil {
		return nil, fmt.Errorf("mcem: e-step: %w", err)
	}
	if len(e.Trees) == 0 {
		return nil, errors.Join(remphasis.ErrNoTrees, fmt.Errorf("mcem: e-step produced no trees"))
	}

	m, err := mstep.Run(cfg.M, pars, e.Trees, e.Weights, model)
	if err != nil {
		return nil, fmt.Errorf("mcem: m-step: %w", err)
	}

	return &Result{E: e, M: m}, nil
}
