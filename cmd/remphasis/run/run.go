// Package run implements the remphasis run command: it reads a run
// configuration file and fits the named diversification model to a
// branching-times file by Monte-Carlo EM.
package run

import (
	"fmt"
	"math"

	"github.com/js-arias/command"

	"github.com/HHildenbrandt/remphasis"
	"github.com/HHildenbrandt/remphasis/augment"
	"github.com/HHildenbrandt/remphasis/config"
	"github.com/HHildenbrandt/remphasis/estep"
	"github.com/HHildenbrandt/remphasis/mcem"
	"github.com/HHildenbrandt/remphasis/models/ddd"
	"github.com/HHildenbrandt/remphasis/models/rpd1"
	"github.com/HHildenbrandt/remphasis/models/rpd5"
	"github.com/HHildenbrandt/remphasis/models/rpd5c"
	"github.com/HHildenbrandt/remphasis/mstep"
)

var Command = &command.Command{
	Usage: `run [--out <file>] <run-file>`,
	Short: "fit a diversification model by Monte-Carlo EM",
	Long: `
Command run reads a run configuration file and fits the model it names to the
branching-times file it references, by iterated Monte-Carlo
Expectation-Maximization.

The run file is a tab-delimited file with "param" and "value" columns; see
package config for the recognized parameters. It must define model, brts
and init. Other parameters take default values when absent: soc 2, n 500,
maxn 100000, max_missing 10000, max_lambda 500, num_workers 0, xtol 1e-4
and max_iter 20.

Each iteration augments the tree into a weighted pool of n trees (the
E-step) and then maximizes their weighted log-likelihood (the M-step). The
run stops after max_iter iterations, or earlier once the relative change in
every parameter falls below xtol.

If the flag --out is defined, the final parameter estimates are written to
a new run file at that path, holding every parameter of the input run file
with init replaced by the fitted values.
	`,
	SetFlags: setFlags,
	Run:      runMCEM,
}

var outFlag string

func setFlags(c *command.Command) {
	c.Flags().StringVar(&outFlag, "out", "", "")
}

// registry maps a run file's model name to a constructor, the
// reimplementation of the reference dynamic-library loader as a
// compile-time table.
var registry = map[string]func() remphasis.Model{
	"rpd1":  func() remphasis.Model { return rpd1.New() },
	"rpd5":  func() remphasis.Model { return rpd5.New() },
	"rpd5c": func() remphasis.Model { return rpd5c.New() },
	"ddd":   func() remphasis.Model { return ddd.New() },
}

func runMCEM(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting run file")
	}

	r, err := config.Read(args[0])
	if err != nil {
		return err
	}

	modelName := r.String(config.Model)
	newModel, ok := registry[modelName]
	if !ok {
		return fmt.Errorf("on file %q: unknown model %q", args[0], modelName)
	}
	model := newModel()

	brtsPath := r.String(config.Brts)
	if brtsPath == "" {
		return fmt.Errorf("on file %q: expecting field %q", args[0], config.Brts)
	}
	brts, err := config.ReadBrts(brtsPath)
	if err != nil {
		return err
	}

	pars, err := r.Floats(config.Init)
	if err != nil {
		return err
	}
	if len(pars) != model.NParams() {
		return fmt.Errorf("on file %q: init has %d values, model %q expects %d", args[0], len(pars), modelName, model.NParams())
	}

	variant := augment.Numerical
	if r.Bool(config.Continuous, false) {
		variant = augment.Continuous
	}

	xtol := r.Float(config.Xtol, 1e-4)

	cfg := mcem.Config{
		E: estep.Config{
			N:          r.Int(config.N, 500),
			MaxN:       r.Int(config.MaxN, 100000),
			SOC:        r.Int(config.SOC, 2),
			MaxMissing: r.Int(config.MaxMissing, remphasis.DefaultMaxMissingBranches),
			MaxLambda:  r.Float(config.MaxLambda, remphasis.DefaultMaxLambda),
			NumWorkers: r.Int(config.NumWorkers, 0),
			Variant:    variant,
		},
		M: mstep.Config{
			NumWorkers: r.Int(config.NumWorkers, 0),
			Xtol:       xtol,
		},
	}

	maxIter := r.Int(config.MaxIter, 20)

	for iter := 1; iter <= maxIter; iter++ {
		res, err := mcem.Run(cfg, pars, brts, model)
		if err != nil {
			return fmt.Errorf("iteration %d: %v", iter, err)
		}

		fmt.Fprintf(c.Stdout(), "iter %d: fhat=%.6f pars=%v rejected=%d elapsed=%s\n",
			iter, res.E.Fhat, res.M.Estimates, res.E.Rejected, res.M.Elapsed)

		converged := relativeChange(pars, res.M.Estimates) < xtol
		pars = res.M.Estimates
		if converged {
			break
		}
	}

	fmt.Fprintf(c.Stdout(), "final estimates: %v\n", pars)

	if outFlag != "" {
		out := config.New()
		for _, p := range r.Params() {
			out.Set(p, r.String(p))
		}
		out.Set(config.Init, floatsToString(pars))
		out.SetName(outFlag)
		if err := out.Write(); err != nil {
			return err
		}
	}

	return nil
}

// relativeChange returns the largest relative change between
// corresponding elements of a and b.
func relativeChange(a, b []float64) float64 {
	var max float64
	for i := range a {
		denom := math.Abs(a[i])
		if denom == 0 {
			denom = 1
		}
		d := math.Abs(b[i]-a[i]) / denom
		if d > max {
			max = d
		}
	}
	return max
}

func floatsToString(pars []float64) string {
	s := ""
	for i, p := range pars {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%g", p)
	}
	return s
}
