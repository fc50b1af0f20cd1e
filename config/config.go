// Package config implements reading and writing of remphasis run
// files: tab-delimited (TSV) files that name a model and its MCEM
// tuning parameters, in the style of a PhyGeo project file.
package config

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// A Param is a keyword identifying one tuning parameter of an MCEM
// run.
type Param string

// Valid parameters.
const (
	// Model names the diversification model: rpd1, rpd5, rpd5c or
	// ddd.
	Model Param = "model"

	// Brts is the path to the branching-times file.
	Brts Param = "brts"

	// SOC is the number of lineages at the root (1 or 2).
	SOC Param = "soc"

	// N is the number of augmented trees to accept per E-step.
	N Param = "n"

	// MaxN bounds the number of augmentation attempts per E-step.
	MaxN Param = "maxn"

	// MaxMissing bounds the number of latent species an
	// augmentation may insert.
	MaxMissing Param = "max_missing"

	// MaxLambda bounds the thinning envelope an augmentation may
	// reach.
	MaxLambda Param = "max_lambda"

	// NumWorkers sets the E-step and M-step worker pool size; 0
	// means use every available CPU.
	NumWorkers Param = "num_workers"

	// Xtol is the M-step optimizer's relative tolerance on the
	// change of the objective value (not on parameter change), and
	// the threshold on the largest relative parameter change
	// between MCEM iterations below which the run stops.
	Xtol Param = "xtol"

	// MaxIter bounds the number of MCEM iterations.
	MaxIter Param = "max_iter"

	// Init gives the comma-separated initial parameter vector.
	Init Param = "init"

	// Continuous selects the continuous (two-endpoint) thinning
	// envelope instead of the default numerical (bounded search)
	// variant; value "true" or "false".
	Continuous Param = "continuous"
)

var header = []string{"param", "value"}

// A Run holds one remphasis run configuration: a model choice and
// its MCEM tuning parameters, as read from a run file.
type Run struct {
	name   string
	values map[Param]string
}

// New creates a new empty Run.
func New() *Run {
	return &Run{values: make(map[Param]string)}
}

// Read reads a run configuration from a TSV file.
//
// The TSV must contain the following fields:
//
//   - param, the parameter keyword
//   - value, its string value
//
// Here is an example file:
//
//	# remphasis run file
//	param	value
//	model	rpd1
//	brts	tree.brts
//	soc	2
//	n	500
//	maxn	100000
//	max_missing	10000
//	max_lambda	500
//	init	0.1,0.5,0.0
func Read(name string) (*Run, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tsv := csv.NewReader(f)
	tsv.Comma = '\t'
	tsv.Comment = '#'

	head, err := tsv.Read()
	if err != nil {
		return nil, fmt.Errorf("on file %q: header: %v", name, err)
	}
	fields := make(map[string]int, len(head))
	for i, h := range head {
		fields[strings.ToLower(h)] = i
	}
	for _, h := range header {
		if _, ok := fields[h]; !ok {
			return nil, fmt.Errorf("on file %q: expecting field %q", name, h)
		}
	}

	r := New()
	r.name = name
	for {
		row, err := tsv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		ln, _ := tsv.FieldPos(0)
		if err != nil {
			return nil, fmt.Errorf("on file %q: on row %d: %v", name, ln, err)
		}

		p := Param(strings.ToLower(row[fields["param"]]))
		r.values[p] = row[fields["value"]]
	}

	return r, nil
}

// Set sets the string value of a parameter, overriding any previous
// value.
func (r *Run) Set(p Param, value string) {
	if value == "" {
		delete(r.values, p)
		return
	}
	r.values[p] = value
}

// String returns the raw string value of p, or "" if unset.
func (r *Run) String(p Param) string {
	return r.values[p]
}

// Int returns the integer value of p, or def if unset or malformed.
func (r *Run) Int(p Param, def int) int {
	v, ok := r.values[p]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Float returns the float64 value of p, or def if unset or malformed.
func (r *Run) Float(p Param, def float64) float64 {
	v, ok := r.values[p]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Bool returns the boolean value of p, or def if unset or malformed.
func (r *Run) Bool(p Param, def bool) bool {
	v, ok := r.values[p]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Floats returns the comma-separated float64 vector value of p, or
// nil if unset.
func (r *Run) Floats(p Param) ([]float64, error) {
	v, ok := r.values[p]
	if !ok || v == "" {
		return nil, nil
	}
	fields := strings.Split(v, ",")
	out := make([]float64, len(fields))
	for i, s := range fields {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("param %q: field %d: %v", p, i, err)
		}
		out[i] = f
	}
	return out, nil
}

// Params returns the parameters defined in r, sorted.
func (r *Run) Params() []Param {
	var ps []Param
	for p := range r.values {
		ps = append(ps, p)
	}
	slices.Sort(ps)
	return ps
}

// SetName sets the run's file name, used by Write.
func (r *Run) SetName(name string) {
	r.name = name
}

// Write writes r to its file name.
func (r *Run) Write() (err error) {
	f, err := os.Create(r.name)
	if err != nil {
		return err
	}
	defer func() {
		e := f.Close()
		if e != nil && err == nil {
			err = e
		}
	}()

	bw := bufio.NewWriter(f)
	fmt.Fprintf(bw, "# remphasis run file\n")
	fmt.Fprintf(bw, "# data saved on: %s\n", time.Now().Format(time.RFC3339))
	tsv := csv.NewWriter(bw)
	tsv.Comma = '\t'
	tsv.UseCRLF = true

	if err := tsv.Write(header); err != nil {
		return fmt.Errorf("on file %q: while writing header: %v", r.name, err)
	}

	for _, p := range r.Params() {
		row := []string{string(p), r.values[p]}
		if err := tsv.Write(row); err != nil {
			return fmt.Errorf("on file %q: %v", r.name, err)
		}
	}

	tsv.Flush()
	if err := tsv.Error(); err != nil {
		return fmt.Errorf("on file %q: while writing data: %v", r.name, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("on file %q: while writing data: %v", r.name, err)
	}
	return nil
}

// ReadBrts reads a branching-times file: one time per line, blank
// lines and lines starting with '#' ignored.
func ReadBrts(name string) ([]float64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var brts []float64
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("on file %q: on line %d: %v", name, line, err)
		}
		brts = append(brts, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("on file %q: %v", name, err)
	}
	return brts, nil
}
