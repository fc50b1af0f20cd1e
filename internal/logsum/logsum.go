// Package logsum implements a numerically stable accumulator for long
// products of positive factors, such as the sequence of per-node
// rates that make up a tree's complete-data likelihood.
package logsum

import "math"

// lowerThreshold and upperThreshold bound the running product; once
// it leaves this range the accumulator folds its logarithm into the
// running sum and resets the product to 1, avoiding both underflow to
// zero and overflow to infinity.
const (
	lowerThreshold = 10e-40
	upperThreshold = 10e+40
)

// An Accumulator accumulates the product of a sequence of positive
// values as a running pair (prod, sum) with the invariant
// log(result) == log(prod) + sum.
//
// The zero value is not ready to use; call New.
//
// Grounded on model_helpers.hpp's detail::log_sum.
type Accumulator struct {
	prod float64
	sum  float64
}

// New returns an Accumulator representing a running product of 1.
func New() Accumulator {
	return Accumulator{prod: 1}
}

// Add multiplies the running product by val. If the running product
// has already left the safe range, Add instead folds log(prod) +
// log(val) into the log sum and resets the product to 1.
func (a *Accumulator) Add(val float64) {
	if a.prod > lowerThreshold && a.prod < upperThreshold {
		a.prod *= val
		return
	}
	a.sum += math.Log(a.prod) + math.Log(val)
	a.prod = 1
}

// Result returns log(prod) + sum. If that value is non-finite, it
// returns +/-Inf with the sign of sum, so that an overflowing or
// underflowing product still yields a usable signed infinity instead
// of NaN.
func (a Accumulator) Result() float64 {
	r := math.Log(a.prod) + a.sum
	if !math.IsInf(r, 0) && !math.IsNaN(r) {
		return r
	}
	if math.IsNaN(r) {
		if math.Signbit(a.sum) {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	return r
}
