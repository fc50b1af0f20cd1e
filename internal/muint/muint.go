// Package muint computes the closed-form integral of
// (1 - exp(-mu*(tEnd-t))) over an interval [t0, t1], memoizing the
// exponential term across a sequence of abutting intervals that share
// the same tEnd.
//
// Grounded on model_helpers.hpp's detail::mu_integral.
package muint

import "math"

// An Integrator evaluates the integral
//
//	integral from t0 to t1 of (1 - exp(-mu*(tEnd-t))) dt
//
// for a fixed mu and tEnd, across a caller-supplied sequence of
// abutting intervals [t0, t1), [t1, t2), ... Each call to At reuses
// the previous call's exp(mu*t1) rather than recomputing it, since
// the new interval's t0 equals the old interval's t1.
type Integrator struct {
	mu    float64
	tEnd  float64
	ready bool
	t1    float64 // t1 from the previous call
	expT1 float64 // exp(mu * t1) from the previous call
}

// New returns an Integrator for the given mu and tEnd.
func New(mu, tEnd float64) *Integrator {
	return &Integrator{mu: mu, tEnd: tEnd}
}

// At returns the integral over [t0, t1]. Successive calls must supply
// abutting intervals, i.e. each call's t0 must equal the previous
// call's t1; violating this still computes the right answer but loses
// the memoization benefit.
func (m *Integrator) At(t0, t1 float64) float64 {
	if m.mu == 0 {
		return t1 - t0
	}

	var expT0 float64
	if m.ready && t0 == m.t1 {
		expT0 = m.expT1
	} else {
		expT0 = math.Exp(m.mu * t0)
	}
	expT1 := math.Exp(m.mu * t1)
	m.t1 = t1
	m.expT1 = expT1
	m.ready = true

	// integral of 1 dt - integral of exp(-mu*(tEnd-t)) dt
	// = (t1-t0) - exp(-mu*tEnd) * (exp(mu*t1) - exp(mu*t0)) / mu
	return (t1 - t0) - math.Exp(-m.mu*m.tEnd)*(expT1-expT0)/m.mu
}

// Reset clears the memoized state so the next call to At recomputes
// exp(mu*t0) from scratch instead of reusing a prior interval's end.
func (m *Integrator) Reset() {
	m.ready = false
}
