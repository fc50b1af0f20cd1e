// Package rng constructs per-worker random sources from a low-entropy
// seed and implements truncated exponential sampling.
//
// Grounded on model_helpers.hpp's make_low_entropy_seed_array,
// make_random_engine and trunc_exp.
package rng

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// The six fixed constants mixed into every seed, taken verbatim from
// the reference implementation's seed array. They exist only to widen
// the entropy pool beyond clock resolution and worker index; their
// values carry no other meaning.
const (
	fixed1 uint64 = 0x000000003c10b019
	fixed2 uint64 = 0x2bf820b4dd7c1a8a
	fixed3 uint64 = 0x9901cf90a40883da
	fixed4 uint64 = 0x5a3686b2e1de6e51
	fixed5 uint64 = 0x000000cc0494d228
	fixed6 uint64 = 0x000000cc04b66740
)

// New returns a *rand.Rand seeded from the current time, worker, and
// the fixed constant pool, suitable as a per-goroutine random source
// for augmentation. Distinct workers must pass distinct worker
// values.
func New(now int64, worker int) *rand.Rand {
	seeds := [8]uint64{
		uint64(now),
		splitmix(uint64(worker) + 0x9e3779b97f4a7c15),
		fixed1, fixed2, fixed3, fixed4, fixed5, fixed6,
	}
	var s0, s1 uint64
	for _, v := range seeds {
		s0, s1 = mix(s0, s1, v)
	}
	return rand.New(rand.NewPCG(s0, s1))
}

// splitmix runs one round of the SplitMix64 finalizer over x, used to
// spread a small worker index across the 64-bit space before it is
// folded into the seed pool.
func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// mix folds a new 64-bit value into the running (s0, s1) accumulator,
// playing the role of std::seed_seq across an array of inputs.
func mix(s0, s1, v uint64) (uint64, uint64) {
	s0 ^= splitmix(v)
	s1 ^= splitmix(v ^ s0)
	return s0, s1
}

// TruncExp draws from an Exponential(rate) distribution conditioned
// on lying within [lower, upper], by rejection sampling.
//
// Grounded on model_helpers.hpp's detail::trunc_exp.
func TruncExp(r *rand.Rand, lower, upper, rate float64) float64 {
	dist := distuv.Exponential{Rate: rate, Src: r}
	for {
		v := dist.Rand()
		if v >= lower && v <= upper {
			return v
		}
	}
}

// Uniform01 draws a uniform value in [0, 1) from r. It exists so
// callers outside this package don't need to depend on math/rand/v2
// directly for the one call they need.
func Uniform01(r *rand.Rand) float64 {
	return r.Float64()
}

// BoundsFinite reports whether both bounds are finite, used by
// callers deciding whether truncated sampling is well posed.
func BoundsFinite(lower, upper float64) bool {
	return !math.IsInf(lower, 0) && !math.IsInf(upper, 0)
}
