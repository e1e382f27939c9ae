// Package rng is the reproducible random-number source spec.md §6
// lists among the assumed collaborators: createFromSeed/getValue/
// getValueReal, consulted by bv.SetRandom and by ciss's Rademacher
// block so that a "random" column is bitwise identical across every
// rank that draws from the same seed stream (spec.md §5's ordering
// guarantee), without any rank-to-rank communication.
package rng

import (
	"math/cmplx"
	"math/rand/v2"

	"github.com/gospectral/eigen/scalar"
)

// Stream is a seeded, rank-independent source of pseudo-random scalars.
type Stream struct {
	src *rand.Rand
}

// FromSeed creates a stream from a fixed seed. Every rank that calls
// FromSeed with the same seed and draws values in the same order sees
// the same sequence, which is what makes bv.SetRandom collective-safe
// without a reduction.
func FromSeed(seed uint64) *Stream {
	return &Stream{src: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// GetValueReal draws a single real value uniform on [-1, 1].
func (s *Stream) GetValueReal() float64 {
	return 2*s.src.Float64() - 1
}

// GetValue draws a scalar: uniform real on [-1,1] for S=float64, or a
// unit-modulus complex value with uniform random phase for S=complex128.
func GetValue[S scalar.Scalar](s *Stream) S {
	if scalar.IsComplex[S]() {
		theta := 2 * 3.141592653589793 * s.src.Float64()
		return any(cmplx.Rect(1, theta)).(S)
	}
	return any(s.GetValueReal()).(S)
}

// Rademacher draws a ±1 value (±1±0i for complex S), the entry
// distribution ciss's randomVectors uses for its trial vectors.
func Rademacher[S scalar.Scalar](s *Stream) S {
	if s.src.Uint64()&1 == 0 {
		return scalar.FromFloat64[S](1)
	}
	return scalar.FromFloat64[S](-1)
}
