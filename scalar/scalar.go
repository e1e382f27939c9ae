// Package scalar is the compile-time real/complex façade shared by every
// other package in this module. Code that only makes sense for complex
// arithmetic (the CISS core, in particular) type-switches on Scalar at
// the boundary and fails fast with errs.RealScalarsUnsupported rather
// than at some undefined point deep in an iteration.
package scalar

import (
	"math"
	"math/cmplx"
)

// Scalar is the closed set of element types the solvers operate over.
type Scalar interface {
	float64 | complex128
}

// IsComplex reports whether S is complex128.
func IsComplex[S Scalar]() bool {
	var z S
	_, ok := any(z).(complex128)
	return ok
}

// Conj returns the complex conjugate of x, or x unchanged for real S.
func Conj[S Scalar](x S) S {
	switch v := any(x).(type) {
	case float64:
		return any(v).(S)
	case complex128:
		return any(cmplx.Conj(v)).(S)
	}
	panic("scalar: unreachable")
}

// Abs returns the modulus of x.
func Abs[S Scalar](x S) float64 {
	switch v := any(x).(type) {
	case float64:
		return math.Abs(v)
	case complex128:
		return cmplx.Abs(v)
	}
	panic("scalar: unreachable")
}

// Real returns the real part of x.
func Real[S Scalar](x S) float64 {
	switch v := any(x).(type) {
	case float64:
		return v
	case complex128:
		return real(v)
	}
	panic("scalar: unreachable")
}

// Imag returns the imaginary part of x, 0 for real S.
func Imag[S Scalar](x S) float64 {
	switch v := any(x).(type) {
	case float64:
		return 0
	case complex128:
		return imag(v)
	}
	panic("scalar: unreachable")
}

// FromComplex builds an S from a complex128, discarding the imaginary
// part when S is float64 (callers that need to detect that loss should
// check IsComplex first).
func FromComplex[S Scalar](z complex128) S {
	var zero S
	switch any(zero).(type) {
	case float64:
		return any(real(z)).(S)
	case complex128:
		return any(z).(S)
	}
	panic("scalar: unreachable")
}

// FromFloat64 promotes a float64 into S.
func FromFloat64[S Scalar](x float64) S {
	var zero S
	switch any(zero).(type) {
	case float64:
		return any(x).(S)
	case complex128:
		return any(complex(x, 0)).(S)
	}
	panic("scalar: unreachable")
}

// Sqrt returns the principal square root of x. For real S, a negative x
// is the caller's responsibility to reject (see fn.DomainError); Sqrt
// itself always returns a value, matching math.Sqrt's NaN-on-negative
// behavior for the real case.
func Sqrt[S Scalar](x S) S {
	switch v := any(x).(type) {
	case float64:
		return any(math.Sqrt(v)).(S)
	case complex128:
		return any(cmplx.Sqrt(v)).(S)
	}
	panic("scalar: unreachable")
}

// EvalPoly evaluates a polynomial with coefficients c (c[0] is the
// constant term) at x using Horner's rule. This is the "basis-polynomial
// evaluation" the scalar kernel owns, used by fn.Rational.
func EvalPoly[S Scalar](c []S, x S) S {
	if len(c) == 0 {
		var zero S
		return zero
	}
	acc := c[len(c)-1]
	for i := len(c) - 2; i >= 0; i-- {
		acc = acc*x + c[i]
	}
	return acc
}
