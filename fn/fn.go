// Package fn is the matrix-function evaluator of spec.md §3/§4.3: a
// tagged variant (Rational, Exp, Sqrt, Log, ...) with outer/inner
// scaling x -> beta*f(alpha*x), evaluated either scalar-wise or as a
// dense matrix function (symmetric via eigendecomposition, general via
// Schur/Denman-Beavers/Newton-Schulz/Sadeghi for the square root).
package fn

import (
	"math"
	"math/cmplx"

	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/scalar"
)

// Kind is the closed set of analytic functions FN supports.
type Kind int

const (
	KindRational Kind = iota
	KindExp
	KindSqrt
	KindLog
)

// FN is a scalar/dense-matrix function f, stored as x -> beta*f(alpha*x).
type FN[S scalar.Scalar] struct {
	kind     Kind
	num, den []S // coefficients for KindRational, c[0] the constant term
	alpha    S
	beta     S
}

// New returns an FN of the given kind with trivial scaling (alpha=1,
// beta=1).
func New[S scalar.Scalar](kind Kind) *FN[S] {
	return &FN[S]{kind: kind, alpha: scalar.FromFloat64[S](1), beta: scalar.FromFloat64[S](1)}
}

// NewRational returns the rational function num(x)/den(x).
func NewRational[S scalar.Scalar](num, den []S) *FN[S] {
	f := New[S](KindRational)
	f.num, f.den = num, den
	return f
}

// SetScale sets the outer/inner scaling so the FN represents
// x -> beta*f(alpha*x).
func (f *FN[S]) SetScale(alpha, beta S) { f.alpha, f.beta = alpha, beta }

func (f *FN[S]) Kind() Kind { return f.kind }

// EvaluateFunction returns beta*f(alpha*x).
func (f *FN[S]) EvaluateFunction(x S) (S, error) {
	ax := f.alpha * x
	v, err := f.raw(ax)
	if err != nil {
		return v, err
	}
	return f.beta * v, nil
}

// EvaluateDerivative returns alpha*beta*f'(alpha*x).
func (f *FN[S]) EvaluateDerivative(x S) (S, error) {
	ax := f.alpha * x
	v, err := f.rawDerivative(ax)
	if err != nil {
		return v, err
	}
	return f.alpha * f.beta * v, nil
}

func (f *FN[S]) raw(x S) (S, error) {
	switch f.kind {
	case KindRational:
		den := scalar.EvalPoly(f.den, x)
		if f.den == nil {
			den = scalar.FromFloat64[S](1)
		}
		return scalar.EvalPoly(f.num, x) / den, nil
	case KindExp:
		return expScalar(x), nil
	case KindSqrt:
		if !scalar.IsComplex[S]() && scalar.Real(x) < 0 {
			return x, &errs.DomainError{Func: "sqrt", Arg: "negative real"}
		}
		return scalar.Sqrt(x), nil
	case KindLog:
		if !scalar.IsComplex[S]() && scalar.Real(x) <= 0 {
			return x, &errs.DomainError{Func: "log", Arg: "non-positive real"}
		}
		return logScalar(x), nil
	}
	panic("fn: unknown kind")
}

func (f *FN[S]) rawDerivative(x S) (S, error) {
	switch f.kind {
	case KindExp:
		return expScalar(x), nil
	case KindSqrt:
		if scalar.Abs(x) == 0 {
			return x, &errs.DerivativeUndefined{Func: "sqrt", At: "0"}
		}
		if !scalar.IsComplex[S]() && scalar.Real(x) < 0 {
			return x, &errs.DomainError{Func: "sqrt'", Arg: "negative real"}
		}
		half := scalar.FromFloat64[S](0.5)
		return half / scalar.Sqrt(x), nil
	case KindLog:
		if !scalar.IsComplex[S]() && scalar.Real(x) <= 0 {
			return x, &errs.DomainError{Func: "log'", Arg: "non-positive real"}
		}
		return scalar.FromFloat64[S](1) / x, nil
	case KindRational:
		// Not needed by this module's callers (ST/CISS only ever take
		// derivatives of Sqrt/Exp/Log for Newton-style updates); report
		// undefined rather than silently returning a wrong value.
		return x, &errs.DerivativeUndefined{Func: "rational", At: "generic"}
	}
	panic("fn: unknown kind")
}

// evalComplex evaluates beta*f(alpha*x) at a genuinely complex point x,
// independent of S: f is evaluated at a non-real argument even when
// S=float64, where scalar.FromComplex would silently drop the
// imaginary part. fn's 2x2 real-Schur-block path calls the unscaled
// rawComplex instead, since the matrix it works on is already
// alpha-scaled and EvaluateFunctionMat applies beta itself.
func (f *FN[S]) evalComplex(x complex128) (complex128, error) {
	alpha := complex(scalar.Real(f.alpha), scalar.Imag(f.alpha))
	beta := complex(scalar.Real(f.beta), scalar.Imag(f.beta))
	v, err := f.rawComplex(alpha * x)
	if err != nil {
		return 0, err
	}
	return beta * v, nil
}

func (f *FN[S]) rawComplex(x complex128) (complex128, error) {
	switch f.kind {
	case KindRational:
		num := evalPolyComplex(f.num, x)
		den := complex(1, 0)
		if f.den != nil {
			den = evalPolyComplex(f.den, x)
		}
		return num / den, nil
	case KindExp:
		return cmplx.Exp(x), nil
	case KindSqrt:
		return cmplx.Sqrt(x), nil
	case KindLog:
		if x == 0 {
			return x, &errs.DomainError{Func: "log", Arg: "zero"}
		}
		return cmplx.Log(x), nil
	}
	panic("fn: unknown kind")
}

// evalPolyComplex evaluates a polynomial with S coefficients at a
// complex128 point via Horner's method, mirroring scalar.EvalPoly.
func evalPolyComplex[S scalar.Scalar](c []S, x complex128) complex128 {
	if len(c) == 0 {
		return 0
	}
	acc := complex(scalar.Real(c[len(c)-1]), scalar.Imag(c[len(c)-1]))
	for i := len(c) - 2; i >= 0; i-- {
		ci := complex(scalar.Real(c[i]), scalar.Imag(c[i]))
		acc = acc*x + ci
	}
	return acc
}

func expScalar[S scalar.Scalar](x S) S {
	switch v := any(x).(type) {
	case float64:
		return any(math.Exp(v)).(S)
	case complex128:
		return any(cmplx.Exp(v)).(S)
	}
	panic("fn: unreachable")
}

func logScalar[S scalar.Scalar](x S) S {
	switch v := any(x).(type) {
	case float64:
		return any(math.Log(v)).(S)
	case complex128:
		return any(cmplx.Log(v)).(S)
	}
	panic("fn: unreachable")
}
