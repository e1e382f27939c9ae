package fn

import (
	"math"
	"testing"

	"github.com/gospectral/eigen/errs"
)

func TestEvaluateFunctionExp(t *testing.T) {
	f := New[float64](KindExp)
	got, err := f.EvaluateFunction(1)
	if err != nil {
		t.Fatalf("EvaluateFunction: %v", err)
	}
	if math.Abs(got-math.E) > 1e-12 {
		t.Errorf("exp(1) = %v, want e", got)
	}
}

func TestEvaluateFunctionSqrtRejectsNegativeReal(t *testing.T) {
	f := New[float64](KindSqrt)
	_, err := f.EvaluateFunction(-4)
	if err == nil {
		t.Fatal("expected a DomainError for sqrt(-4) over reals")
	}
	if _, ok := err.(*errs.DomainError); !ok {
		t.Errorf("err = %v (%T), want *errs.DomainError", err, err)
	}
}

func TestEvaluateFunctionSqrtComplexAcceptsNegativeReal(t *testing.T) {
	f := New[complex128](KindSqrt)
	got, err := f.EvaluateFunction(complex(-4, 0))
	if err != nil {
		t.Fatalf("EvaluateFunction: %v", err)
	}
	want := complex(0, 2)
	if cmplxAbs(got-want) > 1e-9 {
		t.Errorf("sqrt(-4) = %v, want %v", got, want)
	}
}

func cmplxAbs(z complex128) float64 {
	return math.Hypot(real(z), imag(z))
}

func TestEvaluateDerivativeSqrtUndefinedAtZero(t *testing.T) {
	f := New[float64](KindSqrt)
	_, err := f.EvaluateDerivative(0)
	if _, ok := err.(*errs.DerivativeUndefined); !ok {
		t.Errorf("err = %v (%T), want *errs.DerivativeUndefined", err, err)
	}
}

func TestEvaluateFunctionRational(t *testing.T) {
	// f(x) = (1+x)/(1-x): f(2) = 3/-1 = -3.
	f := NewRational[float64]([]float64{1, 1}, []float64{1, -1})
	got, err := f.EvaluateFunction(2)
	if err != nil {
		t.Fatalf("EvaluateFunction: %v", err)
	}
	if math.Abs(got-(-3)) > 1e-12 {
		t.Errorf("rational(2) = %v, want -3", got)
	}
}

func TestSetScaleAppliesOuterInner(t *testing.T) {
	f := New[float64](KindExp)
	f.SetScale(2, 3) // x -> 3*exp(2*x)
	got, err := f.EvaluateFunction(0)
	if err != nil {
		t.Fatalf("EvaluateFunction: %v", err)
	}
	if math.Abs(got-3) > 1e-12 {
		t.Errorf("3*exp(0) = %v, want 3", got)
	}
}

func TestEvaluateFunctionMatHermitianDiagonalIsExact(t *testing.T) {
	f := New[float64](KindSqrt)
	a := [][]float64{{4, 0}, {0, 9}}
	out, err := f.EvaluateFunctionMat(a, true, MethodSchur)
	if err != nil {
		t.Fatalf("EvaluateFunctionMat: %v", err)
	}
	if math.Abs(out[0][0]-2) > 1e-9 || math.Abs(out[1][1]-3) > 1e-9 {
		t.Errorf("sqrt(diag(4,9)) = %v, want diag(2,3)", out)
	}
	if math.Abs(out[0][1]) > 1e-9 || math.Abs(out[1][0]) > 1e-9 {
		t.Errorf("off-diagonal entries = %v,%v, want 0", out[0][1], out[1][0])
	}
}

func TestEvaluateFunctionMatGeneralSchurIdentity(t *testing.T) {
	f := New[float64](KindExp)
	a := [][]float64{{0, 0}, {0, 0}}
	out, err := f.EvaluateFunctionMat(a, false, MethodSchur)
	if err != nil {
		t.Fatalf("EvaluateFunctionMat: %v", err)
	}
	if math.Abs(out[0][0]-1) > 1e-6 || math.Abs(out[1][1]-1) > 1e-6 {
		t.Errorf("exp(0) = %v, want identity", out)
	}
}

func TestEvaluateFunctionMatSchurTwoByTwoBlock(t *testing.T) {
	// [[0,-1],[1,0]] is already a 2x2 Schur block with eigenvalues +-i;
	// exp of it is the rotation matrix [[cos1,-sin1],[sin1,cos1]],
	// the textbook closed form this case must reproduce.
	f := New[float64](KindExp)
	a := [][]float64{{0, -1}, {1, 0}}
	out, err := f.EvaluateFunctionMat(a, false, MethodSchur)
	if err != nil {
		t.Fatalf("EvaluateFunctionMat: %v", err)
	}
	want := [][]float64{
		{math.Cos(1), -math.Sin(1)},
		{math.Sin(1), math.Cos(1)},
	}
	for i := range want {
		for j := range want[i] {
			if math.Abs(out[i][j]-want[i][j]) > 1e-9 {
				t.Errorf("exp(rotation generator)[%d][%d] = %v, want %v", i, j, out[i][j], want[i][j])
			}
		}
	}
}

func TestEvaluateFunctionMatSqrtCrossMethodAgreement(t *testing.T) {
	// 3x3 SPD diag(1,4,9) with a small off-diagonal perturbation:
	// Schur/Denman-Beavers/Newton-Schulz/Sadeghi must all agree.
	a := [][]float64{
		{1, 0.01, 0},
		{0.01, 4, 0.01},
		{0, 0.01, 9},
	}
	f := New[float64](KindSqrt)
	methods := []MatrixMethod{MethodSchur, MethodDenmanBeavers, MethodNewtonSchulz, MethodSadeghi}
	results := make([][][]float64, len(methods))
	for mi, m := range methods {
		out, err := f.EvaluateFunctionMat(a, false, m)
		if err != nil {
			t.Fatalf("EvaluateFunctionMat(method=%d): %v", m, err)
		}
		results[mi] = out
	}
	for mi := 1; mi < len(results); mi++ {
		for i := range a {
			for j := range a[i] {
				if math.Abs(results[mi][i][j]-results[0][i][j]) > 1e-6 {
					t.Errorf("method %d disagrees with Schur at [%d][%d]: %v vs %v", methods[mi], i, j, results[mi][i][j], results[0][i][j])
				}
			}
		}
	}
}

func TestEvaluateFunctionMatDenmanBeaversOnlySupportsSqrt(t *testing.T) {
	f := New[float64](KindExp)
	a := [][]float64{{1, 0}, {0, 1}}
	_, err := f.EvaluateFunctionMat(a, false, MethodDenmanBeavers)
	if _, ok := err.(*errs.IncompatibleOptions); !ok {
		t.Errorf("err = %v (%T), want *errs.IncompatibleOptions", err, err)
	}
}

func TestEvaluateFunctionMatDenmanBeaversSqrtIdentity(t *testing.T) {
	f := New[float64](KindSqrt)
	a := [][]float64{{1, 0}, {0, 1}}
	out, err := f.EvaluateFunctionMat(a, false, MethodDenmanBeavers)
	if err != nil {
		t.Fatalf("EvaluateFunctionMat: %v", err)
	}
	if math.Abs(out[0][0]-1) > 1e-6 || math.Abs(out[1][1]-1) > 1e-6 {
		t.Errorf("sqrt(I) = %v, want I", out)
	}
}
