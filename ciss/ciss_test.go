package ciss

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/gospectral/eigen/ksp"
	"github.com/gospectral/eigen/spmat"
)

func complexDiag(vals []float64) *spmat.Dense[complex128] {
	n := len(vals)
	d := spmat.NewDense[complex128](n, n)
	for i, v := range vals {
		d.Set(i, i, complex(v, 0))
	}
	d.SetHermitianKnown(true)
	return d
}

func TestQuadratureConjugateSymmetryHalving(t *testing.T) {
	s := New(complexDiag([]float64{1}))
	opts := DefaultOptions()
	opts.N = 32
	opts.RealMatrices = true
	opts.Center = 0
	s.SetOptions(opts)

	nodes, useConj := s.quadrature()
	if !useConj {
		t.Fatal("expected conjugate-symmetry halving for a real center and RealMatrices=true")
	}
	if len(nodes) != 16 {
		t.Fatalf("len(nodes) = %d, want N/2 = 16", len(nodes))
	}
}

func TestQuadratureFullCircleWithoutConjugateSymmetry(t *testing.T) {
	s := New(complexDiag([]float64{1}))
	opts := DefaultOptions()
	opts.N = 32
	opts.RealMatrices = false
	s.SetOptions(opts)

	nodes, useConj := s.quadrature()
	if useConj {
		t.Fatal("expected no conjugate-symmetry halving when RealMatrices=false")
	}
	if len(nodes) != 32 {
		t.Fatalf("len(nodes) = %d, want N = 32", len(nodes))
	}
}

func TestNumericalRankCountsAboveDelta(t *testing.T) {
	svals := []float64{10, 5, 1e-14, 1e-15}
	if got := numericalRank(svals, 1e-10); got != 2 {
		t.Errorf("numericalRank = %d, want 2", got)
	}
}

func TestSpuriousReliabilityIsOneForFlatSpectrum(t *testing.T) {
	svals := []float64{1, 1, 1}
	x := []complex128{1, 0, 0}
	tau := spuriousReliability(svals, x)
	if math.Abs(tau-1) > 1e-9 {
		t.Errorf("tau = %v, want 1 for a single dominant component against a flat spectrum", tau)
	}
}

func TestCmplxPow(t *testing.T) {
	p := complex(0, 1) // i
	if got := cmplxPow(p, 0); got != 1 {
		t.Errorf("p^0 = %v, want 1", got)
	}
	got := cmplxPow(p, 2)
	if cmplx.Abs(got-(-1)) > 1e-12 {
		t.Errorf("i^2 = %v, want -1", got)
	}
}

// TestDiagonalEigenvalueInsideRegionIsRecovered is spec.md §8 scenario 2
// in miniature: a diagonal (hence Hermitian) operator with one
// eigenvalue inside the contour and two clearly outside it.
func TestDiagonalEigenvalueInsideRegionIsRecovered(t *testing.T) {
	a := complexDiag([]float64{1, 2, 3})
	s := New(a)
	opts := DefaultOptions()
	opts.Center = 2
	opts.Radius = 0.5
	opts.VScale = 1
	opts.N = 32
	opts.L = 2
	opts.M = 4
	opts.RealMatrices = true
	opts.Tolerance = 1e-6
	s.SetOptions(opts)

	res, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	foundTwo := false
	for i, lam := range res.Values {
		if res.Rejected[i] {
			continue
		}
		if math.Abs(real(lam)-2) < 1e-2 && math.Abs(imag(lam)) < 1e-2 {
			foundTwo = true
		} else if math.Abs(real(lam)-1) < 1e-2 || math.Abs(real(lam)-3) < 1e-2 {
			t.Errorf("accepted an eigenvalue %v outside the region (1.5,2.5)", lam)
		}
	}
	if !foundTwo {
		t.Errorf("expected the eigenvalue at 2 to be recovered, got values=%v rejected=%v", res.Values, res.Rejected)
	}
}

func TestNoEigenvaluesInRegionConvergesWithZeroAccepted(t *testing.T) {
	a := complexDiag([]float64{1, 2, 3})
	s := New(a)
	opts := DefaultOptions()
	opts.Center = 100
	opts.Radius = 0.1
	opts.N = 16
	opts.L = 2
	opts.M = 2
	opts.RealMatrices = true
	s.SetOptions(opts)

	res, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for i, rejected := range res.Rejected {
		if !rejected {
			t.Errorf("value %v unexpectedly accepted with no eigenvalues in region", res.Values[i])
		}
	}
	if res.Reason != ksp.ConvergedTolerance {
		t.Errorf("Reason = %v, want ConvergedTolerance for an empty region", res.Reason)
	}
}
