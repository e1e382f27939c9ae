package csvd

import (
	"math"
	"testing"

	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/ksp"
	"github.com/gospectral/eigen/spmat"
)

// bidiagonal builds an m x (m+2) matrix with diagonal 1 and
// super-diagonal 2, spec.md §8 end-to-end scenario 1.
func bidiagonal(m int) *spmat.Dense[float64] {
	d := spmat.NewDense[float64](m, m+2)
	for i := 0; i < m; i++ {
		d.Set(i, i, 1)
		d.Set(i, i+1, 2)
	}
	return d
}

func TestDenseSVDRecoversLargestSingularValue(t *testing.T) {
	a := bidiagonal(4)
	driver := New[float64](a)
	driver.SetNumTriplets(1)
	driver.SetWhich(Largest)
	res, err := driver.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(res.Triplets) != 1 {
		t.Fatalf("got %d triplets, want 1", len(res.Triplets))
	}
	sigma := res.Triplets[0].Sigma
	av := spmat.NewVec[float64](6)
	copy(av.GetArray(), res.Triplets[0].V)
	y := spmat.NewVec[float64](4)
	a.Mult(av, y)
	residual := 0.0
	for i := 0; i < 4; i++ {
		d := y.At(i) - sigma*res.Triplets[0].U[i]
		residual += d * d
	}
	if math.Sqrt(residual) > 1e-6 {
		t.Errorf("residual ||A v - sigma u|| = %v, too large", math.Sqrt(residual))
	}
	if res.Reason != ksp.ConvergedTolerance {
		t.Errorf("Reason = %v, want ConvergedTolerance", res.Reason)
	}
}

func TestZeroMatrixAllSingularValuesZero(t *testing.T) {
	a := spmat.NewDense[float64](3, 3)
	driver := New[float64](a)
	driver.SetNumTriplets(2)
	res, err := driver.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for _, tr := range res.Triplets {
		if tr.Sigma != 0 {
			t.Errorf("sigma = %v, want 0 for a zero matrix", tr.Sigma)
		}
	}
	if res.Reason != ksp.ConvergedTolerance {
		t.Errorf("Reason = %v, want ConvergedTolerance", res.Reason)
	}
}

func TestSetGeneralizedReportsUnsupported(t *testing.T) {
	a := bidiagonal(4)
	b := spmat.NewDense[float64](4, 4)
	driver := New[float64](a)
	err := driver.SetGeneralized(b)
	if _, ok := err.(*errs.IncompatibleOptions); !ok {
		t.Fatalf("err = %v (%T), want *errs.IncompatibleOptions", err, err)
	}
}

func TestShellPathMatchesDensePath(t *testing.T) {
	a := bidiagonal(4)
	dense := New[float64](a)
	dense.SetNumTriplets(1)
	denseRes, err := dense.Solve()
	if err != nil {
		t.Fatalf("dense Solve: %v", err)
	}

	shell := New[float64](a)
	shell.SetNumTriplets(1)
	shell.SetShell(true)
	shellRes, err := shell.Solve()
	if err != nil {
		t.Fatalf("shell Solve: %v", err)
	}

	if math.Abs(denseRes.Triplets[0].Sigma-shellRes.Triplets[0].Sigma) > 1e-6 {
		t.Errorf("dense sigma %v vs shell sigma %v", denseRes.Triplets[0].Sigma, shellRes.Triplets[0].Sigma)
	}
}
