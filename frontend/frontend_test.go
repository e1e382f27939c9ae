package frontend

import (
	"math"
	"strings"
	"testing"

	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/ksp"
	"github.com/gospectral/eigen/spmat"
)

func tridiag(n int) *spmat.Dense[float64] {
	d := spmat.NewDense[float64](n, n)
	for i := 0; i < n; i++ {
		d.Set(i, i, 2)
		if i+1 < n {
			d.Set(i, i+1, -1)
			d.Set(i+1, i, -1)
		}
	}
	d.SetHermitianKnown(true)
	return d
}

func TestCISSVariantRejectedForRealSolver(t *testing.T) {
	s := New[float64]()
	err := s.SetVariant(VariantCISS)
	if err == nil {
		t.Fatal("expected an error requesting the CISS variant on a real-typed Solver")
	}
	var want *errs.RealScalarsUnsupported
	if !errorsAs(err, &want) {
		t.Errorf("err = %v, want *errs.RealScalarsUnsupported", err)
	}
}

func errorsAs(err error, target **errs.RealScalarsUnsupported) bool {
	if e, ok := err.(*errs.RealScalarsUnsupported); ok {
		*target = e
		return true
	}
	return false
}

func TestSetTargetRejectsWhichForCISS(t *testing.T) {
	s := New[complex128]()
	if err := s.SetVariant(VariantCISS); err != nil {
		t.Fatalf("SetVariant: %v", err)
	}
	err := s.SetTarget(Target{Which: "largest"})
	if err == nil {
		t.Fatal("expected an error setting Which on a CISS target")
	}
	if _, ok := err.(*errs.ArbitrarySelectionUnsupported); !ok {
		t.Errorf("err = %v, want *errs.ArbitrarySelectionUnsupported", err)
	}
}

func TestSetTargetRejectsRegionForNonCISS(t *testing.T) {
	s := New[float64]()
	err := s.SetTarget(Target{Region: &Region{}})
	if err == nil {
		t.Fatal("expected an error setting a Region target on the default (Arnoldi) variant")
	}
}

func TestLanczosRecoversSmallestEigenvalue(t *testing.T) {
	a := tridiag(10)
	s := New[float64]()
	if err := s.SetVariant(VariantLanczos); err != nil {
		t.Fatalf("SetVariant: %v", err)
	}
	s.SetProblem(a, nil)
	if err := s.SetTarget(Target{NumWanted: 1, Tolerance: 1e-6, MaxSteps: 8}); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	res, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(res.Values) == 0 {
		t.Fatal("expected at least one Ritz value")
	}
	min := math.Inf(1)
	for _, v := range res.Values {
		if real(v) < min {
			min = real(v)
		}
	}
	if min > 2 {
		t.Errorf("smallest Ritz value = %v, expected something well below the spectrum's midpoint", min)
	}
}

func TestSVDVariantRecoversLargestSingularValue(t *testing.T) {
	a := spmat.NewDense[float64](4, 6)
	for i := 0; i < 4; i++ {
		a.Set(i, i, 1)
		a.Set(i, i+1, 2)
	}
	s := New[float64]()
	if err := s.SetVariant(VariantSVD); err != nil {
		t.Fatalf("SetVariant: %v", err)
	}
	s.SetProblem(a, nil)
	if err := s.SetTarget(Target{NumWanted: 1, Which: "largest"}); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	res, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Reason != ksp.ConvergedTolerance {
		t.Errorf("Reason = %v, want ConvergedTolerance", res.Reason)
	}
	if len(res.Values) != 1 {
		t.Fatalf("got %d singular values, want 1", len(res.Values))
	}
	lambda, vec, err := s.Eigenpair(0)
	if err != nil {
		t.Fatalf("Eigenpair: %v", err)
	}
	if real(lambda) <= 0 {
		t.Errorf("singular value = %v, want > 0", lambda)
	}
	if len(vec) != 10 { // 4 left + 6 right singular vector entries
		t.Errorf("len(vec) = %d, want 10", len(vec))
	}
}

func TestDumpOptionsWritesVariantAndTarget(t *testing.T) {
	s := New[float64]()
	s.SetTarget(Target{NumWanted: 3, Which: "largest"})
	var sb strings.Builder
	s.DumpOptions(&sb)
	out := sb.String()
	if !strings.Contains(out, "arnoldi") || !strings.Contains(out, "numWanted=3") {
		t.Errorf("DumpOptions output missing expected fields: %q", out)
	}
}
