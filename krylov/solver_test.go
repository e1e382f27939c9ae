package krylov

import (
	"math"
	"testing"

	"github.com/gospectral/eigen/spmat"
)

func TestArnoldiSolverRecoversLargestEigenvalue(t *testing.T) {
	op := diagOperator{d: []float64{1, 2, 9}}
	s := NewArnoldiSolver[float64](3, 3, op)
	s.SetNumEigenpairs(1)
	s.SetTolerance(1e-6)
	v0 := spmat.NewVec[float64](3)
	v0.SetAt(0, 1)
	v0.SetAt(1, 1)
	v0.SetAt(2, 1)
	s.SetInitialVector(v0)

	res, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.NConv == 0 {
		t.Fatal("expected at least one converged Ritz pair")
	}
	max := math.Inf(-1)
	for _, v := range res.Values {
		if real(v) > max {
			max = real(v)
		}
	}
	if math.Abs(max-9) > 1e-6 {
		t.Errorf("largest Ritz value = %v, want ~9", max)
	}
	if len(res.Vectors) != len(res.Values) {
		t.Fatalf("len(Vectors) = %d, want %d", len(res.Vectors), len(res.Values))
	}
	for _, v := range res.Vectors {
		if len(v) != 3 {
			t.Errorf("len(vector) = %d, want 3", len(v))
		}
	}
}

func TestArnoldiSolverSetExtractionRejectsNonRitz(t *testing.T) {
	op := diagOperator{d: []float64{1, 2}}
	s := NewArnoldiSolver[float64](2, 2, op)
	if err := s.SetExtraction(ExtractionHarmonic); err == nil {
		t.Fatal("expected an error requesting harmonic extraction")
	}
	if err := s.SetExtraction(ExtractionRitz); err != nil {
		t.Errorf("SetExtraction(ExtractionRitz) = %v, want nil", err)
	}
}

func TestLanczosSolverRecoversBothEigenvalues(t *testing.T) {
	op := diagOperator{d: []float64{2, 5}}
	s := NewLanczosSolver[float64](2, 2, op)
	s.SetNumEigenpairs(2)
	s.SetTolerance(1e-6)
	v0 := spmat.NewVec[float64](2)
	v0.SetAt(0, 1)
	v0.SetAt(1, 1)
	s.SetInitialVector(v0)

	res, err := s.Solve()
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(res.Values) != 2 {
		t.Fatalf("len(Values) = %d, want 2", len(res.Values))
	}
	sawTwo, sawFive := false, false
	for _, v := range res.Values {
		if math.Abs(real(v)-2) < 1e-6 {
			sawTwo = true
		}
		if math.Abs(real(v)-5) < 1e-6 {
			sawFive = true
		}
	}
	if !sawTwo || !sawFive {
		t.Errorf("Values = %v, want eigenvalues 2 and 5", res.Values)
	}
}

func TestArnoldiSolverMonitorIsCalledEveryStep(t *testing.T) {
	op := diagOperator{d: []float64{1, 2, 3}}
	s := NewArnoldiSolver[float64](3, 3, op)
	s.SetNumEigenpairs(3)
	s.SetTolerance(1e-6)
	var calls int
	s.SetMonitor(func(it, nconv int, residuals []float64) { calls++ })
	v0 := spmat.NewVec[float64](3)
	v0.SetAt(0, 1)
	v0.SetAt(1, 1)
	v0.SetAt(2, 1)
	s.SetInitialVector(v0)
	if _, err := s.Solve(); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if calls == 0 {
		t.Error("expected the monitor to be called at least once")
	}
}
