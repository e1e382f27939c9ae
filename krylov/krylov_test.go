package krylov

import (
	"math"
	"testing"

	"github.com/gospectral/eigen/spmat"
)

// diagOperator applies a diagonal matrix directly, standing in for an
// st.ST in these unit tests (krylov only needs the Operator interface).
type diagOperator struct{ d []float64 }

func (o diagOperator) Apply(x, y *spmat.Vec[float64]) error {
	for i := range o.d {
		y.SetAt(i, o.d[i]*x.At(i))
	}
	return nil
}

func TestArnoldiReachesInvariantSubspace(t *testing.T) {
	op := diagOperator{d: []float64{1, 2, 3}}
	a := NewArnoldi[float64](3, 3, op)
	v0 := spmat.NewVec[float64](3)
	v0.SetAt(0, 1)
	a.SetInitialVector(v0)

	reached, breakdown, err := a.Extend(1)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if reached != 1 {
		t.Fatalf("reached = %d, want 1", reached)
	}
	// e0 is already an eigenvector of the diagonal operator, so the
	// very first step should hit a happy breakdown.
	if !breakdown {
		t.Fatal("expected breakdown extending along an eigenvector")
	}
}

func TestArnoldiHessenbergProjectsOperator(t *testing.T) {
	op := diagOperator{d: []float64{1, 2, 3}}
	a := NewArnoldi[float64](3, 3, op)
	v0 := spmat.NewVec[float64](3)
	v0.SetAt(0, 1)
	v0.SetAt(1, 1)
	v0.SetAt(2, 1)
	a.SetInitialVector(v0)

	if _, _, err := a.Extend(3); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	h := a.Hessenberg()
	// Off-tridiagonal entries should be ~0 for a diagonal (hence
	// symmetric) operator: Arnoldi on a symmetric operator degenerates
	// to a tridiagonal Hessenberg.
	if math.Abs(h[0][2]) > 1e-9 {
		t.Errorf("h[0][2] = %v, want ~0 for a symmetric operator", h[0][2])
	}
}

func TestLanczosTridiagonalMatchesEigenvalues(t *testing.T) {
	op := diagOperator{d: []float64{2, 5}}
	l := NewLanczos[float64](2, 2, op)
	v0 := spmat.NewVec[float64](2)
	v0.SetAt(0, 1)
	v0.SetAt(1, 1)
	l.SetInitialVector(v0)
	if _, _, err := l.Extend(2); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	// alpha_0 = <v0, D v0> = (2+5)/2 = 3.5 for the normalized v0.
	if math.Abs(l.Alpha()[0]-3.5) > 1e-9 {
		t.Errorf("alpha[0] = %v, want 3.5", l.Alpha()[0])
	}
}
