package st

import (
	"math"
	"testing"

	"github.com/gospectral/eigen/ksp"
	"github.com/gospectral/eigen/spmat"
)

func diag(vals []float64) *spmat.Dense[float64] {
	n := len(vals)
	d := spmat.NewDense[float64](n, n)
	for i, v := range vals {
		d.Set(i, i, v)
	}
	return d
}

func TestApplyStandardShiftInvert(t *testing.T) {
	a := diag([]float64{1, 2, 3, 4})
	solver := ksp.NewDirect[float64]()
	transform := New[float64](solver)
	transform.SetMatrices([]spmat.Matrix[float64]{a})
	transform.SetShift(2.5)
	if err := transform.SetUp(); err != nil {
		t.Fatalf("SetUp: %v", err)
	}

	x := spmat.NewVec[float64](4)
	x.SetAt(2, 1) // picks out the eigenvector for lambda=3
	y := spmat.NewVec[float64](4)
	if err := transform.Apply(x, y); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := 1 / (3 - 2.5)
	if math.Abs(y.At(2)-want) > 1e-9 {
		t.Errorf("y[2] = %v, want %v", y.At(2), want)
	}
}

func TestApplyBeforeSetUpFails(t *testing.T) {
	a := diag([]float64{1, 2})
	transform := New[float64](ksp.NewDirect[float64]())
	transform.SetMatrices([]spmat.Matrix[float64]{a})
	x, y := spmat.NewVec[float64](2), spmat.NewVec[float64](2)
	if err := transform.Apply(x, y); err == nil {
		t.Fatal("expected an error applying before SetUp")
	}
}

func TestStateStaleAfterMutation(t *testing.T) {
	a := diag([]float64{1, 2, 3})
	transform := New[float64](ksp.NewDirect[float64]())
	transform.SetMatrices([]spmat.Matrix[float64]{a})
	transform.SetShift(0.5)
	if err := transform.SetUp(); err != nil {
		t.Fatalf("SetUp: %v", err)
	}
	a.Shift(1) // mutates the underlying pencil matrix directly
	x, y := spmat.NewVec[float64](3), spmat.NewVec[float64](3)
	if err := transform.Apply(x, y); err == nil {
		t.Fatal("expected StateStale after mutating the matrix post-setup")
	}
}

func TestBackTransformRealPair(t *testing.T) {
	transform := New[float64](ksp.NewDirect[float64]())
	transform.SetShift(1.0)
	lr := []float64{0.5, 0.4}
	li := []float64{0, 0.3}
	transform.BackTransform(lr, li)
	if math.Abs(lr[0]-3.0) > 1e-9 {
		t.Errorf("real branch: got %v, want 3.0", lr[0])
	}
	tden := 0.4*0.4 + 0.3*0.3
	wantR := 0.4/tden + 1.0
	wantI := -0.3 / tden
	if math.Abs(lr[1]-wantR) > 1e-9 || math.Abs(li[1]-wantI) > 1e-9 {
		t.Errorf("conjugate-pair branch: got (%v,%v), want (%v,%v)", lr[1], li[1], wantR, wantI)
	}
}

// TestApplyTransposeNonSymmetric checks ApplyTranspose against a
// non-symmetric operator, where a forward-Solve/transpose mixup would
// give a different (wrong) answer than the real transpose solve.
func TestApplyTransposeNonSymmetric(t *testing.T) {
	a := spmat.NewDense[float64](2, 2)
	a.Set(0, 0, 1)
	a.Set(0, 1, 2)
	a.Set(1, 0, 0)
	a.Set(1, 1, 3)
	solver := ksp.NewDirect[float64]()
	transform := New[float64](solver)
	transform.SetMatrices([]spmat.Matrix[float64]{a})
	transform.SetShift(0)
	if err := transform.SetUp(); err != nil {
		t.Fatalf("SetUp: %v", err)
	}

	x := spmat.NewVec[float64](2)
	x.SetAt(0, 1)
	x.SetAt(1, 1)
	y := spmat.NewVec[float64](2)
	if err := transform.ApplyTranspose(x, y); err != nil {
		t.Fatalf("ApplyTranspose: %v", err)
	}

	// A^-1 = [[1,-2/3],[0,1/3]], so (A^-1)^T = [[1,0],[-2/3,1/3]].
	// y = (A^-1)^T * [1,1] = [1, -1/3].
	want := []float64{1, -1.0 / 3.0}
	if math.Abs(y.At(0)-want[0]) > 1e-9 || math.Abs(y.At(1)-want[1]) > 1e-9 {
		t.Errorf("ApplyTranspose = (%v,%v), want (%v,%v)", y.At(0), y.At(1), want[0], want[1])
	}

	// A forward Solve on the same x would give a different answer,
	// confirming the two paths are not interchangeable.
	forward := spmat.NewVec[float64](2)
	if err := transform.Apply(x, forward); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if math.Abs(forward.At(0)-y.At(0)) < 1e-9 && math.Abs(forward.At(1)-y.At(1)) < 1e-9 {
		t.Fatal("ApplyTranspose should differ from Apply for a non-symmetric operator")
	}
}

func TestBuildPencilGeneralized(t *testing.T) {
	a := diag([]float64{2, 4})
	b := diag([]float64{1, 1})
	transform := New[float64](ksp.NewDirect[float64]())
	transform.SetMatrices([]spmat.Matrix[float64]{a, b})
	transform.SetShift(1)
	if err := transform.SetUp(); err != nil {
		t.Fatalf("SetUp: %v", err)
	}
	x := spmat.NewVec[float64](2)
	x.SetAt(0, 1)
	y := spmat.NewVec[float64](2)
	if err := transform.Apply(x, y); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// (A - sigma*B)^-1 * B * e0 = 1/(2-1) * e0 = e0
	if math.Abs(y.At(0)-1) > 1e-9 {
		t.Errorf("y[0] = %v, want 1", y.At(0))
	}
}
