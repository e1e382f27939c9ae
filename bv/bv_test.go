package bv

import (
	"math"
	"testing"

	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/rng"
	"github.com/gospectral/eigen/spmat"
)

func TestGetColumnPanicsWhenAlreadyBorrowed(t *testing.T) {
	b := New[float64](3, 2)
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic re-borrowing an outstanding column")
		}
		if _, ok := r.(*errs.ColumnAlreadyBorrowed); !ok {
			t.Errorf("recovered %v (%T), want *errs.ColumnAlreadyBorrowed", r, r)
		}
	}()
	b.GetColumn(0)
	b.GetColumn(0)
}

func TestRestoreColumnPanicsOnWrongVector(t *testing.T) {
	b := New[float64](3, 2)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic restoring a mismatched vector")
		}
	}()
	b.GetColumn(0)
	other := spmat.NewVec[float64](3)
	b.RestoreColumn(0, other)
}

func TestOrthonormalizeColumnProducesUnitNorm(t *testing.T) {
	b := New[float64](4, 3)
	stream := rng.FromSeed(7)
	for j := 0; j < 3; j++ {
		b.SetRandom(j, stream)
	}
	h := make([]float64, 3)
	for j := 0; j < 3; j++ {
		_, lindep := b.OrthonormalizeColumn(j, true, stream, h)
		if lindep {
			t.Fatalf("column %d unexpectedly linearly dependent", j)
		}
		nrm, err := b.Norm(j)
		if err != nil {
			t.Fatalf("Norm(%d): %v", j, err)
		}
		if math.Abs(nrm-1) > 1e-9 {
			t.Errorf("Norm(%d) = %v, want ~1", j, nrm)
		}
	}
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			dot := b.cols[i].Dot(b.cols[j])
			if math.Abs(dot) > 1e-8 {
				t.Errorf("<col%d,col%d> = %v, want ~0", i, j, dot)
			}
		}
	}
}

func TestMultVecReconstructsLinearCombination(t *testing.T) {
	b := New[float64](2, 2)
	col0 := b.GetColumn(0)
	col0.SetAt(0, 1)
	col0.SetAt(1, 0)
	b.RestoreColumn(0, col0)
	col1 := b.GetColumn(1)
	col1.SetAt(0, 0)
	col1.SetAt(1, 1)
	b.RestoreColumn(1, col1)

	y := spmat.NewVec[float64](2)
	b.MultVec(1, 0, y, []float64{3, 4})
	if y.At(0) != 3 || y.At(1) != 4 {
		t.Errorf("y = (%v,%v), want (3,4)", y.At(0), y.At(1))
	}
}

func TestDotComputesGramMatrix(t *testing.T) {
	x := New[float64](2, 2)
	c0 := x.GetColumn(0)
	c0.SetAt(0, 1)
	x.RestoreColumn(0, c0)
	c1 := x.GetColumn(1)
	c1.SetAt(1, 1)
	x.RestoreColumn(1, c1)

	m := [][]float64{{0, 0}, {0, 0}}
	Dot(x, x, m)
	if m[0][0] != 1 || m[1][1] != 1 || m[0][1] != 0 || m[1][0] != 0 {
		t.Errorf("Gram matrix = %v, want identity", m)
	}
}

func TestSetActiveColumnsRejectsOutOfRange(t *testing.T) {
	b := New[float64](3, 3)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an out-of-range active window")
		}
	}()
	b.SetActiveColumns(0, 5)
}
