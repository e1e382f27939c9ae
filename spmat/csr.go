package spmat

import (
	"math"

	"github.com/gospectral/eigen/scalar"
)

// CSR is a minimal compressed-sparse-row Matrix[S], standing in for
// the distributed sparse matrix type spec.md §1 puts out of scope.
// Entries within a row must be column-sorted; CSR does not support
// structural mutation after NewCSR beyond Shift/AXPY against another
// CSR with an identical sparsity pattern (StructureSame).
type CSR[S scalar.Scalar] struct {
	rows, cols int
	rowStart   []int // len rows+1
	colIdx     []int
	vals       []S
	state      int64
	hermitian  bool
}

// NewCSR builds a CSR matrix from row-major (rowStart, colIdx, vals)
// triples, without copying.
func NewCSR[S scalar.Scalar](rows, cols int, rowStart, colIdx []int, vals []S) *CSR[S] {
	return &CSR[S]{rows: rows, cols: cols, rowStart: rowStart, colIdx: colIdx, vals: vals}
}

func (m *CSR[S]) Dims() (int, int) { return m.rows, m.cols }
func (m *CSR[S]) State() int64     { return m.state }

func (m *CSR[S]) SetHermitianKnown(b bool) { m.hermitian = b }
func (m *CSR[S]) IsHermitianKnown() bool   { return m.hermitian }

func (m *CSR[S]) Mult(x, y *Vec[S]) {
	for i := 0; i < m.rows; i++ {
		var sum S
		for k := m.rowStart[i]; k < m.rowStart[i+1]; k++ {
			sum += m.vals[k] * x.At(m.colIdx[k])
		}
		y.SetAt(i, sum)
	}
}

func (m *CSR[S]) MultTranspose(x, y *Vec[S]) {
	for j := 0; j < m.cols; j++ {
		y.SetAt(j, 0)
	}
	for i := 0; i < m.rows; i++ {
		xi := x.At(i)
		if xi == 0 {
			continue
		}
		for k := m.rowStart[i]; k < m.rowStart[i+1]; k++ {
			j := m.colIdx[k]
			y.SetAt(j, y.At(j)+scalar.Conj(m.vals[k])*xi)
		}
	}
}

// AXPY requires b to share the receiver's exact sparsity pattern
// (StructureSame); this reference implementation does not support
// fill-in.
func (m *CSR[S]) AXPY(alpha S, b Matrix[S], hint StructureHint) {
	ob, ok := b.(*CSR[S])
	if !ok || hint != StructureSame {
		panic("spmat: CSR AXPY requires an identically-structured CSR operand")
	}
	if len(ob.vals) != len(m.vals) {
		panic("spmat: CSR AXPY pattern mismatch")
	}
	for i := range m.vals {
		m.vals[i] += alpha * ob.vals[i]
	}
	m.state++
}

// Shift adds alpha to every structural diagonal entry; it panics if a
// diagonal entry is not present in the pattern (no fill-in support).
func (m *CSR[S]) Shift(alpha S) {
	n := m.rows
	if m.cols < n {
		n = m.cols
	}
	for i := 0; i < n; i++ {
		found := false
		for k := m.rowStart[i]; k < m.rowStart[i+1]; k++ {
			if m.colIdx[k] == i {
				m.vals[k] += alpha
				found = true
				break
			}
		}
		if !found {
			panic("spmat: CSR Shift requires an explicit diagonal entry")
		}
	}
	m.state++
}

func (m *CSR[S]) Copy() Matrix[S] {
	rs := append([]int(nil), m.rowStart...)
	ci := append([]int(nil), m.colIdx...)
	vs := append([]S(nil), m.vals...)
	return &CSR[S]{rows: m.rows, cols: m.cols, rowStart: rs, colIdx: ci, vals: vs, hermitian: m.hermitian}
}

func (m *CSR[S]) Duplicate() Matrix[S] {
	vs := make([]S, len(m.vals))
	return &CSR[S]{rows: m.rows, cols: m.cols, rowStart: m.rowStart, colIdx: m.colIdx, vals: vs}
}

func (m *CSR[S]) Norm(typ NormType) float64 {
	switch typ {
	case NormFrobenius:
		var sum float64
		for _, v := range m.vals {
			a := scalar.Abs(v)
			sum += a * a
		}
		return math.Sqrt(sum)
	case NormInf:
		var best float64
		for i := 0; i < m.rows; i++ {
			var rowSum float64
			for k := m.rowStart[i]; k < m.rowStart[i+1]; k++ {
				rowSum += scalar.Abs(m.vals[k])
			}
			if rowSum > best {
				best = rowSum
			}
		}
		return best
	case NormOne:
		colSums := make([]float64, m.cols)
		for k, v := range m.vals {
			colSums[m.colIdx[k]] += scalar.Abs(v)
		}
		var best float64
		for _, s := range colSums {
			if s > best {
				best = s
			}
		}
		return best
	}
	panic("spmat: unknown norm type")
}

// TriDiag1D builds the n×n symmetric tridiagonal CSR matrix with diag
// on the main diagonal and off on both neighbors — the 1D second
// difference / Laplacian pencil used throughout this module's tests
// and in scenario 2 of spec.md §8.
func TriDiag1D[S scalar.Scalar](n int, diag, off S) *CSR[S] {
	rowStart := make([]int, n+1)
	var colIdx []int
	var vals []S
	for i := 0; i < n; i++ {
		if i > 0 {
			colIdx = append(colIdx, i-1)
			vals = append(vals, off)
		}
		colIdx = append(colIdx, i)
		vals = append(vals, diag)
		if i < n-1 {
			colIdx = append(colIdx, i+1)
			vals = append(vals, off)
		}
		rowStart[i+1] = len(colIdx)
	}
	m := NewCSR(n, n, rowStart, colIdx, vals)
	m.SetHermitianKnown(true)
	return m
}
