// Package ksp is the linear-solver (KSP-equivalent) façade spec.md §6
// calls out as the one abstraction the core consumes for "solve(b, x)
// for a matrix A and a preconditioner P". st.ST is its principal
// caller: every apply of a shift-and-invert operator is one Solve.
package ksp

import (
	"github.com/gospectral/eigen/dla"
	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/scalar"
	"github.com/gospectral/eigen/spmat"

	"gonum.org/v1/gonum/mat"
)

// ConvergedReason mirrors spec.md §6's convergence-reason taxonomy.
type ConvergedReason int

const (
	ConvergedIterating ConvergedReason = iota
	ConvergedTolerance
	DivergedIts
	DivergedBreakdown
	DivergedLinearSolve
)

func (r ConvergedReason) String() string {
	switch r {
	case ConvergedIterating:
		return "iterating"
	case ConvergedTolerance:
		return "converged (tolerance)"
	case DivergedIts:
		return "diverged (iteration limit)"
	case DivergedBreakdown:
		return "diverged (breakdown)"
	case DivergedLinearSolve:
		return "diverged (linear solve)"
	}
	return "unknown"
}

// PC is the preconditioner sub-handle of spec.md §6: a type tag plus
// whatever options the chosen Handle needs to build it internally.
type PC struct {
	Type string // "none", "lu" (the only kinds this reference build implements)
}

// Handle is the KSP-equivalent collaborator: setOperators/setUp/solve/
// getConvergedReason/setType, with a preconditioner sub-handle.
type Handle[S scalar.Scalar] interface {
	SetOperators(a, p spmat.Matrix[S], structure spmat.StructureHint)
	SetUp() error
	Solve(b, x *spmat.Vec[S]) error
	ConvergedReason() ConvergedReason
	SetType(name string)
	Preconditioner() *PC
}

// Direct is the "LAPACK-only" dense KSP handle spec.md's Open
// Questions call out: it densifies its operand (via spmat.ToDense) and
// factorizes with dla's Getrf/Getri-backed inverse. It is the default
// handle st.ST hands its shifted pencil to in MATMODE=COPY/INPLACE.
type Direct[S scalar.Scalar] struct {
	a, p      spmat.Matrix[S]
	n         int
	realInv   *mat.Dense
	complexInv *mat.CDense
	reason    ConvergedReason
	pc        PC
}

// NewDirect returns an unconfigured Direct handle.
func NewDirect[S scalar.Scalar]() *Direct[S] {
	return &Direct[S]{pc: PC{Type: "lu"}}
}

func (h *Direct[S]) SetOperators(a, p spmat.Matrix[S], _ spmat.StructureHint) {
	h.a, h.p = a, p
	rows, _ := p.Dims()
	h.n = rows
}

func (h *Direct[S]) SetUp() error {
	dense := spmat.ToDense[S](h.p)
	if scalar.IsComplex[S]() {
		cdense := any(dense).(*spmat.Dense[complex128])
		cm := toCDense(cdense)
		inv, ok := dla.ComplexInverse(cm)
		if !ok {
			return &errs.FactorizationZeroPivot{Index: -1}
		}
		h.complexInv = inv
		return nil
	}
	rdense := any(dense).(*spmat.Dense[float64])
	rm := toRDense(rdense)
	inv := mat.NewDense(h.n, h.n, nil)
	if !dla.RealInverse(inv, rm) {
		return &errs.FactorizationZeroPivot{Index: -1}
	}
	h.realInv = inv
	return nil
}

func (h *Direct[S]) Solve(b, x *spmat.Vec[S]) error {
	if scalar.IsComplex[S]() {
		if h.complexInv == nil {
			return &errs.SolverSetupFailure{Reason: "SetUp not called"}
		}
		for i := 0; i < h.n; i++ {
			var sum complex128
			for j := 0; j < h.n; j++ {
				sum += h.complexInv.At(i, j) * complex128(any(b.At(j)).(complex128))
			}
			x.SetAt(i, any(sum).(S))
		}
		h.reason = ConvergedTolerance
		return nil
	}
	if h.realInv == nil {
		return &errs.SolverSetupFailure{Reason: "SetUp not called"}
	}
	bv := make([]float64, h.n)
	for i := 0; i < h.n; i++ {
		bv[i] = any(b.At(i)).(float64)
	}
	xv := mat.NewVecDense(h.n, nil)
	xv.MulVec(h.realInv, mat.NewVecDense(h.n, bv))
	for i := 0; i < h.n; i++ {
		x.SetAt(i, any(xv.AtVec(i)).(S))
	}
	h.reason = ConvergedTolerance
	return nil
}

// SolveTranspose solves A^H x = b (conjugate-transpose for complex S,
// plain transpose for real S) by applying the stored explicit inverse's
// (conjugate-)transpose; no new factorization is needed since SetUp
// already holds the full dense inverse.
func (h *Direct[S]) SolveTranspose(b, x *spmat.Vec[S]) error {
	if scalar.IsComplex[S]() {
		if h.complexInv == nil {
			return &errs.SolverSetupFailure{Reason: "SetUp not called"}
		}
		for i := 0; i < h.n; i++ {
			var sum complex128
			for j := 0; j < h.n; j++ {
				sum += cconj(h.complexInv.At(j, i)) * complex128(any(b.At(j)).(complex128))
			}
			x.SetAt(i, any(sum).(S))
		}
		h.reason = ConvergedTolerance
		return nil
	}
	if h.realInv == nil {
		return &errs.SolverSetupFailure{Reason: "SetUp not called"}
	}
	for i := 0; i < h.n; i++ {
		var sum float64
		for j := 0; j < h.n; j++ {
			sum += h.realInv.At(j, i) * any(b.At(j)).(float64)
		}
		x.SetAt(i, any(sum).(S))
	}
	h.reason = ConvergedTolerance
	return nil
}

func cconj(z complex128) complex128 { return complex(real(z), -imag(z)) }

func (h *Direct[S]) ConvergedReason() ConvergedReason { return h.reason }
func (h *Direct[S]) SetType(name string)               { h.pc.Type = name }
func (h *Direct[S]) Preconditioner() *PC                { return &h.pc }

func toRDense(d *spmat.Dense[float64]) *mat.Dense {
	rows, cols := d.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, d.At(i, j))
		}
	}
	return out
}

func toCDense(d *spmat.Dense[complex128]) *mat.CDense {
	rows, cols := d.Dims()
	out := mat.NewCDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, d.At(i, j))
		}
	}
	return out
}
