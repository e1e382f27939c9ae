// Package spmat defines the matrix/vector/communicator substrate the
// core solvers (bv, st, krylov, ciss, csvd) consume and never re-derive.
// spec.md §1 calls the distributed sparse matrix, the communicator, and
// the preconditioner catalogue "out of scope"; this package gives their
// contracts (§3 Matrix/Vec, §6 external interfaces) a concrete, single
// rank-per-process reference shape so the module compiles and runs
// end to end without a real MPI/PETSc-style binding.
package spmat

import (
	"github.com/gospectral/eigen/scalar"
)

// StructureHint describes how two matrices' non-zero patterns relate,
// as consumed by Matrix.AXPY and by st's mat-mode bookkeeping.
type StructureHint int

const (
	StructureDifferent StructureHint = iota
	StructureSubset
	StructureSame
	StructureUnknown
)

// NormType selects the matrix norm Matrix.Norm computes.
type NormType int

const (
	NormFrobenius NormType = iota
	NormInf
	NormOne
)

// Matrix is the opaque parallel (sparse or dense) object spec.md §3
// describes: size, mult/multTranspose, axpy, shift, copy, duplicate,
// norm, and a monotonically increasing state counter callers use to
// detect external mutation (spec.md's "StateStale" invariant).
type Matrix[S scalar.Scalar] interface {
	// Dims returns the matrix's (rows, cols); square for every matrix
	// this module's solvers operate on directly.
	Dims() (rows, cols int)

	// Mult computes y := A*x.
	Mult(x *Vec[S], y *Vec[S])

	// MultTranspose computes y := A^H*x (conjugate transpose).
	MultTranspose(x *Vec[S], y *Vec[S])

	// AXPY computes A += alpha*B, given a structural relationship hint.
	AXPY(alpha S, b Matrix[S], hint StructureHint)

	// Shift computes A += alpha*I.
	Shift(alpha S)

	// Copy returns a copy of A sharing no storage with the receiver.
	Copy() Matrix[S]

	// Duplicate returns a new, uninitialized matrix of the same shape
	// and sparsity pattern class as the receiver.
	Duplicate() Matrix[S]

	// Norm computes the requested matrix norm.
	Norm(typ NormType) float64

	// State returns the mutation counter; it increases monotonically
	// every time the matrix's entries change.
	State() int64

	// IsHermitianKnown reports whether the matrix is known (by
	// construction, not by inspection) to be Hermitian/symmetric.
	IsHermitianKnown() bool
}

// Comm stands in for the assumed MPI-like communicator of spec.md §5/§6:
// rank, size, split, and the all-reduce/barrier collectives every BV
// dot/norm and every CISS moment accumulation goes through.
type Comm interface {
	Rank() int
	Size() int
	Split(color, key int) Comm
	AllReduceSum(v float64) float64
	AllReduceMax(v float64) float64
	AllReduceMin(v float64) float64
	Barrier()
}

// SelfComm is the single-rank reference communicator: every collective
// is a local no-op. A distributed Comm can be substituted without any
// other package in this module noticing, since bv/st/krylov/ciss only
// ever talk to the Comm interface.
type SelfComm struct{}

func (SelfComm) Rank() int                 { return 0 }
func (SelfComm) Size() int                 { return 1 }
func (SelfComm) Split(_, _ int) Comm       { return SelfComm{} }
func (SelfComm) AllReduceSum(v float64) float64 { return v }
func (SelfComm) AllReduceMax(v float64) float64 { return v }
func (SelfComm) AllReduceMin(v float64) float64 { return v }
func (SelfComm) Barrier()                  {}
