// Package errs collects the typed error values surfaced by the solver
// packages. Each value implements error directly; the embedding code
// distinguishes kinds with errors.As/errors.Is rather than string
// matching.
package errs

import "fmt"

// Precondition errors: malformed input caught before any numerical
// work starts.

type SizeMismatch struct {
	Op       string
	Expected int
	Got      int
}

func (e *SizeMismatch) Error() string {
	return fmt.Sprintf("%s: size mismatch, expected %d, got %d", e.Op, e.Expected, e.Got)
}

type WrongScalarType struct {
	Op string
}

func (e *WrongScalarType) Error() string {
	return e.Op + ": operation requires complex scalars"
}

type UnsupportedExtraction struct {
	Kind string
}

func (e *UnsupportedExtraction) Error() string {
	return "unsupported extraction kind: " + e.Kind
}

type UnsupportedWhich struct {
	Which string
}

func (e *UnsupportedWhich) Error() string {
	return "unsupported which-eigenvalues selector: " + e.Which
}

type IncompatibleOptions struct {
	Reason string
}

func (e *IncompatibleOptions) Error() string {
	return "incompatible options: " + e.Reason
}

type OutOfRange struct {
	Op  string
	Idx int
}

func (e *OutOfRange) Error() string {
	return fmt.Sprintf("%s: index %d out of range", e.Op, e.Idx)
}

// Domain errors: a scalar or matrix function evaluated outside its
// domain of definition.

type DomainError struct {
	Func string
	Arg  string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: argument %s outside domain", e.Func, e.Arg)
}

type DerivativeUndefined struct {
	Func string
	At   string
}

func (e *DerivativeUndefined) Error() string {
	return fmt.Sprintf("%s: derivative undefined at %s", e.Func, e.At)
}

type IndefiniteInner struct{}

func (e *IndefiniteInner) Error() string {
	return "inner product evaluated non-positive under a non-indefinite policy"
}

// Numerical errors.

type MatrixFunctionNotConverged struct {
	Method     string
	Iterations int
	Residual   float64
}

func (e *MatrixFunctionNotConverged) Error() string {
	return fmt.Sprintf("%s: matrix function iteration did not converge after %d iterations (residual %g)",
		e.Method, e.Iterations, e.Residual)
}

type FactorizationZeroPivot struct {
	Index int
}

func (e *FactorizationZeroPivot) Error() string {
	return fmt.Sprintf("factorization hit a zero pivot at index %d", e.Index)
}

type LapackRoutineUnavailable struct {
	Routine string
}

func (e *LapackRoutineUnavailable) Error() string {
	return "lapack routine unavailable: " + e.Routine
}

type SolverSetupFailure struct {
	Reason string
}

func (e *SolverSetupFailure) Error() string {
	return "linear solver setup failed: " + e.Reason
}

// Invariant violations: programmer error, not data error.

type ColumnAlreadyBorrowed struct {
	Index int
}

func (e *ColumnAlreadyBorrowed) Error() string {
	return fmt.Sprintf("column %d is already borrowed", e.Index)
}

type RestoreMismatch struct {
	Got, Want int
}

func (e *RestoreMismatch) Error() string {
	return fmt.Sprintf("restore does not match the outstanding borrow: got %d, want %d", e.Got, e.Want)
}

type StateStale struct {
	Component string
}

func (e *StateStale) Error() string {
	return e.Component + ": underlying matrix was mutated since setup"
}

// CISS-specific preconditions (spec.md §4.5).

type RealScalarsUnsupported struct {
	Component string
}

func (e *RealScalarsUnsupported) Error() string {
	return e.Component + ": requires complex scalars"
}

type ArbitrarySelectionUnsupported struct {
	Selector string
}

func (e *ArbitrarySelectionUnsupported) Error() string {
	return "region-based solvers cannot honor an arbitrary eigenvalue selector: " + e.Selector
}
