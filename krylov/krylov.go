// Package krylov builds the Arnoldi/Lanczos factorizations spec.md
// §4.4 drives the ST operator with: an m-step orthonormal basis (held
// in a bv.BV) and the (m+1)xm Hessenberg (general) or tridiagonal
// (Hermitian/Lanczos) projection, plus the a-posteriori residual
// estimates this package's solvers and csvd read off it without ever
// forming OP*V fresh.
package krylov

import (
	"math"

	"github.com/gospectral/eigen/bv"
	"github.com/gospectral/eigen/scalar"
	"github.com/gospectral/eigen/spmat"
)

// breakdownNormTol is the subdiagonal-norm threshold below which a
// Krylov step is declared an invariant-subspace breakdown (the basis
// spans an OP-invariant subspace exactly, spec.md §4.4's "happy
// breakdown").
const breakdownNormTol = 1e-13

// Operator is anything the Krylov recurrence can repeatedly apply:
// st.ST satisfies this directly via its Apply method.
type Operator[S scalar.Scalar] interface {
	Apply(x, y *spmat.Vec[S]) error
}

// Arnoldi is the general (non-Hermitian) m-step factorization
// OP*V[:,:m] = V[:,:m+1]*H, built one column at a time via modified
// Gram-Schmidt with one unconditional second pass (bv's RefineAlways
// policy), keeping the coefficients as H rather than as bv's own R.
type Arnoldi[S scalar.Scalar] struct {
	op    Operator[S]
	basis *bv.BV[S]
	h     [][]S
	steps int
}

// NewArnoldi allocates an Arnoldi factorization of dimension n with
// room for up to maxSteps basis vectors.
func NewArnoldi[S scalar.Scalar](n, maxSteps int, op Operator[S]) *Arnoldi[S] {
	basis := bv.New[S](n, maxSteps+1)
	h := make([][]S, maxSteps+1)
	for i := range h {
		h[i] = make([]S, maxSteps)
	}
	return &Arnoldi[S]{op: op, basis: basis, h: h}
}

// SetInitialVector normalizes v0 into basis column 0.
func (a *Arnoldi[S]) SetInitialVector(v0 *spmat.Vec[S]) {
	col := a.basis.GetColumn(0)
	col.Copy(v0)
	nrm := col.Norm()
	if nrm > 0 {
		col.Scale(scalar.FromFloat64[S](1 / nrm))
	}
	a.basis.RestoreColumn(0, col)
	a.steps = 0
}

// Basis returns the underlying bv.BV container.
func (a *Arnoldi[S]) Basis() *bv.BV[S] { return a.basis }

// Hessenberg returns the (maxSteps+1)xmaxSteps projection matrix built
// so far; only the leading Steps()+1 rows and Steps() columns are
// populated.
func (a *Arnoldi[S]) Hessenberg() [][]S { return a.h }

// Steps reports how many columns of the factorization have been built.
func (a *Arnoldi[S]) Steps() int { return a.steps }

// Extend grows the factorization up to `to` steps (no-op if already
// there), returning the step actually reached and whether a breakdown
// was hit.
func (a *Arnoldi[S]) Extend(to int) (reached int, breakdown bool, err error) {
	n := a.basis.N()
	for j := a.steps; j < to; j++ {
		vj := a.basis.GetColumn(j)
		w := spmat.NewVec[S](n)
		applyErr := a.op.Apply(vj, w)
		a.basis.RestoreColumn(j, vj)
		if applyErr != nil {
			return j, false, applyErr
		}

		for pass := 0; pass < 2; pass++ {
			for i := 0; i <= j; i++ {
				vi := a.basis.GetColumn(i)
				c := w.Dot(vi)
				w.AXPY(-c, vi)
				a.basis.RestoreColumn(i, vi)
				a.h[i][j] += c
			}
		}

		beta := w.Norm()
		a.h[j+1][j] = scalar.FromFloat64[S](beta)
		a.steps = j + 1
		if beta < breakdownNormTol {
			return a.steps, true, nil
		}
		vnext := a.basis.GetColumn(j + 1)
		vnext.Copy(w)
		vnext.Scale(scalar.FromFloat64[S](1 / beta))
		a.basis.RestoreColumn(j+1, vnext)
	}
	return a.steps, false, nil
}

// RitzResidual returns the a-posteriori residual norm ||OP*q - theta*q||
// for a Ritz vector q = V[:,:m]*y, where y is an eigenvector of the
// leading m x m Hessenberg block: beta_m * |y[m-1]| (spec.md §4.4's
// residual estimate, valid without ever forming OP*q directly).
func (a *Arnoldi[S]) RitzResidual(m int, y []S) float64 {
	betaM := scalar.Abs(a.h[m][m-1])
	return betaM * scalar.Abs(y[m-1])
}

// Lanczos is the Hermitian specialization: the projection collapses to
// a real tridiagonal (alpha on the diagonal, beta off it) even for
// S=complex128, since a Hermitian operator's Rayleigh quotients are
// always real.
type Lanczos[S scalar.Scalar] struct {
	op        Operator[S]
	basis     *bv.BV[S]
	alpha     []float64
	beta      []float64
	steps     int
}

// NewLanczos allocates a Lanczos factorization of dimension n with
// room for up to maxSteps basis vectors. The caller is responsible for
// only ever passing a Hermitian operator (spec.md leaves verifying
// that to the ST/BV layer's IsHermitianKnown hint).
func NewLanczos[S scalar.Scalar](n, maxSteps int, op Operator[S]) *Lanczos[S] {
	return &Lanczos[S]{
		op:    op,
		basis: bv.New[S](n, maxSteps+1),
		alpha: make([]float64, maxSteps),
		beta:  make([]float64, maxSteps+1),
	}
}

func (l *Lanczos[S]) Basis() *bv.BV[S]    { return l.basis }
func (l *Lanczos[S]) Alpha() []float64     { return l.alpha }
func (l *Lanczos[S]) Beta() []float64      { return l.beta }
func (l *Lanczos[S]) Steps() int           { return l.steps }

// SetInitialVector normalizes v0 into basis column 0.
func (l *Lanczos[S]) SetInitialVector(v0 *spmat.Vec[S]) {
	col := l.basis.GetColumn(0)
	col.Copy(v0)
	nrm := col.Norm()
	if nrm > 0 {
		col.Scale(scalar.FromFloat64[S](1 / nrm))
	}
	l.basis.RestoreColumn(0, col)
	l.steps = 0
}

// Extend grows the three-term recurrence up to `to` steps:
//
//	w = OP*v_j - beta_j*v_{j-1}
//	alpha_j = Re<v_j, w>
//	w -= alpha_j*v_j
//	beta_{j+1} = ||w||,  v_{j+1} = w/beta_{j+1}
//
// with one full re-orthogonalization pass against all prior columns
// (plain three-term recurrence alone loses orthogonality quickly in
// floating point; spec.md §4.4 calls this out as Lanczos's defining
// extra cost over Arnoldi).
func (l *Lanczos[S]) Extend(to int) (reached int, breakdown bool, err error) {
	n := l.basis.N()
	for j := l.steps; j < to; j++ {
		vj := l.basis.GetColumn(j)
		w := spmat.NewVec[S](n)
		applyErr := l.op.Apply(vj, w)
		l.basis.RestoreColumn(j, vj)
		if applyErr != nil {
			return j, false, applyErr
		}

		if j > 0 {
			vprev := l.basis.GetColumn(j - 1)
			w.AXPY(scalar.FromFloat64[S](-l.beta[j]), vprev)
			l.basis.RestoreColumn(j-1, vprev)
		}

		vjAgain := l.basis.GetColumn(j)
		alpha := scalar.Real(vjAgain.Dot(w))
		w.AXPY(scalar.FromFloat64[S](-alpha), vjAgain)
		l.basis.RestoreColumn(j, vjAgain)
		l.alpha[j] = alpha

		for i := 0; i <= j; i++ {
			vi := l.basis.GetColumn(i)
			c := w.Dot(vi)
			w.AXPY(-c, vi)
			l.basis.RestoreColumn(i, vi)
		}

		betaNext := w.Norm()
		l.beta[j+1] = betaNext
		l.steps = j + 1
		if betaNext < breakdownNormTol {
			return l.steps, true, nil
		}
		vnext := l.basis.GetColumn(j + 1)
		vnext.Copy(w)
		vnext.Scale(scalar.FromFloat64[S](1 / betaNext))
		l.basis.RestoreColumn(j+1, vnext)
	}
	return l.steps, false, nil
}

// RitzResidual returns beta_m*|y[m-1]| for a Ritz vector built from the
// leading m x m tridiagonal block's eigenvector y.
func (l *Lanczos[S]) RitzResidual(m int, y []float64) float64 {
	return l.beta[m] * math.Abs(y[m-1])
}
