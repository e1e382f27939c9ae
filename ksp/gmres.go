package ksp

import (
	"github.com/gospectral/eigen/errs"
	"github.com/gospectral/eigen/scalar"
	"github.com/gospectral/eigen/spmat"

	"gonum.org/v1/gonum/linsolve"
	"gonum.org/v1/gonum/mat"
)

// GMRES is the iterative KSP handle, grounded on
// gonum.org/v1/gonum/linsolve's restarted GMRES for the real case; the
// complex case (needed by ciss's shifted solves, which are always
// complex per spec.md §4.5) runs a from-scratch restarted GMRES over
// spmat's generic Vec/Matrix, since gonum's linsolve package operates
// on mat.VecDense (float64) only.
type GMRES[S scalar.Scalar] struct {
	a, p          spmat.Matrix[S]
	n             int
	restart       int
	tol           float64
	maxIterations int
	reason        ConvergedReason
	pc            PC
}

// NewGMRES returns an unconfigured GMRES handle with the given restart
// length, tolerance, and iteration cap (zero values fall back to
// linsolve's own defaults on the real path).
func NewGMRES[S scalar.Scalar](restart int, tol float64, maxIter int) *GMRES[S] {
	return &GMRES[S]{restart: restart, tol: tol, maxIterations: maxIter, pc: PC{Type: "none"}}
}

func (h *GMRES[S]) SetOperators(a, p spmat.Matrix[S], _ spmat.StructureHint) {
	h.a, h.p = a, p
	rows, _ := p.Dims()
	h.n = rows
}

func (h *GMRES[S]) SetUp() error { return nil }

func (h *GMRES[S]) Solve(b, x *spmat.Vec[S]) error {
	if scalar.IsComplex[S]() {
		return h.solveComplex(b, x, false)
	}
	return h.solveReal(b, x, false)
}

// SolveTranspose solves A^H x = b (conjugate-transpose for complex S,
// plain transpose for real S), reusing the same restarted-GMRES
// machinery as Solve but with the operator's Mult/MultTranspose roles
// swapped.
func (h *GMRES[S]) SolveTranspose(b, x *spmat.Vec[S]) error {
	if scalar.IsComplex[S]() {
		return h.solveComplex(b, x, true)
	}
	return h.solveReal(b, x, true)
}

func (h *GMRES[S]) solveReal(b, x *spmat.Vec[S], transpose bool) error {
	p := any(h.p).(spmat.Matrix[float64])
	adapter := mulVecToer{m: p, transpose: transpose}
	bv := mat.NewVecDense(h.n, nil)
	for i := 0; i < h.n; i++ {
		bv.SetVec(i, any(b.At(i)).(float64))
	}
	settings := &linsolve.Settings{Tolerance: h.tol, MaxIterations: h.maxIterations}
	res, err := linsolve.Iterative(adapter, bv, &linsolve.GMRES{Restart: h.restart}, settings)
	if err != nil {
		h.reason = DivergedLinearSolve
		return &errs.SolverSetupFailure{Reason: err.Error()}
	}
	for i := 0; i < h.n; i++ {
		x.SetAt(i, any(res.X.AtVec(i)).(S))
	}
	h.reason = ConvergedTolerance
	return nil
}

// mulVecToer adapts a real spmat.Matrix into gonum linsolve's
// MulVecToer contract. When transpose is set, its own Mult/MultTranspose
// roles are swapped so linsolve.Iterative solves against A^T instead.
type mulVecToer struct {
	m         spmat.Matrix[float64]
	transpose bool
}

func (a mulVecToer) MulVecTo(dst *mat.VecDense, trans bool, x mat.Vector) {
	n := x.Len()
	xv := spmat.NewVec[float64](n)
	for i := 0; i < n; i++ {
		xv.SetAt(i, x.AtVec(i))
	}
	yv := spmat.NewVec[float64](n)
	if trans != a.transpose {
		a.m.MultTranspose(xv, yv)
	} else {
		a.m.Mult(xv, yv)
	}
	for i := 0; i < n; i++ {
		dst.SetVec(i, yv.At(i))
	}
}

// solveComplex runs a restarted, modified-Gram-Schmidt GMRES directly
// over spmat.Vec[S] for S=complex128, the same algorithm
// linsolve.GMRES implements for the real case. When transpose is set,
// every operator application uses MultTranspose (conjugate-transpose)
// instead of Mult, solving A^H x = b.
func (h *GMRES[S]) solveComplex(b, x *spmat.Vec[S], transpose bool) error {
	mult := h.p.Mult
	if transpose {
		mult = h.p.MultTranspose
	}
	n := h.n
	restart := h.restart
	if restart <= 0 || restart > n {
		restart = n
	}
	tol := h.tol
	if tol <= 0 {
		tol = 1e-8
	}
	maxIt := h.maxIterations
	if maxIt <= 0 {
		maxIt = 2 * n
	}
	bNorm := b.Norm()
	if bNorm == 0 {
		x.Set(0)
		h.reason = ConvergedTolerance
		return nil
	}

	r := spmat.NewVec[S](n)
	ax := spmat.NewVec[S](n)
	iters := 0
	for iters < maxIt {
		mult(x, ax)
		r.Copy(b)
		r.AXPY(scalar.FromFloat64[S](-1), ax)
		beta := r.Norm()
		if beta/bNorm < tol {
			h.reason = ConvergedTolerance
			return nil
		}

		v := make([]*spmat.Vec[S], restart+1)
		hess := make([][]S, restart+1)
		for i := range hess {
			hess[i] = make([]S, restart)
		}
		v[0] = spmat.NewVec[S](n)
		v[0].Copy(r)
		v[0].Scale(scalar.FromFloat64[S](1 / beta))

		gv := make([]S, restart+1)
		gv[0] = scalar.FromFloat64[S](beta)

		m := restart
		for j := 0; j < restart; j++ {
			iters++
			w := spmat.NewVec[S](n)
			mult(v[j], w)
			for i := 0; i <= j; i++ {
				hess[i][j] = w.Dot(v[i])
				w.AXPY(-hess[i][j], v[i])
			}
			wn := w.Norm()
			hess[j+1][j] = scalar.FromFloat64[S](wn)
			if wn < 1e-14 || iters >= maxIt {
				m = j + 1
				break
			}
			v[j+1] = spmat.NewVec[S](n)
			v[j+1].Copy(w)
			v[j+1].Scale(scalar.FromFloat64[S](1 / wn))
			m = j + 1
		}

		y := leastSquaresHessenberg(hess, gv, m)
		for j := 0; j < m; j++ {
			x.AXPY(y[j], v[j])
		}
		if iters >= maxIt {
			break
		}
	}
	mult(x, ax)
	r.Copy(b)
	r.AXPY(scalar.FromFloat64[S](-1), ax)
	if r.Norm()/bNorm < tol*10 {
		h.reason = ConvergedTolerance
		return nil
	}
	h.reason = DivergedIts
	return &errs.SolverSetupFailure{Reason: "gmres: iteration limit reached"}
}

// leastSquaresHessenberg solves the small (m+1)×m upper-Hessenberg
// least-squares problem minimizing ||g - H*y|| via Givens rotations,
// the same reduction linsolve.GMRES performs internally.
func leastSquaresHessenberg[S scalar.Scalar](h [][]S, g []S, m int) []S {
	hh := make([][]S, m+1)
	for i := range hh {
		hh[i] = append([]S(nil), h[i][:m]...)
	}
	gg := append([]S(nil), g[:m+1]...)

	for k := 0; k < m; k++ {
		a, b := hh[k][k], hh[k+1][k]
		r := scalar.Sqrt(a*scalar.Conj(a) + b*scalar.Conj(b))
		if scalar.Abs(r) < 1e-300 {
			continue
		}
		c := a / r
		s := b / r
		for j := k; j < m; j++ {
			t1, t2 := hh[k][j], hh[k+1][j]
			hh[k][j] = scalar.Conj(c)*t1 + scalar.Conj(s)*t2
			hh[k+1][j] = -s*t1 + c*t2
		}
		g1, g2 := gg[k], gg[k+1]
		gg[k] = scalar.Conj(c)*g1 + scalar.Conj(s)*g2
		gg[k+1] = -s*g1 + c*g2
	}
	y := make([]S, m)
	for i := m - 1; i >= 0; i-- {
		sum := gg[i]
		for j := i + 1; j < m; j++ {
			sum -= hh[i][j] * y[j]
		}
		if scalar.Abs(hh[i][i]) < 1e-300 {
			y[i] = 0
			continue
		}
		y[i] = sum / hh[i][i]
	}
	return y
}

func (h *GMRES[S]) ConvergedReason() ConvergedReason { return h.reason }
func (h *GMRES[S]) SetType(name string)               { h.pc.Type = name }
func (h *GMRES[S]) Preconditioner() *PC                { return &h.pc }
